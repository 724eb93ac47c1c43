package frontmatter

import (
	"strconv"
	"strings"
)

// Serialize writes metadata as a delimited block followed by body. Empty
// metadata returns body unchanged.
func Serialize(body string, md Metadata) string {
	if md.Len() == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(delim)
	b.WriteByte('\n')
	for key, v := range md.All() {
		writeEntry(&b, key, v)
	}
	b.WriteString(delim)
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String()
}

func writeEntry(b *strings.Builder, key string, v Value) {
	b.WriteString(scalar(key))
	b.WriteByte(':')
	switch v.kind {
	case KindNull:
		b.WriteString(" null\n")
	case KindBool:
		b.WriteString(" " + strconv.FormatBool(v.b) + "\n")
	case KindNumber:
		b.WriteString(" " + formatNumber(v.num) + "\n")
	case KindString:
		b.WriteString(" " + scalar(v.str) + "\n")
	case KindList:
		if len(v.list) == 0 {
			b.WriteString(" []\n")
			return
		}
		b.WriteByte('\n')
		for _, item := range v.list {
			b.WriteString("  - " + scalar(item) + "\n")
		}
	case KindMap:
		if len(v.fields) == 0 {
			b.WriteString(" {}\n")
			return
		}
		b.WriteByte('\n')
		for _, f := range v.fields {
			b.WriteString("  " + scalar(f.Key) + ": " + scalar(f.Value) + "\n")
		}
	}
}

// scalar returns s bare when it reads back as the same string, else double-quoted.
func scalar(s string) string {
	if needsQuote(s) {
		return quote(s)
	}
	return s
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if strings.ContainsAny(s, ":\n\"\r\t") || strings.Contains(s, " #") {
		return true
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	if strings.ContainsRune("-?,[]{}#&*!|>'%@`", rune(s[0])) {
		return true
	}
	return coerce(s).kind != KindString
}

var quoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
