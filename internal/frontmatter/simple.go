package frontmatter

import (
	"fmt"
	"strings"
)

// SimpleCodec is a line-based decoder for the subset of YAML that content
// headers use in practice: "key: scalar", "key:" followed by "- item" lines
// or "sub: value" lines, flow literals like [a, b] and {k: v}, and | or >
// block scalars. It needs no YAML library and accepts some blocks a strict
// parser rejects, such as unquoted values containing ": ".
type SimpleCodec struct{}

type simpleLine struct {
	no     int
	indent int
	text   string // trimmed
}

func (SimpleCodec) Decode(block string) (Metadata, error) {
	var md Metadata
	var lines []simpleLine
	for i, raw := range strings.Split(block, "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimLeft(raw, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, simpleLine{no: i + 1, indent: len(raw) - len(trimmed), text: trimmed})
	}

	for i := 0; i < len(lines); {
		ln := lines[i]
		if ln.indent > 0 {
			return Metadata{}, fmt.Errorf("%w: line %d: unexpected indentation", ErrMalformed, ln.no)
		}
		key, rest, ok := splitKey(ln.text)
		if !ok {
			return Metadata{}, fmt.Errorf("%w: line %d: expected key: value", ErrMalformed, ln.no)
		}
		i++

		// Children are indented lines, or "- " items at column zero.
		j := i
		for j < len(lines) && (lines[j].indent > 0 || isItem(lines[j].text)) {
			j++
		}
		children := lines[i:j]
		i = j

		v, err := simpleValue(rest, children)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, ln.no, err)
		}
		md.Set(key, v)
	}
	return md, nil
}

func simpleValue(rest string, children []simpleLine) (Value, error) {
	switch {
	case rest == "":
		return simpleNested(children)
	case rest == "|" || rest == "|-" || rest == ">" || rest == ">-":
		return simpleBlockScalar(rest, children), nil
	case len(children) > 0:
		return Value{}, fmt.Errorf("scalar followed by nested lines")
	case strings.HasPrefix(rest, "["):
		items, err := flowItems(rest, '[', ']')
		if err != nil {
			return Value{}, err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, err := scalarText(it)
			if err != nil {
				return Value{}, err
			}
			out = append(out, s)
		}
		return Value{kind: KindList, list: out}, nil
	case strings.HasPrefix(rest, "{"):
		items, err := flowItems(rest, '{', '}')
		if err != nil {
			return Value{}, err
		}
		fields := make([]Field, 0, len(items))
		for _, it := range items {
			k, v, ok := splitKey(it)
			if !ok {
				return Value{}, fmt.Errorf("flow mapping entry %q has no key", it)
			}
			s, err := scalarText(v)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: k, Value: s})
		}
		return Value{kind: KindMap, fields: fields}, nil
	}
	if q, tail, ok := cutQuoted(rest); ok {
		if tail != "" && !strings.HasPrefix(tail, "#") {
			return Value{}, fmt.Errorf("text after quoted value: %q", tail)
		}
		return String(q), nil
	}
	return coerce(stripComment(rest)), nil
}

func simpleNested(children []simpleLine) (Value, error) {
	if len(children) == 0 {
		return Null(), nil
	}
	if isItem(children[0].text) {
		items := make([]string, 0, len(children))
		for _, c := range children {
			if !isItem(c.text) {
				return Value{}, fmt.Errorf("line %d: mixed list and mapping", c.no)
			}
			s, err := scalarText(strings.TrimSpace(strings.TrimPrefix(c.text, "-")))
			if err != nil {
				return Value{}, fmt.Errorf("line %d: %v", c.no, err)
			}
			items = append(items, s)
		}
		return Value{kind: KindList, list: items}, nil
	}
	fields := make([]Field, 0, len(children))
	for _, c := range children {
		if c.indent != children[0].indent {
			return Value{}, fmt.Errorf("line %d: nesting deeper than one level", c.no)
		}
		k, v, ok := splitKey(c.text)
		if !ok {
			return Value{}, fmt.Errorf("line %d: expected sub: value", c.no)
		}
		s, err := scalarText(v)
		if err != nil {
			return Value{}, fmt.Errorf("line %d: %v", c.no, err)
		}
		fields = append(fields, Field{Key: k, Value: s})
	}
	return Value{kind: KindMap, fields: fields}, nil
}

// simpleBlockScalar handles | and > with their strip (-) variants. Lines are
// already trimmed, so relative indentation inside the block is lost.
func simpleBlockScalar(indicator string, children []simpleLine) Value {
	texts := make([]string, len(children))
	for i, c := range children {
		texts[i] = c.text
	}
	sep := "\n"
	if strings.HasPrefix(indicator, ">") {
		sep = " "
	}
	s := strings.Join(texts, sep)
	if !strings.HasSuffix(indicator, "-") && s != "" {
		s += "\n"
	}
	return String(s)
}

// scalarText returns the string form of a list item or nested value.
func scalarText(s string) (string, error) {
	if q, tail, ok := cutQuoted(s); ok {
		if tail != "" && !strings.HasPrefix(tail, "#") {
			return "", fmt.Errorf("text after quoted value: %q", tail)
		}
		return q, nil
	}
	return stripComment(s), nil
}

func isItem(text string) bool {
	return text == "-" || strings.HasPrefix(text, "- ")
}

// splitKey splits "key: rest" at the first colon that ends the key.
func splitKey(text string) (key, rest string, ok bool) {
	if q, tail, quoted := cutQuoted(text); quoted {
		if !strings.HasPrefix(tail, ":") {
			return "", "", false
		}
		return q, strings.TrimSpace(tail[1:]), true
	}
	i := strings.Index(text, ":")
	if i <= 0 {
		return "", "", false
	}
	if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\t' {
		// "http://x" style colon inside a key is not a separator.
		j := strings.Index(text, ": ")
		if j <= 0 {
			return "", "", false
		}
		i = j
	}
	return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:]), true
}

// cutQuoted reads a leading single- or double-quoted scalar and returns its
// unescaped value and the trimmed remainder.
func cutQuoted(s string) (value, tail string, ok bool) {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') {
		return "", "", false
	}
	q := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case q == '\'' && c == '\'':
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			return b.String(), strings.TrimSpace(s[i+1:]), true
		case q == '"' && c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[i])
			}
		case q == '"' && c == '"':
			return b.String(), strings.TrimSpace(s[i+1:]), true
		default:
			b.WriteByte(c)
		}
	}
	return "", "", false
}

// flowItems splits a single-line [a, b] or {k: v} literal into raw entries.
func flowItems(s string, open, end byte) ([]string, error) {
	s = stripComment(s)
	if len(s) < 2 || s[0] != open || s[len(s)-1] != end {
		return nil, fmt.Errorf("unterminated flow literal %q", s)
	}
	inner := s[1 : len(s)-1]
	var items []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == '\\' && quote == '"' && i+1 < len(inner) {
				i++
				cur.WriteByte(inner[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == '[' || c == '{':
			return nil, fmt.Errorf("nested flow literal in %q", s)
		case c == ',':
			items = append(items, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		items = append(items, last)
	}
	return items, nil
}

// stripComment removes a trailing " # comment" from a plain scalar.
func stripComment(s string) string {
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
