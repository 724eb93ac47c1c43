// Package frontmatter splits Markdown documents into a metadata block and a
// body, and writes them back in the three-hyphen format static-site
// generators read.
package frontmatter

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const delim = "---"

// Document is a parsed content file.
type Document struct {
	Metadata Metadata
	Body     string
}

// Render serializes the document back to text.
func (d Document) Render() string {
	return Serialize(d.Body, d.Metadata)
}

// Codec decodes the text between the delimiter lines into metadata.
type Codec interface {
	Decode(block string) (Metadata, error)
}

// ErrMalformed is wrapped by codecs that cannot make sense of a block.
var ErrMalformed = errors.New("frontmatter: malformed metadata block")

// Chain tries each codec in order and returns the first successful decode.
type Chain []Codec

func (c Chain) Decode(block string) (Metadata, error) {
	var errs []error
	for _, codec := range c {
		md, err := codec.Decode(block)
		if err == nil {
			return md, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Metadata{}, nil
	}
	return Metadata{}, errors.Join(errs...)
}

// Default is the preferred YAML decoder with the line-based decoder as fallback.
var Default Codec = Chain{YAMLCodec{}, SimpleCodec{}}

// Parse splits raw text with the Default codec.
func Parse(raw string) Document {
	return ParseWith(Default, raw)
}

// ParseWith splits raw into metadata and body. Text without a leading,
// terminated delimiter block is returned whole as body. A block the codec
// rejects yields empty metadata; the body is still recovered.
func ParseWith(codec Codec, raw string) Document {
	block, body, ok := split(raw)
	if !ok {
		return Document{Body: raw}
	}
	md, err := codec.Decode(block)
	if err != nil {
		return Document{Body: body}
	}
	return Document{Metadata: md, Body: body}
}

// split returns the metadata block and the body following the closing
// delimiter line.
func split(raw string) (block, body string, ok bool) {
	first, rest, found := cutLine(raw)
	if !found && rest == "" {
		// A lone "---" without newline is not a block.
		return "", "", false
	}
	if !isDelim(first) {
		return "", "", false
	}
	var lines []string
	for {
		line, next, more := cutLine(rest)
		if isDelim(line) {
			return strings.Join(lines, "\n"), next, true
		}
		if !more {
			return "", "", false
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
		rest = next
	}
}

// cutLine returns the first line of s (without its newline) and the rest.
func cutLine(s string) (line, rest string, more bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func isDelim(line string) bool {
	return strings.TrimRight(line, " \t\r") == delim
}

var numberRe = regexp.MustCompile(`^[-+]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][-+]?[0-9]+)?$`)

// coerce maps an unquoted scalar token to its typed value. Both codecs route
// plain scalars through here so they agree.
func coerce(token string) Value {
	switch token {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null", "~", "":
		return Null()
	}
	if numberRe.MatchString(token) {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return Number(f)
		}
	}
	return String(token)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
