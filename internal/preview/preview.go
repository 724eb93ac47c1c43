// Package preview renders a post as the HTML article shown next to the editor.
package preview

import (
	"bytes"
	"fmt"
	"html"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/posts"
)

const defaultCacheSize = 128

// Renderer converts Markdown with GFM and hard line breaks. Results are
// cached by content digest.
type Renderer struct {
	md    goldmark.Markdown
	cache *lru.Cache[string, string]
}

// New returns a Renderer keeping up to cacheSize articles; zero or less uses
// the default size.
func New(cacheSize int) (*Renderer, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("preview: cache: %w", err)
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	return &Renderer{md: md, cache: cache}, nil
}

// Render returns the article for a post. An empty title shows "Untitled";
// the date line is omitted when date is empty.
func (r *Renderer) Render(title, date, body string) (string, error) {
	key := checksum.Strings(title, date, body)
	if out, ok := r.cache.Get(key); ok {
		return out, nil
	}

	var content bytes.Buffer
	if err := r.md.Convert([]byte(body), &content); err != nil {
		return "", fmt.Errorf("preview: render: %w", err)
	}
	if title == "" {
		title = "Untitled"
	}
	var b bytes.Buffer
	b.WriteString(`<article class="preview-article">` + "\n")
	b.WriteString(`<header class="preview-header">` + "\n")
	fmt.Fprintf(&b, "<h1 class=\"preview-title\">%s</h1>\n", html.EscapeString(title))
	if date != "" {
		fmt.Fprintf(&b, "<time class=\"preview-date\"%s>%s</time>\n", datetimeAttr(date), html.EscapeString(displayDate(date)))
	}
	b.WriteString("</header>\n")
	b.WriteString(`<div class="preview-content">` + "\n")
	b.Write(content.Bytes())
	b.WriteString("</div>\n</article>\n")

	out := b.String()
	r.cache.Add(key, out)
	return out, nil
}

// Len is the number of cached articles.
func (r *Renderer) Len() int { return r.cache.Len() }

func displayDate(date string) string {
	if t, ok := posts.ParseDate(date); ok {
		return t.Format("January 2, 2006")
	}
	return date
}

func datetimeAttr(date string) string {
	if t, ok := posts.ParseDate(date); ok {
		return fmt.Sprintf(` datetime="%s"`, t.Format("2006-01-02"))
	}
	return ""
}
