package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/fsys"
)

// NewPost describes a post to create. Path is slash separated relative to the
// content folder; Ext is appended when missing.
type NewPost struct {
	Path  string
	Title string
	Draft bool
	Date  time.Time
}

// Create writes an empty post with a title/draft/date header. Missing folders
// along Path are created; an existing file is never overwritten.
func Create(ctx context.Context, content fsys.Folder, p NewPost) (Entry, error) {
	rel, err := normalizePath(p.Path)
	if err != nil {
		return Entry{}, err
	}
	dir, name := splitDir(rel)
	parent, err := fsys.Resolve(ctx, content, dir, true)
	if err != nil {
		return Entry{}, fmt.Errorf("posts: create %s: %w", rel, err)
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = strings.ReplaceAll(defaultTitle(name), "-", " ")
	}
	md := frontmatter.NewMetadata(
		frontmatter.Pair{Key: "title", Value: frontmatter.String(title)},
		frontmatter.Pair{Key: "draft", Value: frontmatter.Bool(p.Draft)},
	)
	if !p.Date.IsZero() {
		md.Set("date", frontmatter.String(p.Date.Format(time.RFC3339)))
	}
	raw := []byte(frontmatter.Serialize("", md))

	f, err := parent.NewFile(ctx, name)
	if err != nil {
		return Entry{}, fmt.Errorf("posts: create %s: %w", rel, err)
	}
	if err := fsys.WriteFile(ctx, f, raw); err != nil {
		if rmErr := parent.Remove(context.WithoutCancel(ctx), name); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		return Entry{}, fmt.Errorf("posts: create %s: %w", rel, err)
	}
	return newEntry(rel, f, raw, nil), nil
}

// normalizePath cleans a user-supplied post path and appends Ext.
func normalizePath(p string) (string, error) {
	var parts []string
	for _, seg := range strings.Split(strings.ReplaceAll(p, `\`, "/"), "/") {
		seg = strings.TrimSpace(seg)
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("posts: path %q: %w", p, apperr.ErrInvalidName)
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("posts: empty path: %w", apperr.ErrInvalidName)
	}
	rel := strings.Join(parts, "/")
	if !strings.HasSuffix(strings.ToLower(rel), Ext) {
		rel += Ext
	}
	return rel, nil
}

func splitDir(rel string) (dir, name string) {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return "", rel
	}
	return rel[:i], rel[i+1:]
}
