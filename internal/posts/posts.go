// Package posts builds the index of Markdown posts under a content folder.
package posts

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/inkwell/internal/assetref"
	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/walker"
)

// Ext is the suffix of post files.
const Ext = ".md"

// Entry is one Markdown file in the content tree.
type Entry struct {
	Path       string               `json:"path"`
	Title      string               `json:"title"`
	Date       string               `json:"date,omitempty"`
	Draft      bool                 `json:"draft"`
	Metadata   frontmatter.Metadata `json:"metadata"`
	References []string             `json:"references"`
	Checksum   string               `json:"checksum"`

	Body string    `json:"-"`
	File fsys.File `json:"-"`
}

// Time parses Date. Unparseable or missing dates report false.
func (e Entry) Time() (time.Time, bool) {
	return ParseDate(e.Date)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate reads the date formats front matter commonly carries.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Diagnostic reports a file or folder left out of a scan.
type Diagnostic struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (d Diagnostic) Error() string { return d.Path + ": " + d.Err.Error() }

// Index is the result of one scan.
type Index struct {
	Entries     []Entry
	Diagnostics []Diagnostic
}

// Find returns the entry at path.
func (ix *Index) Find(p string) (Entry, bool) {
	for _, e := range ix.Entries {
		if e.Path == p {
			return e, true
		}
	}
	return Entry{}, false
}

// UsedFilenames aggregates the asset references of every post.
func (ix *Index) UsedFilenames() assetref.Set {
	sets := make([]assetref.Set, 0, len(ix.Entries))
	for _, e := range ix.Entries {
		s := make(assetref.Set, len(e.References))
		for _, name := range e.References {
			s[name] = struct{}{}
		}
		sets = append(sets, s)
	}
	return assetref.Union(sets...)
}

// Builder scans content folders.
type Builder struct {
	Codec  frontmatter.Codec
	Logger *slog.Logger
	// Workers bounds concurrent file reads; zero means 8.
	Workers int
}

// Build scans folder with the default codec.
func Build(ctx context.Context, folder fsys.Folder) (*Index, error) {
	return Builder{}.Build(ctx, folder)
}

// Build reads and parses every .md file under folder. Unreadable files and
// folders become diagnostics; only cancellation fails the build.
func (b Builder) Build(ctx context.Context, folder fsys.Folder) (*Index, error) {
	logger := cmp.Or(b.Logger, slog.Default())
	ix := &Index{}
	dirErrs := make(chan Diagnostic, 16)
	done := make(chan struct{})
	go func() {
		for d := range dirErrs {
			ix.Diagnostics = append(ix.Diagnostics, d)
		}
		close(done)
	}()
	items, err := walker.Collect(ctx, folder, walker.Suffixes(Ext), func(p string, err error) {
		dirErrs <- Diagnostic{Path: p, Err: err}
	})
	close(dirErrs)
	<-done
	if err != nil {
		return nil, fmt.Errorf("posts: scan: %w", err)
	}

	results := make([]*Entry, len(items))
	fileErrs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cmp.Or(b.Workers, 8))
	for i, it := range items {
		g.Go(func() error {
			raw, err := it.File.Read(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fileErrs[i] = err
				return nil
			}
			e := newEntry(it.Path, it.File, raw, b.Codec)
			results[i] = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("posts: read: %w", err)
	}

	for i, it := range items {
		if fileErrs[i] != nil {
			ix.Diagnostics = append(ix.Diagnostics, Diagnostic{Path: it.Path, Err: fileErrs[i]})
			continue
		}
		ix.Entries = append(ix.Entries, *results[i])
	}
	for _, d := range ix.Diagnostics {
		logger.Warn("posts: skipped", slog.String("path", d.Path), slog.String("error", d.Err.Error()))
	}
	Sort(ix.Entries)
	slices.SortFunc(ix.Diagnostics, func(a, b Diagnostic) int { return strings.Compare(a.Path, b.Path) })
	return ix, nil
}

// Load reads a single post; used after a save or create to refresh one entry.
func Load(ctx context.Context, rel string, f fsys.File, codec frontmatter.Codec) (Entry, error) {
	raw, err := f.Read(ctx)
	if err != nil {
		return Entry{}, err
	}
	return newEntry(rel, f, raw, codec), nil
}

func newEntry(rel string, f fsys.File, raw []byte, codec frontmatter.Codec) Entry {
	if codec == nil {
		codec = frontmatter.Default
	}
	doc := frontmatter.ParseWith(codec, string(raw))
	md := doc.Metadata

	title := defaultTitle(path.Base(rel))
	if v, ok := md.Get("title"); ok && !v.IsNull() && v.Text() != "" {
		title = v.Text()
	}
	var date string
	if v, ok := md.Get("date"); ok && !v.IsNull() {
		date = v.Text()
	}
	var draft bool
	if v, ok := md.Get("draft"); ok {
		draft, _ = v.BoolValue()
	}
	return Entry{
		Path:       rel,
		Title:      title,
		Date:       date,
		Draft:      draft,
		Metadata:   md,
		References: assetref.FindReferences(doc.Body).Sorted(),
		Checksum:   checksum.Sum(raw),
		Body:       doc.Body,
		File:       f,
	}
}

// defaultTitle is the file name without its .md extension.
func defaultTitle(name string) string {
	if strings.EqualFold(path.Ext(name), Ext) {
		return name[:len(name)-len(Ext)]
	}
	return name
}

// Sort orders entries newest first; undated posts go last, ties by path.
func Sort(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		ta, oka := a.Time()
		tb, okb := b.Time()
		switch {
		case oka && okb:
			if c := tb.Compare(ta); c != 0 {
				return c
			}
		case oka:
			return -1
		case okb:
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
}
