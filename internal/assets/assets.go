// Package assets builds the index of image files under the images folder and
// flags the ones no post refers to.
package assets

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/inkwell/internal/assetref"
	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/walker"
)

// Exts are the accepted image extensions, lowercase.
var Exts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

// Entry is one image file.
type Entry struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	Modified   time.Time `json:"modified"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Referenced bool      `json:"referenced"`

	File fsys.File `json:"-"`
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

// Dangling returns the entries no post references.
func (ix *Index) Dangling() []Entry {
	var out []Entry
	for _, e := range ix.Entries {
		if !e.Referenced {
			out = append(out, e)
		}
	}
	return out
}

// Builder scans image folders.
type Builder struct {
	Logger *slog.Logger
	// Workers bounds concurrent probes; zero means 8.
	Workers int
}

// Build scans folder with default settings.
func Build(ctx context.Context, folder fsys.Folder, used assetref.Set) (*Index, error) {
	return Builder{}.Build(ctx, folder, used)
}

// Build stats and probes every image under folder. An entry is referenced
// when its base name is in used. Per-file failures become diagnostics.
func (b Builder) Build(ctx context.Context, folder fsys.Folder, used assetref.Set) (*Index, error) {
	logger := cmp.Or(b.Logger, slog.Default())
	ix := &Index{}
	var dirErrs []Diagnostic
	var mu sync.Mutex
	items, err := walker.Collect(ctx, folder, walker.Suffixes(Exts...), func(p string, err error) {
		mu.Lock()
		dirErrs = append(dirErrs, Diagnostic{Path: p, Err: err})
		mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("assets: scan: %w", err)
	}
	ix.Diagnostics = dirErrs

	results := make([]Entry, len(items))
	fileErrs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cmp.Or(b.Workers, 8))
	for i, it := range items {
		g.Go(func() error {
			e, err := Probe(gctx, it.Path, it.File)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fileErrs[i] = err
				return nil
			}
			e.Referenced = used.Has(e.Name)
			results[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assets: probe: %w", err)
	}
	for i, it := range items {
		if fileErrs[i] != nil {
			ix.Diagnostics = append(ix.Diagnostics, Diagnostic{Path: it.Path, Err: fileErrs[i]})
			continue
		}
		ix.Entries = append(ix.Entries, results[i])
	}
	for _, d := range ix.Diagnostics {
		logger.Warn("assets: skipped", slog.String("path", d.Path), slog.String("error", d.Err.Error()))
	}
	Sort(ix.Entries)
	slices.SortFunc(ix.Diagnostics, func(a, b Diagnostic) int { return strings.Compare(a.Path, b.Path) })
	return ix, nil
}

// Probe stats f and sniffs its type and pixel size. Referenced is left false.
func Probe(ctx context.Context, rel string, f fsys.File) (Entry, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return Entry{}, err
	}
	r, err := f.Open(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer r.Close()
	head, err := io.ReadAll(io.LimitReader(r, sniffLen))
	if err != nil {
		return Entry{}, fmt.Errorf("assets: read %s: %w", rel, err)
	}
	e := Entry{
		Path:     rel,
		Name:     path.Base(rel),
		Size:     info.Size,
		Type:     typeHint(rel, head),
		Modified: info.ModTime,
		File:     f,
	}
	// SVG and truncated files keep zero dimensions.
	if cfg, _, err := image.DecodeConfig(io.MultiReader(bytes.NewReader(head), r)); err == nil {
		e.Width, e.Height = cfg.Width, cfg.Height
	}
	return e, nil
}

// typeHint prefers the sniffed type and falls back to the extension.
func typeHint(name string, head []byte) string {
	if len(head) > 0 {
		if m := mimetype.Detect(head); strings.HasPrefix(m.String(), "image/") {
			return baseType(m.String())
		}
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(name))); t != "" {
		return baseType(t)
	}
	return "application/octet-stream"
}

func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// Sort orders entries most recently modified first, ties by path.
func Sort(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
}
