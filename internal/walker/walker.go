// Package walker enumerates files below a folder handle.
package walker

import (
	"context"
	"iter"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/inkwell/internal/fsys"
)

// Filter decides whether a file name is yielded. A nil Filter accepts every
// file.
type Filter func(name string) bool

// Suffixes accepts names whose lowercased extension is one of exts.
func Suffixes(exts ...string) Filter {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[strings.ToLower(path.Ext(name))]
		return ok
	}
}

// ErrorFunc receives a failure below the walk root. path is relative to the
// root; the failing branch is skipped and the walk continues.
type ErrorFunc func(path string, err error)

// Item is one yielded file.
type Item struct {
	Path string
	File fsys.File
}

// Walk lazily yields (relative path, file) pairs depth first. Directories are
// always descended. Stopping the range loop or cancelling ctx ends the walk.
func Walk(ctx context.Context, root fsys.Folder, filter Filter, onErr ErrorFunc) iter.Seq2[string, fsys.File] {
	if onErr == nil {
		onErr = func(string, error) {}
	}
	return func(yield func(string, fsys.File) bool) {
		walk(ctx, root, "", filter, onErr, yield)
	}
}

func walk(ctx context.Context, dir fsys.Folder, prefix string, filter Filter, onErr ErrorFunc, yield func(string, fsys.File) bool) bool {
	entries, err := dir.Entries(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		onErr(prefix, err)
		return true
	}
	fsys.SortEntries(entries)
	for _, e := range entries {
		if ctx.Err() != nil {
			return false
		}
		rel := join(prefix, e.Name)
		if e.Kind == fsys.KindDir {
			sub, err := dir.Folder(ctx, e.Name, false)
			if err != nil {
				onErr(rel, err)
				continue
			}
			if !walk(ctx, sub, rel, filter, onErr, yield) {
				return false
			}
			continue
		}
		if filter != nil && !filter(e.Name) {
			continue
		}
		f, err := dir.File(ctx, e.Name, false)
		if err != nil {
			onErr(rel, err)
			continue
		}
		if !yield(rel, f) {
			return false
		}
	}
	return true
}

// maxBranches bounds the goroutines Collect runs at once.
const maxBranches = 8

// Collect walks the tree listing sibling directories concurrently and returns
// every matching file once all branches are done. onErr may be called from
// several goroutines. Item order is unspecified.
func Collect(ctx context.Context, root fsys.Folder, filter Filter, onErr ErrorFunc) ([]Item, error) {
	if onErr == nil {
		onErr = func(string, error) {}
	}
	var (
		mu    sync.Mutex
		items []Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBranches)

	var visit func(dir fsys.Folder, prefix string) error
	visit = func(dir fsys.Folder, prefix string) error {
		entries, err := dir.Entries(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			onErr(prefix, err)
			return nil
		}
		for _, e := range entries {
			rel := join(prefix, e.Name)
			if e.Kind == fsys.KindDir {
				sub, err := dir.Folder(gctx, e.Name, false)
				if err != nil {
					onErr(rel, err)
					continue
				}
				branch := func() error { return visit(sub, rel) }
				// A full group runs the branch inline rather than blocking on a
				// slot held by an ancestor.
				if !g.TryGo(branch) {
					if err := branch(); err != nil {
						return err
					}
				}
				continue
			}
			if filter != nil && !filter(e.Name) {
				continue
			}
			f, err := dir.File(gctx, e.Name, false)
			if err != nil {
				onErr(rel, err)
				continue
			}
			mu.Lock()
			items = append(items, Item{Path: rel, File: f})
			mu.Unlock()
		}
		return nil
	}

	g.Go(func() error { return visit(root, "") })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
