// Package fsys is the folder and file capability the scanners and the editor
// work against. Handles are cheap values bound to an afero filesystem, so the
// same code runs against the local disk and in-memory trees.
package fsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/starford/inkwell/internal/apperr"
)

// Kind tells files and directories apart in a listing.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Entry is one child of a folder.
type Entry struct {
	Name string
	Kind Kind
}

// Info is the stat data the asset index needs.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Folder is a directory handle.
type Folder interface {
	Name() string
	// Path is the handle's location relative to the root it was opened from,
	// slash separated; "" for the root itself.
	Path() string
	Entries(ctx context.Context) ([]Entry, error)
	Folder(ctx context.Context, name string, create bool) (Folder, error)
	File(ctx context.Context, name string, create bool) (File, error)
	// NewFile creates an empty file and fails with apperr.ErrAlreadyExists
	// when name is already taken.
	NewFile(ctx context.Context, name string) (File, error)
	Remove(ctx context.Context, name string) error
}

// File is a regular-file handle.
type File interface {
	Name() string
	Path() string
	Read(ctx context.Context) ([]byte, error)
	Open(ctx context.Context) (io.ReadCloser, error)
	Stat(ctx context.Context) (Info, error)
	// Create returns a writer whose content replaces the file only when Close
	// succeeds. Abort discards it.
	Create(ctx context.Context) (Writer, error)
}

// Writer is the atomic replacement stream returned by File.Create.
type Writer interface {
	io.WriteCloser
	Abort() error
}

// Dir is a Folder on an afero filesystem.
type Dir struct {
	fs   afero.Fs
	abs  string
	rel  string
	name string
}

// Open returns a handle for the existing directory root on fsys.
func Open(fsys afero.Fs, root string) (*Dir, error) {
	abs := filepath.Clean(root)
	info, err := fsys.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fsys: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fsys: root is not a directory: %s", abs)
	}
	return &Dir{fs: fsys, abs: abs, name: filepath.Base(abs)}, nil
}

func (d *Dir) Name() string { return d.name }
func (d *Dir) Path() string { return d.rel }

// Abs is the directory's location on the underlying filesystem.
func (d *Dir) Abs() string { return d.abs }

func (d *Dir) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(d.fs, d.abs)
	if err != nil {
		return nil, fmt.Errorf("fsys: list %s: %w", d.display(), err)
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		switch {
		case info.IsDir():
			out = append(out, Entry{Name: info.Name(), Kind: KindDir})
		case info.Mode().IsRegular():
			out = append(out, Entry{Name: info.Name(), Kind: KindFile})
		}
	}
	return out, nil
}

func (d *Dir) Folder(ctx context.Context, name string, create bool) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := d.child(name)
	if err != nil {
		return nil, err
	}
	info, err := d.fs.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("fsys: %s is not a directory", d.join(name))
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := d.fs.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("fsys: mkdir %s: %w", d.join(name), err)
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("fsys: folder %s: %w", d.join(name), apperr.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("fsys: stat %s: %w", d.join(name), err)
	}
	return &Dir{fs: d.fs, abs: abs, rel: d.join(name), name: name}, nil
}

func (d *Dir) File(ctx context.Context, name string, create bool) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := d.child(name)
	if err != nil {
		return nil, err
	}
	info, err := d.fs.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("fsys: %s is a directory", d.join(name))
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := afero.WriteFile(d.fs, abs, nil, 0o644); err != nil {
			return nil, fmt.Errorf("fsys: create %s: %w", d.join(name), err)
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("fsys: file %s: %w", d.join(name), apperr.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("fsys: stat %s: %w", d.join(name), err)
	}
	return &FileHandle{fs: d.fs, abs: abs, rel: d.join(name), name: name}, nil
}

func (d *Dir) NewFile(ctx context.Context, name string) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := d.child(name)
	if err != nil {
		return nil, err
	}
	f, err := d.fs.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("fsys: create %s: %w", d.join(name), apperr.ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("fsys: create %s: %w", d.join(name), err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("fsys: create %s: %w", d.join(name), err)
	}
	return &FileHandle{fs: d.fs, abs: abs, rel: d.join(name), name: name}, nil
}

func (d *Dir) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := d.child(name)
	if err != nil {
		return err
	}
	if err := d.fs.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("fsys: remove %s: %w", d.join(name), apperr.ErrNotFound)
		}
		return fmt.Errorf("fsys: remove %s: %w", d.join(name), err)
	}
	return nil
}

// child validates a single path element and returns its absolute path.
func (d *Dir) child(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("fsys: %q: %w", name, apperr.ErrInvalidName)
	}
	return filepath.Join(d.abs, name), nil
}

func (d *Dir) join(name string) string {
	if d.rel == "" {
		return name
	}
	return path.Join(d.rel, name)
}

func (d *Dir) display() string {
	if d.rel == "" {
		return d.name
	}
	return d.rel
}

// FileHandle is a File on an afero filesystem.
type FileHandle struct {
	fs   afero.Fs
	abs  string
	rel  string
	name string
}

func (f *FileHandle) Name() string { return f.name }
func (f *FileHandle) Path() string { return f.rel }

func (f *FileHandle) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, f.abs)
	if err != nil {
		return nil, fmt.Errorf("fsys: read %s: %w", f.rel, err)
	}
	return data, nil
}

func (f *FileHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := f.fs.Open(f.abs)
	if err != nil {
		return nil, fmt.Errorf("fsys: open %s: %w", f.rel, err)
	}
	return r, nil
}

func (f *FileHandle) Stat(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	info, err := f.fs.Stat(f.abs)
	if err != nil {
		return Info{}, fmt.Errorf("fsys: stat %s: %w", f.rel, err)
	}
	return Info{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Create starts an atomic replacement: data goes to a temp file in the same
// directory which is synced and renamed over the target on Close.
func (f *FileHandle) Create(ctx context.Context) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tmp, err := afero.TempFile(f.fs, filepath.Dir(f.abs), ".inkwell-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("fsys: create temp for %s: %w", f.rel, err)
	}
	return &atomicWriter{fs: f.fs, tmp: tmp, target: f.abs, rel: f.rel}, nil
}

type atomicWriter struct {
	fs     afero.Fs
	tmp    afero.File
	target string
	rel    string
	done   bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.tmp.Write(p)
}

func (w *atomicWriter) Close() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	name := w.tmp.Name()
	if err := w.tmp.Sync(); err != nil {
		_ = w.tmp.Close()
		_ = w.fs.Remove(name)
		return fmt.Errorf("fsys: fsync %s: %w", w.rel, err)
	}
	if err := w.tmp.Close(); err != nil {
		_ = w.fs.Remove(name)
		return fmt.Errorf("fsys: close temp for %s: %w", w.rel, err)
	}
	if err := w.fs.Rename(name, w.target); err != nil {
		_ = w.fs.Remove(name)
		return fmt.Errorf("fsys: rename %s: %w", w.rel, err)
	}
	return nil
}

func (w *atomicWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	name := w.tmp.Name()
	_ = w.tmp.Close()
	return w.fs.Remove(name)
}

// WriteFile replaces the content of f atomically.
func WriteFile(ctx context.Context, f File, data []byte) error {
	w, err := f.Create(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return fmt.Errorf("fsys: write %s: %w", f.Path(), err)
	}
	if err := ctx.Err(); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

// Resolve walks a slash-separated relative path below root, optionally
// creating missing folders.
func Resolve(ctx context.Context, root Folder, rel string, create bool) (Folder, error) {
	cur := root
	for _, part := range strings.Split(rel, "/") {
		if part == "" || part == "." {
			continue
		}
		next, err := cur.Folder(ctx, part, create)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// ResolveFile opens the file at a slash-separated path below root.
func ResolveFile(ctx context.Context, root Folder, rel string, create bool) (File, error) {
	dir, name := path.Split(strings.TrimPrefix(path.Clean("/"+rel), "/"))
	parent, err := Resolve(ctx, root, dir, create)
	if err != nil {
		return nil, err
	}
	return parent.File(ctx, name, create)
}

// SortEntries orders a listing by name; used where deterministic output is
// wanted.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
