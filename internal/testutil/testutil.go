// Package testutil provides shared test helpers for building sites and databases.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/index"
)

// SiteRoot is where Site places its tree on the in-memory filesystem.
const SiteRoot = "/site"

// ErrInjected is returned by FaultFs for paths marked to fail.
var ErrInjected = errors.New("testutil: injected I/O failure")

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "inkwell-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Site writes files (slash paths relative to the site root) into a fresh
// in-memory filesystem and returns it with a handle on the root.
func Site(t *testing.T, files map[string]string) (*FaultFs, *fsys.Dir) {
	t.Helper()
	mem := NewFaultFs(afero.NewMemMapFs())
	if err := mem.MkdirAll(SiteRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		WriteFile(t, mem, rel, content)
	}
	root, err := fsys.Open(mem, SiteRoot)
	if err != nil {
		t.Fatal(err)
	}
	return mem, root
}

// WriteFile creates rel below the site root, making parent directories.
func WriteFile(t *testing.T, fs afero.Fs, rel, content string) {
	t.Helper()
	abs := filepath.Join(SiteRoot, filepath.FromSlash(rel))
	if err := fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of rel below the site root.
func ReadFile(t *testing.T, fs afero.Fs, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.Join(SiteRoot, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// FaultFs wraps an afero.Fs and fails opens and renames of marked paths.
// Stat keeps working so handles can still be obtained.
type FaultFs struct {
	afero.Fs

	mu   sync.Mutex
	fail map[string]struct{}
}

func NewFaultFs(base afero.Fs) *FaultFs {
	return &FaultFs{Fs: base, fail: map[string]struct{}{}}
}

// Fail marks rel (relative to the site root) as unreadable and unwritable.
func (f *FaultFs) Fail(rel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[filepath.Join(SiteRoot, filepath.FromSlash(rel))] = struct{}{}
}

// Heal removes every injected failure.
func (f *FaultFs) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.fail)
}

func (f *FaultFs) failing(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fail[filepath.Clean(name)]
	return ok
}

func (f *FaultFs) Open(name string) (afero.File, error) {
	if f.failing(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrInjected}
	}
	return f.Fs.Open(name)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.failing(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrInjected}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *FaultFs) Rename(oldname, newname string) error {
	if f.failing(newname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: ErrInjected}
	}
	return f.Fs.Rename(oldname, newname)
}
