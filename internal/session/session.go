// Package session holds the state of the one post open for editing.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/fsys"
)

// Session tracks one open post: the text last read from or written to disk,
// and the edits made since. It is safe for concurrent use; at most one Save
// runs at a time.
type Session struct {
	path  string
	file  fsys.File
	codec frontmatter.Codec

	mu     sync.Mutex
	raw    string
	sum    string
	base   frontmatter.Document
	doc    frontmatter.Document
	saving bool
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Path     string               `json:"path"`
	Metadata frontmatter.Metadata `json:"metadata"`
	Body     string               `json:"body"`
	Checksum string               `json:"checksum"`
	Dirty    bool                 `json:"dirty"`
	Saving   bool                 `json:"saving"`
}

// Open reads f and parses it with codec (frontmatter.Default when nil).
func Open(ctx context.Context, rel string, f fsys.File, codec frontmatter.Codec) (*Session, error) {
	if codec == nil {
		codec = frontmatter.Default
	}
	s := &Session{path: rel, file: f, codec: codec}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file and discards unsaved edits.
func (s *Session) Reload(ctx context.Context) error {
	data, err := s.file.Read(ctx)
	if err != nil {
		return fmt.Errorf("session: open %s: %w", s.path, err)
	}
	doc := frontmatter.ParseWith(s.codec, string(data))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = string(data)
	s.sum = checksum.Sum(data)
	s.base = doc
	s.doc = frontmatter.Document{Metadata: doc.Metadata.Clone(), Body: doc.Body}
	return nil
}

func (s *Session) Path() string { return s.path }

// Raw is the text as last loaded or saved.
func (s *Session) Raw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Checksum digests Raw.
func (s *Session) Checksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sum
}

// Document returns a copy of the edited document.
func (s *Session) Document() frontmatter.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return frontmatter.Document{Metadata: s.doc.Metadata.Clone(), Body: s.doc.Body}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Path:     s.path,
		Metadata: s.doc.Metadata.Clone(),
		Body:     s.doc.Body,
		Checksum: s.sum,
		Dirty:    s.dirty(),
		Saving:   s.saving,
	}
}

func (s *Session) SetBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Body = body
}

// Insert puts text at rune offset pos of the body. A negative or too large
// pos appends.
func (s *Session) Insert(pos int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := []rune(s.doc.Body)
	if pos < 0 || pos > len(body) {
		pos = len(body)
	}
	s.doc.Body = string(body[:pos]) + text + string(body[pos:])
}

func (s *Session) SetField(key string, v frontmatter.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Metadata.Set(key, v)
}

func (s *Session) DeleteField(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Metadata.Delete(key)
}

func (s *Session) ReplaceMetadata(md frontmatter.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Metadata = md.Clone()
}

// Dirty reports unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty()
}

func (s *Session) dirty() bool {
	return s.doc.Body != s.base.Body || !s.doc.Metadata.Equal(s.base.Metadata)
}

// Save serializes the edited document and atomically replaces the file.
// It fails with apperr.ErrSaveInProgress while another save runs, and with
// apperr.ErrConflict when the file changed on disk since it was loaded,
// unless force is set. Edits are kept on failure.
func (s *Session) Save(ctx context.Context, force bool) (Snapshot, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("session: save %s: %w", s.path, apperr.ErrSaveInProgress)
	}
	s.saving = true
	doc := frontmatter.Document{Metadata: s.doc.Metadata.Clone(), Body: s.doc.Body}
	loaded := s.sum
	s.mu.Unlock()

	raw, err := s.write(ctx, doc, loaded, force)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		return Snapshot{}, err
	}
	s.raw = raw
	s.sum = checksum.Sum([]byte(raw))
	s.base = doc
	return Snapshot{
		Path:     s.path,
		Metadata: s.doc.Metadata.Clone(),
		Body:     s.doc.Body,
		Checksum: s.sum,
		Dirty:    s.dirty(),
	}, nil
}

func (s *Session) write(ctx context.Context, doc frontmatter.Document, loaded string, force bool) (string, error) {
	if !force {
		current, err := s.file.Read(ctx)
		switch {
		case err == nil && checksum.Sum(current) != loaded:
			return "", fmt.Errorf("session: save %s: changed on disk: %w", s.path, apperr.ErrConflict)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("session: save %s: %w", s.path, err)
		}
	}
	raw := doc.Render()
	if err := fsys.WriteFile(ctx, s.file, []byte(raw)); err != nil {
		return "", fmt.Errorf("session: save %s: %w", s.path, err)
	}
	return raw, nil
}
