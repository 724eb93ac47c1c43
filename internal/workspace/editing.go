package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/index"
	"github.com/starford/inkwell/internal/notify"
	"github.com/starford/inkwell/internal/posts"
	"github.com/starford/inkwell/internal/session"
	"github.com/starford/inkwell/internal/sse"
)

// Open starts an editing session on the post at rel, discarding the
// previous session and its unsaved edits.
func (w *Workspace) Open(ctx context.Context, rel string) (*session.Session, error) {
	st, err := w.current()
	if err != nil {
		return nil, err
	}
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if !strings.EqualFold(path.Ext(clean), posts.Ext) {
		return nil, fmt.Errorf("workspace: open %q: %w", rel, apperr.ErrInvalidName)
	}
	f, err := fsys.ResolveFile(ctx, st.content, clean, false)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error loading post", err)
		return nil, fmt.Errorf("workspace: open: %w", err)
	}
	s, err := session.Open(ctx, clean, f, w.opts.Codec)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error loading post", err)
		return nil, fmt.Errorf("workspace: open: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.site != st {
		return nil, fmt.Errorf("workspace: open: %w", apperr.ErrSuperseded)
	}
	w.sess = s
	return s, nil
}

// Session returns the open session.
func (w *Workspace) Session() (*session.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.site == nil {
		return nil, apperr.ErrNoSite
	}
	if w.sess == nil {
		return nil, apperr.ErrNoSession
	}
	return w.sess, nil
}

// Save writes the open session back to disk and refreshes its index entry.
func (w *Workspace) Save(ctx context.Context, force bool) (session.Snapshot, error) {
	s, err := w.Session()
	if err != nil {
		return session.Snapshot{}, err
	}
	snap, err := s.Save(ctx, force)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error saving post", err)
		return session.Snapshot{}, err
	}
	w.refresh(ctx, s.Path(), sse.TypePostSaved)
	notify.Send(ctx, w.opts.Sink, notify.Success, "Post saved successfully!")
	return snap, nil
}

// CreatePost writes a new post and opens it.
func (w *Workspace) CreatePost(ctx context.Context, p posts.NewPost) (posts.Entry, error) {
	st, err := w.current()
	if err != nil {
		notify.Send(ctx, w.opts.Sink, notify.Error, "Please select a site folder first")
		return posts.Entry{}, err
	}
	e, err := posts.Create(ctx, st.content, p)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error creating post", err)
		return posts.Entry{}, err
	}
	if !w.replaceEntry(st, e) {
		return posts.Entry{}, fmt.Errorf("workspace: create post: %w", apperr.ErrSuperseded)
	}
	w.upsertMirror(e)
	if w.opts.Events != nil {
		w.opts.Events.PublishChange(sse.TypePostCreated, e.Path)
	}
	notify.Send(ctx, w.opts.Sink, notify.Success, "Post created successfully!")
	if _, err := w.Open(ctx, e.Path); err != nil {
		return e, err
	}
	return e, nil
}

// refresh re-reads one post into the index and the search mirror.
func (w *Workspace) refresh(ctx context.Context, rel, event string) {
	st, err := w.current()
	if err != nil {
		return
	}
	f, err := fsys.ResolveFile(ctx, st.content, rel, false)
	if err != nil {
		return
	}
	e, err := posts.Load(ctx, rel, f, w.opts.Codec)
	if err != nil {
		w.logger.Warn("workspace: refresh failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if !w.replaceEntry(st, e) {
		return
	}
	w.upsertMirror(e)
	if w.opts.Events != nil {
		w.opts.Events.PublishChange(event, rel)
	}
}

func (w *Workspace) upsertMirror(e posts.Entry) {
	if w.opts.Mirror == nil {
		return
	}
	if err := w.opts.Mirror.UpsertPost(postRow(e)); err != nil {
		w.logger.Warn("workspace: mirror upsert failed", slog.String("path", e.Path), slog.String("error", err.Error()))
	}
}

// Preview renders the open session, including unsaved edits.
func (w *Workspace) Preview(_ context.Context) (string, error) {
	s, err := w.Session()
	if err != nil {
		return "", err
	}
	doc := s.Document()
	var date string
	if v, ok := doc.Metadata.Get("date"); ok && !v.IsNull() {
		date = v.Text()
	}
	var title string
	if v, ok := doc.Metadata.Get("title"); ok && !v.IsNull() {
		title = v.Text()
	}
	return w.opts.Preview.Render(title, date, doc.Body)
}

// Search finds posts by title or body text. Without a search mirror the
// in-memory index is scanned.
func (w *Workspace) Search(ctx context.Context, q string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if w.opts.Mirror != nil {
		if _, err := w.current(); err != nil {
			return nil, err
		}
		return w.opts.Mirror.Search(q, limit)
	}
	ix, err := w.Posts(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q)
	var out []index.SearchResult
	for _, e := range ix.Entries {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(e.Title), needle) || strings.Contains(strings.ToLower(e.Body), needle) {
			out = append(out, index.SearchResult{Path: e.Path, Title: e.Title, Snippet: snippet(e.Body, 200)})
		}
	}
	return out, nil
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
