// Package workspace is the explicit session object behind every surface: the
// selected site, its latest post index, the open editing session, and the
// collaborators that persist, mirror and announce changes.
package workspace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/assets"
	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/index"
	"github.com/starford/inkwell/internal/notify"
	"github.com/starford/inkwell/internal/posts"
	"github.com/starford/inkwell/internal/preview"
	"github.com/starford/inkwell/internal/session"
	"github.com/starford/inkwell/internal/sse"
)

// GrantKey is the key under which the selected site root is remembered.
const GrantKey = "site"

// Publisher receives change events for connected clients.
type Publisher interface {
	Publish(event sse.Event)
	PublishChange(typ, path string)
}

// Options configures a Workspace. Zero values fall back to defaults.
type Options struct {
	// Fs is the filesystem site roots live on; the OS filesystem by default.
	Fs         afero.Fs
	ContentDir string // "content"
	StaticDir  string // "static"
	ImagesDir  string // "images", below StaticDir

	Codec    frontmatter.Codec
	Grants   index.GrantStore
	Mirror   index.PostMirror
	Sink     notify.Sink
	Events   Publisher
	Preview  *preview.Renderer
	Uploader assets.Uploader
	Logger   *slog.Logger
}

// Site describes the selected site.
type Site struct {
	Root       string `json:"root"`
	Name       string `json:"name"`
	ContentDir string `json:"content_dir"`
	ImagesDir  string `json:"images_dir"`
	HasImages  bool   `json:"has_images"`
}

type site struct {
	abs     string
	root    *fsys.Dir
	content fsys.Folder
}

// Workspace owns all mutable editor state. It is safe for concurrent use.
type Workspace struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	site    *site
	posts   *posts.Index
	gen     uint64
	cancel  context.CancelFunc
	sess    *session.Session
	changed chan struct{}
}

// New returns an empty workspace; call Select or Restore to load a site.
func New(opts Options) (*Workspace, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	opts.ContentDir = cmp.Or(opts.ContentDir, "content")
	opts.StaticDir = cmp.Or(opts.StaticDir, "static")
	opts.ImagesDir = cmp.Or(opts.ImagesDir, "images")
	if opts.Codec == nil {
		opts.Codec = frontmatter.Default
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard
	}
	if opts.Preview == nil {
		r, err := preview.New(0)
		if err != nil {
			return nil, err
		}
		opts.Preview = r
	}
	logger := cmp.Or(opts.Logger, slog.Default())
	return &Workspace{opts: opts, logger: logger, changed: make(chan struct{})}, nil
}

// Select makes root the current site. root must contain the content
// directory; otherwise apperr.ErrNoContentDir is returned and the previous
// site stays selected. The choice is remembered and a scan runs.
func (w *Workspace) Select(ctx context.Context, root string) (*posts.Index, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: select: %w", err)
	}
	dir, err := fsys.Open(w.opts.Fs, abs)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error selecting folder", err)
		return nil, fmt.Errorf("workspace: select: %w", err)
	}
	content, err := dir.Folder(ctx, w.opts.ContentDir, false)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			notify.Send(ctx, w.opts.Sink, notify.Error,
				"Please select the site root folder (the folder containing the %q directory)", w.opts.ContentDir)
			return nil, fmt.Errorf("workspace: select %s: %w", abs, apperr.ErrNoContentDir)
		}
		notify.Failure(ctx, w.opts.Sink, "Error selecting folder", err)
		return nil, fmt.Errorf("workspace: select: %w", err)
	}

	if w.opts.Grants != nil {
		if err := w.opts.Grants.SaveGrant(GrantKey, abs); err != nil {
			w.logger.Warn("workspace: remember site failed", slog.String("root", abs), slog.String("error", err.Error()))
		}
	}

	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
	w.site = &site{abs: abs, root: dir, content: content}
	w.posts = nil
	w.sess = nil
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("workspace: site selected", slog.String("root", abs))
	notify.Send(ctx, w.opts.Sink, notify.Success, "Folder selected successfully!")
	return w.Rescan(ctx)
}

// Restore selects the remembered site. It returns apperr.ErrNotFound when
// nothing is remembered; a remembered folder that no longer holds the
// content directory is forgotten.
func (w *Workspace) Restore(ctx context.Context) (*posts.Index, error) {
	if w.opts.Grants == nil {
		return nil, fmt.Errorf("workspace: restore: %w", apperr.ErrNotFound)
	}
	g, err := w.opts.Grants.LoadGrant(GrantKey)
	if err != nil {
		return nil, err
	}
	if err := w.Verify(ctx, g.Path); err != nil {
		w.logger.Warn("workspace: remembered site unusable", slog.String("root", g.Path), slog.String("error", err.Error()))
		if rmErr := w.opts.Grants.RemoveGrant(GrantKey); rmErr != nil {
			w.logger.Warn("workspace: forget site failed", slog.String("error", rmErr.Error()))
		}
		return nil, err
	}
	return w.Select(ctx, g.Path)
}

// Verify reports whether root is still a usable site.
func (w *Workspace) Verify(ctx context.Context, root string) error {
	dir, err := fsys.Open(w.opts.Fs, root)
	if err != nil {
		return fmt.Errorf("workspace: verify: %w", err)
	}
	if _, err := dir.Folder(ctx, w.opts.ContentDir, false); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("workspace: verify %s: %w", root, apperr.ErrNoContentDir)
		}
		return fmt.Errorf("workspace: verify: %w", err)
	}
	return nil
}

// Forget clears the remembered site; the current selection is kept.
func (w *Workspace) Forget() error {
	if w.opts.Grants == nil {
		return nil
	}
	return w.opts.Grants.RemoveGrant(GrantKey)
}

// Site describes the current selection.
func (w *Workspace) Site(ctx context.Context) (Site, error) {
	st, err := w.current()
	if err != nil {
		return Site{}, err
	}
	_, imgErr := w.images(ctx, st, false)
	return Site{
		Root:       st.abs,
		Name:       st.root.Name(),
		ContentDir: w.opts.ContentDir,
		ImagesDir:  w.opts.StaticDir + "/" + w.opts.ImagesDir,
		HasImages:  imgErr == nil,
	}, nil
}

// Root is the absolute path of the selected site, or "".
func (w *Workspace) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.site == nil {
		return ""
	}
	return w.site.abs
}

func (w *Workspace) current() (*site, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.site == nil {
		return nil, apperr.ErrNoSite
	}
	return w.site, nil
}

func (w *Workspace) images(ctx context.Context, st *site, create bool) (fsys.Folder, error) {
	return fsys.Resolve(ctx, st.root, w.opts.StaticDir+"/"+w.opts.ImagesDir, create)
}

// Rescan rebuilds the post index. A newer Rescan or Select cancels this one,
// which then returns apperr.ErrSuperseded and leaves the index untouched.
func (w *Workspace) Rescan(ctx context.Context) (*posts.Index, error) {
	w.mu.Lock()
	if w.site == nil {
		w.mu.Unlock()
		return nil, apperr.ErrNoSite
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.gen++
	gen := w.gen
	scanCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	content := w.site.content
	w.mu.Unlock()
	defer cancel()

	builder := posts.Builder{Codec: w.opts.Codec, Logger: w.logger}
	ix, err := builder.Build(scanCtx, content)

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return nil, fmt.Errorf("workspace: rescan: %w", apperr.ErrSuperseded)
	}
	w.cancel = nil
	if err != nil {
		w.mu.Unlock()
		notify.Failure(ctx, w.opts.Sink, "Error loading posts", err)
		return nil, fmt.Errorf("workspace: rescan: %w", err)
	}
	w.posts = ix
	w.mu.Unlock()

	w.mirror(ix)
	if n := len(ix.Diagnostics); n > 0 {
		notify.Send(ctx, w.opts.Sink, notify.Warning, "%d item(s) could not be read and were skipped", n)
	}
	if w.opts.Events != nil {
		w.opts.Events.Publish(sse.Event{Type: sse.TypeScan, Data: map[string]int{
			"posts":       len(ix.Entries),
			"diagnostics": len(ix.Diagnostics),
		}})
	}
	w.logger.Info("workspace: scan complete", slog.Int("posts", len(ix.Entries)), slog.Int("skipped", len(ix.Diagnostics)))
	return ix, nil
}

func (w *Workspace) mirror(ix *posts.Index) {
	if w.opts.Mirror == nil {
		return
	}
	rows := make([]index.PostRow, len(ix.Entries))
	for i, e := range ix.Entries {
		rows[i] = postRow(e)
	}
	st, err := w.opts.Mirror.ReplacePosts(rows)
	if err != nil {
		w.logger.Warn("workspace: mirror failed", slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("workspace: mirrored", slog.Int("upserted", st.Upserted), slog.Int("deleted", st.Deleted))
}

func postRow(e posts.Entry) index.PostRow {
	return index.PostRow{
		Path:     e.Path,
		Title:    e.Title,
		Date:     e.Date,
		Draft:    e.Draft,
		Checksum: e.Checksum,
		Body:     e.Body,
	}
}

// Posts returns the latest post index, scanning when there is none yet.
func (w *Workspace) Posts(ctx context.Context) (*posts.Index, error) {
	w.mu.Lock()
	ix, st := w.posts, w.site
	w.mu.Unlock()
	if st == nil {
		return nil, apperr.ErrNoSite
	}
	if ix != nil {
		return ix, nil
	}
	return w.Rescan(ctx)
}

// Assets builds the asset index against the latest post index. A site
// without an images folder has no assets.
func (w *Workspace) Assets(ctx context.Context) (*assets.Index, error) {
	w.mu.Lock()
	ix, st := w.posts, w.site
	w.mu.Unlock()
	if st == nil {
		return nil, apperr.ErrNoSite
	}
	if ix == nil {
		var err error
		if ix, err = w.Rescan(ctx); err != nil {
			return nil, err
		}
	}
	images, err := w.images(ctx, st, false)
	if errors.Is(err, apperr.ErrNotFound) {
		return &assets.Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace: assets: %w", err)
	}
	aix, err := assets.Builder{Logger: w.logger}.Build(ctx, images, ix.UsedFilenames())
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error loading media", err)
		return nil, fmt.Errorf("workspace: assets: %w", err)
	}
	if !w.isCurrent(st) {
		return nil, fmt.Errorf("workspace: assets: %w", apperr.ErrSuperseded)
	}
	return aix, nil
}

// isCurrent reports whether st is still the selected site.
func (w *Workspace) isCurrent(st *site) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.site == st
}

// replaceEntry swaps one entry into the index of st without rescanning. It
// reports false, changing nothing, when st is no longer the selected site.
func (w *Workspace) replaceEntry(st *site, e posts.Entry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.site != st {
		return false
	}
	if w.posts == nil {
		return true
	}
	next := &posts.Index{Diagnostics: w.posts.Diagnostics}
	next.Entries = make([]posts.Entry, 0, len(w.posts.Entries)+1)
	for _, old := range w.posts.Entries {
		if old.Path != e.Path {
			next.Entries = append(next.Entries, old)
		}
	}
	next.Entries = append(next.Entries, e)
	posts.Sort(next.Entries)
	w.posts = next
	return true
}

// Close cancels an in-flight scan.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
