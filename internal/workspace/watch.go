package workspace

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/watch"
)

// Watch follows the selected site on disk until ctx is done, restarting the
// watcher whenever another site is selected. Changes below the content
// folder trigger a rescan; changes below the images folder tell clients the
// asset list is stale.
func (w *Workspace) Watch(ctx context.Context, opts watch.Options) error {
	imagesDir := w.opts.StaticDir + "/" + w.opts.ImagesDir
	opts.Relevant = watch.Under(w.opts.ContentDir, imagesDir)
	if opts.Logger == nil {
		opts.Logger = w.logger
	}
	for {
		w.mu.Lock()
		changed := w.changed
		var root string
		if w.site != nil {
			root = w.site.abs
		}
		w.mu.Unlock()

		stop := func() {}
		if root != "" {
			wctx, cancel := context.WithCancel(ctx)
			stop = cancel
			go func() {
				if err := watch.Watch(wctx, root, opts, func(paths []string) { w.onDiskChange(ctx, paths, imagesDir) }); err != nil {
					w.logger.Warn("workspace: watcher failed", slog.String("root", root), slog.String("error", err.Error()))
				}
			}()
		}

		select {
		case <-ctx.Done():
			stop()
			return nil
		case <-changed:
			stop()
		}
	}
}

func (w *Workspace) onDiskChange(ctx context.Context, paths []string, imagesDir string) {
	var content, images bool
	for _, p := range paths {
		if strings.HasPrefix(p, imagesDir) {
			images = true
		} else {
			content = true
		}
	}
	if images && w.opts.Events != nil {
		w.opts.Events.Publish(sse.Event{Type: sse.TypeAssetsStale, Data: map[string]int{"changed": len(paths)}})
	}
	if !content {
		return
	}
	go func() {
		if _, err := w.Rescan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Debug("workspace: rescan after change", slog.String("error", err.Error()))
		}
	}()
}
