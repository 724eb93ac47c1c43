package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/assets"
	"github.com/starford/inkwell/internal/notify"
	"github.com/starford/inkwell/internal/sse"
)

// UploadOptions controls where snippets for uploaded images go.
type UploadOptions struct {
	// Insert puts the Markdown snippets into the open session's body at
	// rune offset At; a negative At appends.
	Insert bool
	At     int
}

// Upload stores images in the images folder, creating it when missing.
// Failed files are reported and skipped.
func (w *Workspace) Upload(ctx context.Context, files []assets.Incoming, opts UploadOptions) (assets.UploadResult, error) {
	st, err := w.current()
	if err != nil {
		notify.Send(ctx, w.opts.Sink, notify.Error, "Please select a site folder first")
		return assets.UploadResult{}, err
	}
	images, err := w.images(ctx, st, true)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error uploading image", err)
		return assets.UploadResult{}, fmt.Errorf("workspace: upload: %w", err)
	}
	res, err := w.opts.Uploader.Upload(ctx, images, files)
	if err != nil {
		notify.Failure(ctx, w.opts.Sink, "Error uploading image", err)
		return res, fmt.Errorf("workspace: upload: %w", err)
	}
	for _, f := range res.Failed {
		notify.Failure(ctx, w.opts.Sink, "Error uploading one image", f)
	}
	if len(res.Stored) == 0 {
		return res, nil
	}
	if opts.Insert {
		if s, err := w.Session(); err == nil {
			s.Insert(opts.At, res.Markdown())
		}
	}
	if w.opts.Events != nil {
		for _, s := range res.Stored {
			w.opts.Events.PublishChange(sse.TypeAssetCreated, s.Entry.Path)
		}
	}
	notify.Send(ctx, w.opts.Sink, notify.Success, "Successfully uploaded %d image(s)", len(res.Stored))
	return res, nil
}

// DeleteAsset removes one image by its path relative to the images folder.
func (w *Workspace) DeleteAsset(ctx context.Context, rel string) error {
	st, err := w.current()
	if err != nil {
		return err
	}
	images, err := w.images(ctx, st, false)
	if err == nil {
		err = assets.Delete(ctx, images, rel)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			notify.Send(ctx, w.opts.Sink, notify.Error, "Image not found")
		} else {
			notify.Failure(ctx, w.opts.Sink, "Error deleting image", err)
		}
		return fmt.Errorf("workspace: delete asset: %w", err)
	}
	if w.opts.Events != nil {
		w.opts.Events.PublishChange(sse.TypeAssetDeleted, rel)
	}
	notify.Send(ctx, w.opts.Sink, notify.Success, "Image %q deleted successfully", rel)
	return nil
}

// OpenAsset looks up one image, for serving it over HTTP.
func (w *Workspace) OpenAsset(ctx context.Context, rel string) (assets.Entry, error) {
	st, err := w.current()
	if err != nil {
		return assets.Entry{}, err
	}
	images, err := w.images(ctx, st, false)
	if err != nil {
		return assets.Entry{}, err
	}
	return assets.Lookup(ctx, images, rel)
}
