// Package apperr holds the sentinel errors shared by the workspace, API and MCP layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidName   = errors.New("invalid name")
	ErrTooLarge      = errors.New("too large")
	// ErrUnsupportedMedia rejects uploads that are not one of the accepted
	// image types.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrNoSite is returned by operations that need a selected site root.
	ErrNoSite = errors.New("no site selected")
	// ErrNoContentDir means the selected folder is not a site root.
	ErrNoContentDir = errors.New("folder has no content directory")
	ErrNoSession    = errors.New("no post is open")
	// ErrSaveInProgress rejects a save while another save of the same session runs.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrSuperseded is returned by a scan whose results were discarded
	// because a newer scan or site selection replaced it.
	ErrSuperseded = errors.New("scan superseded")
)
