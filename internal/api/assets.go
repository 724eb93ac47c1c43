package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/inkwell/internal/assets"
	"github.com/starford/inkwell/internal/workspace"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ListAssets handles GET /api/assets.
//
//	@Summary		List images, newest first, with their referenced flag
//	@Tags			assets
//	@Produce		json
//	@Param			dangling	query		bool	false	"Only images no post references"
//	@Success		200			{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	ix, err := h.ws.Assets(r.Context())
	if err != nil {
		writeError(w, "list assets", err)
		return
	}
	dangling := ix.Dangling()
	items := ix.Entries
	if only, _ := strconv.ParseBool(r.URL.Query().Get("dangling")); only {
		items = dangling
	}
	if items == nil {
		items = []assets.Entry{}
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Assets: items, Dangling: len(dangling)})
}

// UploadAssets handles POST /api/assets (multipart/form-data, one or more
// "file" fields). With insert=true the snippets go into the open post at rune
// offset "at" (appended when missing or negative).
//
//	@Summary		Upload images
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *Handler) UploadAssets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}

	files := make([]assets.Incoming, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
			return
		}
		files = append(files, assets.Incoming{Name: fh.Filename, Data: data})
	}

	opts := workspace.UploadOptions{At: -1}
	opts.Insert, _ = strconv.ParseBool(r.FormValue("insert"))
	if at, err := strconv.Atoi(r.FormValue("at")); err == nil {
		opts.At = at
	}

	res, err := h.ws.Upload(r.Context(), files, opts)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	resp := UploadResponse{Stored: res.Stored, Markdown: res.Markdown()}
	if resp.Stored == nil {
		resp.Stored = []assets.Stored{}
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, UploadFailure{Name: f.Path, Error: f.Err.Error()})
	}
	if len(res.Stored) == 0 {
		writeJSON(w, statusFor(res.Failed[0].Err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// DeleteAsset handles DELETE /api/assets/*.
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	rel := wildcardPath(r)
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.ws.DeleteAsset(r.Context(), rel); err != nil {
		writeError(w, "delete asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeMedia handles GET /api/media/*: the raw bytes of one image.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	rel := wildcardPath(r)
	e, err := h.ws.OpenAsset(r.Context(), rel)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			writeError(w, "serve media", err)
			return
		}
		http.NotFound(w, r)
		return
	}
	rc, err := e.File.Open(r.Context())
	if err != nil {
		writeError(w, "serve media", err)
		return
	}
	defer rc.Close()
	if e.Type != "" {
		w.Header().Set("Content-Type", e.Type)
	}
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, e.Name, e.Modified, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(e.Size, 10))
	_, _ = io.Copy(w, rc)
}
