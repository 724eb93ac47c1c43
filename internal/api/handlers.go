package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/posts"
	"github.com/starford/inkwell/internal/workspace"
)

const maxJSONBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	ws *workspace.Workspace
}

// NewHandler creates a new Handler.
func NewHandler(ws *workspace.Workspace) *Handler {
	return &Handler{ws: ws}
}

// wildcardPath extracts the path after a route's trailing /*.
// Supports encoded slashes from OpenAPI clients (e.g. blog%2Fpost.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// GetSite handles GET /api/site.
//
//	@Summary		Describe the selected site
//	@Tags			site
//	@Produce		json
//	@Success		200		{object}	SiteResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/site [get]
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	h.writeSite(w, r, http.StatusOK)
}

// SelectSite handles PUT /api/site.
//
//	@Summary		Select a site root and scan it
//	@Tags			site
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectSiteRequest	true	"Site root"
//	@Success		200		{object}	SiteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/site [put]
func (h *Handler) SelectSite(w http.ResponseWriter, r *http.Request) {
	var req SelectSiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Root == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("root is required"))
		return
	}
	if _, err := h.ws.Select(r.Context(), req.Root); err != nil {
		writeError(w, "select site", err)
		return
	}
	h.writeSite(w, r, http.StatusOK)
}

// Rescan handles POST /api/site/rescan.
//
//	@Summary		Rebuild the post index
//	@Tags			site
//	@Produce		json
//	@Success		200		{object}	SiteResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/site/rescan [post]
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ws.Rescan(r.Context()); err != nil {
		writeError(w, "rescan", err)
		return
	}
	h.writeSite(w, r, http.StatusOK)
}

// ForgetSite handles DELETE /api/site/grant. The current selection stays
// open; only the remembered root is cleared.
//
//	@Summary		Forget the remembered site
//	@Tags			site
//	@Success		204
//	@Security		BearerAuth
//	@Router			/site/grant [delete]
func (h *Handler) ForgetSite(w http.ResponseWriter, _ *http.Request) {
	if err := h.ws.Forget(); err != nil {
		writeError(w, "forget site", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeSite(w http.ResponseWriter, r *http.Request, status int) {
	site, err := h.ws.Site(r.Context())
	if err != nil {
		writeError(w, "get site", err)
		return
	}
	ix, err := h.ws.Posts(r.Context())
	if err != nil {
		writeError(w, "get site", err)
		return
	}
	writeJSON(w, status, SiteResponse{
		Site:        site,
		Posts:       len(ix.Entries),
		Diagnostics: diagnostics(ix.Diagnostics),
	})
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List posts, newest first, with optional pagination and filtering
//	@Tags			posts
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			draft	query		bool	false	"Only drafts (true) or only published (false)"
//	@Success		200		{object}	PostListResponse
//	@Security		BearerAuth
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	ix, err := h.ws.Posts(r.Context())
	if err != nil {
		writeError(w, "list posts", err)
		return
	}
	items := ix.Entries
	if d, err := strconv.ParseBool(q.Get("draft")); err == nil {
		items = make([]posts.Entry, 0, len(ix.Entries))
		for _, e := range ix.Entries {
			if e.Draft == d {
				items = append(items, e)
			}
		}
	}
	total := len(items)
	offset = min(max(offset, 0), total)
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, PostListResponse{
		Posts:       items,
		Total:       total,
		Diagnostics: diagnostics(ix.Diagnostics),
	})
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Create a new post and open it for editing
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePostRequest	true	"Post to create"
//	@Success		201		{object}	PostEntry
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	date := time.Now().UTC().Truncate(time.Second)
	if req.Date != "" {
		t, ok := posts.ParseDate(req.Date)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("date must be RFC 3339 or YYYY-MM-DD"))
			return
		}
		date = t
	}
	p := posts.NewPost{Path: req.Path, Title: req.Title, Date: date}
	if req.Draft != nil {
		p.Draft = *req.Draft
	}
	e, err := h.ws.CreatePost(r.Context(), p)
	if err != nil {
		writeError(w, "create post", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// OpenSession handles POST /api/session/open.
//
//	@Summary		Open a post for editing, discarding the previous session
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Post path"
//	@Success		200		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/open [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	s, err := h.ws.Open(r.Context(), req.Path)
	if err != nil {
		writeError(w, "open post", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	s, err := h.ws.Session()
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateBody handles PUT /api/session/body.
func (h *Handler) UpdateBody(w http.ResponseWriter, r *http.Request) {
	var req UpdateBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.ws.Session()
	if err != nil {
		writeError(w, "update body", err)
		return
	}
	s.SetBody(req.Body)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateMetadata handles PUT /api/session/metadata.
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req UpdateMetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.ws.Session()
	if err != nil {
		writeError(w, "update metadata", err)
		return
	}
	s.ReplaceMetadata(req.Metadata)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateField handles PUT /api/session/metadata/{key}.
func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	var req UpdateFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	s, err := h.ws.Session()
	if err != nil {
		writeError(w, "update field", err)
		return
	}
	s.SetField(key, frontmatter.FromInput(req.Input))
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteField handles DELETE /api/session/metadata/{key}.
func (h *Handler) DeleteField(w http.ResponseWriter, r *http.Request) {
	s, err := h.ws.Session()
	if err != nil {
		writeError(w, "delete field", err)
		return
	}
	s.DeleteField(chi.URLParam(r, "key"))
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Save handles POST /api/session/save.
//
//	@Summary		Write the open post to disk
//	@Tags			session
//	@Produce		json
//	@Param			force	query		bool	false	"Overwrite changes made on disk since the post was opened"
//	@Success		200		{object}	SessionResponse
//	@Failure		409		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	snap, err := h.ws.Save(r.Context(), force)
	if err != nil {
		writeError(w, "save post", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Preview handles GET /api/session/preview and answers with an HTML fragment.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	out, err := h.ws.Preview(r.Context())
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across posts
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.ws.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
