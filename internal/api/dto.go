package api

import (
	"github.com/starford/inkwell/internal/assets"
	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/index"
	"github.com/starford/inkwell/internal/posts"
	"github.com/starford/inkwell/internal/session"
	"github.com/starford/inkwell/internal/workspace"
)

// SelectSiteRequest is the request body for selecting a site root.
type SelectSiteRequest struct {
	Root string `json:"root" example:"/home/me/blog" validate:"required"`
}

// SiteResponse describes the selected site and its latest scan.
type SiteResponse struct {
	Site        workspace.Site `json:"site" validate:"required"`
	Posts       int            `json:"posts" example:"12"`
	Diagnostics []string       `json:"diagnostics"`
}

// PostEntry is one post in a listing (aliased from the domain layer).
type PostEntry = posts.Entry

// PostListResponse wraps paginated post listings.
type PostListResponse struct {
	Posts       []PostEntry `json:"posts" validate:"required"`
	Total       int         `json:"total" example:"42" validate:"required"`
	Diagnostics []string    `json:"diagnostics"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Path  string `json:"path" example:"blog/hello-world" validate:"required"`
	Title string `json:"title,omitempty" example:"Hello world"`
	Draft *bool  `json:"draft,omitempty"`
	// Date is RFC 3339 or YYYY-MM-DD; the current time when empty.
	Date string `json:"date,omitempty" example:"2025-01-02T03:04:05Z"`
}

// OpenSessionRequest names the post to edit.
type OpenSessionRequest struct {
	Path string `json:"path" example:"blog/hello-world.md" validate:"required"`
}

// SessionResponse is the open session state (aliased from the domain layer).
type SessionResponse = session.Snapshot

// UpdateBodyRequest replaces the body of the open post.
type UpdateBodyRequest struct {
	Body string `json:"body" example:"# Hello\nWorld"`
}

// UpdateMetadataRequest replaces the whole metadata mapping, keeping key order.
type UpdateMetadataRequest struct {
	Metadata frontmatter.Metadata `json:"metadata"`
}

// UpdateFieldRequest sets one field from editor text: a JSON array or object
// literal, one list item per line, or a plain string.
type UpdateFieldRequest struct {
	Input string `json:"input" example:"go\nhugo"`
}

// AssetEntry is one image in a listing (aliased from the domain layer).
type AssetEntry = assets.Entry

// AssetListResponse wraps the asset listing.
type AssetListResponse struct {
	Assets   []AssetEntry `json:"assets" validate:"required"`
	Dangling int          `json:"dangling" example:"3"`
}

// UploadFailure reports one rejected file.
type UploadFailure struct {
	Name  string `json:"name" example:"notes.txt"`
	Error string `json:"error"`
}

// UploadResponse is returned after an upload batch.
type UploadResponse struct {
	Stored   []assets.Stored `json:"stored" validate:"required"`
	Failed   []UploadFailure `json:"failed"`
	Markdown string          `json:"markdown" example:"![photo](/images/1700000000000-photo.png)\n"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

func diagnostics[E error](ds []E) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Error()
	}
	return out
}
