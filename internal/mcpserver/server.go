// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Inkwell tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inkwell/internal/frontmatter"
	"github.com/starford/inkwell/internal/posts"
	"github.com/starford/inkwell/internal/workspace"
)

const contractURI = "inkwell://post-format"

// Server wraps the MCP server with Inkwell tools.
type Server struct {
	mcp *server.MCPServer
	ws  *workspace.Workspace
}

// New creates a new MCP server with all Inkwell tools registered. The
// workspace must already have a site selected for most tools to succeed.
func New(ws *workspace.Workspace) *Server {
	s := &Server{ws: ws}

	s.mcp = server.NewMCPServer(
		"Inkwell",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List posts, newest first, with title, date and draft flag."),
		mcp.WithString("folder", mcp.Description("Optional folder below content/ to list (empty for all)")),
		mcp.WithBoolean("drafts_only", mcp.Description("Only list drafts")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read the full text of a post, header included."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path below content/ (e.g. blog/post.md)")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Full-text search through post titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Create a new post. Content MUST follow the post format contract; "+
			"read it first via the get_post_contract tool or the "+contractURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path below content/; .md is appended when missing")),
		mcp.WithString("title", mcp.Description("Post title (defaults to the file name)")),
		mcp.WithBoolean("draft", mcp.Description("Mark the post as a draft")),
		mcp.WithString("date", mcp.Description("RFC 3339 or YYYY-MM-DD date (defaults to now)")),
		mcp.WithString("body", mcp.Description("Markdown body")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("update_post",
		mcp.WithDescription("Update the body and/or header fields of a post and save it. "+
			"Fields not mentioned keep their value; a field set to null is removed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path below content/")),
		mcp.WithString("body", mcp.Description("New Markdown body (omit to keep)")),
		mcp.WithObject("metadata", mcp.Description("Header fields to set, e.g. {\"title\": \"New\", \"draft\": false}")),
		mcp.WithString("checksum", mcp.Description("Checksum from read_post/list_posts; the update fails if the file changed since")),
	), s.updatePost)

	s.mcp.AddTool(mcp.NewTool("list_assets",
		mcp.WithDescription("List images in static/images with their size, type and whether any post references them."),
		mcp.WithBoolean("dangling_only", mcp.Description("Only list images no post references")),
	), s.listAssets)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image from an http(s) URL or a base64 data: URI in static/images. "+
			"Returns the Markdown snippet to paste into a post."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the post format contract. "+
			"Call this before creating or updating posts to ensure correct structure."),
	), s.getPostContract)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Post Format Contract",
			mcp.WithResourceDescription("Markdown post format that all posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

type postSummary struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Date     string `json:"date,omitempty"`
	Draft    bool   `json:"draft"`
	Checksum string `json:"checksum"`
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")
	draftsOnly := req.GetBool("drafts_only", false)

	ix, err := s.ws.Posts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := []postSummary{}
	for _, e := range ix.Entries {
		if folder != "" && !strings.HasPrefix(e.Path, folder+"/") {
			continue
		}
		if draftsOnly && !e.Draft {
			continue
		}
		out = append(out, postSummary{Path: e.Path, Title: e.Title, Date: e.Date, Draft: e.Draft, Checksum: e.Checksum})
	}
	return jsonResult(out), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ix, err := s.ws.Posts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, ok := ix.Find(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	data, err := e.File.Read(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.ws.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := time.Now().UTC().Truncate(time.Second)
	if raw := req.GetString("date", ""); raw != "" {
		t, ok := posts.ParseDate(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date: %s", raw)), nil
		}
		date = t
	}
	e, err := s.ws.CreatePost(ctx, posts.NewPost{
		Path:  path,
		Title: req.GetString("title", ""),
		Draft: req.GetBool("draft", false),
		Date:  date,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if body := req.GetString("body", ""); body != "" {
		sess, err := s.ws.Session()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sess.SetBody(body)
		if _, err := s.ws.Save(ctx, false); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", e.Path)), nil
}

func (s *Server) updatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()

	var fields frontmatter.Metadata
	if raw, ok := args["metadata"]; ok && raw != nil {
		data, err := json.Marshal(raw)
		if err == nil {
			err = json.Unmarshal(data, &fields)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid metadata: %v", err)), nil
		}
	}
	body, hasBody := args["body"].(string)
	if !hasBody && fields.Len() == 0 {
		return mcp.NewToolResultError("nothing to update: pass body and/or metadata"), nil
	}

	sess, err := s.ws.Open(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if want := req.GetString("checksum", ""); want != "" && want != sess.Checksum() {
		return mcp.NewToolResultError(fmt.Sprintf("checksum mismatch: %s changed since it was read", path)), nil
	}
	if hasBody {
		sess.SetBody(body)
	}
	for key, v := range fields.All() {
		if v.IsNull() {
			sess.DeleteField(key)
			continue
		}
		sess.SetField(key, v)
	}
	snap, err := s.ws.Save(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"path": snap.Path, "checksum": snap.Checksum}), nil
}

func (s *Server) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ix, err := s.ws.Assets(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := ix.Entries
	if req.GetBool("dangling_only", false) {
		items = ix.Dangling()
	}
	if items == nil {
		return mcp.NewToolResultText("[]"), nil
	}
	return jsonResult(items), nil
}

func (s *Server) getPostContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
