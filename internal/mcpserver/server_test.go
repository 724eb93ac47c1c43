package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/inkwell/internal/testutil"
	"github.com/starford/inkwell/internal/workspace"
)

func testServer(t *testing.T) (*Server, *testutil.FaultFs) {
	t.Helper()

	fs, _ := testutil.Site(t, map[string]string{
		"content/a.md":        "---\ntitle: Alpha\ndate: 2024-01-02\n---\nfirst post ![x](/images/x.png)\n",
		"content/blog/b.md":   "---\ntitle: Beta\ndraft: true\n---\nsecond post\n",
		"static/images/x.png": "",
	})
	db := testutil.TestDB(t)
	ws, err := workspace.New(workspace.Options{Fs: fs, Grants: db, Mirror: db})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ws.Close)
	if _, err := ws.Select(context.Background(), testutil.SiteRoot); err != nil {
		t.Fatal(err)
	}
	return New(ws), fs
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_posts":
		result, err = srv.listPosts(ctx, req)
	case "read_post":
		result, err = srv.readPost(ctx, req)
	case "search_posts":
		result, err = srv.searchPosts(ctx, req)
	case "create_post":
		result, err = srv.createPost(ctx, req)
	case "update_post":
		result, err = srv.updatePost(ctx, req)
	case "list_assets":
		result, err = srv.listAssets(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	case "get_post_contract":
		result, err = srv.getPostContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListPosts(t *testing.T) {
	srv, _ := testServer(t)

	var all []postSummary
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_posts", map[string]interface{}{}))), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Path != "a.md" || all[0].Title != "Alpha" {
		t.Errorf("list = %+v", all)
	}

	var drafts []postSummary
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_posts", map[string]interface{}{"drafts_only": true}))), &drafts)
	if len(drafts) != 1 || drafts[0].Path != "blog/b.md" {
		t.Errorf("drafts = %+v", drafts)
	}

	var inBlog []postSummary
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_posts", map[string]interface{}{"folder": "blog/"}))), &inBlog)
	if len(inBlog) != 1 {
		t.Errorf("folder listing = %+v", inBlog)
	}
}

func TestCreateAndReadPost(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_post", map[string]interface{}{
		"path":  "notes/hello",
		"title": "Hello",
		"date":  "2025-02-03",
		"body":  "# Hello\nWorld\n",
	})
	if text := resultText(r); text != "created: notes/hello.md" {
		t.Fatalf("create result = %q", text)
	}

	r = callTool(t, srv, "read_post", map[string]interface{}{"path": "notes/hello.md"})
	want := "---\ntitle: Hello\ndraft: false\ndate: \"2025-02-03T00:00:00Z\"\n---\n# Hello\nWorld\n"
	if text := resultText(r); text != want {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "create_post", map[string]interface{}{"path": "notes/hello"})
	if !r.IsError {
		t.Error("expected error for duplicate post")
	}
}

func TestReadPostMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_post", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing post")
	}
}

func TestUpdatePost(t *testing.T) {
	srv, fs := testServer(t)

	r := callTool(t, srv, "update_post", map[string]interface{}{
		"path":     "a.md",
		"body":     "rewritten\n",
		"metadata": map[string]interface{}{"title": "Alpha 2", "draft": true, "date": nil},
	})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	got := testutil.ReadFile(t, fs, "content/a.md")
	if got != "---\ntitle: Alpha 2\ndraft: true\n---\nrewritten\n" {
		t.Errorf("file = %q", got)
	}

	r = callTool(t, srv, "update_post", map[string]interface{}{"path": "a.md", "body": "x", "checksum": "stale"})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("stale checksum result = %q", resultText(r))
	}
	r = callTool(t, srv, "update_post", map[string]interface{}{"path": "a.md"})
	if !r.IsError {
		t.Error("expected error for empty update")
	}
}

func TestSearchPosts(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_posts", map[string]interface{}{"query": "second"})
	if !strings.Contains(resultText(r), "blog/b.md") {
		t.Errorf("search = %s", resultText(r))
	}
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestUploadAssetAndListAssets(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": pngDataURI(t)})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var up uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &up); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(up.SavedPath, ".png") || !strings.HasPrefix(up.MarkdownImage, "![") {
		t.Errorf("upload = %+v", up)
	}

	var dangling []map[string]any
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_assets", map[string]interface{}{"dangling_only": true}))), &dangling)
	if len(dangling) != 1 || dangling[0]["path"] != up.SavedPath {
		t.Errorf("dangling = %v", dangling)
	}
}

func TestUploadAssetRejects(t *testing.T) {
	srv, _ := testServer(t)
	for _, u := range []string{
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,raw",
		"ftp://example.com/x.png",
		"http://127.0.0.1/x.png",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png")),
	} {
		if r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": u}); !r.IsError {
			t.Errorf("upload %q should fail", u)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://example.com/img/cat.JPG?x=1", ".jpg"); got != "cat.JPG" {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("https://example.com/render", ".png"); !strings.HasSuffix(got, ".png") || len(got) != 36+4 {
		t.Errorf("fallback = %q", got)
	}
}

func TestGetPostContract(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "get_post_contract", nil)); text != PostFormatContract {
		t.Error("contract mismatch")
	}
}
