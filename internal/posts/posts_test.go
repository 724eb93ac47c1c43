package posts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/testutil"
)

func contentFolder(t *testing.T, files map[string]string) (*testutil.FaultFs, fsys.Folder) {
	t.Helper()
	prefixed := map[string]string{}
	for k, v := range files {
		prefixed["content/"+k] = v
	}
	fs, root := testutil.Site(t, prefixed)
	content, err := root.Folder(context.Background(), "content", true)
	require.NoError(t, err)
	return fs, content
}

func TestBuild_DraftNeedsBoolean(t *testing.T) {
	_, content := contentFolder(t, map[string]string{
		"a.md": "---\ndraft: \"true\"\n---\n",
		"b.md": "---\ndraft: yes\n---\n",
		"c.md": "---\ndraft: false\n---\n",
		"d.md": "---\ndraft: true\n---\n",
	})
	ix, err := Build(context.Background(), content)
	require.NoError(t, err)
	drafts := map[string]bool{}
	for _, e := range ix.Entries {
		drafts[e.Path] = e.Draft
	}
	assert.Equal(t, map[string]bool{"a.md": false, "b.md": false, "c.md": false, "d.md": true}, drafts)
}

func TestBuild_DefaultsAndMetadata(t *testing.T) {
	_, content := contentFolder(t, map[string]string{
		"hello-world.md": "no header here\n![a](/images/x.png)",
		"blog/post.md":   "---\ntitle: Real Title\ndate: 2024-05-01\ndraft: true\n---\n![b](/img/sub/y.jpg)\n",
		"notes.txt":      "ignored",
	})
	ix, err := Build(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, ix.Entries, 2)
	assert.Empty(t, ix.Diagnostics)

	dated := ix.Entries[0]
	assert.Equal(t, "blog/post.md", dated.Path)
	assert.Equal(t, "Real Title", dated.Title)
	assert.Equal(t, "2024-05-01", dated.Date)
	assert.True(t, dated.Draft)
	assert.Equal(t, []string{"y.jpg"}, dated.References)
	assert.NotEmpty(t, dated.Checksum)

	plain := ix.Entries[1]
	assert.Equal(t, "hello-world.md", plain.Path)
	assert.Equal(t, "hello-world", plain.Title)
	assert.Empty(t, plain.Date)
	assert.False(t, plain.Draft)
	assert.Zero(t, plain.Metadata.Len())

	assert.Equal(t, []string{"x.png", "y.jpg"}, ix.UsedFilenames().Sorted())
	found, ok := ix.Find("blog/post.md")
	assert.True(t, ok)
	assert.Equal(t, dated.Checksum, found.Checksum)
	_, ok = ix.Find("missing.md")
	assert.False(t, ok)
}

func TestBuild_ReadFailureIsDiagnostic(t *testing.T) {
	fs, content := contentFolder(t, map[string]string{
		"a.md": "a",
		"b.md": "b",
		"c.md": "c",
	})
	fs.Fail("content/b.md")

	ix, err := Build(context.Background(), content)
	require.NoError(t, err)
	assert.Len(t, ix.Entries, 2)
	_, ok := ix.Find("b.md")
	assert.False(t, ok)
	require.Len(t, ix.Diagnostics, 1)
	assert.Equal(t, "b.md", ix.Diagnostics[0].Path)
	assert.ErrorIs(t, ix.Diagnostics[0].Err, testutil.ErrInjected)
}

func TestBuild_FolderFailureIsDiagnostic(t *testing.T) {
	fs, content := contentFolder(t, map[string]string{"a.md": "", "locked/b.md": ""})
	fs.Fail("content/locked")
	ix, err := Build(context.Background(), content)
	require.NoError(t, err)
	assert.Len(t, ix.Entries, 1)
	require.Len(t, ix.Diagnostics, 1)
	assert.Equal(t, "locked", ix.Diagnostics[0].Path)
}

func TestBuild_Cancelled(t *testing.T) {
	_, content := contentFolder(t, map[string]string{"a.md": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, content)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSort(t *testing.T) {
	entries := []Entry{
		{Path: "c.md"},
		{Path: "old.md", Date: "2020-01-01"},
		{Path: "b.md"},
		{Path: "new.md", Date: "2024-03-01T10:00:00Z"},
		{Path: "same-b.md", Date: "2022-06-01"},
		{Path: "same-a.md", Date: "2022-06-01"},
		{Path: "junk.md", Date: "someday"},
	}
	Sort(entries)
	var got []string
	for _, e := range entries {
		got = append(got, e.Path)
	}
	assert.Equal(t, []string{"new.md", "same-a.md", "same-b.md", "old.md", "b.md", "c.md", "junk.md"}, got)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	fs, content := contentFolder(t, nil)
	date := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	e, err := Create(ctx, content, NewPost{Path: "blog/2025/my-first-post", Draft: true, Date: date})
	require.NoError(t, err)
	assert.Equal(t, "blog/2025/my-first-post.md", e.Path)
	assert.Equal(t, "my first post", e.Title)
	assert.True(t, e.Draft)
	assert.Equal(t, "2025-01-02T03:04:05Z", e.Date)
	assert.Equal(t, "", e.Body)
	assert.Equal(t,
		"---\ntitle: my first post\ndraft: true\ndate: \"2025-01-02T03:04:05Z\"\n---\n",
		testutil.ReadFile(t, fs, "content/blog/2025/my-first-post.md"))

	_, err = Create(ctx, content, NewPost{Path: "blog/2025/my-first-post.md"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

// hiddenFs reports one existing path as missing from Stat, as if the file
// appeared right after a lookup.
type hiddenFs struct {
	afero.Fs
	hide string
}

func (h hiddenFs) Stat(name string) (os.FileInfo, error) {
	if name == h.hide {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return h.Fs.Stat(name)
}

func TestCreate_NeverOverwritesFileAppearingMidCreate(t *testing.T) {
	ctx := context.Background()
	fs, _ := testutil.Site(t, map[string]string{"content/taken.md": "keep me\n"})
	root, err := fsys.Open(hiddenFs{Fs: fs, hide: testutil.SiteRoot + "/content/taken.md"}, testutil.SiteRoot)
	require.NoError(t, err)
	content, err := root.Folder(ctx, "content", false)
	require.NoError(t, err)

	_, err = Create(ctx, content, NewPost{Path: "taken"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	assert.Equal(t, "keep me\n", testutil.ReadFile(t, fs, "content/taken.md"))
}

func TestCreate_TitleAndPathValidation(t *testing.T) {
	ctx := context.Background()
	_, content := contentFolder(t, nil)

	e, err := Create(ctx, content, NewPost{Path: "about.MD", Title: "About Us"})
	require.NoError(t, err)
	assert.Equal(t, "about.MD", e.Path)
	assert.Equal(t, "About Us", e.Title)
	assert.Empty(t, e.Date)

	for _, bad := range []string{"", "  /  ", "../escape", "a/../../b"} {
		_, err := Create(ctx, content, NewPost{Path: bad})
		assert.ErrorIs(t, err, apperr.ErrInvalidName, bad)
	}
}
