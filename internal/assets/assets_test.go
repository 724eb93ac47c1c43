package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/assetref"
	"github.com/starford/inkwell/internal/fsys"
	"github.com/starford/inkwell/internal/testutil"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imagesFolder(t *testing.T, files map[string]string) (*testutil.FaultFs, fsys.Folder) {
	t.Helper()
	prefixed := map[string]string{}
	for k, v := range files {
		prefixed["static/images/"+k] = v
	}
	fs, root := testutil.Site(t, prefixed)
	images, err := fsys.Resolve(context.Background(), root, "static/images", true)
	require.NoError(t, err)
	return fs, images
}

func TestBuild_ReferencedByBaseName(t *testing.T) {
	_, images := imagesFolder(t, map[string]string{
		"x.png":     string(pngBytes(t, 4, 3)),
		"y.png":     string(pngBytes(t, 1, 1)),
		"notes.txt": "not an image",
	})
	ix, err := Build(context.Background(), images, assetref.Set{"x.png": {}})
	require.NoError(t, err)
	require.Len(t, ix.Entries, 2)

	byName := map[string]Entry{}
	for _, e := range ix.Entries {
		byName[e.Name] = e
	}
	assert.True(t, byName["x.png"].Referenced)
	assert.False(t, byName["y.png"].Referenced)
	assert.Equal(t, 4, byName["x.png"].Width)
	assert.Equal(t, 3, byName["x.png"].Height)
	assert.Equal(t, "image/png", byName["x.png"].Type)
	assert.Positive(t, byName["x.png"].Size)

	dangling := ix.Dangling()
	require.Len(t, dangling, 1)
	assert.Equal(t, "y.png", dangling[0].Name)
}

func TestBuild_NestedAndCaseInsensitive(t *testing.T) {
	_, images := imagesFolder(t, map[string]string{
		"2024/Photo.JPG": "not really a jpeg",
		"icons/logo.svg": `<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`,
	})
	ix, err := Build(context.Background(), images, assetref.Set{"Photo.JPG": {}})
	require.NoError(t, err)
	require.Len(t, ix.Entries, 2)
	for _, e := range ix.Entries {
		switch e.Path {
		case "2024/Photo.JPG":
			assert.True(t, e.Referenced)
			assert.Equal(t, "image/jpeg", e.Type)
			assert.Zero(t, e.Width)
		case "icons/logo.svg":
			assert.False(t, e.Referenced)
			assert.Equal(t, "image/svg+xml", e.Type)
		default:
			t.Errorf("unexpected entry %s", e.Path)
		}
	}
}

func TestBuild_PerFileFailureSkipped(t *testing.T) {
	fs, images := imagesFolder(t, map[string]string{"a.png": "", "b.png": ""})
	fs.Fail("static/images/a.png")
	ix, err := Build(context.Background(), images, nil)
	require.NoError(t, err)
	require.Len(t, ix.Entries, 1)
	assert.Equal(t, "b.png", ix.Entries[0].Name)
	require.Len(t, ix.Diagnostics, 1)
	assert.Equal(t, "a.png", ix.Diagnostics[0].Path)
}

func TestSort_NewestFirst(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Path: "old.png", Modified: t0},
		{Path: "b.png", Modified: t0.Add(time.Hour)},
		{Path: "a.png", Modified: t0.Add(time.Hour)},
	}
	Sort(entries)
	assert.Equal(t, "a.png", entries[0].Path)
	assert.Equal(t, "b.png", entries[1].Path)
	assert.Equal(t, "old.png", entries[2].Path)
}

func TestUpload_NamesAndMarkdown(t *testing.T) {
	fs, images := imagesFolder(t, nil)
	u := Uploader{Now: func() time.Time { return time.UnixMilli(1700000000000) }}
	data := pngBytes(t, 2, 2)

	res, err := u.Upload(context.Background(), images, []Incoming{
		{Name: "My Photo!.PNG", Data: data},
		{Name: "second.png", Data: data},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	require.Len(t, res.Stored, 2)
	assert.Equal(t, "1700000000000-my-photo-.png", res.Stored[0].Entry.Name)
	assert.Equal(t, "1700000000001-second.png", res.Stored[1].Entry.Name)
	assert.Equal(t,
		"![My Photo!](/images/1700000000000-my-photo-.png)\n![second](/images/1700000000001-second.png)\n",
		res.Markdown())

	ok, err := afero.Exists(fs, testutil.SiteRoot+"/static/images/1700000000001-second.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpload_CollisionBumpsTimestamp(t *testing.T) {
	_, images := imagesFolder(t, map[string]string{"5-a.png": "taken"})
	u := Uploader{Now: func() time.Time { return time.UnixMilli(5) }, URLPrefix: "/media/"}
	res, err := u.Upload(context.Background(), images, []Incoming{{Name: "a.png", Data: pngBytes(t, 1, 1)}})
	require.NoError(t, err)
	require.Len(t, res.Stored, 1)
	assert.Equal(t, "6-a.png", res.Stored[0].Entry.Name)
	assert.Equal(t, "![a](/media/6-a.png)\n", res.Stored[0].Markdown)
}

func TestUpload_Rejections(t *testing.T) {
	_, images := imagesFolder(t, nil)
	u := Uploader{MaxBytes: 64}
	res, err := u.Upload(context.Background(), images, []Incoming{
		{Name: "doc.pdf", Data: []byte("%PDF-1.4")},
		{Name: "fake.png", Data: []byte("plain text pretending")},
		{Name: "big.png", Data: pngBytes(t, 64, 64)},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Stored)
	require.Len(t, res.Failed, 3)
	assert.ErrorIs(t, res.Failed[0].Err, apperr.ErrUnsupportedMedia)
	assert.ErrorIs(t, res.Failed[1].Err, apperr.ErrUnsupportedMedia)
	assert.ErrorIs(t, res.Failed[2].Err, apperr.ErrTooLarge)
}

func TestUpload_Downscale(t *testing.T) {
	_, images := imagesFolder(t, nil)
	u := Uploader{MaxWidth: 10}
	res, err := u.Upload(context.Background(), images, []Incoming{{Name: "wide.png", Data: pngBytes(t, 40, 20)}})
	require.NoError(t, err)
	require.Len(t, res.Stored, 1)
	assert.Equal(t, 10, res.Stored[0].Entry.Width)
	assert.Equal(t, 5, res.Stored[0].Entry.Height)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fs, images := imagesFolder(t, map[string]string{"sub/x.png": "x"})
	require.NoError(t, Delete(ctx, images, "sub/x.png"))
	ok, _ := afero.Exists(fs, testutil.SiteRoot+"/static/images/sub/x.png")
	assert.False(t, ok)

	assert.ErrorIs(t, Delete(ctx, images, "sub/x.png"), apperr.ErrNotFound)
	assert.ErrorIs(t, Delete(ctx, images, "/"), apperr.ErrInvalidName)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello-world-2", Sanitize("Hello World_2"))
	assert.Equal(t, "image", Sanitize(""))
	base, ext := SplitName(`C:\pics\Shot.JPEG`)
	assert.Equal(t, "Shot", base)
	assert.Equal(t, ".jpeg", ext)
}
