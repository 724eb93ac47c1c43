package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)

	out, err := r.Render("Tom & <Jerry>", "2024-05-01", "line one\nline two\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n~~gone~~")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 class="preview-title">Tom &amp; &lt;Jerry&gt;</h1>`)
	assert.Contains(t, out, `<time class="preview-date" datetime="2024-05-01">May 1, 2024</time>`)
	assert.Contains(t, out, "line one<br>\nline two")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<del>gone</del>")
}

func TestRender_Defaults(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	out, err := r.Render("", "", "")
	require.NoError(t, err)
	assert.Contains(t, out, ">Untitled</h1>")
	assert.NotContains(t, out, "<time")

	out, err = r.Render("T", "sometime", "x")
	require.NoError(t, err)
	assert.Contains(t, out, `<time class="preview-date">sometime</time>`)
}

func TestRender_Cached(t *testing.T) {
	r, err := New(2)
	require.NoError(t, err)
	a, _ := r.Render("t", "", "body")
	b, _ := r.Render("t", "", "body")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, r.Len())

	_, _ = r.Render("t", "", "other")
	_, _ = r.Render("t", "", "third")
	assert.Equal(t, 2, r.Len())
}
