package walker

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/testutil"
)

func paths(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Path
	}
	sort.Strings(out)
	return out
}

func TestWalk_SuffixFilter(t *testing.T) {
	_, root := testutil.Site(t, map[string]string{
		"a.md":      "a",
		"sub/b.md":  "b",
		"sub/c.txt": "c",
	})
	var got []string
	for rel, f := range Walk(context.Background(), root, Suffixes(".md"), nil) {
		got = append(got, rel)
		assert.Equal(t, rel, f.Path())
	}
	sort.Strings(got)
	assert.Equal(t, []string{"a.md", "sub/b.md"}, got)
}

func TestWalk_NilFilterAndCase(t *testing.T) {
	_, root := testutil.Site(t, map[string]string{
		"A.PNG":     "",
		"x/y/z.Jpg": "",
		"notes.txt": "",
	})
	var all []string
	for rel := range Walk(context.Background(), root, nil, nil) {
		all = append(all, rel)
	}
	assert.Len(t, all, 3)

	var imgs []string
	for rel := range Walk(context.Background(), root, Suffixes(".png", ".jpg"), nil) {
		imgs = append(imgs, rel)
	}
	sort.Strings(imgs)
	assert.Equal(t, []string{"A.PNG", "x/y/z.Jpg"}, imgs)
}

func TestWalk_SkipsFailingSubdirectory(t *testing.T) {
	fs, root := testutil.Site(t, map[string]string{
		"a.md":        "",
		"bad/b.md":    "",
		"good/c.md":   "",
		"good/d/e.md": "",
	})
	fs.Fail("bad")

	var failed []string
	var got []string
	for rel := range Walk(context.Background(), root, Suffixes(".md"), func(p string, err error) {
		failed = append(failed, p)
		assert.ErrorIs(t, err, testutil.ErrInjected)
	}) {
		got = append(got, rel)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"a.md", "good/c.md", "good/d/e.md"}, got)
	assert.Equal(t, []string{"bad"}, failed)
}

func TestWalk_EarlyBreak(t *testing.T) {
	_, root := testutil.Site(t, map[string]string{"a.md": "", "b.md": "", "c/d.md": ""})
	n := 0
	for range Walk(context.Background(), root, nil, nil) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestWalk_Cancelled(t *testing.T) {
	_, root := testutil.Site(t, map[string]string{"a.md": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range Walk(ctx, root, nil, nil) {
		t.Fatal("cancelled walk yielded")
	}
}

func TestCollect_MatchesWalk(t *testing.T) {
	files := map[string]string{}
	for _, p := range []string{"a.md", "b.txt", "x/1.md", "x/y/2.md", "x/y/z/3.md", "w/4.md", "w/v/5.MD"} {
		files[p] = ""
	}
	for i := range 20 {
		files["many/"+string(rune('a'+i))+"/n.md"] = ""
	}
	_, root := testutil.Site(t, files)

	items, err := Collect(context.Background(), root, Suffixes(".md"), nil)
	require.NoError(t, err)

	var walked []string
	for rel := range Walk(context.Background(), root, Suffixes(".md"), nil) {
		walked = append(walked, rel)
	}
	sort.Strings(walked)
	assert.Equal(t, walked, paths(items))
	assert.Len(t, items, 26)
}

func TestCollect_SkipsFailingSubdirectory(t *testing.T) {
	fs, root := testutil.Site(t, map[string]string{"a.md": "", "bad/b.md": "", "ok/c.md": ""})
	fs.Fail("bad")
	var mu sync.Mutex
	var failed []string
	items, err := Collect(context.Background(), root, Suffixes(".md"), func(p string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, p)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "ok/c.md"}, paths(items))
	assert.Equal(t, []string{"bad"}, failed)
}

func TestCollect_Cancelled(t *testing.T) {
	_, root := testutil.Site(t, map[string]string{"a.md": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, root, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
