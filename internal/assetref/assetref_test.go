package assetref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindReferences(t *testing.T) {
	got := FindReferences("![a](/images/x.png) and ![b](/img/sub/y.jpg)")
	assert.Equal(t, []string{"x.png", "y.jpg"}, got.Sorted())
}

func TestFindReferences_Variants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"none", "no images, just [a link](/images/z.png)", []string{}},
		{"duplicates collapse", "![](/images/a.png)\n![again](a.png)", []string{"a.png"}},
		{"title", `![cap](/images/t.png "A title")`, []string{"t.png"}},
		{"angle brackets", "![cap](</images/with space.png>)", []string{"with space.png"}},
		{"query and fragment", "![q](/images/q.webp?v=2) ![f](f.gif#top)", []string{"f.gif", "q.webp"}},
		{"bare filename", "![x](plain.svg)", []string{"plain.svg"}},
		{"trailing slash yields nothing", "![x](/images/)", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindReferences(tt.body).Sorted())
		})
	}
}

func TestUnion(t *testing.T) {
	u := Union(Set{"a": {}}, nil, Set{"b": {}, "a": {}})
	assert.Equal(t, []string{"a", "b"}, u.Sorted())
	assert.True(t, u.Has("b"))
	assert.False(t, Set(nil).Has("a"))
}
