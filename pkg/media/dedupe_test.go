package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func img(url, postID string) Image {
	return Image{Common: Common{URL: url, PostID: postID}}
}

func TestDedupe(t *testing.T) {
	in := []Image{
		img("a", "1"),
		img("b", "2"),
		img("a", "3"),
		img("c", "4"),
		img("b", "5"),
	}

	out := Dedupe(in)
	assert.Equal(t, []Image{img("a", "1"), img("b", "2"), img("c", "4")}, out)
}

func TestDedupeIdempotent(t *testing.T) {
	in := []Video{
		{Common: Common{URL: "x"}},
		{Common: Common{URL: "y"}},
		{Common: Common{URL: "x"}},
	}
	once := Dedupe(in)
	assert.Equal(t, once, Dedupe(once))
}

func TestDedupeKeepsEmptyURLs(t *testing.T) {
	in := []Image{img("", "1"), img("", "2"), img("a", "3")}
	assert.Len(t, Dedupe(in), 3)
}

func TestDedupeNilAndEmpty(t *testing.T) {
	assert.Nil(t, Dedupe[Image](nil))
	assert.Empty(t, Dedupe([]Image{}))
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	in := []Image{img("a", "1"), img("a", "2")}
	_ = Dedupe(in)
	assert.Equal(t, "2", in[1].PostID)
}

func TestManifest(t *testing.T) {
	m := Manifest{Images: []Image{img("a", "1")}, Videos: []Video{{}}}
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.Empty())
	assert.True(t, Manifest{}.Empty())

	var d Descriptor = m.Videos[0]
	assert.Equal(t, KindVideo, d.Kind())
	d = m.Images[0]
	assert.Equal(t, KindImage, d.Kind())
	assert.Equal(t, "a", d.Base().URL)
}
