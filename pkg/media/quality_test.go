package media

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/instagram"
)

func renditions(types ...int) []instagram.Candidate {
	out := make([]instagram.Candidate, 0, len(types))
	for _, t := range types {
		out = append(out, instagram.Candidate{Type: t, URL: fmt.Sprintf("https://cdn/%d.mp4", t)})
	}
	return out
}

func TestSelectVideo(t *testing.T) {
	tests := []struct {
		name       string
		renditions []instagram.Candidate
		quality    Quality
		wantType   int
	}{
		{"highest picks 103", renditions(101, 102, 103), QualityHighest, 103},
		{"medium picks 102", renditions(101, 102, 103), QualityMedium, 102},
		{"lowest picks 101", renditions(103, 102, 101), QualityLowest, 101},
		{"highest falls to 102", renditions(101, 102), QualityHighest, 102},
		{"medium falls to 103", renditions(101, 103), QualityMedium, 103},
		{"lowest falls to 102", renditions(103, 102), QualityLowest, 102},
		{"no known codes returns first", renditions(250, 300), QualityHighest, 250},
		{"unknown preference uses highest", renditions(101, 103), Quality("ultra"), 103},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectVideo(tt.renditions, tt.quality)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, got.Type)
		})
	}
}

func TestSelectVideoDuplicateCodesKeepsFirst(t *testing.T) {
	got, ok := SelectVideo([]instagram.Candidate{
		{Type: 103, URL: "https://cdn/first.mp4"},
		{Type: 103, URL: "https://cdn/second.mp4"},
	}, QualityHighest)
	require.True(t, ok)
	assert.Equal(t, "https://cdn/first.mp4", got.URL)
}

func TestSelectVideoEmpty(t *testing.T) {
	_, ok := SelectVideo(nil, QualityHighest)
	assert.False(t, ok)
	_, ok = SelectVideo([]instagram.Candidate{}, QualityLowest)
	assert.False(t, ok)
}

func TestSelectVideoResultIsMember(t *testing.T) {
	sets := [][]instagram.Candidate{
		renditions(101),
		renditions(102, 101),
		renditions(999),
		renditions(103, 101, 102),
	}
	for _, set := range sets {
		for _, q := range []Quality{QualityHighest, QualityMedium, QualityLowest} {
			got, ok := SelectVideo(set, q)
			require.True(t, ok)
			assert.Contains(t, set, got)
		}
	}
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality(" Medium ")
	require.NoError(t, err)
	assert.Equal(t, QualityMedium, q)

	_, err = ParseQuality("4k")
	require.Error(t, err)
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeConfiguration))
}

func TestPriority(t *testing.T) {
	assert.Equal(t, []int{103, 102, 101}, QualityHighest.Priority())
	assert.Equal(t, []int{102, 103, 101}, QualityMedium.Priority())
	assert.Equal(t, []int{101, 102, 103}, QualityLowest.Priority())
	assert.Equal(t, []int{103, 102, 101}, Quality("").Priority())
}
