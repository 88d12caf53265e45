package media

import (
	"fmt"
	"strings"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/instagram"
)

// Quality is the preferred video rendition
type Quality string

const (
	QualityHighest Quality = "highest"
	QualityMedium  Quality = "medium"
	QualityLowest  Quality = "lowest"
)

var qualityOrder = map[Quality][]int{
	QualityHighest: {instagram.RenditionHigh, instagram.RenditionMedium, instagram.RenditionLow},
	QualityMedium:  {instagram.RenditionMedium, instagram.RenditionHigh, instagram.RenditionLow},
	QualityLowest:  {instagram.RenditionLow, instagram.RenditionMedium, instagram.RenditionHigh},
}

// ParseQuality parses a configured quality name, case-insensitively
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := qualityOrder[q]; !ok {
		return "", igerrors.Configuration(fmt.Sprintf("unknown video quality %q (want highest, medium or lowest)", s), nil)
	}
	return q, nil
}

// Priority returns the rendition type codes in preference order. Unknown
// values use the highest ordering.
func (q Quality) Priority() []int {
	if order, ok := qualityOrder[q]; ok {
		return order
	}
	return qualityOrder[QualityHighest]
}

// SelectVideo picks the rendition matching the first code in q's priority
// list. When no code matches it returns the first rendition; it reports
// false only for an empty list.
func SelectVideo(renditions []instagram.Candidate, q Quality) (instagram.Candidate, bool) {
	if len(renditions) == 0 {
		return instagram.Candidate{}, false
	}
	for _, code := range q.Priority() {
		for _, r := range renditions {
			if r.Type == code {
				return r, true
			}
		}
	}
	return renditions[0], true
}
