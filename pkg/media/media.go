package media

import (
	"igmedia/pkg/instagram"
)

// Kind is the classification of a post or carousel child
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindCarousel Kind = "carousel"
	KindUnknown  Kind = "unknown"
)

// Classify maps a node's media_type code to a Kind. A missing code means an
// image; any other code, including an explicit 0, is KindUnknown.
func Classify(node *instagram.Node) Kind {
	if node == nil {
		return KindUnknown
	}
	switch node.MediaCode() {
	case instagram.MediaTypeImage:
		return KindImage
	case instagram.MediaTypeVideo:
		return KindVideo
	case instagram.MediaTypeCarousel:
		return KindCarousel
	default:
		return KindUnknown
	}
}

// Common holds the fields shared by every downloadable item
type Common struct {
	URL        string `json:"url"`
	PostID     string `json:"post_id"`
	PostIndex  int    `json:"post_index"`
	MediaIndex int    `json:"media_index"`
}

// Image is a single downloadable picture
type Image struct {
	Common
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Video is a single downloadable clip at the selected rendition
type Video struct {
	Common
	RenditionType int    `json:"rendition_type,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	HasAudio      bool   `json:"has_audio"`
	ProductType   string `json:"product_type"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
}

// Descriptor is implemented by Image and Video
type Descriptor interface {
	Base() Common
	Kind() Kind
}

func (i Image) Base() Common { return i.Common }
func (i Image) Kind() Kind   { return KindImage }
func (v Video) Base() Common { return v.Common }
func (v Video) Kind() Kind   { return KindVideo }

// Manifest is the ordered, deduplicated output of an extraction
type Manifest struct {
	Images []Image `json:"images"`
	Videos []Video `json:"videos"`
}

// Len returns the total number of items
func (m Manifest) Len() int {
	return len(m.Images) + len(m.Videos)
}

// Empty reports whether the manifest holds no media
func (m Manifest) Empty() bool {
	return m.Len() == 0
}

// Dedupe removes items whose URL was already seen, keeping the first
// occurrence and the original order. Items with an empty URL never match.
func Dedupe[T Descriptor](items []T) []T {
	if items == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		url := item.Base().URL
		if url != "" {
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}
