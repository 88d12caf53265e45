package instagram

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Media type codes carried in a node's media_type field
const (
	MediaTypeImage    = 1
	MediaTypeVideo    = 2
	MediaTypeCarousel = 8
)

// Video rendition type codes
const (
	RenditionLow    = 101
	RenditionMedium = 102
	RenditionHigh   = 103
)

// TimelineResponse is the envelope of a timeline query
type TimelineResponse struct {
	Data struct {
		Connection *TimelineConnection `json:"xdt_api__v1__feed__user_timeline_graphql_connection"`
	} `json:"data"`
	Status string `json:"status,omitempty"`
}

// TimelineConnection is one page of the user's timeline
type TimelineConnection struct {
	Edges    []RawPost `json:"edges"`
	PageInfo PageInfo  `json:"page_info"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool    `json:"has_next_page"`
	EndCursor   *string `json:"end_cursor"`
}

// RawPost is a timeline edge whose node is left undecoded so that one
// malformed post does not fail the whole page
type RawPost struct {
	Node json.RawMessage `json:"node"`
}

// TimelinePage is what a page fetch yields to the paginator
type TimelinePage struct {
	Edges       []RawPost
	HasNextPage bool
	EndCursor   string
}

// Page flattens the connection into a TimelinePage; a null end_cursor becomes ""
func (c *TimelineConnection) Page() *TimelinePage {
	page := &TimelinePage{
		Edges:       c.Edges,
		HasNextPage: c.PageInfo.HasNextPage,
	}
	if c.PageInfo.EndCursor != nil {
		page.EndCursor = *c.PageInfo.EndCursor
	}
	return page
}

// Node is a post or carousel child
type Node struct {
	PK             FlexibleID    `json:"pk"`
	Code           string        `json:"code,omitempty"`
	MediaType      *int          `json:"media_type"`
	ProductType    string        `json:"product_type,omitempty"`
	HasAudio       bool          `json:"has_audio,omitempty"`
	ImageVersions2 ImageVersions `json:"image_versions2"`
	VideoVersions  []Candidate   `json:"video_versions,omitempty"`
	CarouselMedia  []Node        `json:"carousel_media,omitempty"`
}

// MediaCode returns the node's media_type. A node without the field is an image.
func (n *Node) MediaCode() int {
	if n.MediaType == nil {
		return MediaTypeImage
	}
	return *n.MediaType
}

// MediaTypeCode returns a pointer suitable for Node.MediaType
func MediaTypeCode(code int) *int {
	return &code
}

// ImageVersions lists the image renditions of a node
type ImageVersions struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a single image or video rendition
type Candidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Type   int    `json:"type,omitempty"`
}

// FlexibleID accepts both JSON strings and numbers
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// Or returns the id, or the decimal fallback when the id is empty
func (id FlexibleID) Or(fallback int) string {
	if id == "" {
		return strconv.Itoa(fallback)
	}
	return string(id)
}

// DecodeNode decodes an edge's node. A missing node decodes to the zero Node.
func (p RawPost) DecodeNode() (*Node, error) {
	var node Node
	if len(bytes.TrimSpace(p.Node)) == 0 {
		return &node, nil
	}
	if err := json.Unmarshal(p.Node, &node); err != nil {
		return nil, err
	}
	return &node, nil
}
