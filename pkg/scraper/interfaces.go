package scraper

import (
	"context"

	"igmedia/pkg/instagram"
)

// PageFetcher fetches one timeline page. An empty cursor means the first page.
type PageFetcher interface {
	FetchPage(ctx context.Context, identity, cursor string) (*instagram.TimelinePage, error)
}
