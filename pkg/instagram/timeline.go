package instagram

import (
	"context"
	"sync"
	"time"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/logger"
)

// TimelineFetcher retrieves pages of a user's post timeline through the
// GraphQL endpoint
type TimelineFetcher struct {
	client   *Client
	pageSize int
	logger   logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	tokens map[string]string
}

// NewTimelineFetcher creates a fetcher that requests pageSize posts per page
func NewTimelineFetcher(client *Client, pageSize int, log logger.Logger) *TimelineFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &TimelineFetcher{
		client:   client,
		pageSize: pageSize,
		logger:   log.WithField("component", "timeline"),
		now:      time.Now,
		tokens:   make(map[string]string),
	}
}

// FetchPage fetches a single page of username's timeline. An empty cursor
// requests the first page.
func (f *TimelineFetcher) FetchPage(ctx context.Context, username, cursor string) (*TimelinePage, error) {
	dtsg := f.token(ctx, username)

	form, err := TimelineForm(f.client.Session(), dtsg, username, cursor, f.pageSize, f.now())
	if err != nil {
		return nil, igerrors.Protocol("failed to build timeline request", err)
	}

	var resp TimelineResponse
	if err := f.client.PostForm(ctx, GraphQLEndpoint, form, &resp); err != nil {
		return nil, err
	}

	if resp.Data.Connection == nil {
		return nil, igerrors.Protocol("response has no user timeline connection", nil)
	}

	page := resp.Data.Connection.Page()
	f.logger.DebugWithFields("timeline page decoded", map[string]interface{}{
		"username": username,
		"edges":    len(page.Edges),
		"has_next": page.HasNextPage,
	})
	return page, nil
}

// token returns the fb_dtsg token for username, scraping the profile page on
// first use. Any failure falls back to the static token.
func (f *TimelineFetcher) token(ctx context.Context, username string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if tok, ok := f.tokens[username]; ok {
		return tok
	}

	tok := FallbackDTSG
	html, err := f.client.GetProfilePage(ctx, username)
	if err != nil {
		f.logger.WithError(err).Warn("Could not load profile page, using fallback fb_dtsg")
	} else {
		var found bool
		tok, found = ExtractDTSG(html)
		if !found {
			f.logger.Debug("No fb_dtsg in profile page, using fallback")
		}
	}

	f.tokens[username] = tok
	return tok
}
