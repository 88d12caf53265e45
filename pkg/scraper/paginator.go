package scraper

import (
	"context"
	"time"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/instagram"
	"igmedia/pkg/logger"
	"igmedia/pkg/metrics"
	"igmedia/pkg/ratelimit"
)

// stop reasons, used for logs and the pagination_stops metric
const (
	stopExhausted = "exhausted"
	stopLastPage  = "last_page"
	stopPageCap   = "page_cap"
	stopFailed    = "failed"
)

// PageResult is what a timeline walk accumulated. Err is set when the walk
// ended on a failed fetch; Posts still holds everything gathered before it.
type PageResult struct {
	Posts []instagram.RawPost
	Pages int
	Err   error
}

// Paginator walks a timeline page by page, following end cursors
type Paginator struct {
	fetcher  PageFetcher
	throttle ratelimit.Throttle
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewPaginator creates a paginator. throttle runs between consecutive
// fetches; limiter gates every fetch. Either may be nil.
func NewPaginator(fetcher PageFetcher, throttle ratelimit.Throttle, limiter ratelimit.Limiter, m *metrics.Metrics, log logger.Logger) *Paginator {
	if throttle == nil {
		throttle = ratelimit.NoDelay{}
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{
		fetcher:  fetcher,
		throttle: throttle,
		limiter:  limiter,
		metrics:  m,
		logger:   log.WithField("component", "paginator"),
	}
}

// FetchAll fetches up to maxPages pages of identity's timeline and returns
// the accumulated posts in feed order. It stops early when a page is empty,
// when the server reports no further page or omits the cursor, or when a
// fetch fails. A failure is reported in PageResult.Err and never discards
// what was already gathered.
func (p *Paginator) FetchAll(ctx context.Context, identity string, maxPages int) PageResult {
	var (
		result PageResult
		cursor string
		reason = stopPageCap
	)

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := p.throttle.Pause(ctx); err != nil {
				result.Err = err
				reason = stopFailed
				break
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			result.Err = err
			reason = stopFailed
			break
		}

		start := time.Now()
		resp, err := p.fetcher.FetchPage(ctx, identity, cursor)
		if err == nil && resp == nil {
			err = igerrors.Protocol("fetcher returned no page", nil)
		}
		if err != nil {
			p.logger.WithError(err).WarnWithFields("Page fetch failed, keeping partial results", map[string]interface{}{
				"identity":     identity,
				"page":         page,
				"posts_so_far": len(result.Posts),
			})
			result.Err = err
			reason = stopFailed
			break
		}

		result.Pages++
		p.metrics.ObservePage(len(resp.Edges), time.Since(start))

		if len(resp.Edges) == 0 {
			reason = stopExhausted
			break
		}

		result.Posts = append(result.Posts, resp.Edges...)
		p.logger.DebugWithFields("Page fetched", map[string]interface{}{
			"identity": identity,
			"page":     page,
			"edges":    len(resp.Edges),
			"has_next": resp.HasNextPage,
		})

		if !resp.HasNextPage || resp.EndCursor == "" {
			reason = stopLastPage
			break
		}
		cursor = resp.EndCursor
	}

	p.metrics.ObserveStop(reason)
	p.logger.InfoWithFields("Pagination finished", map[string]interface{}{
		"identity": identity,
		"pages":    result.Pages,
		"posts":    len(result.Posts),
		"reason":   reason,
	})
	return result
}
