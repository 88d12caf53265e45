// Package scraper drives a download run for one Instagram profile.
//
// A run has three stages:
//
//  1. Paginator.FetchAll walks the profile timeline through the GraphQL
//     endpoint, one page at a time, following end cursors until the server
//     reports no further page, a page comes back empty or the page cap is
//     reached. Consecutive fetches are separated by a randomized pause and
//     gated by a token bucket. A failed fetch ends the walk but keeps the
//     posts gathered so far.
//  2. media.Extractor turns the raw posts into a deduplicated manifest of
//     images and videos.
//  3. The downloader worker pool writes every manifest entry to the output
//     directory, images first.
//
// Scraper.Extract stops after the second stage, which is what the CLI's
// --dry-run flag uses.
//
// Usage:
//
//	s, err := scraper.New(cfg, metrics.New(), log)
//	if err != nil {
//	    return err
//	}
//	summary, err := s.Run(ctx, "natgeo")
package scraper
