// Package instagram talks to instagram.com's web GraphQL endpoint.
//
// A Session carries the browser cookies and fixed headers a logged-in web
// client sends. Client attaches them to requests and maps failures onto the
// typed errors of igmedia/pkg/errors. TimelineFetcher fetches one page of a
// user's posts at a time:
//
//	session, err := instagram.NewSession(cfg.Cookies(), instagram.SessionOptions{})
//	if err != nil {
//	    return err
//	}
//	client := instagram.NewClient(session, 30*time.Second, log)
//	fetcher := instagram.NewTimelineFetcher(client, instagram.DefaultPageSize, log)
//	page, err := fetcher.FetchPage(ctx, "natgeo", "")
//
// Edges are returned as RawPost values; nodes are decoded on demand with
// RawPost.DecodeNode.
package instagram
