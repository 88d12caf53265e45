package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/logger"
)

const timelineJSON = `{
  "data": {
    "xdt_api__v1__feed__user_timeline_graphql_connection": {
      "edges": [
        {"node": {"pk": 3141592653, "media_type": 1, "image_versions2": {"candidates": [{"url": "https://cdn/a.jpg", "width": 1080, "height": 1350}]}}},
        {"node": {"pk": "2718", "media_type": 2, "video_versions": [{"type": 101, "url": "https://cdn/v.mp4"}]}}
      ],
      "page_info": {"has_next_page": true, "end_cursor": "QVFD"}
    }
  },
  "status": "ok"
}`

func newTimelineServer(t *testing.T, graphql http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var profileHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&profileHits, 1)
		_, _ = w.Write([]byte(`["DTSGInitialData",[],{"token":"scraped"}]`))
	})
	mux.HandleFunc(GraphQLEndpoint, graphql)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &profileHits
}

func newTestFetcher(t *testing.T, server *httptest.Server) *TimelineFetcher {
	client := NewClient(testSession(t), 5*time.Second, logger.NewNopLogger())
	client.SetBaseURL(server.URL)
	return NewTimelineFetcher(client, 12, logger.NewNopLogger())
}

func TestFetchPage(t *testing.T) {
	var cursors []string
	server, profileHits := newTimelineServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "scraped", r.PostForm.Get("fb_dtsg"))
		assert.Equal(t, "csrf-123", r.Header.Get("X-CSRFToken"))
		cursors = append(cursors, r.PostForm.Get("variables"))
		_, _ = w.Write([]byte(timelineJSON))
	})
	fetcher := newTestFetcher(t, server)

	page, err := fetcher.FetchPage(context.Background(), "natgeo", "")
	require.NoError(t, err)
	assert.Len(t, page.Edges, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "QVFD", page.EndCursor)

	node, err := page.Edges[0].DecodeNode()
	require.NoError(t, err)
	assert.Equal(t, FlexibleID("3141592653"), node.PK)
	assert.Equal(t, "https://cdn/a.jpg", node.ImageVersions2.Candidates[0].URL)

	node, err = page.Edges[1].DecodeNode()
	require.NoError(t, err)
	assert.Equal(t, "2718", node.PK.Or(2))
	assert.Equal(t, RenditionLow, node.VideoVersions[0].Type)

	_, err = fetcher.FetchPage(context.Background(), "natgeo", "QVFD")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(profileHits), "fb_dtsg is scraped once per username")
	require.Len(t, cursors, 2)
	assert.Contains(t, cursors[0], `"after":null`)
	assert.Contains(t, cursors[1], `"after":"QVFD"`)
}

func TestFetchPageNullCursor(t *testing.T) {
	server, _ := newTimelineServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"xdt_api__v1__feed__user_timeline_graphql_connection":{"edges":[],"page_info":{"has_next_page":false,"end_cursor":null}}}}`))
	})

	page, err := newTestFetcher(t, server).FetchPage(context.Background(), "natgeo", "")
	require.NoError(t, err)
	assert.Empty(t, page.Edges)
	assert.False(t, page.HasNextPage)
	assert.Equal(t, "", page.EndCursor)
}

func TestFetchPageProtocolErrors(t *testing.T) {
	bodies := map[string]string{
		"missing connection": `{"data":{}}`,
		"not json":           `for (;;);`,
		"empty data":         `{"status":"fail"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server, _ := newTimelineServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := newTestFetcher(t, server).FetchPage(context.Background(), "natgeo", "")
			require.Error(t, err)
			assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeProtocol), err.Error())
		})
	}
}

func TestFetchPageTransportError(t *testing.T) {
	server, _ := newTimelineServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := newTestFetcher(t, server).FetchPage(context.Background(), "natgeo", "")
	require.Error(t, err)
	assert.True(t, igerrors.IsTransportFailure(err))
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeRateLimit))
}

func TestTokenFallsBackWhenProfileFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(GraphQLEndpoint, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, FallbackDTSG, r.PostForm.Get("fb_dtsg"))
		_, _ = w.Write([]byte(timelineJSON))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := newTestFetcher(t, server).FetchPage(context.Background(), "ghost", "")
	require.NoError(t, err)
}

func TestFlexibleID(t *testing.T) {
	var id FlexibleID
	require.NoError(t, id.UnmarshalJSON([]byte(`123456789012345678`)))
	assert.Equal(t, FlexibleID("123456789012345678"), id)
	require.NoError(t, id.UnmarshalJSON([]byte(`"abc"`)))
	assert.Equal(t, FlexibleID("abc"), id)
	require.NoError(t, id.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, "7", id.Or(7))
	assert.Error(t, id.UnmarshalJSON([]byte(`{}`)))
}
