// Package metrics exposes prometheus counters for timeline fetching,
// extraction and downloads.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"igmedia/pkg/logger"
)

// Metrics holds the collectors of one process. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched      prometheus.Counter
	PostsFetched      prometheus.Counter
	PaginationStops   *prometheus.CounterVec
	MediaExtracted    *prometheus.CounterVec
	PostsSkipped      *prometheus.CounterVec
	DownloadsTotal    *prometheus.CounterVec
	DownloadBytes     prometheus.Counter
	DownloadDuration  *prometheus.HistogramVec
	PageFetchDuration prometheus.Histogram
}

// New registers a fresh set of collectors on their own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "igmedia_timeline_pages_fetched_total",
			Help: "Total number of timeline pages fetched successfully",
		}),
		PostsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "igmedia_timeline_posts_fetched_total",
			Help: "Total number of timeline edges received",
		}),
		PaginationStops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmedia_pagination_stops_total",
			Help: "Pagination runs by the reason they stopped",
		}, []string{"reason"}),
		MediaExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmedia_media_extracted_total",
			Help: "Media descriptors produced after deduplication",
		}, []string{"kind"}),
		PostsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmedia_posts_skipped_total",
			Help: "Posts that produced no media",
		}, []string{"reason"}),
		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "igmedia_downloads_total",
			Help: "Media downloads by kind and result",
		}, []string{"kind", "result"}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "igmedia_download_bytes_total",
			Help: "Bytes written to disk",
		}),
		DownloadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "igmedia_download_duration_seconds",
			Help:    "Duration of successful downloads in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		PageFetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "igmedia_timeline_page_duration_seconds",
			Help:    "Duration of timeline page requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePage records a successful page fetch
func (m *Metrics) ObservePage(edges int, took time.Duration) {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
	m.PostsFetched.Add(float64(edges))
	m.PageFetchDuration.Observe(took.Seconds())
}

// ObserveStop records why pagination ended
func (m *Metrics) ObserveStop(reason string) {
	if m == nil {
		return
	}
	m.PaginationStops.WithLabelValues(reason).Inc()
}

// ObserveExtracted records the size of the final media lists
func (m *Metrics) ObserveExtracted(kind string, n int) {
	if m == nil {
		return
	}
	m.MediaExtracted.WithLabelValues(kind).Add(float64(n))
}

// ObserveSkippedPost records a post that produced no media
func (m *Metrics) ObserveSkippedPost(reason string) {
	if m == nil {
		return
	}
	m.PostsSkipped.WithLabelValues(reason).Inc()
}

// ObserveDownload records the outcome of one download
func (m *Metrics) ObserveDownload(kind, result string, bytes int64, took time.Duration) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(kind, result).Inc()
	if result == "downloaded" {
		m.DownloadBytes.Add(float64(bytes))
		m.DownloadDuration.WithLabelValues(kind).Observe(took.Seconds())
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, m *Metrics, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
