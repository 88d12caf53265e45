package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"igmedia/internal/downloader"
	"igmedia/pkg/config"
	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/instagram"
	"igmedia/pkg/logger"
	"igmedia/pkg/media"
	"igmedia/pkg/metrics"
	"igmedia/pkg/ratelimit"
	"igmedia/pkg/retry"
	"igmedia/pkg/storage"
)

var (
	// ErrNoPosts is returned when pagination yields no posts at all
	ErrNoPosts = errors.New("no posts fetched")
	// ErrNoMedia is returned when posts were fetched but nothing downloadable was found
	ErrNoMedia = errors.New("no media extracted")
)

// Summary reports what a run did
type Summary struct {
	RunID     string
	Username  string
	Directory string
	Pages     int
	Posts     int
	Found     media.Manifest
	Downloads downloader.Summary
	Files     storage.FileCounts
	// PaginationErr is the fetch failure that cut the timeline walk short, if any
	PaginationErr error
	Duration      time.Duration
}

// Scraper orchestrates a run: fetch the timeline, extract media, download it
type Scraper struct {
	config    *config.Config
	api       *instagram.Client
	cdn       *instagram.Client
	paginator *Paginator
	extractor *media.Extractor
	progress  downloader.ProgressReporter
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// New creates a new Scraper from a validated configuration. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	quality, err := media.ParseQuality(cfg.Media.VideoQuality)
	if err != nil {
		return nil, err
	}

	session, err := instagram.NewSession(cfg.Cookies(), instagram.SessionOptions{
		UserAgent: cfg.Instagram.UserAgent,
		AppID:     cfg.Instagram.AppID,
		DocID:     cfg.Instagram.DocID,
	})
	if err != nil {
		return nil, err
	}

	api := instagram.NewClient(session, cfg.Instagram.RequestTimeout, log)
	cdn := instagram.NewClient(session, cfg.Download.DownloadTimeout, log)
	fetcher := instagram.NewTimelineFetcher(api, cfg.Pagination.PageSize, log)

	paginator := NewPaginator(
		fetcher,
		ratelimit.NewRandomDelay(cfg.Pagination.MinDelay, cfg.Pagination.MaxDelay),
		ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		m,
		log,
	)

	extractor := media.NewExtractor(media.Settings{
		DownloadVideos: cfg.Media.DownloadVideos,
		VideoQuality:   quality,
	}, log, m)

	return &Scraper{
		config:    cfg,
		api:       api,
		cdn:       cdn,
		paginator: paginator,
		extractor: extractor,
		metrics:   m,
		logger:    log,
	}, nil
}

// SetProgress attaches a per-file progress reporter to downloads
func (s *Scraper) SetProgress(p downloader.ProgressReporter) {
	s.progress = p
}

// SetBaseURL points the API client at a different host
func (s *Scraper) SetBaseURL(baseURL string) {
	s.api.SetBaseURL(baseURL)
}

// OutputDir returns the directory a run for username writes into
func (s *Scraper) OutputDir(username string) string {
	if s.config.Output.CreateUserFolders {
		return filepath.Join(s.config.Output.BaseDirectory, username)
	}
	return s.config.Output.BaseDirectory
}

// Extract fetches username's timeline and returns the media found without
// downloading anything
func (s *Scraper) Extract(ctx context.Context, username string) (media.Manifest, PageResult, error) {
	username, err := normalize(username)
	if err != nil {
		return media.Manifest{}, PageResult{}, err
	}
	return s.extract(ctx, username, s.logger.WithField("username", username))
}

func (s *Scraper) extract(ctx context.Context, username string, log logger.Logger) (media.Manifest, PageResult, error) {
	log.InfoWithFields("Fetching timeline", map[string]interface{}{
		"max_pages": s.config.Pagination.MaxPages,
		"page_size": s.config.Pagination.PageSize,
	})

	pages := s.paginator.FetchAll(ctx, username, s.config.Pagination.MaxPages)
	if len(pages.Posts) == 0 {
		if pages.Err != nil {
			return media.Manifest{}, pages, fmt.Errorf("%w: %w", ErrNoPosts, pages.Err)
		}
		return media.Manifest{}, pages, ErrNoPosts
	}

	manifest := s.extractor.ExtractAll(pages.Posts)
	if !s.config.Media.DownloadImages && len(manifest.Images) > 0 {
		log.InfoWithFields("Image downloads disabled, dropping images", map[string]interface{}{
			"images": len(manifest.Images),
		})
		manifest.Images = nil
	}
	if manifest.Empty() {
		return manifest, pages, ErrNoMedia
	}
	return manifest, pages, nil
}

// Run performs a full download of username's recent media
func (s *Scraper) Run(ctx context.Context, username string) (*Summary, error) {
	start := time.Now()

	username, err := normalize(username)
	if err != nil {
		return nil, err
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	log := s.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"username": username,
	})
	log.Info("Starting run")

	if s.config.Output.ClearCache {
		if _, err := storage.ClearCacheFiles(s.config.Output.CacheDirectory, username, log); err != nil {
			log.WithError(err).Warn("Cache clearing failed")
		}
	}

	manifest, pages, err := s.extract(ctx, username, log)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:         runID,
		Username:      username,
		Directory:     s.OutputDir(username),
		Pages:         pages.Pages,
		Posts:         len(pages.Posts),
		Found:         manifest,
		PaginationErr: pages.Err,
	}

	store, err := storage.NewManager(summary.Directory)
	if err != nil {
		return nil, err
	}

	pool := downloader.NewWorkerPool(ctx, s.downloadOptions(), s.cdn, store, s.progress, s.metrics, log)
	summary.Downloads = pool.DownloadAll(manifest)

	if counts, err := storage.CountFiles(summary.Directory); err != nil {
		log.WithError(err).Warn("Could not count files in output directory")
	} else {
		summary.Files = counts
	}

	summary.Duration = time.Since(start)
	log.InfoWithFields("Run complete", map[string]interface{}{
		"images":      summary.Downloads.Images,
		"videos":      summary.Downloads.Videos,
		"failed":      summary.Downloads.Failed,
		"skipped":     summary.Downloads.Skipped,
		"directory":   summary.Directory,
		"duration_ms": summary.Duration.Milliseconds(),
	})
	return summary, nil
}

func (s *Scraper) downloadOptions() downloader.Options {
	d := s.config.Download
	return downloader.Options{
		Workers:       d.ConcurrentDownloads,
		MaxVideoBytes: int64(s.config.Media.MaxVideoSizeMB) * 1024 * 1024,
		Retry:         retry.ConstantConfig(d.RetryAttempts, d.RetryDelay),
		ImageDelay:    ratelimit.NewRandomDelay(d.ImageDelayMin, d.ImageDelayMax),
		VideoDelay:    ratelimit.NewRandomDelay(d.VideoDelayMin, d.VideoDelayMax),
	}
}

func normalize(username string) (string, error) {
	username = instagram.SanitizeUsername(username)
	if !instagram.IsValidUsername(username) {
		return "", igerrors.Configuration(fmt.Sprintf("invalid username %q", username), nil)
	}
	return username, nil
}
