package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"igmedia/pkg/logger"
	"igmedia/pkg/media"
	"igmedia/pkg/metrics"
	"igmedia/pkg/ratelimit"
	"igmedia/pkg/retry"
	"igmedia/pkg/storage"
)

// ErrTooLarge marks a video whose Content-Length exceeds the configured cap
var ErrTooLarge = errors.New("video exceeds size limit")

// Outcome is the final state of a download job
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// DownloadJob represents a single download task
type DownloadJob struct {
	Item  media.Descriptor
	Seq   int
	Total int
}

// Name returns the default filename of the job's item
func (j DownloadJob) Name() string {
	c := j.Item.Base()
	return storage.Filename(j.Item.Kind(), c.PostIndex, c.MediaIndex)
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Outcome  Outcome
	File     storage.SavedFile
	Error    error
	Duration time.Duration
}

// Summary tallies the results of a batch
type Summary struct {
	Images  int
	Videos  int
	Failed  int
	Skipped int
	Bytes   int64
}

// Add folds a result into the summary
func (s *Summary) Add(r DownloadResult) {
	switch r.Outcome {
	case OutcomeDownloaded:
		if r.Job.Item.Kind() == media.KindVideo {
			s.Videos++
		} else {
			s.Images++
		}
		s.Bytes += r.File.Bytes
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// MediaSource opens CDN media for reading
type MediaSource interface {
	OpenMedia(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// MediaStorage persists downloaded media
type MediaStorage interface {
	Save(r io.Reader, kind media.Kind, postIndex, mediaIndex int) (storage.SavedFile, error)
}

// ProgressReporter receives per-file progress. total is -1 when the server
// did not send a Content-Length.
type ProgressReporter interface {
	StartFile(job DownloadJob, total int64)
	Advance(job DownloadJob, n int64)
	FinishFile(result DownloadResult)
}

// Options tunes the worker pool
type Options struct {
	Workers       int
	MaxVideoBytes int64
	Retry         retry.Config
	ImageDelay    ratelimit.Throttle
	VideoDelay    ratelimit.Throttle
}

// DefaultOptions mirrors the default download settings: one worker, 50MB
// video cap, three attempts two seconds apart
func DefaultOptions() Options {
	return Options{
		Workers:       1,
		MaxVideoBytes: 50 * 1024 * 1024,
		Retry:         retry.ConstantConfig(3, 2*time.Second),
		ImageDelay:    ratelimit.NewRandomDelay(500*time.Millisecond, time.Second),
		VideoDelay:    ratelimit.NewRandomDelay(time.Second, 2*time.Second),
	}
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	opts        Options
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	source      MediaSource
	storage     MediaStorage
	progress    ProgressReporter
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	opts Options,
	source MediaSource,
	store MediaStorage,
	progress ProgressReporter,
	m *metrics.Metrics,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if progress == nil {
		progress = nopProgress{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ImageDelay == nil {
		opts.ImageDelay = ratelimit.NoDelay{}
	}
	if opts.VideoDelay == nil {
		opts.VideoDelay = ratelimit.NoDelay{}
	}

	return &WorkerPool{
		opts:        opts,
		jobQueue:    make(chan DownloadJob, opts.Workers*2),
		resultQueue: make(chan DownloadResult, opts.Workers),
		ctx:         ctx,
		cancel:      cancel,
		source:      source,
		storage:     store,
		progress:    progress,
		metrics:     m,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	logger.LogComponentStart(wp.logger, "worker_pool", map[string]interface{}{
		"num_workers":     wp.opts.Workers,
		"max_video_bytes": wp.opts.MaxVideoBytes,
	})

	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("Stopping worker pool")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It must be drained until closed.
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

// DownloadAll queues every image, then every video, waits for the pool to
// drain and returns the tally. Jobs that could not be queued because the
// context ended count as failed.
func (wp *WorkerPool) DownloadAll(manifest media.Manifest) Summary {
	var summary Summary
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range wp.Results() {
			summary.Add(result)
		}
	}()

	wp.Start()

	items := make([]media.Descriptor, 0, manifest.Len())
	for _, img := range manifest.Images {
		items = append(items, img)
	}
	for _, vid := range manifest.Videos {
		items = append(items, vid)
	}

	unqueued := 0
	for i, item := range items {
		if err := wp.Submit(DownloadJob{Item: item, Seq: i + 1, Total: len(items)}); err != nil {
			unqueued = len(items) - i
			wp.logger.WithError(err).WarnWithFields("Download queue closed early", map[string]interface{}{
				"unqueued": unqueued,
			})
			break
		}
	}

	wp.Stop()
	<-done

	summary.Failed += unqueued
	return summary
}

// worker is the main worker routine. Once the context ends the remaining
// jobs are drained and reported as failed, so every queued job yields
// exactly one result.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result DownloadResult
		if err := wp.ctx.Err(); err != nil {
			result = DownloadResult{Job: job, Outcome: OutcomeFailed, Error: err}
		} else {
			result = wp.processJob(job, id)
		}
		wp.progress.FinishFile(result)
		wp.resultQueue <- result

		if wp.ctx.Err() == nil {
			if err := wp.pause(job.Item.Kind()); err != nil {
				wp.logger.DebugWithFields("Worker pause interrupted", map[string]interface{}{
					"worker_id": id,
				})
			}
		}
	}
}

func (wp *WorkerPool) pause(kind media.Kind) error {
	if kind == media.KindVideo {
		return wp.opts.VideoDelay.Pause(wp.ctx)
	}
	return wp.opts.ImageDelay.Pause(wp.ctx)
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	item := job.Item.Base()
	kind := job.Item.Kind()
	name := job.Name()

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"file":      name,
		"seq":       job.Seq,
		"total":     job.Total,
	})

	cfg := wp.opts.Retry
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = retry.DefaultRetryIf
	}
	cfg.RetryIf = func(err error) bool {
		return !errors.Is(err, ErrTooLarge) && retryIf(err)
	}

	var saved storage.SavedFile
	err := retry.Do(wp.ctx, wp.logger, "download "+name, func() error {
		body, size, err := wp.source.OpenMedia(wp.ctx, item.URL)
		if err != nil {
			return err
		}
		defer body.Close()

		if kind == media.KindVideo && wp.opts.MaxVideoBytes > 0 && size > wp.opts.MaxVideoBytes {
			return fmt.Errorf("%w: %.1fMB > %.1fMB", ErrTooLarge,
				float64(size)/1024/1024, float64(wp.opts.MaxVideoBytes)/1024/1024)
		}

		wp.progress.StartFile(job, size)
		saved, err = wp.storage.Save(&progressReader{r: body, job: job, progress: wp.progress}, kind, item.PostIndex, item.MediaIndex)
		return err
	}, cfg)

	result := DownloadResult{Job: job, Duration: time.Since(start)}
	switch {
	case err == nil:
		result.Outcome = OutcomeDownloaded
		result.File = saved
		name = saved.Name
	case errors.Is(err, ErrTooLarge):
		result.Outcome = OutcomeSkipped
		result.Error = err
	default:
		result.Outcome = OutcomeFailed
		result.Error = err
	}

	logger.LogDownload(wp.logger, string(kind), name, string(result.Outcome), result.Error)
	wp.metrics.ObserveDownload(string(kind), string(result.Outcome), result.File.Bytes, result.Duration)
	return result
}

type progressReader struct {
	r        io.Reader
	job      DownloadJob
	progress ProgressReporter
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.progress.Advance(p.job, int64(n))
	}
	return n, err
}

type nopProgress struct{}

func (nopProgress) StartFile(DownloadJob, int64) {}
func (nopProgress) Advance(DownloadJob, int64)   {}
func (nopProgress) FinishFile(DownloadResult)    {}
