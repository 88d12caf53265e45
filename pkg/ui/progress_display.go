package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"igmedia/internal/downloader"
)

// redrawInterval bounds how often the interactive line is repainted
const redrawInterval = 100 * time.Millisecond

// ProgressDisplay renders download progress. On a terminal it repaints a
// single line with a bar for the current file; elsewhere it prints one line
// per finished file. It implements downloader.ProgressReporter.
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	bar         progress.Model

	username  string
	total     int
	finished  int
	failed    int
	skipped   int
	bytes     int64
	current   string
	fileTotal int64
	fileRead  int64

	startTime  time.Time
	lastRedraw time.Time
}

// NewProgressDisplay creates a display for total items of username. A zero
// total is raised from the jobs as they start.
func NewProgressDisplay(out io.Writer, username string, total int) *ProgressDisplay {
	return &ProgressDisplay{
		out:         out,
		interactive: IsTerminal(out),
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(24), progress.WithoutPercentage()),
		username:    username,
		total:       total,
		startTime:   time.Now(),
	}
}

// StartFile marks the start of a new download
func (p *ProgressDisplay) StartFile(job downloader.DownloadJob, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job.Total > p.total {
		p.total = job.Total
	}
	p.current = job.Name()
	p.fileTotal = total
	p.fileRead = 0
	p.redraw(true)
}

// Advance records n more bytes of the current file
func (p *ProgressDisplay) Advance(job downloader.DownloadJob, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fileRead += n
	p.redraw(false)
}

// FinishFile records the outcome of a download
func (p *ProgressDisplay) FinishFile(result downloader.DownloadResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished++
	name := result.Job.Name()

	switch result.Outcome {
	case downloader.OutcomeDownloaded:
		p.bytes += result.File.Bytes
		name = result.File.Name
		if !p.interactive {
			fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), name, FormatBytes(result.File.Bytes))
		}
	case downloader.OutcomeSkipped:
		p.skipped++
		p.printAbove("%s %s skipped: %v\n", Yellow("⚠"), name, result.Error)
	default:
		p.failed++
		p.printAbove("%s %s failed: %v\n", Red("✗"), name, result.Error)
	}

	p.current = ""
	p.redraw(true)
}

// Complete prints the final line of the display
func (p *ProgressDisplay) Complete(s downloader.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interactive {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", 120)+"\r")
	}

	fmt.Fprintf(p.out, "%s Downloaded %d images and %d videos from @%s\n",
		Green("✓"), s.Images, s.Videos, p.username)
	fmt.Fprintf(p.out, "  %s %s in %s\n", Dim("•"), FormatBytes(s.Bytes), formatDuration(time.Since(p.startTime)))
	if s.Skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d videos over the size limit skipped\n", Dim("•"), s.Skipped)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d downloads failed", s.Failed)))
	}
}

// printAbove prints a message without corrupting the interactive line
func (p *ProgressDisplay) printAbove(format string, args ...interface{}) {
	if p.interactive {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", 120)+"\r")
	}
	fmt.Fprintf(p.out, format, args...)
}

// redraw repaints the status line; force skips the rate limit
func (p *ProgressDisplay) redraw(force bool) {
	if !p.interactive {
		return
	}
	if !force && time.Since(p.lastRedraw) < redrawInterval {
		return
	}
	p.lastRedraw = time.Now()
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), p.line())
}

// line builds the status line. The bar tracks the current file when its size
// is known and the overall item count otherwise.
func (p *ProgressDisplay) line() string {
	percent := 0.0
	switch {
	case p.current != "" && p.fileTotal > 0:
		percent = float64(p.fileRead) / float64(p.fileTotal)
	case p.total > 0:
		percent = float64(p.finished) / float64(p.total)
	}
	if percent > 1 {
		percent = 1
	}

	line := fmt.Sprintf("%s %s %d/%d • %s",
		Cyan("@"+p.username),
		p.bar.ViewAs(percent),
		p.finished,
		p.total,
		FormatBytes(p.bytes+p.fileRead),
	)

	if p.current != "" {
		if p.fileTotal > 0 {
			line += fmt.Sprintf(" • %s %s/%s", p.current, FormatBytes(p.fileRead), FormatBytes(p.fileTotal))
		} else {
			line += fmt.Sprintf(" • %s %s", p.current, FormatBytes(p.fileRead))
		}
	}

	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.failed)))
	}
	return line
}

// Counts returns finished, failed and skipped item counts
func (p *ProgressDisplay) Counts() (finished, failed, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished, p.failed, p.skipped
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
