package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmedia/internal/downloader"
	"igmedia/pkg/media"
	"igmedia/pkg/storage"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Output()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(prev)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Username", "natgeo")
	PrintSuccess("done")
	PrintWarning("careful", errors.New("slow"))
	PrintError("broken", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "Username")
	assert.Contains(t, out, "natgeo")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "careful: slow")
	assert.Contains(t, out, "broken: boom")
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)
	assert.True(t, IsQuietMode())

	PrintLogo()
	PrintInfo("Username", "natgeo")
	PrintSuccess("done")
	PrintError("broken")

	assert.Equal(t, "broken", strings.TrimSpace(buf.String()))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}

func job(kind media.Kind, post int) downloader.DownloadJob {
	c := media.Common{URL: "https://cdn/x", PostIndex: post, MediaIndex: 1}
	if kind == media.KindVideo {
		return downloader.DownloadJob{Item: media.Video{Common: c}}
	}
	return downloader.DownloadJob{Item: media.Image{Common: c}}
}

func TestProgressDisplayNonInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "natgeo", 3)
	assert.False(t, p.interactive)

	img := job(media.KindImage, 1)
	p.StartFile(img, 2048)
	p.Advance(img, 2048)
	p.FinishFile(downloader.DownloadResult{
		Job:     img,
		Outcome: downloader.OutcomeDownloaded,
		File:    storage.SavedFile{Name: "post_001_img.jpg", Bytes: 2048},
	})

	big := job(media.KindVideo, 2)
	p.FinishFile(downloader.DownloadResult{Job: big, Outcome: downloader.OutcomeSkipped, Error: downloader.ErrTooLarge})

	broken := job(media.KindImage, 3)
	p.FinishFile(downloader.DownloadResult{Job: broken, Outcome: downloader.OutcomeFailed, Error: errors.New("404")})

	finished, failed, skipped := p.Counts()
	assert.Equal(t, 3, finished)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)

	out := buf.String()
	assert.Contains(t, out, "post_001_img.jpg • 2.0 KB")
	assert.Contains(t, out, "post_002_video.mp4 skipped")
	assert.Contains(t, out, "post_003_img.jpg failed: 404")
	assert.NotContains(t, out, "\r", "non-terminal output has no redraws")
}

func TestProgressDisplayLine(t *testing.T) {
	p := NewProgressDisplay(&bytes.Buffer{}, "natgeo", 4)

	v := job(media.KindVideo, 1)
	p.StartFile(v, -1)
	p.Advance(v, 3*1024)
	line := p.line()
	assert.Contains(t, line, "@natgeo")
	assert.Contains(t, line, "0/4")
	assert.Contains(t, line, "post_001_video.mp4 3.0 KB")

	p.StartFile(v, 4096)
	p.Advance(v, 1024)
	assert.Contains(t, p.line(), "1.0 KB/4.0 KB")
}

func TestProgressDisplayLearnsTotalFromJobs(t *testing.T) {
	p := NewProgressDisplay(&bytes.Buffer{}, "natgeo", 0)
	j := job(media.KindImage, 1)
	j.Total = 7
	p.StartFile(j, 10)
	assert.Contains(t, p.line(), "0/7")
}

func TestProgressDisplayComplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "natgeo", 5)
	p.Complete(downloader.Summary{Images: 3, Videos: 1, Failed: 1, Bytes: 4096})

	out := buf.String()
	assert.Contains(t, out, "Downloaded 3 images and 1 videos from @natgeo")
	assert.Contains(t, out, "4.0 KB")
	assert.Contains(t, out, "1 downloads failed")
	assert.NotContains(t, out, "size limit")
}

func TestProgressDisplayImplementsReporter(t *testing.T) {
	var _ downloader.ProgressReporter = (*ProgressDisplay)(nil)
}

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{err: errors.New("no daemon")}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("Download complete", "4 files")
	n.SendError("Download failed", "rate limited")

	require.Equal(t, []string{"Download complete", "Download failed"}, sender.titles)
	assert.Contains(t, buf.String(), "4 files")
	assert.Contains(t, buf.String(), "rate limited")

	NewNotifierWithSender(nil).SendSuccess("ok", "no sender")
	assert.Contains(t, buf.String(), "no sender")
}

func TestPlatformSender(t *testing.T) {
	assert.NotNil(t, platformSender("linux"))
	assert.NotNil(t, platformSender("darwin"))
	assert.NotNil(t, platformSender("windows"))
	assert.Nil(t, platformSender("plan9"))
}
