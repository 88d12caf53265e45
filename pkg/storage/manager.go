package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"igmedia/pkg/media"
)

// sniffLen is the number of leading bytes filetype needs to recognise a format
const sniffLen = 262

// SavedFile describes a file written by Manager.Save
type SavedFile struct {
	Path  string
	Name  string
	Bytes int64
}

// Manager writes downloaded media into a single output directory
type Manager struct {
	outputDir string
	reserved  map[string]bool
	saved     int
	mu        sync.Mutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		reserved:  make(map[string]bool),
	}, nil
}

// Filename returns the base filename for a media item: post_007_img.jpg for a
// single image, post_007_img_02.jpg for the second carousel item and the
// _video variants with .mp4 for videos
func Filename(kind media.Kind, postIndex, mediaIndex int) string {
	base := fmt.Sprintf("post_%03d", postIndex)

	switch kind {
	case media.KindImage:
		if mediaIndex > 1 {
			return fmt.Sprintf("%s_img_%02d.jpg", base, mediaIndex)
		}
		return base + "_img.jpg"
	case media.KindVideo:
		if mediaIndex > 1 {
			return fmt.Sprintf("%s_video_%02d.mp4", base, mediaIndex)
		}
		return base + "_video.mp4"
	}
	return base + "_unknown.bin"
}

// reserve picks a name that does not exist on disk and has not been handed
// out to another in-flight save, appending _1, _2, ... to the stem
func (m *Manager) reserve(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; m.taken(candidate); n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	m.reserved[candidate] = true
	return candidate
}

func (m *Manager) taken(name string) bool {
	if m.reserved[name] {
		return true
	}
	_, err := os.Stat(filepath.Join(m.outputDir, name))
	return err == nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	delete(m.reserved, name)
	m.mu.Unlock()
}

// Save streams r into the output directory under the filename for the given
// item. The extension is corrected when the content is recognisably a
// different format of the same kind (a PNG served for an image, say). Data is
// written to a .tmp file and renamed into place, so a failed save leaves
// nothing behind.
func (m *Manager) Save(r io.Reader, kind media.Kind, postIndex, mediaIndex int) (SavedFile, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)

	name := withExtension(Filename(kind, postIndex, mediaIndex), detectExtension(head, kind))
	name = m.reserve(name)
	filename := filepath.Join(m.outputDir, name)

	// Create temporary file first
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		m.release(name)
		return SavedFile{}, fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, err := io.Copy(out, br)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		m.release(name)
		return SavedFile{}, fmt.Errorf("failed to save %s: %w", name, err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		m.release(name)
		return SavedFile{}, fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		m.release(name)
		return SavedFile{}, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved++
	m.mu.Unlock()

	return SavedFile{Path: filename, Name: name, Bytes: written}, nil
}

// detectExtension returns the sniffed extension when it matches the expected
// kind, or "" to keep the default
func detectExtension(head []byte, kind media.Kind) string {
	if len(head) == 0 {
		return ""
	}
	t, err := filetype.Match(head)
	if err != nil || t == types.Unknown {
		return ""
	}

	switch {
	case kind == media.KindImage && filetype.IsImage(head):
	case kind == media.KindVideo && filetype.IsVideo(head):
	default:
		return ""
	}

	if t.Extension == "jpeg" {
		return "jpg"
	}
	return t.Extension
}

func withExtension(name, ext string) string {
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetSavedCount returns the number of files saved by this manager
func (m *Manager) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}
