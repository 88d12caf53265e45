package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"igmedia/pkg/logger"
)

// cachePatterns lists leftovers of earlier runs, relative to the cache directory
func cachePatterns(username string) []string {
	return []string{
		fmt.Sprintf("working_%s_images.txt", username),
		fmt.Sprintf("%s_images.txt", username),
		fmt.Sprintf("media_data_%s.json", username),
		"high_quality_images.txt",
		"extracted_images.txt",
		"*.tmp",
	}
}

// ClearCacheFiles removes stale cache files for username from dir and returns
// how many were removed. Files that cannot be removed are logged and skipped.
func ClearCacheFiles(dir, username string, log logger.Logger) (int, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	cleared := 0
	for _, pattern := range cachePatterns(username) {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return cleared, fmt.Errorf("invalid cache pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				log.WithError(err).WithField("path", path).Warn("Could not remove cache file")
				continue
			}
			log.DebugWithFields("Removed cache file", map[string]interface{}{"path": path})
			cleared++
		}
	}

	log.InfoWithFields("Cache cleared", map[string]interface{}{
		"directory": dir,
		"removed":   cleared,
	})
	return cleared, nil
}

// FileCounts holds the number of media files found in a directory
type FileCounts struct {
	Images int
	Videos int
}

// CountFiles counts .jpg/.png images and .mp4 videos in dir. A missing
// directory counts as empty.
func CountFiles(dir string) (FileCounts, error) {
	var counts FileCounts

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return counts, nil
	}
	if err != nil {
		return counts, fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".png":
			counts.Images++
		case ".mp4":
			counts.Videos++
		}
	}
	return counts, nil
}
