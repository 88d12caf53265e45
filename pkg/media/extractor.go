package media

import (
	"fmt"

	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/instagram"
	"igmedia/pkg/logger"
	"igmedia/pkg/metrics"
)

const defaultProductType = "feed"

// Settings controls what the extractor emits
type Settings struct {
	DownloadVideos bool
	VideoQuality   Quality
}

// Extractor turns raw timeline posts into a Manifest
type Extractor struct {
	settings Settings
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewExtractor creates an extractor. m may be nil.
func NewExtractor(settings Settings, log logger.Logger, m *metrics.Metrics) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		settings: settings,
		logger:   log.WithField("component", "extractor"),
		metrics:  m,
	}
}

// ExtractAll walks posts in order and collects their images and videos.
// postIndex starts at 1 and advances for every post, including posts that
// fail or have an unknown type. Both lists are deduplicated by URL.
func (e *Extractor) ExtractAll(posts []instagram.RawPost) Manifest {
	var images []Image
	var videos []Video

	for i, post := range posts {
		postIndex := i + 1
		if err := e.extractPost(post, postIndex, &images, &videos); err != nil {
			e.metrics.ObserveSkippedPost("error")
			e.logger.WithError(err).WarnWithFields("Skipping post", map[string]interface{}{
				"post_index": postIndex,
			})
		}
	}

	manifest := Manifest{
		Images: Dedupe(images),
		Videos: Dedupe(videos),
	}
	e.metrics.ObserveExtracted(string(KindImage), len(manifest.Images))
	e.metrics.ObserveExtracted(string(KindVideo), len(manifest.Videos))

	e.logger.InfoWithFields("Media extracted", map[string]interface{}{
		"posts":              len(posts),
		"images":             len(manifest.Images),
		"videos":             len(manifest.Videos),
		"duplicates_dropped": len(images) + len(videos) - manifest.Len(),
	})
	return manifest
}

// extractPost appends the media of a single post. Any failure, including a
// panic on unexpected data, is returned as a post-processing error.
func (e *Extractor) extractPost(post instagram.RawPost, postIndex int, images *[]Image, videos *[]Video) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = igerrors.PostProcessing(fmt.Sprintf("post %d", postIndex), fmt.Errorf("panic: %v", r))
		}
	}()

	node, err := post.DecodeNode()
	if err != nil {
		return igerrors.PostProcessing(fmt.Sprintf("post %d: malformed node", postIndex), err)
	}

	switch Classify(node) {
	case KindImage:
		if img, ok := e.ExtractImage(node, postIndex, 1); ok {
			*images = append(*images, img)
		}
	case KindVideo:
		if !e.settings.DownloadVideos {
			return nil
		}
		if vid, ok := e.ExtractVideo(node, postIndex, 1); ok {
			*videos = append(*videos, vid)
		}
	case KindCarousel:
		for i := range node.CarouselMedia {
			child := &node.CarouselMedia[i]
			mediaIndex := i + 1
			switch Classify(child) {
			case KindImage:
				if img, ok := e.ExtractImage(child, postIndex, mediaIndex); ok {
					*images = append(*images, img)
				}
			case KindVideo:
				if !e.settings.DownloadVideos {
					continue
				}
				if vid, ok := e.ExtractVideo(child, postIndex, mediaIndex); ok {
					*videos = append(*videos, vid)
				}
			}
		}
	default:
		e.metrics.ObserveSkippedPost("unknown_type")
		e.logger.DebugWithFields("Skipping post with unknown media type", map[string]interface{}{
			"post_index": postIndex,
			"media_type": node.MediaCode(),
		})
	}
	return nil
}

// ExtractImage builds an Image from the node's first image candidate
func (e *Extractor) ExtractImage(node *instagram.Node, postIndex, mediaIndex int) (Image, bool) {
	candidates := node.ImageVersions2.Candidates
	if len(candidates) == 0 || candidates[0].URL == "" {
		return Image{}, false
	}
	best := candidates[0]

	for _, c := range candidates[1:] {
		if c.Width*c.Height > best.Width*best.Height {
			e.logger.DebugWithFields("Later image candidate is larger than the first", map[string]interface{}{
				"post_index": postIndex,
				"first":      fmt.Sprintf("%dx%d", best.Width, best.Height),
				"larger":     fmt.Sprintf("%dx%d", c.Width, c.Height),
			})
			break
		}
	}

	return Image{
		Common: Common{
			URL:        best.URL,
			PostID:     node.PK.Or(postIndex),
			PostIndex:  postIndex,
			MediaIndex: mediaIndex,
		},
		Width:  best.Width,
		Height: best.Height,
	}, true
}

// ExtractVideo builds a Video from the rendition preferred by the configured quality
func (e *Extractor) ExtractVideo(node *instagram.Node, postIndex, mediaIndex int) (Video, bool) {
	rendition, ok := SelectVideo(node.VideoVersions, e.settings.VideoQuality)
	if !ok || rendition.URL == "" {
		return Video{}, false
	}

	var thumbnail string
	if c := node.ImageVersions2.Candidates; len(c) > 0 {
		thumbnail = c[0].URL
	}

	productType := node.ProductType
	if productType == "" {
		productType = defaultProductType
	}

	return Video{
		Common: Common{
			URL:        rendition.URL,
			PostID:     node.PK.Or(postIndex),
			PostIndex:  postIndex,
			MediaIndex: mediaIndex,
		},
		RenditionType: rendition.Type,
		Width:         rendition.Width,
		Height:        rendition.Height,
		HasAudio:      node.HasAudio,
		ProductType:   productType,
		ThumbnailURL:  thumbnail,
	}, true
}
