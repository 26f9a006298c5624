// Package imaging implements the Thumbnails, Perceptual Hashing, and
// Motion Photos stages (spec §4.2 stages 4-6): full decode + multi-size
// resize via libvips bindings, perceptual fingerprinting off a
// low-resolution decode, and embedded/sidecar motion-video detection.
package imaging

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"

	"photoindex/internal/errgroup"
	"photoindex/internal/model"
)

// Sizes are the longest-edge resize targets (spec §3 Thumbnail).
var Sizes = []model.ThumbnailSize{model.Thumb200, model.Thumb600, model.Thumb1200}

// GeneratedThumbnail is one resized, encoded output.
type GeneratedThumbnail struct {
	Size   model.ThumbnailSize
	Bytes  []byte
	Width  int
	Height int
}

// GenerateThumbnails checks that raw is decodable, then resizes it to
// every declared size concurrently (each size task decodes raw itself),
// applying EXIF orientation and encoding as a lossy
// web-optimised format (WebP). Grounded on
// internal/utils/imaging/process.go's StreamThumbnails: one task per
// size, errors collected without aborting the others, fanned out with
// internal/errgroup.FaultTolerantGroup (internal/utils/errgroup/fault_tolerant.go).
func GenerateThumbnails(raw []byte) (map[model.ThumbnailSize]GeneratedThumbnail, error) {
	img := bimg.NewImage(raw)
	if _, err := img.Metadata(); err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanentDecode, err)
	}

	slots := make([]*GeneratedThumbnail, len(Sizes))

	var g errgroup.FaultTolerantGroup
	for i, size := range Sizes {
		i, size := i, size
		g.Go(func() error {
			out, err := bimg.NewImage(raw).Process(bimg.Options{
				Width:        int(size),
				Height:       int(size),
				Type:         bimg.WEBP,
				Quality:      82,
				Enlarge:      false,
				NoAutoRotate: false,
			})
			if err != nil {
				return fmt.Errorf("size %d: %w", size, err)
			}
			meta, _ := bimg.NewImage(out).Metadata()
			slots[i] = &GeneratedThumbnail{
				Size: size, Bytes: out,
				Width: meta.Size.Width, Height: meta.Size.Height,
			}
			return nil
		})
	}

	for _, err := range g.WaitWithResults() {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errPermanentDecode, err)
		}
	}

	results := make(map[model.ThumbnailSize]GeneratedThumbnail, len(Sizes))
	for _, t := range slots {
		results[t.Size] = *t
	}
	return results, nil
}

// errPermanentDecode marks the wrapped error as a non-decodable image
// (spec §7 PermanentDecode); callers classify with
// IsPermanentDecodeError.
var errPermanentDecode = fmt.Errorf("image not decodable")

// IsPermanentDecodeError reports whether err indicates unsupported or
// corrupt image data rather than a transient I/O failure.
func IsPermanentDecodeError(err error) bool {
	return errors.Is(err, errPermanentDecode)
}
