package georgb

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// WritePreview saves a quick-look of rgb that fits within maxSize x maxSize
// pixels. The format follows the extension of path (.png, .jpg, ...).
// Images already small enough are saved at full size.
func WritePreview(path string, rgb *RGBBuffer, maxSize int) error {
	if maxSize <= 0 {
		return fmt.Errorf("invalid preview size %d", maxSize)
	}
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return fmt.Errorf("preview %s: %w", path, err)
	}

	img := imaging.Fit(rgb.Image(), maxSize, maxSize, imaging.Lanczos)
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save preview %s: %w", path, err)
	}
	return nil
}
