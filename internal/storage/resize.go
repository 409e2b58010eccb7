package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// ResizeForUpload shrinks an image until its JPEG encoding fits within
// maxBytes. Providers reject oversized image payloads, so large photos are
// downscaled before the vision call rather than failing it.
func ResizeForUpload(data []byte, maxBytes int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	width := uint(img.Bounds().Dx())
	for range 8 {
		width = width * 3 / 4
		if width == 0 {
			break
		}
		scaled := resize.Resize(width, 0, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("image could not be reduced below %d bytes", maxBytes)
}
