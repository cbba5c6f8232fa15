package capture

import (
	"bytes"
	"image"
	"image/jpeg"
)

// JPEG encodes frames as baseline JPEG.
type JPEG struct{}

func (JPEG) Encode(img image.Image, quality int) ([]byte, error) {
	quality = min(max(quality, 1), 100)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
