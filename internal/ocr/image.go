// Package ocr reads text from raster images, either with a local tesseract binary or
// through a remote OCR service.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/joseph-ayodele/autofill/internal/common"
)

// checkImage verifies the image header decodes as PNG or JPEG and returns the format name.
func checkImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", common.DocumentUnreadable("image is empty", nil)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", common.DocumentUnreadable(fmt.Sprintf("cannot decode image: %v", err), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", common.DocumentUnreadable("image has no pixels", nil)
	}
	return format, nil
}

func fileExt(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}
