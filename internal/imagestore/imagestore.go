// Package imagestore resizes dish photos and persists them on disk or in S3.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/nfnt/resize"
)

// MaxWidth is the width uploaded photos are scaled down to.
const MaxWidth = 800

var (
	// ErrUnsupportedFormat is returned for extensions other than .jpg, .jpeg and .png.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidImage is returned when the upload cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

// Store saves an image for a recipe and returns where it can be fetched.
type Store interface {
	Save(ctx context.Context, recipeID, ext string, data []byte) (string, error)
}

// SupportedExtension reports whether ext (with leading dot) can be stored.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// contentType returns the MIME type for a supported extension.
func contentType(ext string) string {
	if strings.ToLower(ext) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}

// process decodes data, scales it to MaxWidth keeping the aspect ratio and
// re-encodes it in the format named by ext.
func process(data []byte, ext string) ([]byte, error) {
	ext = strings.ToLower(ext)
	if !SupportedExtension(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrInvalidImage, err)
	}

	if img.Bounds().Dx() > MaxWidth {
		img = resize.Resize(MaxWidth, 0, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	switch ext {
	case ".jpeg", ".jpg":
		err = jpeg.Encode(&out, img, nil)
	case ".png":
		err = png.Encode(&out, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), nil
}
