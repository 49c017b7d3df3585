package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes images below a local directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a store rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir is the directory images are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save resizes and writes the image as <dir>/<recipeID><ext>.
func (s *DiskStore) Save(ctx context.Context, recipeID, ext string, data []byte) (string, error) {
	encoded, err := process(data, ext)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Create the images directory if it doesn't exist
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	imagePath := filepath.Join(s.dir, recipeID+strings.ToLower(ext))
	if err := os.WriteFile(imagePath, encoded, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return imagePath, nil
}
