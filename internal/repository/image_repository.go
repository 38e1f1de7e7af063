package repository

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ImageRepository stores uploaded images as files. Content references are
// file paths.
type ImageRepository struct {
	dir string
}

// NewImageRepository creates a new ImageRepository rooted at dir
func NewImageRepository(dir string) *ImageRepository {
	return &ImageRepository{dir: dir}
}

// Store writes r under the base name of filename, replacing any previous
// upload with the same name, and returns the stored path.
func (r *ImageRepository) Store(filename string, src io.Reader) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: image file name %q", ErrInvalidInput, filename)
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	return path, nil
}

// ReadImage returns the content of a stored image
func (r *ImageRepository) ReadImage(ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
