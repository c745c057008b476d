// Package media stores uploaded interview images on the local filesystem.
// Stored images are addressed by a relative locator and re-read every time a
// conversation is assembled; nothing is cached in memory.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const uploadDir = "interview_images"

// Store writes and reads image files under a root directory.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir, creating the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, uploadDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Save writes the image bytes to a server-generated path and returns the
// relative locator persisted alongside the message.
func (s *Store) Save(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	locator := filepath.Join(uploadDir, uuid.New().String()+ext)
	if err := os.WriteFile(filepath.Join(s.root, locator), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return locator, nil
}

// Load reads the image bytes for a locator previously returned by Save.
func (s *Store) Load(locator string) ([]byte, error) {
	path := filepath.Join(s.root, filepath.Clean(locator))
	// Locators always point inside the root; reject anything that escapes it.
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid image locator %q", locator)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}
