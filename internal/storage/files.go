package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/paperhold/docvault/constants"
)

// FileStore writes original and derived files under a single root directory,
// named by document id so every rendition of one upload shares a base
// identifier.
type FileStore struct {
	root   string
	logger *slog.Logger
}

func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{root: root, logger: logger}, nil
}

// Save writes the original bytes as <id><ext> and returns the path.
func (s *FileStore) Save(id uuid.UUID, filename string, data []byte) (string, error) {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	path := filepath.Join(s.root, id.String()+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("failed to write file", "path", path, "error", err)
		return "", err
	}
	return path, nil
}

// SaveResized writes a downscaled rendition as <id>.resized.jpg.
func (s *FileStore) SaveResized(id uuid.UUID, data []byte) (string, error) {
	path := filepath.Join(s.root, id.String()+".resized.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("failed to write resized file", "path", path, "error", err)
		return "", err
	}
	return path, nil
}

// Remove deletes stored files, ignoring empty paths and missing files.
func (s *FileStore) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove file", "path", p, "error", err)
		}
	}
}
