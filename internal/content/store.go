package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Kind selects the payload type and with it the file extension
type Kind string

const (
	KindTrack  Kind = "track"
	KindStream Kind = "stream"
)

func (k Kind) extension() string {
	if k == KindTrack {
		return "gpx"
	}
	return "json"
}

// Store writes downloaded activity payloads under a root directory,
// one subdirectory per payload type and user
type Store struct {
	root string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Path returns the file path for an activity payload relative to the
// store root layout: <root>/gpx/<userID>/<activityID>.<ext>
func (s *Store) Path(kind Kind, userID string, activityID int64) string {
	return filepath.Join(s.root, "gpx", userID, fmt.Sprintf("%d.%s", activityID, kind.extension()))
}

// Write stores a payload, creating parent directories as needed.
// An existing file is overwritten.
func (s *Store) Write(kind Kind, userID string, activityID int64, data []byte) (string, error) {
	path := s.Path(kind, userID, activityID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write content file: %w", err)
	}

	return path, nil
}

// Read returns the stored payload for an activity
func (s *Store) Read(kind Kind, userID string, activityID int64) ([]byte, error) {
	data, err := os.ReadFile(s.Path(kind, userID, activityID))
	if err != nil {
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}
	return data, nil
}

// Checksum returns the hex SHA-256 digest of a payload
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
