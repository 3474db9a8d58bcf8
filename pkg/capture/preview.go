package capture

import (
	"fmt"
	"os"
	"strings"
)

// PreviewStore hands out playable references to recorded artifacts and
// revokes them when they are replaced.
type PreviewStore interface {
	// Create stores data and returns a reference usable for playback.
	Create(data []byte, mimeType string) (ref string, err error)
	// Revoke invalidates a reference. Revoking an unknown or already revoked
	// reference is a no-op.
	Revoke(ref string)
}

// TempFilePreviewStore writes previews to temp files; Revoke deletes them.
type TempFilePreviewStore struct {
	dir string
}

// NewTempFilePreviewStore creates a preview store rooted at dir. An empty dir
// uses the system temp directory.
func NewTempFilePreviewStore(dir string) *TempFilePreviewStore {
	return &TempFilePreviewStore{dir: dir}
}

func (s *TempFilePreviewStore) Create(data []byte, mimeType string) (string, error) {
	f, err := os.CreateTemp(s.dir, "preview-*"+extensionFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write preview: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *TempFilePreviewStore) Revoke(ref string) {
	if ref == "" {
		return
	}
	_ = os.Remove(ref)
}

func extensionFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "video/mp4") {
		return ".mp4"
	}
	return ".webm"
}
