package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteAtomic writes data to a uuid-named temporary file next to path and
// renames it into place, so readers see either the old or the new document.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// FileTransport copies documents to a path on a local or shared filesystem.
type FileTransport struct {
	path string
}

// NewFileTransport creates a transport writing to path.
func NewFileTransport(path string) *FileTransport {
	return &FileTransport{path: path}
}

// Deliver replaces the document at the destination path.
func (t *FileTransport) Deliver(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteAtomic(t.path, data); err != nil {
		return fmt.Errorf("deliver to %s: %w", t.path, err)
	}
	return nil
}

// FileSource reads the slot from a file.
type FileSource struct {
	path string
}

// NewFileSource creates a source watching path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the watched path.
func (s *FileSource) Path() string {
	return s.path
}

// Fetch returns the file content, or ErrNoRecord when the file is missing
// or blank.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoRecord
	}
	return data, nil
}
