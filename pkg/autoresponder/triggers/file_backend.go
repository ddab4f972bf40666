package triggers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend persists the trigger document as a JSON file.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend creates a file-based backend at path. The file and its
// parent directory are created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Name returns the file path.
func (b *FileBackend) Name() string { return b.path }

// Load reads and decodes the file.
func (b *FileBackend) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Source: b.path, Err: fmt.Errorf("%w: %w", ErrBackendMissing, err)}
		}
		return nil, &ConfigError{Source: b.path, Err: err}
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, &ConfigError{Source: b.path, Err: err}
	}
	return doc, nil
}

// Save encodes doc and replaces the file atomically.
func (b *FileBackend) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encoding trigger document: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return writeFileAtomic(b.path, data, 0o644)
}

// writeFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never see a partially written document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %q: %w", path, err)
	}
	return nil
}
