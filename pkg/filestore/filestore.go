// Package filestore keeps uploaded sources and converted artifacts in flat
// directories keyed by file name.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

var (
	// ErrNotFound is returned when no entry has the requested name.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned for names that do not address a regular entry.
	ErrInvalidName = errors.New("invalid file name")
)

// Store is a flat directory. Entries are overwritten on save.
type Store struct {
	dir    string
	logger logging.Logger
}

// FileInfo describes a stored entry.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, logger logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// CleanName reduces name to a single path element. Client supplied names
// never address anything outside the store.
func CleanName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if base == "/" || base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return "", ErrInvalidName
	}
	return base, nil
}

// Path returns the location of name inside the store. The entry need not exist.
func (s *Store) Path(name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, clean), nil
}

// Save writes r under name, replacing any earlier entry of the same name.
// Readers never observe a partially written entry.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (*FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	base, ok := logging.LoggerFromContext(ctx)
	if !ok {
		base = s.logger
	}
	logger := base.With(
		logging.NewField("operation", "filestore.save"),
		logging.NewField("path", path),
	)

	staging := filepath.Join(s.dir, fmt.Sprintf(".%s.%s.part", filepath.Base(path), utils.GenerateUUID()))
	f, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", staging, err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(staging)
		logger.Error("Failed to store file", logging.NewField("error", err))
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return nil, fmt.Errorf("failed to store %s: %w", path, err)
	}

	logger.Debug("File stored", logging.NewField("bytes", n))
	return &FileInfo{Name: filepath.Base(path), Path: path, Size: n}, nil
}

// Stat returns the entry's metadata, or ErrNotFound.
func (s *Store) Stat(name string) (*FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}
	return &FileInfo{Name: info.Name(), Path: path, Size: info.Size()}, nil
}

// Exists reports whether name is a stored entry.
func (s *Store) Exists(name string) (bool, error) {
	_, err := s.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidName):
		return false, nil
	default:
		return false, err
	}
}

// Open opens the entry for reading.
func (s *Store) Open(name string) (*os.File, *FileInfo, error) {
	info, err := s.Stat(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(info.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return f, info, nil
}
