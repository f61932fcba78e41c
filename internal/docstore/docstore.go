// Package docstore persists structured documents as JSON files under a
// storage root. Each project owns one directory with subareas for issues and
// pull requests; the whole tree is enumerable so the registry can rehydrate
// repositories at startup.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	dferrors "github.com/p-blackswan/deepforge/internal/errors"
)

// Store reads and writes JSON documents below a root directory.
type Store struct {
	root   string
	logger zerolog.Logger
}

// New creates the storage root if needed and returns a Store.
func New(root string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{
		root:   root,
		logger: logger.With().Str("component", "docstore").Logger(),
	}, nil
}

// Root returns the storage root path.
func (s *Store) Root() string { return s.root }

// Write marshals v and writes it atomically (temp file + rename) at the
// given relative path, creating parent directories as needed.
func (s *Store) Write(rel string, v any) error {
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", dferrors.ErrPersistence, filepath.Dir(rel), err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", dferrors.ErrPersistence, rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file for %s: %v", dferrors.ErrPersistence, rel, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", dferrors.ErrPersistence, rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", dferrors.ErrPersistence, rel, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", dferrors.ErrPersistence, rel, err)
	}
	return nil
}

// Read unmarshals the document at the given relative path into v.
// A missing document returns ErrNotFound.
func (s *Store) Read(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if os.IsNotExist(err) {
		return fmt.Errorf("document %s: %w", rel, dferrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", dferrors.ErrPersistence, rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", dferrors.ErrPersistence, rel, err)
	}
	return nil
}

// List returns the names of JSON documents in the given relative directory.
// A missing directory yields an empty list.
func (s *Store) List(relDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, relDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", dferrors.ErrPersistence, relDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// ListDirs returns the names of directories directly under the given
// relative path ("" for the root).
func (s *Store) ListDirs(relDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, relDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list dirs %s: %v", dferrors.ErrPersistence, relDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Delete removes the file or directory tree at the given relative path.
func (s *Store) Delete(rel string) error {
	if err := os.RemoveAll(filepath.Join(s.root, rel)); err != nil {
		return fmt.Errorf("%w: delete %s: %v", dferrors.ErrPersistence, rel, err)
	}
	return nil
}
