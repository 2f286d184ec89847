// Package snapshot persists and serves the set of known entities.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"jarvis/internal/domain"
)

// Store holds the current entity snapshot. Readers get an immutable
// *domain.Snapshot; reloads replace it atomically.
type Store struct {
	path    string
	current atomic.Pointer[domain.Snapshot]
	group   singleflight.Group
	logger  *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	s := &Store{path: path, logger: logger}
	s.current.Store(domain.NewSnapshot(nil))
	return s
}

// Current returns the snapshot in effect. It never returns nil.
func (s *Store) Current() *domain.Snapshot {
	return s.current.Load()
}

// Load reads the snapshot file for the first time. A missing file leaves
// an empty snapshot in place and is not an error.
func (s *Store) Load() error {
	err := s.Reload()
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("entity snapshot file not found, starting with no entities", "path", s.path)
		return nil
	}
	return err
}

// Reload re-reads the file. Concurrent calls share one read. On error the
// previous snapshot is kept.
func (s *Store) Reload() error {
	_, err, _ := s.group.Do("reload", func() (any, error) {
		entities, err := ReadFile(s.path)
		if err != nil {
			return nil, err
		}
		snap := domain.NewSnapshot(entities)
		s.current.Store(snap)
		s.logger.Info("entity snapshot loaded", "path", s.path, "entities", snap.Len())
		return snap, nil
	})
	return err
}

// Watch reloads the snapshot whenever the file is written or replaced. It
// watches the parent directory so atomic renames are seen. It blocks until
// ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	s.logger.Info("watching entity snapshot", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("reloading entity snapshot, keeping previous", "path", s.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("snapshot watcher error", "error", err)
		}
	}
}

// record accepts both the summary format written by WriteFile and the raw
// Home Assistant states format.
type record struct {
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

// ReadFile parses a snapshot file.
func ReadFile(path string) ([]domain.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	entities := make([]domain.Entity, 0, len(records))
	for _, r := range records {
		name := r.Name
		if name == "" {
			if fn, ok := r.Attributes["friendly_name"].(string); ok {
				name = fn
			}
		}
		if name == "" {
			name = r.EntityID
		}
		entities = append(entities, domain.NewEntity(r.EntityID, name))
	}
	return entities, nil
}

// WriteFile atomically writes entities as a summary snapshot.
func WriteFile(path string, entities []domain.Entity) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", tmpName, err)
	}
	return nil
}
