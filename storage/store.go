// Package storage provides a namespaced JSON store components use for
// durable state. Each namespace maps to one file under the data
// directory; writes replace the file atomically.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Sentinel errors distinguishing read and write failures.
var (
	ErrWrite = errors.New("error writing storage data to file")
	ErrRead  = errors.New("error reading storage data from file")
)

// envelope wraps stored data with a schema version so readers can detect
// stale files.
type envelope struct {
	Version int                    `json:"version"`
	Data    map[string]interface{} `json:"data"`
}

// Store persists one namespace of JSON data.
type Store struct {
	dir     string
	key     string
	version int
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	cached map[string]interface{}
}

// NewStore creates a store for the given namespace key. version is the
// schema version written with the data; loading a file written under a
// different version logs a warning but still returns its data.
func NewStore(dir, key string, version int, logger *zap.SugaredLogger) *Store {
	return &Store{
		dir:     dir,
		key:     key,
		version: version,
		logger:  logger,
	}
}

// Path returns the file the namespace is stored in.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.key)
}

// Save atomically replaces the namespace's file with the given data.
func (s *Store) Save(data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.MarshalIndent(envelope{Version: s.version, Data: data}, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := s.write(encoded); err != nil {
		return err
	}
	s.cached = data
	return nil
}

// write lands the payload via write-to-temp-then-atomic-rename so a crash
// mid-write never leaves a truncated file behind.
func (s *Store) write(data []byte) error {
	path := s.Path()
	s.logger.Debugw("Writing storage data", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+s.key+"-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// Best-effort cleanup when the rename did not happen.
		if _, statErr := os.Stat(tmpName); statErr == nil {
			if rmErr := os.Remove(tmpName); rmErr != nil {
				s.logger.Errorw("Failed to delete temp file",
					"temp", tmpName,
					"path", path,
					"error", rmErr)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		s.logger.Errorw("Error writing storage file", "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// Load reads the namespace's data from disk. A missing file returns an
// empty result; an unreadable or unparsable file returns ErrRead.
func (s *Store) Load() (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Data returns the namespace's data, loading it from disk on first use.
func (s *Store) Data() (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		data, err := s.load()
		if err != nil {
			return nil, err
		}
		s.cached = data
	}
	return s.cached, nil
}

func (s *Store) load() (map[string]interface{}, error) {
	path := s.Path()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debugw("Storage file not found", "path", path)
			return map[string]interface{}{}, nil
		}
		s.logger.Errorw("Error reading storage file", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Errorw("Error decoding storage file", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if env.Version != s.version {
		s.logger.Warnw("Storage version mismatch",
			"key", s.key,
			"expected", s.version,
			"got", env.Version)
	}
	if env.Data == nil {
		env.Data = map[string]interface{}{}
	}
	return env.Data, nil
}
