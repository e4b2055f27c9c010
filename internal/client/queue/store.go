package queue

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the queue as a single opaque blob. The whole queue is
// read and rewritten on every mutation, mirroring how mobile/web clients
// keep it under one storage key.
type Store interface {
	// Load returns the current blob, or nil if nothing was saved yet.
	Load() ([]byte, error)
	// Save replaces the blob.
	Save(data []byte) error
}

// FileStore keeps the blob in a single file on disk.
type FileStore struct{ path string }

// NewFileStore constructs a file-backed store at the given path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// Load reads the blob; a missing file is an empty queue, not an error.
func (s *FileStore) Load() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Save writes the blob, creating parent directories as needed.
func (s *FileStore) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// MemStore keeps the blob in memory (tests, ephemeral sessions).
type MemStore struct {
	mu   sync.Mutex
	data []byte

	// FailLoad/FailSave inject storage errors.
	FailLoad error
	FailSave error
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

// Load returns the stored blob.
func (s *MemStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLoad != nil {
		return nil, s.FailLoad
	}
	return append([]byte(nil), s.data...), nil
}

// Save replaces the stored blob.
func (s *MemStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.data = append([]byte(nil), data...)
	return nil
}
