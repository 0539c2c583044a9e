package fstab

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// MemStore keeps a table in memory. It serves tests and callers that stage
// table edits before persisting them elsewhere.
type MemStore struct {
	mu         sync.Mutex
	data       []byte
	writes     int
	writeLimit int
}

// NewMemStore returns a store seeded with the given content.
func NewMemStore(data []byte) *MemStore {
	return &MemStore{data: bytes.Clone(data)}
}

// Path identifies the store in log and error messages.
func (s *MemStore) Path() string { return "<memory>" }

// Open returns a reader over the current content.
func (s *MemStore) Open() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.NopCloser(bytes.NewReader(bytes.Clone(s.data))), nil
}

// Create returns a writer whose content replaces the store content on
// Close. After a failed Write, Close discards the pending content instead.
func (s *MemStore) Create() (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memWriter{store: s, limit: s.writeLimit}, nil
}

// SetWriteLimit makes writers created afterwards fail any write that would
// push a rewrite past n bytes. Zero, the default, removes the limit.
func (s *MemStore) SetWriteLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLimit = n
}

// Bytes returns a copy of the current content.
func (s *MemStore) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.data)
}

// Writes returns how many rewrites have been committed.
func (s *MemStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

var errWriteLimit = errors.New("write limit exceeded")

type memWriter struct {
	store    *MemStore
	buf      bytes.Buffer
	limit    int
	writeErr error
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	if w.limit > 0 && w.buf.Len()+len(p) > w.limit {
		// Partial write, like a device running out of space.
		room := w.limit - w.buf.Len()
		if room < 0 {
			room = 0
		}
		w.buf.Write(p[:room])
		w.writeErr = errWriteLimit
		return room, w.writeErr
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.writeErr != nil {
		return w.writeErr
	}

	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.data = bytes.Clone(w.buf.Bytes())
	w.store.writes++
	return nil
}
