package fstab

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore reads and rewrites a table kept in a local file, conventionally
// /etc/fstab. Rewrites go through a temporary file in the same directory
// that is synced and renamed over the target, so a crash mid-write never
// leaves a truncated table behind.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path backing the store.
func (s *FileStore) Path() string { return s.path }

// Open opens the backing file for reading.
func (s *FileStore) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// Create opens a temporary file next to the target. Closing the returned
// writer syncs the content and renames it over the target path.
func (s *FileStore) Create() (io.WriteCloser, error) {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return nil, fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	// Carry over the mode of the file being replaced; 0644 when creating
	// from scratch.
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}

	return &fileWriter{file: tmp, target: s.path}, nil
}

// fileWriter commits the temporary file over the target on Close. After a
// failed Write, Close discards the temporary file instead of committing, so
// the target keeps its previous content; the temporary file is likewise
// removed whenever the commit itself fails partway.
type fileWriter struct {
	file     *os.File
	target   string
	writeErr error
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil && w.writeErr == nil {
		w.writeErr = err
	}
	return n, err
}

func (w *fileWriter) Close() error {
	if w.writeErr != nil {
		w.file.Close()
		os.Remove(w.file.Name())
		return fmt.Errorf("discard %s: %w", w.file.Name(), w.writeErr)
	}

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		os.Remove(w.file.Name())
		return fmt.Errorf("sync %s: %w", w.file.Name(), err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("close %s: %w", w.file.Name(), err)
	}
	if err := os.Rename(w.file.Name(), w.target); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("rename %s to %s: %w", w.file.Name(), w.target, err)
	}

	return nil
}
