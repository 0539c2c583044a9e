// Package fstab reads, models, and rewrites the Unix filesystem table.
//
// The table is parsed fresh from its backing store at the start of every
// operation and fully rewritten after a mutation; nothing is cached in
// between. Mutations are plain read-modify-write sequences with no locking,
// so concurrent writers to the same store must be serialized by the caller.
package fstab

import (
	"fmt"

	"github.com/kriansa/fstabctl/internal/log"
)

// File is a handle on one filesystem table in a backing store.
type File struct {
	store Store
}

// New returns a handle on the fstab file at path.
func New(path string) *File {
	return &File{store: NewFileStore(path)}
}

// NewWithStore returns a handle on a table kept in the given store.
func NewWithStore(store Store) *File {
	return &File{store: store}
}

// Entries reads the backing store and returns the decoded table in line
// order.
func (f *File) Entries() ([]Entry, error) {
	r, err := f.store.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.store.Path(), err)
	}
	defer r.Close()

	entries, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.store.Path(), err)
	}

	return entries, nil
}

// AddEntry inserts entry into the table, replacing any existing entry that
// matches it on every field. The entry ends up last either way, and the
// table is rewritten even when nothing was replaced. It returns true when
// the entry was new and false when an identical one was replaced.
//
// An existing entry for the same device with different fields is not a
// match: the old record stays and both end up in the table.
func (f *File) AddEntry(entry Entry) (bool, error) {
	entries, err := f.Entries()
	if err != nil {
		return false, err
	}

	entries, added := upsert(entries, entry)
	if err := f.save(entries); err != nil {
		return false, err
	}

	return added, nil
}

// AddEntries applies AddEntry's replace-or-append rule to each entry in
// order against a single working copy of the table, reading the store once
// and rewriting it once for the whole batch.
func (f *File) AddEntries(batch []Entry) error {
	entries, err := f.Entries()
	if err != nil {
		return err
	}

	for _, entry := range batch {
		entries, _ = upsert(entries, entry)
	}

	return f.save(entries)
}

// RemoveEntry deletes the first entry whose Device field equals device and
// reports whether one was found. The table is only rewritten when an entry
// was removed.
func (f *File) RemoveEntry(device string) (bool, error) {
	entries, err := f.Entries()
	if err != nil {
		return false, err
	}

	for i, entry := range entries {
		if entry.Device == device {
			entries = append(entries[:i], entries[i+1:]...)
			if err := f.save(entries); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	return false, nil
}

// upsert removes the first entry equal to the incoming one, appends the
// incoming entry at the end, and reports whether it was new.
func upsert(entries []Entry, entry Entry) ([]Entry, bool) {
	added := true
	for i, existing := range entries {
		if existing.Equal(entry) {
			entries = append(entries[:i], entries[i+1:]...)
			added = false
			break
		}
	}

	return append(entries, entry), added
}

// save rewrites the whole table to the backing store.
func (f *File) save(entries []Entry) error {
	w, err := f.store.Create()
	if err != nil {
		return fmt.Errorf("create %s: %w", f.store.Path(), err)
	}

	n, err := Write(w, entries)
	if err != nil {
		// Close after a failed write discards instead of committing.
		w.Close()
		return fmt.Errorf("write %s: %w", f.store.Path(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", f.store.Path(), err)
	}

	log.Debug("wrote fstab", "path", f.store.Path(), "bytes", n, "entries", len(entries))
	return nil
}
