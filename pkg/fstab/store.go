package fstab

import "io"

// Store is the backing byte stream a table is read from and rewritten to.
// Open returns the complete current content; the writer returned by Create
// replaces the complete content, committing it on Close.
type Store interface {
	// Open opens the store for reading.
	Open() (io.ReadCloser, error)

	// Create opens the store for writing, truncating or creating it.
	// Closing the writer commits the new content only when every Write
	// succeeded; after a failed Write, Close discards the pending content
	// and keeps the previous content in place.
	Create() (io.WriteCloser, error)

	// Path names the store in log and error messages.
	Path() string
}
