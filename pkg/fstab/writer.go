package fstab

import (
	"bytes"
	"io"
)

// Encode serializes entries in order to fstab-formatted text, one line per
// entry. The output never contains comments or blank lines; rewriting a
// table is always a full regeneration from the entry list.
//
// An entry whose joined options come out empty produces a five-field line,
// which a later Parse will skip rather than decode.
func Encode(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, entry := range entries {
		buf.WriteString(entry.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Write encodes entries to w and returns the number of bytes written.
func Write(w io.Writer, entries []Entry) (int, error) {
	return w.Write(Encode(entries))
}
