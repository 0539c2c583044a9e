package service

import "github.com/kriansa/fstabctl/pkg/fstab"

// EntryPayload is the wire form of a table entry.
type EntryPayload struct {
	Device     string
	MountPoint string
	FSType     string
	Options    []string
	Dump       bool
	CheckOrder uint16
}

// FromEntry converts a table entry to its wire form.
func FromEntry(e fstab.Entry) EntryPayload {
	return EntryPayload{
		Device:     e.Device,
		MountPoint: e.MountPoint,
		FSType:     e.FSType,
		Options:    e.Options,
		Dump:       e.Dump,
		CheckOrder: e.CheckOrder,
	}
}

// Entry converts the payload back to a table entry.
func (p EntryPayload) Entry() fstab.Entry {
	return fstab.Entry{
		Device:     p.Device,
		MountPoint: p.MountPoint,
		FSType:     p.FSType,
		Options:    p.Options,
		Dump:       p.Dump,
		CheckOrder: p.CheckOrder,
	}
}

// ListResponse is the result of FsTab.List.
type ListResponse struct {
	Entries []EntryPayload
	Err     string
}

// AddRequest is the request body of FsTab.Add.
type AddRequest struct {
	Entry EntryPayload
}

// AddResponse is the result of FsTab.Add. Created reports whether the entry
// was new rather than a replacement of an identical one.
type AddResponse struct {
	Created bool
	Err     string
}

// AddBatchRequest is the request body of FsTab.AddBatch.
type AddBatchRequest struct {
	Entries []EntryPayload
}

// AddBatchResponse is the result of FsTab.AddBatch.
type AddBatchResponse struct {
	Err string
}

// RemoveRequest is the request body of FsTab.Remove.
type RemoveRequest struct {
	Device string
}

// RemoveResponse is the result of FsTab.Remove. Removed reports whether an
// entry for the device existed.
type RemoveResponse struct {
	Removed bool
	Err     string
}
