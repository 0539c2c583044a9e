package fstab

import (
	"fmt"
	"slices"
	"strings"
)

// Entry is one record of the filesystem table: a device or source mapped to
// a mount point, together with its mount behavior fields.
type Entry struct {
	// Device identifies the mount source: a block device path, a UUID= or
	// LABEL= reference, or the literal "none". Kept verbatim, never
	// validated.
	Device string

	// MountPoint is the path the device is mounted at, or "none" for
	// entries that are not mounted anywhere, such as swap.
	MountPoint string

	// FSType is the filesystem type tag, e.g. "ext4" or "swap".
	FSType string

	// Options holds the mount options in order. They are comma-joined on
	// disk and the order is preserved across a round trip.
	Options []string

	// Dump reports whether the filesystem should be backed up by dump(8).
	// Encoded as "1" when set, "0" otherwise.
	Dump bool

	// CheckOrder is the fsck(8) pass number. Zero disables checking.
	CheckOrder uint16
}

// Equal reports whether both entries match on every field, including option
// order. This is the identity AddEntry deduplicates on; RemoveEntry matches
// on Device alone.
func (e Entry) Equal(other Entry) bool {
	return e.Device == other.Device &&
		e.MountPoint == other.MountPoint &&
		e.FSType == other.FSType &&
		slices.Equal(e.Options, other.Options) &&
		e.Dump == other.Dump &&
		e.CheckOrder == other.CheckOrder
}

// String renders the entry as a single fstab line without a trailing
// newline.
func (e Entry) String() string {
	dump := "0"
	if e.Dump {
		dump = "1"
	}
	return fmt.Sprintf("%s %s %s %s %s %d",
		e.Device, e.MountPoint, e.FSType, strings.Join(e.Options, ","), dump, e.CheckOrder)
}
