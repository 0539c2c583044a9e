package fstab

import "testing"

func TestEntry_Equal(t *testing.T) {
	base := func() Entry {
		return Entry{
			Device:     "/dev/sda1",
			MountPoint: "/",
			FSType:     "ext4",
			Options:    []string{"noatime", "errors=remount-ro"},
			Dump:       false,
			CheckOrder: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Entry)
		want   bool
	}{
		{"identical", func(e *Entry) {}, true},
		{"different device", func(e *Entry) { e.Device = "/dev/sdb1" }, false},
		{"different mount point", func(e *Entry) { e.MountPoint = "/mnt" }, false},
		{"different fs type", func(e *Entry) { e.FSType = "xfs" }, false},
		{"different options", func(e *Entry) { e.Options = []string{"noatime"} }, false},
		{"reordered options", func(e *Entry) { e.Options = []string{"errors=remount-ro", "noatime"} }, false},
		{"different dump", func(e *Entry) { e.Dump = true }, false},
		{"different check order", func(e *Entry) { e.CheckOrder = 2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base()
			tt.mutate(&other)
			if got := base().Equal(other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_String(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name: "single option",
			entry: Entry{
				Device:     "UUID=378f3c86-b21a-4172-832d-e2b3d4bc7511",
				MountPoint: "/boot",
				FSType:     "ext2",
				Options:    []string{"defaults"},
				Dump:       false,
				CheckOrder: 2,
			},
			want: "UUID=378f3c86-b21a-4172-832d-e2b3d4bc7511 /boot ext2 defaults 0 2",
		},
		{
			name: "multiple options with dump set",
			entry: Entry{
				Device:     "/dev/sda1",
				MountPoint: "/data",
				FSType:     "ext4",
				Options:    []string{"noatime", "user", "rw"},
				Dump:       true,
				CheckOrder: 2,
			},
			want: "/dev/sda1 /data ext4 noatime,user,rw 1 2",
		},
		{
			name: "swap entry",
			entry: Entry{
				Device:     "/dev/mapper/xubuntu--vg--ssd-swap_1",
				MountPoint: "none",
				FSType:     "swap",
				Options:    []string{"sw"},
				Dump:       false,
				CheckOrder: 0,
			},
			want: "/dev/mapper/xubuntu--vg--ssd-swap_1 none swap sw 0 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
