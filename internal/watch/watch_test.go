package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kriansa/fstabctl/internal/log"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	log.Setup(false)
	os.Exit(m.Run())
}

func seedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fstab")
	if err := os.WriteFile(path, []byte("/dev/sda1 / ext4 rw 0 1\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	return path
}

func awaitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed unexpectedly")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a change signal")
	}
}

func TestFile_SignalsWrites(t *testing.T) {
	path := seedFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := File(ctx, path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("/dev/sdb1 / ext4 rw 0 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	awaitSignal(t, ch)
}

func TestFile_SignalsRenameReplace(t *testing.T) {
	path := seedFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := File(ctx, path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	// Replace the file the way the rewriter does: temp file plus rename.
	tmp := path + ".tmp1"
	if err := os.WriteFile(tmp, []byte("/dev/sdb1 /mnt ext4 rw 0 0\n"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	awaitSignal(t, ch)
}

func TestFile_IgnoresSiblings(t *testing.T) {
	path := seedFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := File(ctx, path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	other := filepath.Join(filepath.Dir(path), "other")
	if err := os.WriteFile(other, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case <-ch:
		t.Fatal("received a signal for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFile_ClosesOnCancel(t *testing.T) {
	path := seedFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := File(ctx, path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestFile_MissingDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := File(ctx, filepath.Join(t.TempDir(), "missing", "fstab")); err == nil {
		t.Error("File() error = nil, want error for a missing directory")
	}
}
