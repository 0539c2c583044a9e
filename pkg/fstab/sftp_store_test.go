package fstab

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sftpClient starts an in-process SFTP server over a loopback connection and
// returns a client for it. The server operates on the local filesystem, so
// tests address files in t.TempDir by absolute path.
func sftpClient(t *testing.T) *sftp.Client {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen")
	t.Cleanup(func() { _ = l.Close() })

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := l.Accept()
		ch <- accepted{conn, err}
	}()

	clientConn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err, "dial")

	srv := <-ch
	require.NoError(t, srv.err, "accept")

	server, err := sftp.NewServer(srv.conn)
	require.NoError(t, err, "start sftp server")
	go func() { _ = server.Serve() }()
	t.Cleanup(func() { _ = server.Close() })

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err, "create sftp client")
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestSFTPStore_RoundTrip(t *testing.T) {
	client := sftpClient(t)

	path := filepath.Join(t.TempDir(), "fstab")
	require.NoError(t, os.WriteFile(path, []byte(fstabFixture), 0o644))

	file := NewWithStore(NewSFTPStore(client, path))

	entries, err := file.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	entry := Entry{Device: "/dev/sdb1", MountPoint: "/srv", FSType: "xfs", Options: []string{"defaults"}, CheckOrder: 2}
	added, err := file.AddEntry(entry)
	require.NoError(t, err)
	assert.True(t, added, "entry should be new")

	entries, err = file.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.True(t, entries[4].Equal(entry), "new entry should be last")

	// The sidecar file must be gone once the rename landed.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist), "sidecar file should not remain, stat err = %v", err)
}

func TestSFTPStore_RemoveEntry(t *testing.T) {
	client := sftpClient(t)

	path := filepath.Join(t.TempDir(), "fstab")
	require.NoError(t, os.WriteFile(path, Encode(fixtureEntries()), 0o644))

	file := NewWithStore(NewSFTPStore(client, path))

	removed, err := file.RemoveEntry("UUID=378f3c86-b21a-4172-832d-e2b3d4bc7511")
	require.NoError(t, err)
	assert.True(t, removed)

	entries, err := file.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSFTPStore_FailedWriteKeepsTarget(t *testing.T) {
	client := sftpClient(t)

	path := filepath.Join(t.TempDir(), "fstab")
	seed := Encode(fixtureEntries())
	require.NoError(t, os.WriteFile(path, seed, 0o644))

	store := NewSFTPStore(client, path)
	w, err := store.Create()
	require.NoError(t, err)

	_, err = w.Write([]byte("/dev/mapper/xubu"))
	require.NoError(t, err)
	// Fail the remaining writes by closing the handle underneath the writer.
	require.NoError(t, w.(*sftpWriter).file.Close())
	_, err = w.Write([]byte(" partial"))
	require.Error(t, err, "write on a closed handle should fail")

	assert.Error(t, w.Close(), "Close should report the recorded write failure")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, seed, content, "target must keep the previous table")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist), "sidecar should be discarded, stat err = %v", err)
}

// replaceRename is the commit path for servers that refuse to rename over
// an existing file. The previous table must survive as the backup until the
// new one is in place, and no sidecar files may remain afterwards.
func TestReplaceRename(t *testing.T) {
	client := sftpClient(t)

	newContent := Encode(fixtureEntries())

	tests := []struct {
		name  string
		setup func(t *testing.T, path string)
	}{
		{
			name: "replaces existing target",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("old table\n"), 0o644))
			},
		},
		{
			name:  "creates fresh target",
			setup: func(t *testing.T, path string) {},
		},
		{
			name: "clears stale backup",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("old table\n"), 0o644))
				require.NoError(t, os.WriteFile(path+".bak", []byte("stale backup\n"), 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fstab")
			tt.setup(t, path)
			require.NoError(t, os.WriteFile(path+".tmp", newContent, 0o644))

			require.NoError(t, replaceRename(client, path+".tmp", path))

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, newContent, content)

			_, err = os.Stat(path + ".tmp")
			assert.True(t, errors.Is(err, os.ErrNotExist), "sidecar left behind, stat err = %v", err)
			_, err = os.Stat(path + ".bak")
			assert.True(t, errors.Is(err, os.ErrNotExist), "backup left behind, stat err = %v", err)
		})
	}
}

func TestSFTPStore_MissingFile(t *testing.T) {
	client := sftpClient(t)

	file := NewWithStore(NewSFTPStore(client, filepath.Join(t.TempDir(), "fstab")))

	_, err := file.Entries()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "error = %v", err)
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err, "generate key")

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err, "marshal key")
	keyFile := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(block), 0o600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err, "convert public key")
	knownHostsFile := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(knownHostsFile, []byte(knownhosts.Line([]string{"example.com:22"}, sshPub)+"\n"), 0o644))

	tests := []struct {
		name    string
		cfg     SSHConfig
		wantErr bool
	}{
		{
			name: "password auth",
			cfg:  SSHConfig{Host: "example.com", User: "root", Password: "hunter2"},
		},
		{
			name: "key auth",
			cfg:  SSHConfig{Host: "example.com", User: "root", KeyFile: keyFile},
		},
		{
			name: "key auth with known hosts",
			cfg:  SSHConfig{Host: "example.com", User: "root", KeyFile: keyFile, KnownHosts: knownHostsFile},
		},
		{
			name:    "no credentials",
			cfg:     SSHConfig{Host: "example.com", User: "root"},
			wantErr: true,
		},
		{
			name:    "missing key file",
			cfg:     SSHConfig{Host: "example.com", User: "root", KeyFile: filepath.Join(dir, "nope")},
			wantErr: true,
		},
		{
			name:    "missing known hosts file",
			cfg:     SSHConfig{Host: "example.com", User: "root", Password: "hunter2", KnownHosts: filepath.Join(dir, "nope")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clientConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.cfg.User, got.User)
			require.Len(t, got.Auth, 1)
			assert.NotZero(t, got.Timeout)
		})
	}
}
