package fstab

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/kriansa/fstabctl/internal/log"
)

// SSHConfig carries the settings needed to reach a table on a remote host
// over SSH.
type SSHConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	KeyFile    string
	KnownHosts string
}

// SFTPStore reads and rewrites a table on a remote host through an SFTP
// session. Rewrites go through a sidecar temporary file renamed over the
// target, mirroring FileStore.
type SFTPStore struct {
	client *sftp.Client
	closer io.Closer
	path   string
}

// NewSFTPStore wraps an existing SFTP client. The caller keeps ownership of
// the client and the SSH connection underneath it.
func NewSFTPStore(client *sftp.Client, path string) *SFTPStore {
	return &SFTPStore{client: client, path: path}
}

// Dial connects to the configured host and returns a store for the remote
// path. Closing the store closes both the SFTP session and the SSH
// connection.
func Dial(cfg SSHConfig, path string) (*SFTPStore, error) {
	sshCfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}

	conn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", cfg.Host, port), sshCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Host, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create sftp client: %w", err)
	}

	return &SFTPStore{client: client, closer: conn, path: path}, nil
}

// clientConfig assembles the SSH client settings from cfg. A key file wins
// over a password when both are set.
func clientConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch {
	case cfg.KeyFile != "":
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cfg.Password != "":
		auth = append(auth, ssh.Password(cfg.Password))
	default:
		return nil, fmt.Errorf("no ssh credentials for %s", cfg.Host)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", cfg.KnownHosts, err)
		}
		hostKeys = cb
	} else {
		log.Warn("ssh host key verification disabled", "host", cfg.Host)
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         10 * time.Second,
	}, nil
}

// Path returns the remote path backing the store.
func (s *SFTPStore) Path() string { return s.path }

// Open opens the remote file for reading.
func (s *SFTPStore) Open() (io.ReadCloser, error) {
	return s.client.Open(s.path)
}

// Create opens a sidecar temporary file next to the remote target. Closing
// the returned writer renames it over the target path. A single writer at a
// time is assumed, so the sidecar name is fixed.
func (s *SFTPStore) Create() (io.WriteCloser, error) {
	tmp := s.path + ".tmp"
	f, err := s.client.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}

	return &sftpWriter{client: s.client, file: f, tmp: tmp, target: s.path}, nil
}

// Close shuts down the SFTP session and, when the store dialed its own
// connection, the SSH connection underneath it.
func (s *SFTPStore) Close() error {
	err := s.client.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// sftpWriter commits the sidecar file over the target on Close. After a
// failed Write, Close removes the sidecar instead of committing.
type sftpWriter struct {
	client   *sftp.Client
	file     *sftp.File
	tmp      string
	target   string
	writeErr error
}

func (w *sftpWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil && w.writeErr == nil {
		w.writeErr = err
	}
	return n, err
}

func (w *sftpWriter) Close() error {
	if w.writeErr != nil {
		_ = w.file.Close()
		_ = w.client.Remove(w.tmp)
		return fmt.Errorf("discard %s: %w", w.tmp, w.writeErr)
	}

	if err := w.file.Close(); err != nil {
		_ = w.client.Remove(w.tmp)
		return fmt.Errorf("close %s: %w", w.tmp, err)
	}

	if err := w.client.PosixRename(w.tmp, w.target); err != nil {
		// Servers without the posix-rename extension refuse to replace an
		// existing target, so swap through a backup of the current table.
		return replaceRename(w.client, w.tmp, w.target)
	}

	return nil
}

// replaceRename replaces target with tmp on servers whose rename refuses to
// clobber. The current target moves aside to a backup name for the duration
// of the swap, so a connection lost midway always leaves a table to recover
// at either the target or the backup path.
func replaceRename(client *sftp.Client, tmp, target string) error {
	backup := target + ".bak"
	_ = client.Remove(backup)

	switch err := client.Rename(target, backup); {
	case err == nil, errors.Is(err, os.ErrNotExist):
	default:
		_ = client.Remove(tmp)
		return fmt.Errorf("back up %s: %w", target, err)
	}

	if err := client.Rename(tmp, target); err != nil {
		_ = client.Rename(backup, target)
		return fmt.Errorf("rename %s to %s: %w", tmp, target, err)
	}

	_ = client.Remove(backup)
	return nil
}
