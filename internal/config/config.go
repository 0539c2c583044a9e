package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigPath is the default location for the config file
	DefaultConfigPath = "/etc/fstabctl.conf"
	// DefaultFstabPath is the filesystem table edited by default
	DefaultFstabPath = "/etc/fstab"
	// DefaultSocketPath is the default Unix socket path for serve mode
	DefaultSocketPath = "/run/fstabctl.sock"
	// DefaultRemotePort is the SSH port used when none is configured
	DefaultRemotePort = 22
)

// Remote describes an fstab reached over SSH instead of the local
// filesystem. Host selects remote mode; everything else qualifies the
// connection.
type Remote struct {
	// Host is the SSH host to connect to
	Host string `toml:"host"`
	// Port is the SSH port, 22 when unset
	Port int `toml:"port"`
	// User is the SSH login user
	User string `toml:"user"`
	// Password authenticates when no key file is set
	Password string `toml:"password"`
	// KeyFile is a path to a PEM-encoded private key
	KeyFile string `toml:"key_file"`
	// KnownHosts is a path to an OpenSSH known_hosts file; host key
	// checking is disabled when unset
	KnownHosts string `toml:"known_hosts"`
}

// Config holds the tool configuration
type Config struct {
	// Fstab is the path of the filesystem table to operate on
	Fstab string `toml:"fstab"`
	// Socket is the Unix socket path used by serve mode
	Socket string `toml:"socket"`
	// Reload asks systemd to reload its units after a local rewrite
	Reload bool `toml:"reload"`
	// Remote, when present, points every operation at a remote host
	Remote *Remote `toml:"remote"`
}

// Load loads configuration from a TOML file
// Returns an empty config if the file doesn't exist
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Merge merges CLI flags into the config, with CLI flags taking precedence
// over config file values. Empty CLI values are ignored.
func (c *Config) Merge(fstabPath, socketPath string) {
	if fstabPath != "" {
		c.Fstab = fstabPath
	}
	if socketPath != "" {
		c.Socket = socketPath
	}
}

// ApplyDefaults applies default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Fstab == "" {
		c.Fstab = DefaultFstabPath
	}
	if c.Socket == "" {
		c.Socket = DefaultSocketPath
	}
	if c.Remote != nil && c.Remote.Port == 0 {
		c.Remote.Port = DefaultRemotePort
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Remote == nil {
		return nil
	}

	if c.Remote.Host == "" {
		return fmt.Errorf("remote host is required (set 'host' in the [remote] section)")
	}
	if c.Remote.User == "" {
		return fmt.Errorf("remote user is required (set 'user' in the [remote] section)")
	}
	if c.Remote.KeyFile == "" && c.Remote.Password == "" {
		return fmt.Errorf("remote access needs 'key_file' or 'password' in the [remote] section")
	}

	return nil
}
