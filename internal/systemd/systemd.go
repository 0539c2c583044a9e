// Package systemd nudges systemd after the filesystem table changes, so the
// mount units it generates from fstab pick up the new state.
package systemd

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/kriansa/fstabctl/internal/log"
)

const (
	busName      = "org.freedesktop.systemd1"
	objectPath   = "/org/freedesktop/systemd1"
	managerIface = "org.freedesktop.systemd1.Manager"
)

// Reloader triggers systemd daemon reloads over the system bus.
type Reloader struct {
	conn      Conn
	connectFn func() (Conn, error)
}

// ReloaderOption is a functional option for Reloader
type ReloaderOption func(*Reloader)

// WithConnection sets a custom DBus connection (for testing)
func WithConnection(conn Conn) ReloaderOption {
	return func(r *Reloader) {
		r.conn = conn
		r.connectFn = nil
	}
}

// NewReloader creates a Reloader, connecting to the system bus unless a
// connection was injected.
func NewReloader(opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{connectFn: ConnectSystemBus}

	for _, opt := range opts {
		opt(r)
	}

	if r.conn == nil {
		conn, err := r.connectFn()
		if err != nil {
			return nil, fmt.Errorf("connect to system bus: %w", err)
		}
		r.conn = conn
	}

	return r, nil
}

// Close closes the DBus connection
func (r *Reloader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// DaemonReload asks systemd to rerun its generators and reload unit files,
// the equivalent of systemctl daemon-reload.
func (r *Reloader) DaemonReload() error {
	log.Debug("requesting systemd daemon reload")

	obj := r.conn.Object(busName, dbus.ObjectPath(objectPath))
	if call := obj.Call(managerIface+".Reload", 0); call.Err != nil {
		return fmt.Errorf("systemd reload: %w", call.Err)
	}

	log.Debug("systemd daemon reload complete")
	return nil
}
