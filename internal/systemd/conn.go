package systemd

import (
	"github.com/godbus/dbus/v5"
)

// Conn abstracts the godbus connection so the reloader can be tested with a
// mock bus.
type Conn interface {
	// Object returns a BusObject for the given destination and path
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	// Close closes the connection
	Close() error
}

// systemBus wraps *dbus.Conn to implement Conn
type systemBus struct {
	conn *dbus.Conn
}

func (c *systemBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return c.conn.Object(dest, path)
}

func (c *systemBus) Close() error {
	return c.conn.Close()
}

// ConnectSystemBus connects to the system DBus
func ConnectSystemBus() (Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &systemBus{conn: conn}, nil
}
