// Package bus wraps the session message bus connection the signal
// listener consumes. It reads no MPRIS properties in-process — player
// enumeration, statuses, track metadata and capabilities are read by
// external utilities instead.
package bus

import (
	"github.com/godbus/dbus/v5"
)

// Client abstracts the subset of *dbus.Conn the listener needs, so tests
// can substitute a fake connection instead of a real session bus.
type Client interface {
	Close() error
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// StdClient is the real implementation, backed by a session-bus
// connection.
type StdClient struct {
	conn *dbus.Conn
}

// Connect opens a connection to the session message bus.
func Connect() (Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdClient{conn: conn}, nil
}

func (c *StdClient) Close() error { return c.conn.Close() }

func (c *StdClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

func (c *StdClient) Signal(ch chan<- *dbus.Signal) { c.conn.Signal(ch) }

func (c *StdClient) RemoveSignal(ch chan<- *dbus.Signal) { c.conn.RemoveSignal(ch) }
