// Package client provides a Go API for communicating with ovsenvd over its
// D-Bus interface.
package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/ipc"
)

const (
	busName       = "com.ovsenv.Environment1"
	objectPath    = "/com/ovsenv/Environment1"
	interfaceName = "com.ovsenv.Environment1"
)

// EventHandlerFunc is a function type that gets called each time the client
// receives a com.ovsenv.Environment1.Event signal.
type EventHandlerFunc func(code ipc.EventCode, subject string)

// Filter narrows the entries returned by Journal. Zero values match
// everything.
type Filter struct {
	Persistent     bool           `json:"persistent"`
	MessageID      string         `json:"message_id"`
	Event          string         `json:"event"`
	Subject        string         `json:"subject"`
	Since          string         `json:"since"`
	Until          string         `json:"until"`
	TruncateFields map[string]int `json:"truncate_fields"`
}

// Client calls methods on the agent's bus object.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the bus and looks up the agent object. It connects to a
// private session bus if DBUS_SESSION_BUS_ADDRESS is set in the environment.
// Otherwise it connects to the system bus.
func Dial() (*Client, error) {
	var conn *dbus.Conn
	var err error

	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return nil, fmt.Errorf("cannot connect to bus: %w", err)
	}

	return &Client{
		conn: conn,
		obj:  conn.Object(busName, dbus.ObjectPath(objectPath)),
	}, nil
}

// Close closes the connection to the bus.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Directories returns the agent's resolved directory layout, keyed by role
// name.
func (c *Client) Directories() (map[string]string, error) {
	var directories map[string]string
	if err := c.obj.Call(interfaceName+".Directories", 0).Store(&directories); err != nil {
		return nil, fmt.Errorf("cannot call Directories: %w", err)
	}
	return directories, nil
}

// Inventory returns the most recent snapshot taken by the agent.
func (c *Client) Inventory() (*ovsenv.Snapshot, error) {
	return c.callSnapshot(interfaceName + ".Inventory")
}

// Rescan makes the agent scan its directories immediately and returns the
// resulting snapshot.
func (c *Client) Rescan() (*ovsenv.Snapshot, error) {
	return c.callSnapshot(interfaceName + ".Rescan")
}

// Service returns the stored record for the named daemon.
func (c *Client) Service(name string) (*ovsenv.Service, error) {
	var data string
	if err := c.obj.Call(interfaceName+".Service", 0, name).Store(&data); err != nil {
		return nil, fmt.Errorf("cannot call Service: %w", err)
	}

	var service ovsenv.Service
	if err := json.Unmarshal([]byte(data), &service); err != nil {
		return nil, fmt.Errorf("cannot unmarshal service: %w", err)
	}
	return &service, nil
}

// Journal returns the journal entries matching filter.
func (c *Client) Journal(filter Filter) ([]map[string]string, error) {
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal filter to JSON: %w", err)
	}

	var entries []map[string]string
	if err := c.obj.Call(interfaceName+".Journal", 0, string(data)).Store(&entries); err != nil {
		return nil, fmt.Errorf("cannot call Journal: %w", err)
	}
	return entries, nil
}

// WatchEvents subscribes to the agent's Event signal and calls f for each
// received event. It returns after the subscription is established; f is
// called from a background routine for as long as the connection stays open.
func (c *Client) WatchEvents(f EventHandlerFunc) error {
	err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbus.ObjectPath(objectPath)),
		dbus.WithMatchInterface(interfaceName),
		dbus.WithMatchMember("Event"),
	)
	if err != nil {
		return fmt.Errorf("cannot add signal match: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	c.conn.Signal(signals)
	go func() {
		for s := range signals {
			if s.Name != interfaceName+".Event" || len(s.Body) < 2 {
				continue
			}
			code, ok := s.Body[0].(uint32)
			if !ok {
				continue
			}
			subject, ok := s.Body[1].(string)
			if !ok {
				continue
			}
			f(ipc.EventCode(code), subject)
		}
	}()

	return nil
}

func (c *Client) callSnapshot(method string) (*ovsenv.Snapshot, error) {
	var data string
	if err := c.obj.Call(method, 0).Store(&data); err != nil {
		return nil, fmt.Errorf("cannot call %v: %w", method, err)
	}

	var snapshot ovsenv.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("cannot unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
