// Package ipc holds the D-Bus interface definitions exported by ovsenvd,
// along with types used in their signal bodies.
package ipc

import (
	_ "embed"
)

//go:embed com.ovsenv.Environment1.xml
var InterfaceEnvironment string

// EventCode identifies the kind of event carried by the
// com.ovsenv.Environment1.Event signal.
type EventCode uint

const (
	// EventCodeReceivedDisconnect is emitted when the agent receives the
	// "disconnect" command.
	EventCodeReceivedDisconnect EventCode = 1

	// EventCodeUnexpectedDisconnect is emitted when the transport unexpectedly
	// disconnects from the network.
	EventCodeUnexpectedDisconnect EventCode = 2

	// EventCodeConnectionRestored is emitted when the transport reconnects to
	// the network.
	EventCodeConnectionRestored EventCode = 3

	// EventCodeScanCompleted is emitted when a directory scan finishes.
	EventCodeScanCompleted EventCode = 4

	// EventCodeServiceUp is emitted when a scan finds a newly live daemon.
	EventCodeServiceUp EventCode = 5

	// EventCodeServiceDown is emitted when a scan finds a daemon no longer
	// running.
	EventCodeServiceDown EventCode = 6

	// EventCodeDatabaseAdded is emitted when a database file appears.
	EventCodeDatabaseAdded EventCode = 7

	// EventCodeDatabaseRemoved is emitted when a database file disappears.
	EventCodeDatabaseRemoved EventCode = 8

	// EventCodeDatabaseChanged is emitted when a database file is modified.
	EventCodeDatabaseChanged EventCode = 9

	// EventCodeSocketAdded is emitted when a socket appears in the run
	// directory.
	EventCodeSocketAdded EventCode = 10

	// EventCodeSocketRemoved is emitted when a socket disappears from the run
	// directory.
	EventCodeSocketRemoved EventCode = 11
)

// String returns a textual representation of the event code.
func (e EventCode) String() string {
	switch e {
	case EventCodeReceivedDisconnect:
		return "RECEIVED_DISCONNECT"
	case EventCodeUnexpectedDisconnect:
		return "UNEXPECTED_DISCONNECT"
	case EventCodeConnectionRestored:
		return "CONNECTION_RESTORED"
	case EventCodeScanCompleted:
		return "SCAN_COMPLETED"
	case EventCodeServiceUp:
		return "SERVICE_UP"
	case EventCodeServiceDown:
		return "SERVICE_DOWN"
	case EventCodeDatabaseAdded:
		return "DATABASE_ADDED"
	case EventCodeDatabaseRemoved:
		return "DATABASE_REMOVED"
	case EventCodeDatabaseChanged:
		return "DATABASE_CHANGED"
	case EventCodeSocketAdded:
		return "SOCKET_ADDED"
	case EventCodeSocketRemoved:
		return "SOCKET_REMOVED"
	}
	return "UNKNOWN"
}
