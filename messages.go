package ovsenv

import (
	"encoding/json"
	"time"
)

// MessageType represents accepted values in the "type" field of messages.
type MessageType string

// The supported message types.
const (
	MessageTypeConnectionStatus MessageType = "connection-status"
	MessageTypeCommand          MessageType = "command"
	MessageTypeEvent            MessageType = "event"
	MessageTypeReport           MessageType = "report"
)

// ConnectionState represents accepted values for the "state" field of
// ConnectionStatus messages.
type ConnectionState string

const (
	// ConnectionStateOnline indicates an agent is online and subscribing to
	// topics.
	ConnectionStateOnline ConnectionState = "online"

	// ConnectionStateOffline indicates an agent is no longer online.
	ConnectionStateOffline ConnectionState = "offline"
)

// CommandName represents accepted values for the "command" field of Command
// messages.
type CommandName string

const (
	// CommandNameReconnect instructs an agent to temporarily disconnect and
	// reconnect to the broker.
	CommandNameReconnect CommandName = "reconnect"

	// CommandNamePing instructs an agent to respond with a "pong" event.
	CommandNamePing CommandName = "ping"

	// CommandNameDisconnect instructs an agent to permanently disconnect.
	CommandNameDisconnect CommandName = "disconnect"

	// CommandNameRescan instructs an agent to scan its directories immediately
	// instead of waiting for the next scheduled scan.
	CommandNameRescan CommandName = "rescan"

	// CommandNameReport instructs an agent to publish a report containing its
	// most recent environment snapshot.
	CommandNameReport CommandName = "report"
)

// EventName represents accepted values for the "name" field of an Event
// message.
type EventName string

const (
	// EventNameDisconnect informs the server that the agent will disconnect.
	EventNameDisconnect EventName = "disconnect"

	// EventNamePong informs the server that the agent has received a "ping"
	// command.
	EventNamePong EventName = "pong"

	// EventNameScan informs the server that the agent completed a directory
	// scan.
	EventNameScan EventName = "scan"

	// EventNameServiceUp informs the server that a daemon pidfile appeared or
	// its process became live.
	EventNameServiceUp EventName = "service-up"

	// EventNameServiceDown informs the server that a daemon pidfile vanished
	// or its process stopped running.
	EventNameServiceDown EventName = "service-down"

	// EventNameDatabaseAdded informs the server that a database file appeared
	// in the database directory.
	EventNameDatabaseAdded EventName = "database-added"

	// EventNameDatabaseRemoved informs the server that a database file
	// disappeared from the database directory.
	EventNameDatabaseRemoved EventName = "database-removed"

	// EventNameDatabaseChanged informs the server that a database file was
	// modified.
	EventNameDatabaseChanged EventName = "database-changed"

	// EventNameSocketAdded informs the server that a socket appeared in the
	// run directory.
	EventNameSocketAdded EventName = "socket-added"

	// EventNameSocketRemoved informs the server that a socket disappeared
	// from the run directory.
	EventNameSocketRemoved EventName = "socket-removed"
)

// An EnvironmentEvent records a single observed change in the monitored
// environment. Events are derived by comparing consecutive snapshots, stored
// in the journal, emitted as bus signals and published to the server inside
// Event messages.
type EnvironmentEvent struct {
	MessageID string            `json:"message_id"`
	Sent      time.Time         `json:"sent"`
	Name      EventName         `json:"name"`
	Subject   string            `json:"subject,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// A ConnectionStatus message is published by the agent when it connects to
// the broker. The message is expected to be published as a retained message
// and its presence is considered an acceptable way to decide whether an agent
// is active and functioning normally.
type ConnectionStatus struct {
	Type       MessageType `json:"type"`
	MessageID  string      `json:"message_id"`
	ResponseTo string      `json:"response_to"`
	Version    int         `json:"version"`
	Sent       time.Time   `json:"sent"`
	Content    struct {
		Facts Facts             `json:"facts"`
		Dirs  Dirs              `json:"dirs"`
		State ConnectionState   `json:"state"`
		Tags  map[string]string `json:"tags,omitempty"`
	} `json:"content"`
}

// A Command message is published by the server on the "control" topic when it
// needs to instruct an agent to perform an operation. The content is kept
// raw so that a detached signature, when present, can be verified over the
// exact bytes the server signed.
type Command struct {
	Type       MessageType     `json:"type"`
	MessageID  string          `json:"message_id"`
	ResponseTo string          `json:"response_to"`
	Version    int             `json:"version"`
	Sent       time.Time       `json:"sent"`
	Content    json.RawMessage `json:"content"`
	Signature  string          `json:"signature,omitempty"`
}

// CommandContent is the decoded content of a Command message.
type CommandContent struct {
	Command   CommandName       `json:"command"`
	Arguments map[string]string `json:"arguments"`
}

// An Event message is published by the agent on the "control" topic when it
// wishes to inform the server that a notable event occurred.
type Event struct {
	Type       MessageType      `json:"type"`
	MessageID  string           `json:"message_id"`
	ResponseTo string           `json:"response_to"`
	Version    int              `json:"version"`
	Sent       time.Time        `json:"sent"`
	Content    EnvironmentEvent `json:"content"`
}

// A Control message is a partially decoded message received on the "control"
// topic. Its content is decoded further once the value of the "type" field
// is known.
type Control struct {
	Type       MessageType     `json:"type"`
	MessageID  string          `json:"message_id"`
	ResponseTo string          `json:"response_to"`
	Version    int             `json:"version"`
	Sent       time.Time       `json:"sent"`
	Content    json.RawMessage `json:"content"`
}

// Report messages are published by the agent on the "data" topic. Each
// report carries a complete snapshot of the monitored environment.
type Report struct {
	Type       MessageType `json:"type"`
	MessageID  string      `json:"message_id"`
	ResponseTo string      `json:"response_to"`
	Version    int         `json:"version"`
	Sent       time.Time   `json:"sent"`
	Content    Snapshot    `json:"content"`
}
