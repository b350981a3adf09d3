// Package bus exports the agent's resolved layout and observed environment
// over D-Bus as the com.ovsenv.Environment1 interface.
package bus

import (
	"encoding/json"
	"fmt"
	"os"

	"git.sr.ht/~spc/go-log"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/hashicorp/go-memdb"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/journal"
	"github.com/ovsenv/ovsenv/ipc"
)

const (
	busName       = "com.ovsenv.Environment1"
	objectPath    = "/com/ovsenv/Environment1"
	interfaceName = "com.ovsenv.Environment1"
)

// NewDBusError creates a D-Bus error suitable to return from an exported
// method.
func NewDBusError(method string, message string) *dbus.Error {
	return dbus.NewError(interfaceName+"."+method+".Error", []interface{}{message})
}

// A Server answers com.ovsenv.Environment1 method calls from the state the
// agent has collected. It does not collect anything itself; scans are
// delegated back to the agent through the rescan function.
type Server struct {
	conn    *dbus.Conn
	dirs    ovsenv.Dirs
	db      *memdb.MemDB
	journal *journal.Journal
	latest  func() *ovsenv.Snapshot
	rescan  func() (*ovsenv.Snapshot, error)
}

// NewServer creates a bus server exporting dirs and the state held in db.
// latest returns the most recently taken snapshot. rescan performs an
// immediate scan and returns the resulting snapshot. jrnl may be nil when
// journaling is disabled.
func NewServer(dirs ovsenv.Dirs, db *memdb.MemDB, jrnl *journal.Journal, latest func() *ovsenv.Snapshot, rescan func() (*ovsenv.Snapshot, error)) *Server {
	return &Server{
		dirs:    dirs,
		db:      db,
		journal: jrnl,
		latest:  latest,
		rescan:  rescan,
	}
}

// Connect connects the server to the bus, exports the interface and requests
// the well-known name. It connects to a private session bus if
// DBUS_SESSION_BUS_ADDRESS is set in the environment. Otherwise it connects
// to the system bus.
func (s *Server) Connect() error {
	var err error

	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		log.Debugf("connecting to session bus: %v", os.Getenv("DBUS_SESSION_BUS_ADDRESS"))
		s.conn, err = dbus.ConnectSessionBus()
	} else {
		s.conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return fmt.Errorf("cannot connect to bus: %w", err)
	}

	methods := map[string]interface{}{
		"Directories": s.directories,
		"Inventory":   s.inventory,
		"Rescan":      s.rescanInventory,
		"Service":     s.service,
		"Journal":     s.journalEntries,
	}
	if err := s.conn.ExportMethodTable(methods, objectPath, interfaceName); err != nil {
		return fmt.Errorf("cannot export %v interface: %w", interfaceName, err)
	}

	if err := s.conn.Export(introspect.Introspectable(ipc.InterfaceEnvironment), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("cannot export org.freedesktop.DBus.Introspectable interface: %w", err)
	}

	reply, err := s.conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("cannot request name on bus: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("cannot request name '%v': name already taken", busName)
	}

	log.Infof("exported %v on bus at %v", interfaceName, objectPath)

	return nil
}

// Close closes the connection to the bus.
func (s *Server) Close() error {
	return s.conn.Close()
}

// EmitEvent emits a com.ovsenv.Environment1.Event signal with the given code
// and subject.
func (s *Server) EmitEvent(code ipc.EventCode, subject string) error {
	if s.conn == nil {
		return nil
	}
	log.Debugf("emitting event %v", code)
	return s.conn.Emit(dbus.ObjectPath(objectPath), interfaceName+".Event", uint32(code), subject)
}

// EmitEnvironmentEvent emits the Event signal for an observed environment
// event. Events without a bus representation are skipped.
func (s *Server) EmitEnvironmentEvent(e ovsenv.EnvironmentEvent) error {
	code := eventCodeFor(e.Name)
	if code == 0 {
		return nil
	}
	return s.EmitEvent(code, e.Subject)
}

func (s *Server) directories() (map[string]string, *dbus.Error) {
	return s.dirs.Roles(), nil
}

func (s *Server) inventory() (string, *dbus.Error) {
	snap := s.latest()
	if snap == nil {
		return "", NewDBusError("Inventory", "no scan has completed yet")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", NewDBusError("Inventory", fmt.Sprintf("cannot marshal snapshot: %v", err))
	}
	return string(data), nil
}

func (s *Server) rescanInventory() (string, *dbus.Error) {
	snap, err := s.rescan()
	if err != nil {
		return "", NewDBusError("Rescan", fmt.Sprintf("cannot scan directories: %v", err))
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", NewDBusError("Rescan", fmt.Sprintf("cannot marshal snapshot: %v", err))
	}
	return string(data), nil
}

func (s *Server) service(name string) (string, *dbus.Error) {
	svc, err := ovsenv.QueryService(s.db, name)
	if err != nil {
		return "", NewDBusError("Service", fmt.Sprintf("cannot query service: %v", err))
	}
	if svc == nil {
		return "", NewDBusError("Service", fmt.Sprintf("unknown service: %v", name))
	}

	data, err := json.Marshal(svc)
	if err != nil {
		return "", NewDBusError("Service", fmt.Sprintf("cannot marshal service: %v", err))
	}
	return string(data), nil
}

func (s *Server) journalEntries(filterJSON string) ([]map[string]string, *dbus.Error) {
	if s.journal == nil {
		return nil, NewDBusError("Journal", "journal is not enabled")
	}

	var filter journal.Filter
	if filterJSON != "" {
		if err := json.Unmarshal([]byte(filterJSON), &filter); err != nil {
			return nil, NewDBusError("Journal", fmt.Sprintf("cannot unmarshal filter: %v", err))
		}
	}

	entries, err := s.journal.GetEntries(filter)
	if err != nil {
		return nil, NewDBusError("Journal", fmt.Sprintf("cannot get journal entries: %v", err))
	}
	return entries, nil
}

func eventCodeFor(name ovsenv.EventName) ipc.EventCode {
	switch name {
	case ovsenv.EventNameScan:
		return ipc.EventCodeScanCompleted
	case ovsenv.EventNameServiceUp:
		return ipc.EventCodeServiceUp
	case ovsenv.EventNameServiceDown:
		return ipc.EventCodeServiceDown
	case ovsenv.EventNameDatabaseAdded:
		return ipc.EventCodeDatabaseAdded
	case ovsenv.EventNameDatabaseRemoved:
		return ipc.EventCodeDatabaseRemoved
	case ovsenv.EventNameDatabaseChanged:
		return ipc.EventCodeDatabaseChanged
	case ovsenv.EventNameSocketAdded:
		return ipc.EventCodeSocketAdded
	case ovsenv.EventNameSocketRemoved:
		return ipc.EventCodeSocketRemoved
	}
	return 0
}
