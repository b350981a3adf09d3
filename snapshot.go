package ovsenv

import "time"

// A Service describes a daemon discovered through its pidfile in the run
// directory.
type Service struct {
	// Name is the daemon name, derived from the pidfile name.
	Name string `json:"name"`

	// Pid is the process ID read from the pidfile.
	Pid int `json:"pid"`

	// PidFile is the path of the pidfile the record was derived from.
	PidFile string `json:"pidfile"`

	// Alive reports whether a process with Pid existed when the snapshot was
	// taken.
	Alive bool `json:"alive"`

	// ControlSocket is the path of the daemon's control socket, when one
	// exists for the recorded pid.
	ControlSocket string `json:"control_socket,omitempty"`
}

// A Database describes a database file discovered in the database directory.
type Database struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// A Socket describes a UNIX socket discovered in the run directory.
type Socket struct {
	Path string `json:"path"`
}

// A DirState records whether a resolved directory existed on disk when a
// snapshot was taken. Directories are observed, never created.
type DirState struct {
	Role    string `json:"role"`
	Path    string `json:"path"`
	Present bool   `json:"present"`
}

// A Snapshot is a point-in-time inventory of the environment found under a
// resolved directory layout.
type Snapshot struct {
	Taken     time.Time  `json:"taken"`
	Dirs      Dirs       `json:"dirs"`
	DirStates []DirState `json:"dir_states"`
	Services  []Service  `json:"services"`
	Databases []Database `json:"databases"`
	Sockets   []Socket   `json:"sockets"`
	Schemas   []string   `json:"schemas,omitempty"`
	Binaries  []string   `json:"binaries,omitempty"`
}
