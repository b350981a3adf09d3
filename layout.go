package ovsenv

import (
	"fmt"
	"path/filepath"
)

// Well-known file names found under a resolved directory layout.
const (
	databaseFileName   = "conf.db"
	databaseSocketName = "db.sock"
	schemaFileName     = "vswitch.ovsschema"
)

// DatabaseFile returns the conventional path of the switch configuration
// database.
func (d Dirs) DatabaseFile() string {
	return filepath.Join(d.DbDir, databaseFileName)
}

// DatabaseSocket returns the conventional path of the database server's
// management socket.
func (d Dirs) DatabaseSocket() string {
	return filepath.Join(d.RunDir, databaseSocketName)
}

// SchemaFile returns the conventional path of the installed switch database
// schema.
func (d Dirs) SchemaFile() string {
	return filepath.Join(d.PackageDataDir, schemaFileName)
}

// PidFile returns the pidfile path for the named daemon.
func (d Dirs) PidFile(name string) string {
	return filepath.Join(d.RunDir, name+".pid")
}

// ControlSocket returns the control socket path for the named daemon running
// with the given pid.
func (d Dirs) ControlSocket(name string, pid int) string {
	return filepath.Join(d.RunDir, fmt.Sprintf("%v.%v.ctl", name, pid))
}

// LogFile returns the log file path for the named daemon.
func (d Dirs) LogFile(name string) string {
	return filepath.Join(d.LogDir, name+".log")
}

// Binary returns the path of the named executable.
func (d Dirs) Binary(name string) string {
	return filepath.Join(d.BinDir, name)
}

// Roles maps each directory role name to its resolved path. Role names match
// the lowercase suffixes of the environment variables that override them.
func (d Dirs) Roles() map[string]string {
	return map[string]string{
		"pkgdatadir": d.PackageDataDir,
		"rundir":     d.RunDir,
		"logdir":     d.LogDir,
		"bindir":     d.BinDir,
		"dbdir":      d.DbDir,
	}
}
