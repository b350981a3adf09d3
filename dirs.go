package ovsenv

import "os"

// Environment variables consulted when resolving a directory layout. Each
// variable is optional; a variable that is not set falls back to the
// install-time default baked into the binary.
const (
	EnvPackageDataDir = "OVS_PKGDATADIR"
	EnvRunDir         = "OVS_RUNDIR"
	EnvLogDir         = "OVS_LOGDIR"
	EnvBinDir         = "OVS_BINDIR"
	EnvDbDir          = "OVS_DBDIR"
	EnvSysconfDir     = "OVS_SYSCONFDIR"
)

// Dirs records the directory layout of an Open vSwitch installation. A value
// is resolved once during process start-up and treated as read-only
// afterwards; subsystems receive it by value instead of consulting the
// environment themselves.
type Dirs struct {
	// PackageDataDir is the root for read-only data installed with the
	// package, such as database schema files.
	PackageDataDir string `json:"pkgdatadir"`

	// RunDir is the root for volatile runtime state: control sockets and
	// pidfiles.
	RunDir string `json:"rundir"`

	// LogDir is the root for log files.
	LogDir string `json:"logdir"`

	// BinDir is the root for installed executables.
	BinDir string `json:"bindir"`

	// DbDir is the root for persistent database files.
	DbDir string `json:"dbdir"`
}

// DirsFromEnvironment resolves a directory layout from the process
// environment, falling back to an install-time default for each directory
// whose environment variable is absent.
//
// PackageDataDir, RunDir, LogDir and BinDir honor a presence check only: a
// variable set to the empty string overrides the default with an empty
// value. DbDir follows a different rule. OVS_DBDIR wins only when set to a
// non-empty value; otherwise a non-empty OVS_SYSCONFDIR names the parent of
// an "openvswitch" database directory, and only when both are unset or empty
// does the install-time default apply.
//
// Resolution reads the environment and nothing else. It never creates
// directories, nor checks that any path exists.
func DirsFromEnvironment() Dirs {
	dirs := Dirs{
		PackageDataDir: lookupEnv(EnvPackageDataDir, DefaultPackageDataDir),
		RunDir:         lookupEnv(EnvRunDir, DefaultRunDir),
		LogDir:         lookupEnv(EnvLogDir, DefaultLogDir),
		BinDir:         lookupEnv(EnvBinDir, DefaultBinDir),
	}

	switch {
	case os.Getenv(EnvDbDir) != "":
		dirs.DbDir = os.Getenv(EnvDbDir)
	case os.Getenv(EnvSysconfDir) != "":
		// Plain concatenation; resolved values pass through exactly as the
		// environment supplied them, without any path cleaning.
		dirs.DbDir = os.Getenv(EnvSysconfDir) + "/openvswitch"
	default:
		dirs.DbDir = DefaultDbDir
	}

	return dirs
}

// lookupEnv returns the value of the environment variable key if key is
// present in the environment, even when set to the empty string, and
// fallback otherwise.
func lookupEnv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
