package ovsenv

import "path/filepath"

var (
	// Version is the version as described by git.
	Version string

	// ShortName is used as a prefix to binary file names.
	ShortName string

	// LongName is used in file and directory names.
	LongName string

	// TopicPrefix is used as a prefix to all MQTT topics published and
	// subscribed to by the agent.
	TopicPrefix string

	// PathPrefix is used as a prefix to all HTTP request paths sent by the
	// agent.
	PathPrefix string
)

// Installation directory prefix and paths. Values are specified by compile-time
// substitution values, and are then set to sane defaults at runtime if the
// value is a zero-value string.
var (
	PrefixDir     string
	SysconfDir    string
	LocalstateDir string
)

// Default directories of the managed Open vSwitch installation. Each default
// applies only when the corresponding environment variable does not override
// it at run time.
var (
	DefaultPackageDataDir string
	DefaultRunDir         string
	DefaultLogDir         string
	DefaultBinDir         string
	DefaultDbDir          string
)

func init() {
	if PrefixDir == "" {
		PrefixDir = "/usr/local"
	}
	if SysconfDir == "" {
		SysconfDir = filepath.Join(PrefixDir, "etc")
	}
	if LocalstateDir == "" {
		LocalstateDir = filepath.Join(PrefixDir, "var")
	}

	if DefaultPackageDataDir == "" {
		DefaultPackageDataDir = filepath.Join(PrefixDir, "share", "openvswitch")
	}
	if DefaultRunDir == "" {
		DefaultRunDir = filepath.Join(LocalstateDir, "run", "openvswitch")
	}
	if DefaultLogDir == "" {
		DefaultLogDir = filepath.Join(LocalstateDir, "log", "openvswitch")
	}
	if DefaultBinDir == "" {
		DefaultBinDir = filepath.Join(PrefixDir, "bin")
	}
	if DefaultDbDir == "" {
		DefaultDbDir = filepath.Join(SysconfDir, "openvswitch")
	}

	if ShortName == "" {
		ShortName = "ovsenv"
	}
	if LongName == "" {
		LongName = "ovsenv"
	}
	if TopicPrefix == "" {
		TopicPrefix = "ovsenv"
	}
	if PathPrefix == "" {
		PathPrefix = "api/ovsenv"
	}
}
