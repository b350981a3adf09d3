// Package inventory scans the directories of a resolved installation layout
// and produces point-in-time snapshots of the Open vSwitch runtime
// environment found there.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/ovsenv/ovsenv"
	"golang.org/x/sys/unix"
)

// A Scanner examines a directory layout and reports what it finds there.
// Scanning is strictly read-only; a directory that does not exist is
// recorded as absent and otherwise skipped.
type Scanner struct {
	dirs     ovsenv.Dirs
	patterns []string
}

// NewScanner creates a Scanner for the given layout. patterns is the list of
// glob patterns matched against file names in the database directory; when
// empty, a default matching conventional database file names is used.
func NewScanner(dirs ovsenv.Dirs, patterns []string) (*Scanner, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.db"}
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("cannot compile database pattern '%v'", pattern)
		}
	}
	return &Scanner{dirs: dirs, patterns: patterns}, nil
}

// Scan takes a snapshot of the environment under the scanner's layout.
func (s *Scanner) Scan() (*ovsenv.Snapshot, error) {
	snap := ovsenv.Snapshot{
		Taken: time.Now().UTC(),
		Dirs:  s.dirs,
	}

	for _, role := range []struct {
		name string
		path string
	}{
		{"pkgdatadir", s.dirs.PackageDataDir},
		{"rundir", s.dirs.RunDir},
		{"logdir", s.dirs.LogDir},
		{"bindir", s.dirs.BinDir},
		{"dbdir", s.dirs.DbDir},
	} {
		info, err := os.Stat(role.path)
		snap.DirStates = append(snap.DirStates, ovsenv.DirState{
			Role:    role.name,
			Path:    role.path,
			Present: err == nil && info.IsDir(),
		})
	}

	services, sockets, err := s.scanRunDir()
	if err != nil {
		return nil, err
	}
	snap.Services = services
	snap.Sockets = sockets

	snap.Databases, err = s.scanDatabases()
	if err != nil {
		return nil, err
	}

	snap.Schemas, err = s.scanSchemas()
	if err != nil {
		return nil, err
	}

	snap.Binaries, err = s.scanBinaries()
	if err != nil {
		return nil, err
	}

	return &snap, nil
}

// scanRunDir examines the run directory for daemon pidfiles and sockets.
// Pidfile entries become service records; names with a ".sock" suffix become
// socket records. Control sockets surface through the service records that
// own them instead.
func (s *Scanner) scanRunDir() ([]ovsenv.Service, []ovsenv.Socket, error) {
	entries, err := os.ReadDir(s.dirs.RunDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("run directory '%v' does not exist", s.dirs.RunDir)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("cannot read run directory '%v': %w", s.dirs.RunDir, err)
	}

	var services []ovsenv.Service
	var sockets []ovsenv.Socket
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".pid"):
			service, err := s.readPidFile(name)
			if err != nil {
				log.Warnf("cannot read pidfile '%v': %v", name, err)
				continue
			}
			services = append(services, *service)
		case strings.HasSuffix(name, ".sock"):
			sockets = append(sockets, ovsenv.Socket{
				Path: filepath.Join(s.dirs.RunDir, name),
			})
		}
	}

	return services, sockets, nil
}

// readPidFile derives a service record from the named pidfile.
func (s *Scanner) readPidFile(name string) (*ovsenv.Service, error) {
	program := strings.TrimSuffix(name, ".pid")
	path := filepath.Join(s.dirs.RunDir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("cannot parse pid from '%v': %w", path, err)
	}

	service := ovsenv.Service{
		Name:    program,
		Pid:     pid,
		PidFile: path,
		Alive:   processAlive(pid),
	}

	controlSocket := s.dirs.ControlSocket(program, pid)
	if _, err := os.Stat(controlSocket); err == nil {
		service.ControlSocket = controlSocket
	}

	return &service, nil
}

// scanDatabases examines the database directory for files matching the
// scanner's database patterns.
func (s *Scanner) scanDatabases() ([]ovsenv.Database, error) {
	var databases []ovsenv.Database
	seen := make(map[string]bool)
	for _, pattern := range s.patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(s.dirs.DbDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("cannot glob database pattern '%v': %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true

			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			databases = append(databases, ovsenv.Database{
				Path:     match,
				Size:     info.Size(),
				Modified: info.ModTime().UTC(),
			})
		}
	}

	sort.Slice(databases, func(i, j int) bool {
		return databases[i].Path < databases[j].Path
	})

	return databases, nil
}

// scanSchemas examines the package data directory for installed database
// schema files.
func (s *Scanner) scanSchemas() ([]string, error) {
	entries, err := os.ReadDir(s.dirs.PackageDataDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("package data directory '%v' does not exist", s.dirs.PackageDataDir)
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read package data directory '%v': %w", s.dirs.PackageDataDir, err)
	}

	var schemas []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".ovsschema") {
			schemas = append(schemas, filepath.Join(s.dirs.PackageDataDir, entry.Name()))
		}
	}
	return schemas, nil
}

// scanBinaries examines the bin directory for installed switch executables.
func (s *Scanner) scanBinaries() ([]string, error) {
	entries, err := os.ReadDir(s.dirs.BinDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("bin directory '%v' does not exist", s.dirs.BinDir)
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read bin directory '%v': %w", s.dirs.BinDir, err)
	}

	var binaries []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "ovs") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() || info.Mode()&0111 == 0 {
			continue
		}
		binaries = append(binaries, filepath.Join(s.dirs.BinDir, entry.Name()))
	}
	return binaries, nil
}

// processAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering a signal; EPERM still
// proves existence.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
