package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ovsenv/ovsenv"
)

// dirRows returns the directory layout as ordered (role, variable, path)
// rows.
func dirRows(dirs ovsenv.Dirs) [][3]string {
	return [][3]string{
		{"pkgdatadir", ovsenv.EnvPackageDataDir, dirs.PackageDataDir},
		{"rundir", ovsenv.EnvRunDir, dirs.RunDir},
		{"logdir", ovsenv.EnvLogDir, dirs.LogDir},
		{"bindir", ovsenv.EnvBinDir, dirs.BinDir},
		{"dbdir", ovsenv.EnvDbDir, dirs.DbDir},
	}
}

// dirsFromRoles builds a layout from the role map returned by the agent.
func dirsFromRoles(roles map[string]string) ovsenv.Dirs {
	return ovsenv.Dirs{
		PackageDataDir: roles["pkgdatadir"],
		RunDir:         roles["rundir"],
		LogDir:         roles["logdir"],
		BinDir:         roles["bindir"],
		DbDir:          roles["dbdir"],
	}
}

// formatDirs writes the directory layout to w in the named format. The
// "export" format prints shell assignments suitable for eval.
func formatDirs(w io.Writer, dirs ovsenv.Dirs, format string) error {
	switch format {
	case "json":
		data, err := json.Marshal(dirs)
		if err != nil {
			return fmt.Errorf("cannot marshal directories: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "table":
		writer := tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
		fmt.Fprintf(writer, "ROLE\tVARIABLE\tPATH\n")
		for _, row := range dirRows(dirs) {
			fmt.Fprintf(writer, "%v\t%v\t%v\n", row[0], row[1], row[2])
		}
		return writer.Flush()
	case "export":
		for _, row := range dirRows(dirs) {
			fmt.Fprintf(w, "export %v='%v'\n", row[1], row[2])
		}
	case "text":
		for _, row := range dirRows(dirs) {
			fmt.Fprintf(w, "%v: %v\n", row[0], row[2])
		}
	default:
		return fmt.Errorf("unknown format type: %v", format)
	}

	return nil
}

// formatSnapshot writes a snapshot to w in the named format.
func formatSnapshot(w io.Writer, snapshot *ovsenv.Snapshot, format string) error {
	switch format {
	case "json":
		data, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("cannot marshal snapshot: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "table":
		writer := tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
		fmt.Fprintf(writer, "SERVICE\tPID\tALIVE\tSOCKET\n")
		for _, service := range snapshot.Services {
			fmt.Fprintf(writer, "%v\t%v\t%v\t%v\n", service.Name, service.Pid, service.Alive, service.ControlSocket)
		}
		if err := writer.Flush(); err != nil {
			return err
		}
		if len(snapshot.Databases) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintf(writer, "DATABASE\tSIZE\tMODIFIED\n")
			for _, database := range snapshot.Databases {
				fmt.Fprintf(writer, "%v\t%v\t%v\n", database.Path, database.Size, database.Modified.Format(time.RFC3339))
			}
			if err := writer.Flush(); err != nil {
				return err
			}
		}
		if len(snapshot.Sockets) > 0 {
			fmt.Fprintln(w)
			for _, socket := range snapshot.Sockets {
				fmt.Fprintf(w, "%v\n", socket.Path)
			}
		}
	case "text":
		fmt.Fprintf(w, "taken: %v\n", snapshot.Taken.Format(time.RFC3339))
		for _, service := range snapshot.Services {
			state := "dead"
			if service.Alive {
				state = "alive"
			}
			fmt.Fprintf(w, "service %v: pid %v, %v\n", service.Name, service.Pid, state)
		}
		for _, database := range snapshot.Databases {
			fmt.Fprintf(w, "database %v: %v bytes\n", database.Path, database.Size)
		}
		for _, socket := range snapshot.Sockets {
			fmt.Fprintf(w, "socket %v\n", socket.Path)
		}
	default:
		return fmt.Errorf("unknown format type: %v", format)
	}

	return nil
}

// formatEntries writes journal entries to w in the named format.
func formatEntries(w io.Writer, entries []map[string]string, format string) error {
	switch format {
	case "json":
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("cannot marshal journal entries: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "table":
		writer := tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
		fmt.Fprintf(writer, "SENT\tEVENT\tSUBJECT\tMESSAGE ID\tDATA\n")
		for _, entry := range entries {
			fmt.Fprintf(writer, "%v\t%v\t%v\t%v\t%v\n", entry["sent"], entry["event"], entry["subject"], entry["message_id"], entry["data"])
		}
		return writer.Flush()
	case "text":
		for _, entry := range entries {
			fmt.Fprintf(w, "%v %v %v %v\n", entry["sent"], entry["event"], entry["subject"], entry["data"])
		}
	default:
		return fmt.Errorf("unknown format type: %v", format)
	}

	return nil
}

// formatFacts writes facts to w in the named format.
func formatFacts(w io.Writer, facts *ovsenv.Facts, format string) error {
	switch format {
	case "json":
		data, err := json.Marshal(facts)
		if err != nil {
			return fmt.Errorf("cannot marshal facts: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "table":
		rows := [][2]string{
			{"machine_id", facts.MachineID},
			{"boot_id", facts.BootID},
			{"kernel_release", facts.KernelRelease},
			{"ip_addresses", strings.Join(facts.IPAddresses, ", ")},
			{"mac_addresses", strings.Join(facts.MACAddresses, ", ")},
			{"fqdn", facts.FQDN},
		}
		writer := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, row := range rows {
			fmt.Fprintf(writer, "%v\t%v\n", row[0], row[1])
		}
		return writer.Flush()
	default:
		return fmt.Errorf("unknown format type: %v", format)
	}

	return nil
}
