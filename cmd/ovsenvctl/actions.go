package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~spc/go-log"

	"github.com/briandowns/spinner"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/client"
	"github.com/ovsenv/ovsenv/internal/journal"
	"github.com/ovsenv/ovsenv/ipc"
	"github.com/urfave/cli/v2"
)

const (
	waitTimeout  = 1 * time.Minute
	waitInterval = 1 * time.Second
)

func dirsAction(c *cli.Context) error {
	var dirs ovsenv.Dirs

	if c.Bool("remote") {
		conn, err := client.Dial()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
		}
		defer conn.Close()

		roles, err := conn.Directories()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot get directories: %w", err), 1)
		}
		dirs = dirsFromRoles(roles)
	} else {
		dirs = ovsenv.DirsFromEnvironment()
	}

	if err := formatDirs(os.Stdout, dirs, c.String("format")); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func inventoryAction(c *cli.Context) error {
	conn, err := client.Dial()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
	}
	defer conn.Close()

	snapshot, err := conn.Inventory()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot get inventory: %w", err), 1)
	}

	if err := formatSnapshot(os.Stdout, snapshot, c.String("format")); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func rescanAction(c *cli.Context) error {
	conn, err := client.Dial()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
	}
	defer conn.Close()

	snapshot, err := conn.Rescan()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot rescan: %w", err), 1)
	}

	if err := formatSnapshot(os.Stdout, snapshot, c.String("format")); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func statusAction(c *cli.Context) error {
	s, err := getStatus()
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Println(s)

	return nil
}

func waitAction(c *cli.Context) error {
	conn, err := client.Dial()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
	}
	defer conn.Close()

	names := c.StringSlice("service")

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" waiting for %v", strings.Join(names, ", "))
	s.Start()
	defer s.Stop()

	var deadline time.Time
	if c.Duration("timeout") > 0 {
		deadline = time.Now().Add(c.Duration("timeout"))
	}

	for {
		snapshot, err := conn.Rescan()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot rescan: %w", err), 1)
		}

		running := map[string]int{}
		for _, service := range snapshot.Services {
			if service.Alive {
				running[service.Name] = service.Pid
			}
		}

		pending := make([]string, 0, len(names))
		for _, name := range names {
			if _, ok := running[name]; !ok {
				pending = append(pending, name)
			}
		}

		if len(pending) == 0 {
			s.Stop()
			for _, name := range names {
				fmt.Printf("%v is running (pid %v)\n", name, running[name])
			}
			return nil
		}
		s.Suffix = fmt.Sprintf(" waiting for %v", strings.Join(pending, ", "))

		if !deadline.IsZero() && time.Now().After(deadline) {
			s.Stop()
			return cli.Exit(fmt.Errorf("timed out waiting for %v", strings.Join(pending, ", ")), 1)
		}
		time.Sleep(c.Duration("interval"))
	}
}

func journalAction(c *cli.Context) error {
	truncateFields, err := parseTruncateFields(c.StringSlice("truncate"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	var entries []map[string]string
	if c.String("file") != "" {
		// A direct read is for when the agent is not running. There is no
		// session to be relative to, so every entry matches as persistent.
		jrnl, err := journal.Open(c.String("file"))
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot open journal: %w", err), 1)
		}
		defer jrnl.Close()

		entries, err = jrnl.GetEntries(journal.Filter{
			Persistent:     true,
			MessageID:      c.String("message-id"),
			Event:          c.String("event"),
			Subject:        c.String("subject"),
			Since:          c.String("since"),
			Until:          c.String("until"),
			TruncateFields: truncateFields,
		})
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot get journal entries: %w", err), 1)
		}
	} else {
		conn, err := client.Dial()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
		}
		defer conn.Close()

		entries, err = conn.Journal(client.Filter{
			Persistent:     c.Bool("persistent"),
			MessageID:      c.String("message-id"),
			Event:          c.String("event"),
			Subject:        c.String("subject"),
			Since:          c.String("since"),
			Until:          c.String("until"),
			TruncateFields: truncateFields,
		})
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot get journal entries: %w", err), 1)
		}
	}

	if err := formatEntries(os.Stdout, entries, c.String("format")); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func factsAction(c *cli.Context) error {
	facts, err := ovsenv.GetFacts()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot get facts: %w", err), 1)
	}

	if err := formatFacts(os.Stdout, facts, c.String("format")); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func listenAction(ctx *cli.Context) error {
	conn, err := client.Dial()
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
	}
	defer conn.Close()

	err = conn.WatchEvents(func(code ipc.EventCode, subject string) {
		log.Printf("%v: %v", code, subject)
	})
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot watch events: %w", err), 1)
	}

	select {}
}

func activateAction(c *cli.Context) error {
	if err := activate(); err != nil {
		return cli.Exit(fmt.Errorf("cannot activate agent: %w", err), 1)
	}

	return nil
}

func deactivateAction(c *cli.Context) error {
	if err := deactivate(); err != nil {
		return cli.Exit(fmt.Errorf("cannot deactivate agent: %w", err), 1)
	}

	return nil
}

func generateControlMessageAction(ctx *cli.Context) error {
	var err error
	var content []byte
	var reader io.Reader
	if ctx.Args().First() == "-" {
		reader = os.Stdin
	} else {
		reader, err = os.Open(ctx.Args().First())
	}
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot open file for reading: %w", err), 1)
	}
	content, err = io.ReadAll(reader)
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot read data: %w", err), 1)
	}

	data, err := generateMessage(
		ctx.String("type"),
		ctx.String("response-to"),
		content,
		ctx.Int("version"),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("cannot marshal message: %w", err), 1)
	}

	fmt.Println(string(data))

	return nil
}

// parseTruncateFields parses FIELD=LENGTH pairs into the truncation map a
// journal filter carries.
func parseTruncateFields(pairs []string) (map[string]int, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	fields := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("cannot parse truncate field '%v': expected FIELD=LENGTH", pair)
		}
		length, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cannot parse truncate field '%v': %w", pair, err)
		}
		fields[parts[0]] = length
	}

	return fields, nil
}
