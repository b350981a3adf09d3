package main

import (
	"fmt"
	"os"

	"git.sr.ht/~spc/go-log"

	"github.com/ovsenv/ovsenv"
	internal "github.com/ovsenv/ovsenv/internal/cli"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "ovsenvctl"
	app.Version = ovsenv.Version
	app.Usage = "control and interact with ovsenvd"

	log.SetFlags(0)
	log.SetPrefix("")

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:   "generate-man-page",
			Hidden: true,
		},
		&cli.BoolFlag{
			Name:   "generate-markdown",
			Hidden: true,
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "dirs",
			Usage:       "Print the resolved directory layout",
			Description: "The dirs command resolves the directory layout from the OVS_* environment variables and prints it. With --remote, the layout the running agent resolved at start-up is printed instead.",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "Print output in `FORMAT` (json, table, export or text)",
					Value: "text",
				},
				&cli.BoolFlag{
					Name:  "remote",
					Usage: "Print the layout resolved by the running agent",
				},
			},
			Action: dirsAction,
		},
		{
			Name:        "inventory",
			Usage:       "Print the most recent environment snapshot",
			Description: "The inventory command prints the services, databases and sockets found by the agent's most recent directory scan.",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "Print output in `FORMAT` (json, table or text)",
					Value: "text",
				},
			},
			Action: inventoryAction,
		},
		{
			Name:        "rescan",
			Usage:       "Scan the directories immediately",
			Description: "The rescan command makes the agent scan its directories immediately instead of waiting for the next scheduled scan, and prints the resulting snapshot.",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "Print output in `FORMAT` (json, table or text)",
					Value: "text",
				},
			},
			Action: rescanAction,
		},
		{
			Name:        "status",
			Usage:       "Report the status of the agent and its services",
			Description: "The status command reports whether the agent service is active, whether the agent is reachable on the bus, and the state of the services found by its most recent scan.",
			Action:      statusAction,
		},
		{
			Name:        "wait",
			Usage:       "Wait until named services are running",
			Description: "The wait command scans repeatedly until every named service is running, or until the timeout elapses.",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:     "service",
					Aliases:  []string{"s"},
					Usage:    "Wait for `SERVICE` to run",
					Required: true,
				},
				&cli.DurationFlag{
					Name:    "timeout",
					Aliases: []string{"t"},
					Usage:   "Give up after `DURATION` (0 waits forever)",
					Value:   waitTimeout,
				},
				&cli.DurationFlag{
					Name:  "interval",
					Usage: "Scan every `DURATION`",
					Value: waitInterval,
				},
			},
			Action: waitAction,
		},
		{
			Name:        "journal",
			Usage:       "Print events recorded in the agent's journal",
			Description: "The journal command prints the environment events the agent has recorded. By default entries are retrieved from the running agent and limited to the agent's current session. With --file, a journal database is read directly instead.",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "persistent",
					Usage: "Include entries recorded by earlier agent sessions",
				},
				&cli.StringFlag{
					Name:  "message-id",
					Usage: "Print entries with message ID `UUID`",
				},
				&cli.StringFlag{
					Name:  "event",
					Usage: "Print entries recording `EVENT`",
				},
				&cli.StringFlag{
					Name:  "subject",
					Usage: "Print entries with subject `STRING`",
				},
				&cli.StringFlag{
					Name:  "since",
					Usage: "Print entries recorded at or after `DATETIME`",
				},
				&cli.StringFlag{
					Name:  "until",
					Usage: "Print entries recorded at or before `DATETIME`",
				},
				&cli.StringSliceFlag{
					Name:  "truncate",
					Usage: "Truncate the data field `FIELD=LENGTH`",
				},
				&cli.StringFlag{
					Name:      "file",
					TakesFile: true,
					Usage:     "Read the journal database at `FILE` directly",
				},
				&cli.StringFlag{
					Name:  "format",
					Usage: "Print output in `FORMAT` (json, table or text)",
					Value: "table",
				},
			},
			Action: journalAction,
		},
		{
			Name:        "facts",
			Usage:       "Print facts about the system",
			Description: "The facts command collects and prints the identification facts the agent reports to the server.",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "Print output in `FORMAT` (json or table)",
					Value: "table",
				},
			},
			Action: factsAction,
		},
		{
			Name:        "listen",
			Usage:       "Print events emitted by the agent",
			Description: "The listen command waits for events emitted by the agent on the bus and prints them to the console.",
			Action:      listenAction,
		},
		{
			Name:        "activate",
			Usage:       "Enable and start the agent service",
			Description: "The activate command enables and starts the ovsenvd systemd service.",
			Action:      activateAction,
		},
		{
			Name:        "deactivate",
			Usage:       "Stop and disable the agent service",
			Description: "The deactivate command stops and disables the ovsenvd systemd service.",
			Action:      deactivateAction,
		},
		{
			Name:   "generate",
			Usage:  `Generate messages for publishing to agent "control" topics.`,
			Hidden: true,
			Subcommands: []*cli.Command{
				{
					Name:    "control-message",
					Usage:   "Generate a control message.",
					Aliases: []string{"control"},
					Flags: []cli.Flag{
						&cli.IntFlag{
							Name:    "version",
							Aliases: []string{"v"},
							Value:   1,
							Usage:   "set version to `NUM`",
						},
						&cli.StringFlag{
							Name:    "response-to",
							Aliases: []string{"r"},
							Usage:   "reply to message `UUID`",
						},
						&cli.StringFlag{
							Name:     "type",
							Aliases:  []string{"t"},
							Required: true,
							Usage:    "set message type to `STRING`",
						},
					},
					Action: generateControlMessageAction,
				},
				{
					Name:        "service-files",
					Usage:       "Render D-Bus and systemd service files for the agent.",
					Description: "The service-files command renders the D-Bus activation, D-Bus policy and systemd unit files the agent needs to run on the system bus, and writes them into a directory.",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "program",
							Usage: "Start the agent by executing `PATH`",
							Value: "/usr/sbin/ovsenvd",
						},
						&cli.StringFlag{
							Name:  "user",
							Usage: "Run the agent as `USER`",
							Value: "root",
						},
						&cli.StringFlag{
							Name:  "dir",
							Usage: "Write files into `DIR`",
							Value: ".",
						},
					},
					Action: serviceFilesAction,
				},
			},
		},
	}

	app.Action = func(c *cli.Context) error {
		if c.Bool("generate-man-page") || c.Bool("generate-markdown") {
			type GenerationFunc func() (string, error)
			var generationFunc GenerationFunc
			if c.Bool("generate-man-page") {
				generationFunc = c.App.ToMan
			} else if c.Bool("generate-markdown") {
				generationFunc = c.App.ToMarkdown
			}
			data, err := generationFunc()
			if err != nil {
				return err
			}
			fmt.Println(data)
			return nil
		}

		return cli.ShowAppHelp(c)
	}
	app.EnableBashCompletion = true
	app.BashComplete = internal.BashComplete

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
