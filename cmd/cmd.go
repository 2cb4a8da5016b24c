// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// researchCommand handles research task operations
func researchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "research",
		Aliases: []string{"r"},
		Usage:   "Run and manage research tasks",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Submit a research query and follow it to completion",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "depth",
						Aliases: []string{"d"},
						Usage:   "Research depth (quick, standard, comprehensive)",
						Value:   "standard",
					},
					&cli.IntFlag{
						Name:  "max-sources",
						Usage: "Maximum number of sources to consult (5-50)",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the final report to a file",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the final result as JSON",
					},
				},
				Action: r.ResearchRun,
			},
			{
				Name:  "status",
				Usage: "Fetch the current status of a task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "task-id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.ResearchStatus,
			},
			{
				Name:  "result",
				Usage: "Fetch the final report of a completed task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "task-id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ResearchResult,
			},
			{
				Name:  "cancel",
				Usage: "Cancel a running task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "task-id"},
				},
				Action: r.ResearchCancel,
			},
		},
	}
}

// historyCommand handles the local query record
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse previously submitted queries",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent queries, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "search",
				Usage: "Search past queries by text",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "term"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistorySearch,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with username/email and password",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Password (prompted when omitted)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the current session state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "End the session and remove saved credentials",
				Action: r.AuthLogout,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a starter config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the local history database",
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for following a research task.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Submit a query and follow it in an interactive terminal UI",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "depth",
				Aliases: []string{"d"},
				Usage:   "Research depth (quick, standard, comprehensive)",
				Value:   "standard",
			},
			&cli.IntFlag{
				Name:  "max-sources",
				Usage: "Maximum number of sources to consult (5-50)",
				Value: 20,
			},
		},
		Action: r.TUI,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		researchCommand, historyCommand, authCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}
