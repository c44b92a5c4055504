package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"ssh-session-launcher/pkg/secretfile"
)

func main() {
	cmd := &cli.Command{
		Name:      "ssh-launcher",
		Usage:     "Pick a host and open an SSH session in tmux or iTerm2, with passwords kept in the system keychain",
		ArgsUsage: "[filter]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the host config (YAML, or the legacy JSON file)",
				Sources: cli.EnvVars("SSH_LAUNCHER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug|info|warn|error",
				Value:   "info",
				Sources: cli.EnvVars("SSH_LAUNCHER_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Debug logging",
			},
			&cli.StringFlag{
				Name:    "terminal",
				Aliases: []string{"t"},
				Usage:   "Where to open sessions: auto|tmux|iterm",
				Value:   "auto",
				Sources: cli.EnvVars("SSH_LAUNCHER_TERMINAL"),
			},
			&cli.StringFlag{
				Name:    "theme",
				Usage:   "Picker colors: dark|catppuccin|none",
				Sources: cli.EnvVars("SSH_LAUNCHER_THEME"),
			},
			&cli.BoolFlag{
				Name:  "simple",
				Usage: "Numbered menu instead of the interactive picker",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the command that would run; no secret file, no terminal",
			},
		},
		Action: runConnect,
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List configured hosts",
				ArgsUsage: "[filter]",
				Action:    runList,
			},
			{
				Name:   "debug",
				Usage:  "Check keychain access and stored passwords",
				Action: runDebug,
			},
			{
				Name:  "password",
				Usage: "Manage stored passwords",
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "Prompt for a host's password and store it",
						ArgsUsage: "<host name>",
						Action:    runPasswordSet,
					},
				},
			},
			{
				Name:  "add",
				Usage: "Add a host to the config, prompting for anything not given as a flag",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "hostname", Usage: "Hostname or IP address"},
					&cli.StringFlag{Name: "username", Usage: "Login name"},
					&cli.IntFlag{Name: "port", Usage: "SSH port (default 22)"},
					&cli.StringFlag{Name: "auth", Usage: "password|key"},
					&cli.StringFlag{Name: "key", Usage: "Private key path for key auth"},
					&cli.StringFlag{Name: "profile", Usage: "iTerm2 profile"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
					&cli.BoolFlag{Name: "store-password", Usage: "Prompt for the password and store it (asks when unset)"},
				},
				Action: runAdd,
			},
			{
				Name:   "init",
				Usage:  "Write a sample config if none exists",
				Action: runInit,
			},
			{
				Name:  "ui",
				Usage: "Serve the host tile view in the browser",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: "127.0.0.1",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port (7890 with --silent)",
						Value: 7860,
					},
					&cli.BoolFlag{
						Name:  "silent",
						Usage: "Run in the background and return",
					},
				},
				Action: runUI,
			},
			{
				Name:      cleanupCommand,
				Hidden:    true,
				ArgsUsage: "<secret file>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "after",
						Value: secretfile.DefaultGrace,
					},
				},
				Action: runCleanupSecret,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ssh-launcher: %v\n", err)
		os.Exit(1)
	}
}
