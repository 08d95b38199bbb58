// ABOUTME: Entry point for coven-feeds, an RSS/Atom to Matrix relay
// ABOUTME: Defines the CLI commands and resolves config and data paths

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                         __               _
  ___ _____   _____ _ __        / _| ___  ___  __| |___
 / __/ _ \ \ / / _ \ '_ \ _____| |_ / _ \/ _ \/ _' / __|
| (_| (_) \ V /  __/ | | |_____|  _|  __/  __/ (_| \__ \
 \___\___/ \_/ \___|_| |_|     |_|  \___|\___|\__,_|___/
`

// getConfigPath returns the default config file location.
// Priority: COVEN_FEEDS_CONFIG (via the --config flag) > XDG_CONFIG_HOME/coven/feeds.toml > ~/.config/coven/feeds.toml
func getConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "feeds.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "feeds.toml")
}

// getDataPath returns the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the config file (.toml, .yaml or .json)",
		Value:   getConfigPath(),
		EnvVars: []string{"COVEN_FEEDS_CONFIG"},
	}
	dryRunFlag := &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "log posts instead of sending them to Matrix",
	}

	return &cli.App{
		Name:    "coven-feeds",
		Usage:   "Relay RSS and Atom feeds into Matrix rooms",
		Version: version,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Poll every feed on the configured interval until interrupted",
				Flags:  []cli.Flag{dryRunFlag},
				Action: func(c *cli.Context) error { return runRelay(c, true) },
			},
			{
				Name:   "once",
				Usage:  "Process every feed once and exit",
				Flags:  []cli.Flag{dryRunFlag},
				Action: func(c *cli.Context) error { return runRelay(c, false) },
			},
			{
				Name:   "init",
				Usage:  "Create a config file interactively",
				Action: runInit,
			},
			{
				Name:      "normalize",
				Usage:     "Print the identity each URL is deduplicated by",
				ArgsUsage: "URL...",
				Action:    runNormalize,
			},
			{
				Name:  "cache",
				Usage: "Inspect stored URL caches and deliveries",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "Print the identities stored for a feed and chat",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "chat", Usage: "chat (room) ID", Required: true},
							&cli.StringFlag{Name: "feed", Usage: "feed URL", Required: true},
						},
						Action: runCacheShow,
					},
					{
						Name:  "deliveries",
						Usage: "Print recent delivery attempts for a feed",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "feed", Usage: "feed URL", Required: true},
							&cli.IntFlag{Name: "limit", Usage: "maximum rows, 0 for all", Value: 20},
						},
						Action: runCacheDeliveries,
					},
				},
			},
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
