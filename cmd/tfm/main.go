// Command tfm is the terminal dual-pane file manager's entrypoint
// (spec.md §6, "CLI surface (consumed only)"), wiring together every core
// package behind a cobra/pflag command the way the teacher's cmd/cmd.go
// wires rclone's subcommands behind a cobra.Command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shimomut/tfm-sub008/internal/config"
	"github.com/shimomut/tfm-sub008/internal/termui"
)

var opts struct {
	left          string
	right         string
	configPath    string
	colorScheme   string
	remoteLogPort int
	debug         bool
}

func main() {
	root := &cobra.Command{
		Use:   "tfm",
		Short: "Terminal dual-pane file manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.left, "left", "", "starting path for the left pane (defaults to persisted state or cwd)")
	flags.StringVar(&opts.right, "right", "", "starting path for the right pane (defaults to persisted state or cwd)")
	flags.StringVar(&opts.configPath, "config", "~/.tfm/config.yaml", "path to the config file")
	flags.StringVar(&opts.colorScheme, "color-scheme", "", "override color_scheme (dark|light)")
	flags.IntVar(&opts.remoteLogPort, "remote-log-port", 0, "also ship log entries to a TCP listener on 127.0.0.1:PORT (0 disables)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug-level logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(termui.Stderr(), err)
		os.Exit(1)
	}
}

func runMain() error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.colorScheme != "" {
		cfg.ColorScheme = config.ColorScheme(opts.colorScheme)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run()
}
