package main

import (
	"fmt"
	"syscall"

	"github.com/judwhite/go-svc"
	"github.com/spf13/cobra"

	"github.com/adcondev/print-agent/internal/config"
	"github.com/adcondev/print-agent/internal/daemon"
)

// globalOptions are shared by every command.
type globalOptions struct {
	env        string
	configPath string
	verbose    bool
}

func (g *globalOptions) load() (config.Environment, error) {
	cfg, err := config.Load(config.ResolveName(g.env), g.configPath)
	if err != nil {
		return config.Environment{}, err
	}
	if g.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	var console bool

	root := &cobra.Command{
		Use:   "print-agent",
		Short: "Local print agent for POS web clients",
		Long: `print-agent exposes the workstation's printers to browser clients on
127.0.0.1: thermal receipts are rendered to ESC/POS and HTML documents are
printed through a headless browser.`,
		Version:      fmt.Sprintf("%s (%s %s)", config.BuildEnvironment, config.BuildDate, config.BuildTime),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prg := daemon.New(daemon.Options{
				Env:        opts.env,
				ConfigPath: opts.configPath,
				Verbose:    opts.verbose,
				Console:    console,
			})
			return svc.Run(prg, syscall.SIGINT, syscall.SIGTERM)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.env, "env", "e", "", "environment: production or development (default from "+config.EnvVar+")")
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML file overriding environment settings")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().BoolVar(&console, "console", false, "mirror the log to stderr")

	root.AddCommand(newPrintersCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newEmulatorCmd(opts))

	return root
}
