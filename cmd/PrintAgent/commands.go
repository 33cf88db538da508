package main

import (
	"encoding/json"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/adcondev/print-agent/internal/arbiter"
	"github.com/adcondev/print-agent/internal/printer"
	"github.com/adcondev/print-agent/internal/transport"
)

// enumerator is replaced in tests.
var enumerator = printer.DefaultEnumerator

func newLogger(cmd *cobra.Command, verbose bool) *log.Logger {
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{ReportTimestamp: true})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newPrintersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "printers",
		Short: "List installed printers with their classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			d := printer.NewDiscovery(enumerator(), cfg.PrinterCacheTTL, newLogger(cmd, cfg.Verbose))
			printers, err := d.GetPrinters(cmd.Context(), true)
			if err != nil {
				return err
			}
			if printers == nil {
				printers = []printer.Descriptor{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(printers)
		},
	}
}

func newStopCmd(opts *globalOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the running agent to shut down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if token == "" {
				token = cfg.ShutdownToken
			}
			url := cfg.ShutdownURL()
			if err := arbiter.RequestShutdown(cmd.Context(), nil, url, token); err != nil {
				return err
			}
			newLogger(cmd, cfg.Verbose).Info("Shutdown acknowledged", "url", url)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", os.Getenv("PRINT_AGENT_SHUTDOWN_TOKEN"), "shutdown token")
	return cmd
}

func newEmulatorCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Run a TCP printer emulator that logs received ESC/POS jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.EmulatorAddr
			}
			srv := &transport.EmulatorServer{
				Addr:   addr,
				Logger: newLogger(cmd, cfg.Verbose).WithPrefix("EMULATOR"),
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+transport.DefaultEmulatorAddr+")")
	return cmd
}
