// Package spool hands finished documents to the operating system's print
// spooler.
package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoPrinter is returned when a job names no destination.
var ErrNoPrinter = errors.New("no printer specified")

// JobName is the title the spooler shows for agent jobs.
const JobName = "print-agent"

// Spooler submits jobs to an installed printer.
type Spooler interface {
	// RawPrint sends bytes the printer understands natively, bypassing
	// the driver.
	RawPrint(ctx context.Context, printer string, data []byte) error
	// PrintPDF prints a rendered PDF document through the driver.
	PrintPDF(ctx context.Context, printer string, pdf []byte) error
}

// StdinRunner runs a command with stdin attached and returns its combined
// output.
type StdinRunner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func execStdin(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	return cmd.CombinedOutput()
}

// LP submits jobs through the CUPS lp command.
type LP struct {
	Run StdinRunner
}

// RawPrint implements Spooler.
func (l LP) RawPrint(ctx context.Context, printer string, data []byte) error {
	return l.submit(ctx, printer, data, "-o", "raw")
}

// PrintPDF implements Spooler.
func (l LP) PrintPDF(ctx context.Context, printer string, pdf []byte) error {
	return l.submit(ctx, printer, pdf, "-o", "fit-to-page")
}

func (l LP) submit(ctx context.Context, printer string, data []byte, opts ...string) error {
	if printer == "" {
		return ErrNoPrinter
	}
	run := l.Run
	if run == nil {
		run = execStdin
	}

	args := append([]string{"-d", printer, "-t", JobName}, opts...)
	out, err := run(ctx, data, "lp", args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("lp %s: %w: %s", printer, err, msg)
		}
		return fmt.Errorf("lp %s: %w", printer, err)
	}
	return nil
}
