// Package transport delivers ESC/POS byte streams to a printer.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/adcondev/print-agent/internal/spool"
)

// DefaultEmulatorAddr is where the development emulator listens.
const DefaultEmulatorAddr = "127.0.0.1:8100"

const (
	// DialTimeout bounds the emulator connection attempt.
	DialTimeout = 5 * time.Second
	// WriteTimeout bounds a whole delivery.
	WriteTimeout = 30 * time.Second
)

// Transport sends a finished byte stream to printer.
type Transport interface {
	Send(ctx context.Context, printer string, data []byte) error
	Name() string
}

// Emulator writes the stream to a TCP endpoint. The printer name is only
// logged by the receiving side.
type Emulator struct {
	Addr string
}

// Name implements Transport.
func (e Emulator) Name() string { return "emulator " + e.addr() }

func (e Emulator) addr() string {
	if e.Addr == "" {
		return DefaultEmulatorAddr
	}
	return e.Addr
}

// Send implements Transport.
func (e Emulator) Send(ctx context.Context, _ string, data []byte) error {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", e.addr())
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	n, err := conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// RawPrinter submits the stream as a raw spooler job.
type RawPrinter struct {
	Spooler spool.Spooler
}

// Name implements Transport.
func (RawPrinter) Name() string { return "raw spooler" }

// Send implements Transport.
func (r RawPrinter) Send(ctx context.Context, printer string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return r.Spooler.RawPrint(ctx, printer, data)
}

// ForEnvironment picks the raw spooler in production and the emulator
// everywhere else.
func ForEnvironment(production bool, emulatorAddr string, spooler spool.Spooler) Transport {
	if production {
		return RawPrinter{Spooler: spooler}
	}
	return Emulator{Addr: emulatorAddr}
}
