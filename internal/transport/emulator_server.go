package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// readTimeout bounds how long a sender may stay idle.
const readTimeout = 30 * time.Second

// Received is one byte stream accepted by the emulator.
type Received struct {
	Remote string
	Data   []byte
	At     time.Time
}

// EmulatorServer stands in for a thermal printer during development. Each
// connection is one job; its bytes are logged as text and hex.
type EmulatorServer struct {
	Addr   string
	Logger *log.Logger
	// OnReceive sees every completed job.
	OnReceive func(Received)

	wg sync.WaitGroup
}

// ListenAndServe listens on Addr and serves until ctx is done.
func (s *EmulatorServer) ListenAndServe(ctx context.Context) error {
	addr := s.Addr
	if addr == "" {
		addr = DefaultEmulatorAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for
// in-progress jobs.
func (s *EmulatorServer) Serve(ctx context.Context, ln net.Listener) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Info("Printer emulator listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn, logger)
		}()
	}
}

func (s *EmulatorServer) handle(conn net.Conn, logger *log.Logger) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	data, err := io.ReadAll(conn)
	if err != nil {
		logger.Warn("Emulator read failed", "remote", conn.RemoteAddr().String(), "bytes", len(data), "error", err)
	}
	if len(data) == 0 {
		return
	}

	job := Received{Remote: conn.RemoteAddr().String(), Data: data, At: time.Now()}
	logger.Info("Emulator received job", "remote", job.Remote, "bytes", len(data))
	for _, line := range strings.Split(strings.TrimRight(Preview(data), "\n"), "\n") {
		logger.Info("│ " + line)
	}
	logger.Debug("Raw bytes\n" + hex.Dump(data))

	if s.OnReceive != nil {
		s.OnReceive(job)
	}
}

// Preview returns the printable text of an ESC/POS stream with command
// sequences removed.
func Preview(data []byte) string {
	var sb strings.Builder
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == 0x1B || c == 0x1D:
			i += commandLen(data[i:]) - 1
		case c == '\n':
			sb.WriteByte('\n')
		case c >= 0x20 && c < 0x7F:
			sb.WriteByte(c)
		case c >= 0x80:
			sb.WriteByte('?')
		}
	}
	return sb.String()
}

// commandLen is the length of the command starting at seq[0].
func commandLen(seq []byte) int {
	n := 3
	if len(seq) > 1 {
		switch {
		case seq[0] == 0x1B && seq[1] == '@':
			n = 2
		case seq[0] == 0x1D && seq[1] == 'V' && len(seq) > 2 && seq[2] >= 'A':
			n = 4
		}
	}
	return min(n, len(seq))
}
