// Package arbiter settles which process owns the agent's ports. The
// newest process wins: it asks the incumbent to shut down and, when
// that fails, reclaims the ports by force.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/adcondev/print-agent/internal/auth"
	"github.com/adcondev/print-agent/internal/instance"
	workererrors "github.com/adcondev/print-agent/internal/worker/errors"
)

// State is a step of the arbitration state machine.
type State string

const (
	StateStart                   State = "START"
	StateCheckPorts              State = "CHECK_PORTS"
	StateFree                    State = "FREE"
	StateListen                  State = "LISTEN"
	StateRunning                 State = "RUNNING"
	StateBusy                    State = "BUSY"
	StateGracefulShutdownRequest State = "GRACEFUL_SHUTDOWN_REQUEST"
	StateRecheck                 State = "RECHECK"
	StateStillBusy               State = "STILL_BUSY"
	StateForceReclaim            State = "FORCE_RECLAIM"
	StateRetryOrFail             State = "RETRY_OR_FAIL"
)

// Defaults for the retry policy.
const (
	DefaultAttempts        = 3
	DefaultBackoff         = 2 * time.Second
	DefaultGrace           = 3 * time.Second
	DefaultShutdownTimeout = 2 * time.Second
	pollInterval           = 100 * time.Millisecond
)

// TokenHeader carries the shutdown token when one is configured.
const TokenHeader = auth.TokenHeader

// ErrReclaimUnsupported is returned by reapers on platforms without port
// introspection. Arbitration gives up immediately when it sees it.
var ErrReclaimUnsupported = errors.New("forced port reclamation is not supported on this platform")

// Reaper terminates the processes bound to a local TCP port.
type Reaper interface {
	Reclaim(ctx context.Context, port int) error
}

// ReaperFunc adapts a function to Reaper.
type ReaperFunc func(ctx context.Context, port int) error

// Reclaim implements Reaper.
func (f ReaperFunc) Reclaim(ctx context.Context, port int) error { return f(ctx, port) }

// Locker is the single-instance lock taken before arbitration.
type Locker interface {
	TryLock() error
}

// Arbiter runs the port arbitration protocol for a set of addresses.
type Arbiter struct {
	Addrs       []string
	ShutdownURL string
	// Token is sent with the shutdown request when set.
	Token    string
	Client   *http.Client
	Reaper   Reaper
	Attempts int
	Backoff  time.Duration
	// Grace is how long an incumbent gets to release its ports.
	Grace time.Duration
	// Observer sees every state transition.
	Observer func(State)
	Logger   *log.Logger

	state State
}

// New returns an Arbiter with the default policy and the platform reaper.
func New(addrs []string, shutdownURL string, logger *log.Logger) *Arbiter {
	if logger == nil {
		logger = log.Default()
	}
	return &Arbiter{
		Addrs:       addrs,
		ShutdownURL: shutdownURL,
		Client:      &http.Client{Timeout: DefaultShutdownTimeout},
		Reaper:      DefaultReaper(),
		Attempts:    DefaultAttempts,
		Backoff:     DefaultBackoff,
		Grace:       DefaultGrace,
		Logger:      logger,
	}
}

// State returns the last state entered.
func (a *Arbiter) State() State { return a.state }

func (a *Arbiter) enter(s State) {
	a.state = s
	a.logger().Debug("arbitration", "state", s)
	if a.Observer != nil {
		a.Observer(s)
	}
}

func (a *Arbiter) logger() *log.Logger {
	if a.Logger == nil {
		return log.Default()
	}
	return a.Logger
}

func (a *Arbiter) attempts() int {
	if a.Attempts <= 0 {
		return DefaultAttempts
	}
	return a.Attempts
}

// Acquire runs the protocol and returns one bound listener per address,
// in order. It fails with a STARTUP error once the attempts are spent.
func (a *Arbiter) Acquire(ctx context.Context) ([]net.Listener, error) {
	a.enter(StateStart)
	attempts := a.attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		a.enter(StateCheckPorts)
		busy := a.ProbePorts()
		if len(busy) == 0 {
			if ls, err := a.listen(); err == nil {
				return ls, nil
			}
			// Lost a race between probe and bind; treat as busy.
			busy = a.ProbePorts()
		}
		if len(busy) > 0 {
			a.enter(StateBusy)
			a.logger().Warn("⚠️ Ports in use", "addrs", busy, "attempt", attempt)

			ls, err := a.reclaim(ctx, busy)
			if ls != nil {
				return ls, nil
			}
			if err != nil {
				a.enter(StateRetryOrFail)
				return nil, workererrors.Wrap(workererrors.CodeStartup, err, "ports %v are held by another process", busy)
			}
		}

		a.enter(StateRetryOrFail)
		if attempt < attempts {
			if err := sleep(ctx, a.Backoff); err != nil {
				return nil, workererrors.Wrap(workererrors.CodeStartup, err, "arbitration cancelled")
			}
		}
	}
	return nil, workererrors.New(workererrors.CodeStartup, "could not reclaim ports %v after %d attempts", a.Addrs, attempts)
}

// reclaim asks the incumbent to leave, then forces it out. It returns
// listeners as soon as the ports are bound.
func (a *Arbiter) reclaim(ctx context.Context, busy []string) ([]net.Listener, error) {
	a.enter(StateGracefulShutdownRequest)
	if err := a.RequestShutdown(ctx); err != nil {
		a.logger().Info("Incumbent did not accept shutdown", "err", err)
	} else {
		a.logger().Info("📨 Incumbent accepted shutdown")
	}

	a.enter(StateRecheck)
	if a.waitFree(ctx) {
		if ls, err := a.listen(); err == nil {
			return ls, nil
		}
	}
	a.enter(StateStillBusy)

	a.enter(StateForceReclaim)
	if err := a.forceReclaim(ctx, a.ProbePorts()); errors.Is(err, ErrReclaimUnsupported) {
		return nil, err
	} else if err != nil {
		a.logger().Warn("⚠️ Reclaim failed", "err", err)
	}

	a.enter(StateRecheck)
	if a.waitFree(ctx) {
		if ls, err := a.listen(); err == nil {
			return ls, nil
		}
	}
	a.enter(StateStillBusy)
	return nil, nil
}

func (a *Arbiter) forceReclaim(ctx context.Context, busy []string) error {
	if a.Reaper == nil {
		return ErrReclaimUnsupported
	}
	var errs []error
	for _, addr := range busy {
		port, err := portOf(addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a.logger().Warn("🔪 Force-reclaiming port", "port", port)
		if err := a.Reaper.Reclaim(ctx, port); err != nil {
			if errors.Is(err, ErrReclaimUnsupported) {
				return err
			}
			errs = append(errs, fmt.Errorf("port %d: %w", port, err))
		}
	}
	return errors.Join(errs...)
}

// listen binds every address, or none.
func (a *Arbiter) listen() ([]net.Listener, error) {
	a.enter(StateFree)
	a.enter(StateListen)
	ls := make([]net.Listener, 0, len(a.Addrs))
	for _, addr := range a.Addrs {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			for _, prev := range ls {
				prev.Close()
			}
			return nil, err
		}
		ls = append(ls, l)
	}
	a.enter(StateRunning)
	return ls, nil
}

// ProbePorts binds and immediately releases each address, returning
// those that could not be bound.
func (a *Arbiter) ProbePorts() []string {
	var busy []string
	for _, addr := range a.Addrs {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			busy = append(busy, addr)
			continue
		}
		l.Close()
	}
	return busy
}

// RequestShutdown posts to the incumbent's shutdown endpoint.
func (a *Arbiter) RequestShutdown(ctx context.Context) error {
	return RequestShutdown(ctx, a.Client, a.ShutdownURL, a.Token)
}

// RequestShutdown posts to a running agent's shutdown endpoint. A nil
// client uses the default shutdown timeout.
func RequestShutdown(ctx context.Context, client *http.Client, url, token string) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultShutdownTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shutdown request: unexpected status %s", resp.Status)
	}
	return nil
}

func (a *Arbiter) waitFree(ctx context.Context) bool {
	grace := a.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	deadline := time.Now().Add(grace)
	for {
		if len(a.ProbePorts()) == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return false
		}
	}
}

// Takeover acquires the single-instance lock, evicting the holder the
// same way Acquire evicts a port owner.
func (a *Arbiter) Takeover(ctx context.Context, lock Locker) error {
	attempts := a.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		err := lock.TryLock()
		if err == nil {
			return nil
		}
		if !errors.Is(err, instance.ErrLocked) {
			return workererrors.Wrap(workererrors.CodeStartup, err, "instance lock")
		}

		a.logger().Warn("⚠️ Another instance is running, asking it to stop", "attempt", attempt)
		if err := a.RequestShutdown(ctx); err == nil {
			if a.waitLock(ctx, lock) {
				return nil
			}
		} else {
			a.logger().Info("Running instance unreachable, reclaiming ports", "err", err)
			if err := a.forceReclaim(ctx, a.ProbePorts()); errors.Is(err, ErrReclaimUnsupported) {
				return workererrors.Wrap(workererrors.CodeStartup, err, "another instance holds the lock")
			} else if err != nil {
				a.logger().Warn("⚠️ Reclaim failed", "err", err)
			}
			if a.waitLock(ctx, lock) {
				return nil
			}
		}

		if attempt < attempts {
			if err := sleep(ctx, a.Backoff); err != nil {
				return workererrors.Wrap(workererrors.CodeStartup, err, "takeover cancelled")
			}
		}
	}
	return workererrors.New(workererrors.CodeStartup, "could not take over the running instance after %d attempts", attempts)
}

func (a *Arbiter) waitLock(ctx context.Context, lock Locker) bool {
	grace := a.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	deadline := time.Now().Add(grace)
	for {
		if lock.TryLock() == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return false
		}
	}
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
