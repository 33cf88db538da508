//go:build windows

package arbiter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// NetstatReaper finds port owners with netstat and ends them with
// taskkill.
type NetstatReaper struct{}

// DefaultReaper returns the reaper for this platform.
func DefaultReaper() Reaper {
	return NetstatReaper{}
}

// Reclaim implements Reaper.
func (NetstatReaper) Reclaim(ctx context.Context, port int) error {
	out, err := exec.CommandContext(ctx, "netstat", "-ano", "-p", "TCP").Output()
	if err != nil {
		return fmt.Errorf("netstat: %w", err)
	}

	var errs []error
	self := os.Getpid()
	for _, pid := range parseNetstat(string(out), port) {
		if pid == self {
			continue
		}
		cmd := exec.CommandContext(ctx, "taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
		if out, err := cmd.CombinedOutput(); err != nil {
			errs = append(errs, fmt.Errorf("taskkill %d: %w: %s", pid, err, out))
		}
	}
	return errors.Join(errs...)
}
