//go:build linux

package arbiter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ProcReaper finds socket owners through procfs and kills them.
type ProcReaper struct {
	// Root is the procfs mount, "/proc" when empty.
	Root string
	// Kill terminates pid; SIGKILL when nil.
	Kill func(pid int) error
}

// DefaultReaper returns the reaper for this platform.
func DefaultReaper() Reaper {
	return ProcReaper{}
}

// Reclaim implements Reaper.
func (r ProcReaper) Reclaim(ctx context.Context, port int) error {
	root := r.Root
	if root == "" {
		root = "/proc"
	}
	kill := r.Kill
	if kill == nil {
		kill = func(pid int) error { return unix.Kill(pid, unix.SIGKILL) }
	}

	inodes := make(map[string]bool)
	for _, name := range []string{"tcp", "tcp6"} {
		b, err := os.ReadFile(filepath.Join(root, "net", name))
		if err != nil {
			continue
		}
		for _, ino := range parseProcNetTCP(string(b), port) {
			inodes[ino] = true
		}
	}
	if len(inodes) == 0 {
		return nil
	}

	pids, err := socketOwners(root, inodes)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return fmt.Errorf("no visible process owns port %d", port)
	}

	var errs []error
	self := os.Getpid()
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pid == self {
			continue
		}
		if err := kill(pid); err != nil {
			errs = append(errs, fmt.Errorf("kill %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// socketOwners scans /proc/<pid>/fd for links to the given inodes.
func socketOwners(root string, inodes map[string]bool) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join(root, e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			ino, ok := strings.CutPrefix(link, "socket:[")
			if !ok {
				continue
			}
			if inodes[strings.TrimSuffix(ino, "]")] {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids, nil
}
