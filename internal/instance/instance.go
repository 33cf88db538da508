// Package instance holds the single-instance lock of the agent.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrLocked is returned by TryLock while another process holds the lock.
var ErrLocked = errors.New("another instance holds the lock")

// Lock is an exclusive, non-blocking lock file.
type Lock struct {
	path string
	file *os.File
}

// New returns the machine-wide lock for name: <PROGRAMDATA>/<name>/<name>.lock,
// next to the log, or <tempdir>/<name>.lock where PROGRAMDATA is unset.
func New(name string) *Lock {
	if base := os.Getenv("PROGRAMDATA"); base != "" {
		return &Lock{path: filepath.Join(base, name, name+".lock")}
	}
	return &Lock{path: filepath.Join(os.TempDir(), name+".lock")}
}

// NewAt returns a lock at path.
func NewAt(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// TryLock takes the lock without waiting and records the current PID in
// the file.
func (l *Lock) TryLock() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	l.file = f
	return nil
}

// Unlock releases the lock. It is safe to call when not held.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}

// Owner returns the PID recorded by the current holder, or 0.
func (l *Lock) Owner() int {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(b)))
	return pid
}
