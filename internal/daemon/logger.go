// Package daemon runs the agent as a service: logging, startup
// arbitration, wiring and teardown.
package daemon

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Log configuration
const (
	maxLogSize   = 5 * 1024 * 1024 // 5MB
	keepOnRotate = 1000
)

// RotatingFile is an append-only log file trimmed to its last lines when
// it grows past the size limit.
type RotatingFile struct {
	path    string
	maxSize int64
	keep    int

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRotatingFile opens path for appending, rotating it first if needed.
func OpenRotatingFile(path string) (*RotatingFile, error) {
	return openRotatingFile(path, maxLogSize, keepOnRotate)
}

func openRotatingFile(path string, maxSize int64, keep int) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	r := &RotatingFile{path: path, maxSize: maxSize, keep: keep}
	if err := r.rotateIfNeeded(); err != nil {
		return nil, err
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) //nolint:gosec
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.file, r.size = f, info.Size()
	return nil
}

// Write appends p, rotating once the file exceeds the limit.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, errors.New("log file not open")
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	if err == nil && r.size >= r.maxSize {
		if rerr := r.rotateLocked(); rerr != nil {
			return n, rerr
		}
	}
	return n, err
}

// Size returns the current file size.
func (r *RotatingFile) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Path returns the file location.
func (r *RotatingFile) Path() string { return r.path }

// Close closes the file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) rotateLocked() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil
	if err := r.rotateIfNeeded(); err != nil {
		return err
	}
	return r.open()
}

// rotateIfNeeded keeps the last lines of an oversized file
func (r *RotatingFile) rotateIfNeeded() error {
	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.Size() < r.maxSize {
		return nil
	}

	lines := readLastNLines(r.path, r.keep)
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	return os.WriteFile(r.path, []byte(content), 0600)
}

// readLastNLines reads last N lines from file
func readLastNLines(path string, n int) []string {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil
	}

	size := stat.Size()
	if size == 0 {
		return nil
	}

	// Read last 64KB max
	bufSize := int64(64 * 1024)
	if size < bufSize {
		bufSize = size
	}

	buf := make([]byte, bufSize)
	if _, err := file.ReadAt(buf, size-bufSize); err != nil && !errors.Is(err, io.EOF) {
		return nil
	}

	allLines := strings.Split(string(buf), "\n")

	// Clean empty lines at end
	for len(allLines) > 0 && allLines[len(allLines)-1] == "" {
		allLines = allLines[:len(allLines)-1]
	}

	// If we started mid-line, discard first partial line
	if size > bufSize && len(allLines) > 0 {
		allLines = allLines[1:]
	}

	if len(allLines) <= n {
		return allLines
	}
	return allLines[len(allLines)-n:]
}

// Logging owns the log file and the root logger components derive from.
type Logging struct {
	file *RotatingFile
	root *log.Logger
}

// NewLogging writes to the rotating file at path, and to stderr as well
// when console is set. Verbose enables debug output.
func NewLogging(path string, verbose, console bool) (*Logging, error) {
	f, err := OpenRotatingFile(path)
	if err != nil {
		return nil, err
	}

	var w io.Writer = f
	if console {
		w = io.MultiWriter(f, os.Stderr)
	}
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	root := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime + ".000",
		Level:           level,
	})
	log.SetDefault(root)
	return &Logging{file: f, root: root}, nil
}

// Logger returns a logger tagged with a component prefix.
func (l *Logging) Logger(prefix string) *log.Logger {
	return l.root.WithPrefix(prefix)
}

// Path returns the log file location.
func (l *Logging) Path() string { return l.file.Path() }

// Close closes the log file.
func (l *Logging) Close() error {
	return l.file.Close()
}
