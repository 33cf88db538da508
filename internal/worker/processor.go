// Package worker contains the print executor that turns an admitted
// request into bytes on a printer.
package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/adcondev/print-agent/internal/escpos"
	"github.com/adcondev/print-agent/internal/htmlprint"
	"github.com/adcondev/print-agent/internal/jobs"
	"github.com/adcondev/print-agent/internal/layout"
	"github.com/adcondev/print-agent/internal/printer"
	"github.com/adcondev/print-agent/internal/receipt"
	"github.com/adcondev/print-agent/internal/spool"
	"github.com/adcondev/print-agent/internal/transport"
	workererrors "github.com/adcondev/print-agent/internal/worker/errors"
)

// DefaultPaperWidthMM is assumed when a thermal request carries no width.
const DefaultPaperWidthMM = 80

const (
	defaultThermalTimeout = 30 * time.Second
	// HTML jobs render and then spool.
	defaultHTMLTimeout = 60 * time.Second
)

// JobKind distinguishes the two print paths.
type JobKind string

const (
	KindThermal JobKind = "thermal"
	KindHTML    JobKind = "html"
)

// PrintJob lives only for one render and transmit sequence.
type PrintJob struct {
	ID        string
	Printer   string
	Kind      JobKind
	CreatedAt time.Time
}

// ThermalRequest asks for a receipt printed as ESC/POS.
type ThermalRequest struct {
	Printer string
	Receipt *receipt.Model
	Totals  *receipt.Totals
	WidthMM *float64
}

// HTMLRequest asks for an HTML document printed through the driver.
type HTMLRequest struct {
	Printer  string
	HTML     string
	WidthMM  *float64
	HeightMM *float64
}

// PrinterLookup resolves a requested printer name.
type PrinterLookup interface {
	Lookup(ctx context.Context, name string) (printer.Descriptor, bool, error)
}

// Options wires an Executor to its collaborators.
type Options struct {
	Transport transport.Transport
	Renderer  htmlprint.Renderer
	Spooler   spool.Spooler
	// Printers validates HTML destinations when set.
	Printers       PrinterLookup
	ThermalTimeout time.Duration
	HTMLTimeout    time.Duration
}

// Executor runs print jobs under the destination leases of a registry.
type Executor struct {
	registry *jobs.Registry
	opts     Options
	logger   *log.Logger

	mu            sync.Mutex
	jobsProcessed int64
	jobsFailed    int64
	jobsRejected  int64
	lastJobTime   time.Time
}

// NewExecutor creates an executor.
func NewExecutor(registry *jobs.Registry, opts Options, logger *log.Logger) *Executor {
	if opts.ThermalTimeout <= 0 {
		opts.ThermalTimeout = defaultThermalTimeout
	}
	if opts.HTMLTimeout <= 0 {
		opts.HTMLTimeout = defaultHTMLTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{registry: registry, opts: opts, logger: logger}
}

// PrintThermal renders req to ESC/POS and ships it through the transport.
func (e *Executor) PrintThermal(ctx context.Context, req ThermalRequest) error {
	name := strings.TrimSpace(req.Printer)
	if name == "" {
		return workererrors.New(workererrors.CodeValidation, "printer name is required")
	}
	if req.Receipt == nil || req.Totals == nil {
		return workererrors.New(workererrors.CodeValidation, "receipt data and totals are required")
	}
	name, err := e.resolvePrinter(ctx, name, true)
	if err != nil {
		return err
	}

	job := newJob(KindThermal, name)
	return e.withLease(ctx, job, e.opts.ThermalTimeout, func(ctx context.Context) error {
		width := thermalWidth(req.WidthMM)
		b := escpos.NewBuilder(width)
		receipt.Render(b, req.Receipt, req.Totals, width)
		data := b.Bytes()

		e.logger.Debug("🧾 Receipt rendered", "job", job.ID, "bytes", len(data), "columns", width)
		if err := e.opts.Transport.Send(ctx, name, data); err != nil {
			return workererrors.Wrap(workererrors.CodeTransport, err, "failed to send receipt to %s", name)
		}
		return nil
	})
}

// PrintHTML renders req to PDF and hands it to the OS spooler. Spooler
// failures are logged and reported as success; the OS print UI is where
// the user sees them.
func (e *Executor) PrintHTML(ctx context.Context, req HTMLRequest) error {
	name := strings.TrimSpace(req.Printer)
	if name == "" {
		return workererrors.New(workererrors.CodeValidation, "printer name is required")
	}
	if strings.TrimSpace(req.HTML) == "" {
		return workererrors.New(workererrors.CodeValidation, "html document is required")
	}
	name, err := e.resolvePrinter(ctx, name, false)
	if err != nil {
		return err
	}

	job := newJob(KindHTML, name)
	return e.withLease(ctx, job, e.opts.HTMLTimeout, func(ctx context.Context) error {
		pdf, err := e.opts.Renderer.RenderPDF(ctx, req.HTML, req.WidthMM, req.HeightMM)
		if err != nil {
			return workererrors.Wrap(workererrors.CodeTransport, err, "failed to render document")
		}
		if err := e.opts.Spooler.PrintPDF(ctx, name, pdf); err != nil {
			e.logger.Warn("⚠️ Spooler reported a failure, leaving it to the OS print queue",
				"job", job.ID, "printer", name, "err", err)
		}
		return nil
	})
}

// resolvePrinter maps a requested name to the descriptor ID, so display
// names and OS names share one lease and the spooler gets the OS name.
// Raw jobs are refused for printers that cannot take ESC/POS. When
// discovery itself fails the name is used as given.
func (e *Executor) resolvePrinter(ctx context.Context, name string, raw bool) (string, error) {
	if e.opts.Printers == nil {
		return name, nil
	}
	d, found, err := e.opts.Printers.Lookup(ctx, name)
	switch {
	case found:
		if raw && !d.SupportsRawThermal {
			return "", workererrors.New(workererrors.CodeValidation, "printer %q does not accept raw thermal jobs", name)
		}
		return d.ID, nil
	case err != nil:
		e.logger.Warn("⚠️ Printer lookup failed, trying anyway", "printer", name, "err", err)
		return name, nil
	default:
		return "", workererrors.New(workererrors.CodeValidation, "invalid printer %q", name)
	}
}

// withLease admits job, runs fn under timeout and releases the lease on
// every path.
func (e *Executor) withLease(ctx context.Context, job PrintJob, timeout time.Duration, fn func(context.Context) error) error {
	lease, err := e.registry.Admit(job.Printer)
	if err != nil {
		e.mu.Lock()
		e.jobsRejected++
		e.mu.Unlock()
		e.logger.Info("⏳ Destination busy, rejecting job", "job", job.ID, "printer", job.Printer)
		return workererrors.Wrap(workererrors.CodeConflict, err, "printer %s is busy", job.Printer)
	}
	defer func() {
		if !e.registry.Release(lease) && e.registry.Policy() == jobs.Exclusive {
			e.logger.Warn("⚠️ Lease already gone on release", "job", job.ID, "printer", job.Printer)
		}
	}()

	startTime := time.Now()
	e.logger.Info("🔄 Processing job", "job", job.ID, "kind", job.Kind, "printer", job.Printer)

	err = e.execute(ctx, job, timeout, fn)
	duration := time.Since(startTime)

	e.mu.Lock()
	e.lastJobTime = time.Now()
	if err != nil {
		e.jobsFailed++
	} else {
		e.jobsProcessed++
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("❌ Job failed", "job", job.ID, "after", duration, "err", err)
		return err
	}
	e.logger.Info("✅ Job completed", "job", job.ID, "in", duration.Round(time.Millisecond))
	return nil
}

// execute races fn against the timeout. A panic in fn becomes a
// transport error.
func (e *Executor) execute(ctx context.Context, job PrintJob, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := NewCompletion()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("💥 Panic in job", "job", job.ID, "panic", r, "stack", string(debug.Stack()))
				c.Resolve(workererrors.New(workererrors.CodeTransport, "print failed unexpectedly: %v", r))
			}
		}()
		c.Resolve(fn(ctx))
	}()

	select {
	case <-c.Done():
	case <-ctx.Done():
		cause := ctx.Err()
		if errors.Is(cause, context.DeadlineExceeded) {
			c.Resolve(workererrors.Wrap(workererrors.CodeTransport, cause, "print timed out after %v", timeout))
		} else {
			c.Resolve(workererrors.Wrap(workererrors.CodeTransport, cause, "print cancelled"))
		}
	}
	return c.Err()
}

func newJob(kind JobKind, printerName string) PrintJob {
	return PrintJob{
		ID:        uuid.NewString(),
		Printer:   printerName,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

func thermalWidth(widthMM *float64) int {
	if widthMM == nil || *widthMM <= 0 {
		return layout.ResolveCharacterWidth(DefaultPaperWidthMM)
	}
	return layout.ResolveCharacterWidth(*widthMM)
}

// Stats returns current executor statistics
func (e *Executor) Stats() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Statistics{
		JobsProcessed: e.jobsProcessed,
		JobsFailed:    e.jobsFailed,
		JobsRejected:  e.jobsRejected,
		InFlight:      e.registry.InFlight(),
		LockPolicy:    string(e.registry.Policy()),
		LastJobTime:   e.lastJobTime,
	}
}

// Statistics holds executor runtime statistics
type Statistics struct {
	JobsProcessed int64     `json:"jobs_processed"`
	JobsFailed    int64     `json:"jobs_failed"`
	JobsRejected  int64     `json:"jobs_rejected"`
	InFlight      int       `json:"in_flight"`
	LockPolicy    string    `json:"lock_policy"`
	LastJobTime   time.Time `json:"last_job_time,omitempty"`
}
