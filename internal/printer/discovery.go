package printer

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Enumerator lists the printers installed on the host.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]RawPrinter, error)
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func(ctx context.Context) ([]RawPrinter, error)

// Enumerate implements Enumerator.
func (f EnumeratorFunc) Enumerate(ctx context.Context) ([]RawPrinter, error) {
	return f(ctx)
}

// enumerateTimeout bounds a single OS enumeration.
const enumerateTimeout = 10 * time.Second

// Discovery handles printer enumeration with caching
type Discovery struct {
	enumerator  Enumerator
	logger      *log.Logger
	cache       []Descriptor
	lastRefresh time.Time
	cacheTTL    time.Duration
	mu          sync.RWMutex
}

// NewDiscovery creates a new discovery service
func NewDiscovery(enumerator Enumerator, ttl time.Duration, logger *log.Logger) *Discovery {
	if logger == nil {
		logger = log.Default()
	}
	return &Discovery{
		enumerator: enumerator,
		logger:     logger,
		cacheTTL:   ttl,
	}
}

// GetPrinters returns cached printers or refreshes if stale
func (d *Discovery) GetPrinters(ctx context.Context, forceRefresh bool) ([]Descriptor, error) {
	d.mu.RLock()
	if !forceRefresh && time.Since(d.lastRefresh) < d.cacheTTL && d.cache != nil {
		result := clone(d.cache)
		d.mu.RUnlock()
		return result, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Another caller may have refreshed while we waited for the write lock.
	if !forceRefresh && time.Since(d.lastRefresh) < d.cacheTTL && d.cache != nil {
		return clone(d.cache), nil
	}

	ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
	defer cancel()

	raw, err := d.enumerator.Enumerate(ctx)
	if err != nil {
		if d.cache != nil {
			return clone(d.cache), err // stale copy on error
		}
		return nil, err
	}

	d.cache = Classify(raw)
	d.lastRefresh = time.Now()
	return clone(d.cache), nil
}

// Lookup finds a printer by ID or display name.
func (d *Discovery) Lookup(ctx context.Context, name string) (Descriptor, bool, error) {
	printers, err := d.GetPrinters(ctx, false)
	if err != nil && printers == nil {
		return Descriptor{}, false, err
	}
	for _, p := range printers {
		if p.ID == name || p.DisplayName == name {
			return p, true, nil
		}
	}
	return Descriptor{}, false, nil
}

// GetSummary returns a lightweight summary for health checks
func (d *Discovery) GetSummary(ctx context.Context) Summary {
	printers, err := d.GetPrinters(ctx, false)
	if err != nil && printers == nil {
		return Summary{Status: "error"}
	}

	var thermal, physical int
	var defaultName string
	for _, p := range printers {
		if p.SupportsRawThermal {
			thermal++
		}
		if p.Kind == KindPhysical {
			physical++
		}
		if p.IsDefault && defaultName == "" {
			defaultName = p.DisplayName
		}
	}

	status := "ok"
	if thermal == 0 && physical > 0 {
		status = "warning"
	} else if physical == 0 {
		status = "error"
	}

	return Summary{
		Status:        status,
		DetectedCount: len(printers),
		ThermalCount:  thermal,
		DefaultName:   defaultName,
	}
}

// LogStartupDiagnostics logs printer info at service start
func (d *Discovery) LogStartupDiagnostics(ctx context.Context) {
	printers, err := d.GetPrinters(ctx, true)
	if err != nil {
		d.logger.Warn("⚠️ Error enumerating printers", "err", err)
		return
	}

	d.logger.Infof("🖨️ Detected %d installed printer(s)", len(printers))
	for _, p := range printers {
		mark := ""
		if p.IsDefault {
			mark = " ⭐"
		}
		if p.Kind == KindVirtual {
			d.logger.Debugf("   (virtual) %s", p.DisplayName)
			continue
		}
		d.logger.Infof("   • %s (%d dpi)%s", p.DisplayName, p.DPI, mark)
	}
	if len(printers) > 0 && d.GetSummary(ctx).ThermalCount == 0 {
		d.logger.Warn("⚠️ No raw-capable printers detected!")
	}
}

func clone(in []Descriptor) []Descriptor {
	out := make([]Descriptor, len(in))
	copy(out, in)
	return out
}
