package printer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type countingEnumerator struct {
	calls    int
	printers []RawPrinter
	err      error
}

func (c *countingEnumerator) Enumerate(context.Context) ([]RawPrinter, error) {
	c.calls++
	return c.printers, c.err
}

func TestNewDiscovery(t *testing.T) {
	ttl := 10 * time.Second
	d := NewDiscovery(&countingEnumerator{}, ttl, nil)
	if d.cacheTTL != ttl {
		t.Errorf("expected cacheTTL %v, got %v", ttl, d.cacheTTL)
	}
}

func TestDiscoveryCaches(t *testing.T) {
	enum := &countingEnumerator{printers: []RawPrinter{{Name: "TM_T20"}}}
	d := NewDiscovery(enum, time.Minute, log.New(io.Discard))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := d.GetPrinters(ctx, false); err != nil {
			t.Fatalf("GetPrinters: %v", err)
		}
	}
	if enum.calls != 1 {
		t.Errorf("enumerator called %d times; want 1", enum.calls)
	}

	if _, err := d.GetPrinters(ctx, true); err != nil {
		t.Fatalf("forced refresh: %v", err)
	}
	if enum.calls != 2 {
		t.Errorf("forced refresh did not enumerate")
	}
}

func TestDiscoveryStaleOnError(t *testing.T) {
	enum := &countingEnumerator{printers: []RawPrinter{{Name: "TM_T20"}}}
	d := NewDiscovery(enum, time.Minute, log.New(io.Discard))
	ctx := context.Background()

	if _, err := d.GetPrinters(ctx, false); err != nil {
		t.Fatalf("GetPrinters: %v", err)
	}
	enum.err = errors.New("spooler down")
	got, err := d.GetPrinters(ctx, true)
	if err == nil {
		t.Fatal("expected the enumeration error")
	}
	if len(got) != 1 || got[0].ID != "TM_T20" {
		t.Errorf("stale cache not returned: %+v", got)
	}
}

func TestDiscoveryLookupAndSummary(t *testing.T) {
	enum := &countingEnumerator{printers: []RawPrinter{
		{Name: "TM_T20", DisplayName: "EPSON TM-T20", IsDefault: true},
		{Name: "PDF", DisplayName: "Microsoft Print to PDF"},
	}}
	d := NewDiscovery(enum, time.Minute, log.New(io.Discard))
	ctx := context.Background()

	p, ok, err := d.Lookup(ctx, "EPSON TM-T20")
	if err != nil || !ok || p.ID != "TM_T20" {
		t.Fatalf("Lookup by display name = %+v, %v, %v", p, ok, err)
	}
	if _, ok, _ := d.Lookup(ctx, "missing"); ok {
		t.Error("Lookup found a missing printer")
	}

	s := d.GetSummary(ctx)
	if s.Status != "ok" || s.DetectedCount != 2 || s.ThermalCount != 1 || s.DefaultName != "EPSON TM-T20" {
		t.Errorf("summary = %+v", s)
	}

	empty := NewDiscovery(&countingEnumerator{err: errors.New("no cups")}, time.Minute, log.New(io.Discard))
	if s := empty.GetSummary(ctx); s.Status != "error" {
		t.Errorf("summary without printers = %+v", s)
	}
}
