// Package htmlprint renders HTML documents to PDF with headless Chrome.
package htmlprint

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultTimeout bounds a single render.
const DefaultTimeout = 30 * time.Second

const mmPerInch = 25.4

// ErrEmptyDocument is returned for blank HTML.
var ErrEmptyDocument = errors.New("empty html document")

// Renderer turns HTML into PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, html string, widthMM, heightMM *float64) ([]byte, error)
}

// Chrome renders through a headless Chrome instance started per job.
type Chrome struct {
	// ExecPath overrides the browser binary; empty uses chromedp's lookup.
	ExecPath string
	Timeout  time.Duration
}

// RenderPDF implements Renderer. Unknown dimensions fall back to the
// browser's default paper.
func (c Chrome) RenderPDF(ctx context.Context, html string, widthMM, heightMM *float64) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyDocument
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cdpCancel := chromedp.NewContext(allocCtx)
	defer cdpCancel()

	var pdf []byte
	err := chromedp.Run(cdpCtx,
		chromedp.Navigate(DataURL(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := PrintParams(widthMM, heightMM).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome render: %w", err)
	}
	return pdf, nil
}

// PrintParams builds the PrintToPDF call for a page of the given size.
func PrintParams(widthMM, heightMM *float64) *page.PrintToPDFParams {
	p := page.PrintToPDF().
		WithPrintBackground(true).
		WithPreferCSSPageSize(widthMM == nil).
		WithMarginTop(0).
		WithMarginBottom(0).
		WithMarginLeft(0).
		WithMarginRight(0)
	if widthMM != nil && *widthMM > 0 {
		p = p.WithPaperWidth(*widthMM / mmPerInch)
	}
	if heightMM != nil && *heightMM > 0 {
		p = p.WithPaperHeight(*heightMM / mmPerInch)
	}
	return p
}

// DataURL encodes html so the browser can load it without a server.
func DataURL(html string) string {
	return "data:text/html;charset=utf-8," + strings.ReplaceAll(url.QueryEscape(html), "+", "%20")
}
