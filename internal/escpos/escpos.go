// Package escpos encodes receipt primitives as ESC/POS bytes for thermal
// printers.
package escpos

import (
	"bytes"
	"math"
	"strings"

	"github.com/adcondev/print-agent/internal/layout"
	"github.com/adcondev/print-agent/internal/receipt"
)

// Control bytes.
const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

// Builder accumulates an ESC/POS byte stream. It implements receipt.Sink.
type Builder struct {
	buf   bytes.Buffer
	width int
	scale receipt.Scale
}

var _ receipt.Sink = (*Builder)(nil)

// NewBuilder returns a Builder for lines of width characters, starting with
// a printer reset.
func NewBuilder(width int) *Builder {
	if width <= 0 {
		width = layout.MinCharacters
	}
	b := &Builder{width: width}
	b.buf.Write([]byte{ESC, '@'})
	return b
}

// Bytes returns the encoded stream.
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

// Width returns the configured characters per line.
func (b *Builder) Width() int {
	return b.width
}

// Align implements receipt.Sink (ESC a n).
func (b *Builder) Align(a receipt.Alignment) {
	var n byte
	switch a {
	case receipt.AlignCenter:
		n = 1
	case receipt.AlignRight:
		n = 2
	}
	b.buf.Write([]byte{ESC, 'a', n})
}

// Bold implements receipt.Sink (ESC E n).
func (b *Builder) Bold(on bool) {
	var n byte
	if on {
		n = 1
	}
	b.buf.Write([]byte{ESC, 'E', n})
}

// Size implements receipt.Sink. Small selects font B, double selects
// double width and height on font A (ESC M n, GS ! n).
func (b *Builder) Size(s receipt.Scale) {
	b.scale = s
	switch s {
	case receipt.ScaleSmall:
		b.buf.Write([]byte{ESC, 'M', 1, GS, '!', 0x00})
	case receipt.ScaleDouble:
		b.buf.Write([]byte{ESC, 'M', 0, GS, '!', 0x11})
	default:
		b.buf.Write([]byte{ESC, 'M', 0, GS, '!', 0x00})
	}
}

// Line implements receipt.Sink.
func (b *Builder) Line(text string) {
	b.buf.WriteString(sanitize(text))
	b.buf.WriteByte(LF)
}

// TableRow implements receipt.Sink. Column widths are fractions of the
// current line width; the last column absorbs rounding.
func (b *Builder) TableRow(cols []receipt.Column) {
	width := b.lineWidth()
	var sb strings.Builder
	used := 0
	for i, c := range cols {
		w := int(math.Floor(c.Width * float64(width)))
		if i == len(cols)-1 {
			w = width - used
		}
		w = max(w, 0)
		used += w
		sb.WriteString(cell(c.Text, c.Align, w))
	}
	b.Line(sb.String())
}

// Separator implements receipt.Sink.
func (b *Builder) Separator() {
	b.Line(strings.Repeat("-", b.lineWidth()))
}

// Feed implements receipt.Sink (ESC d n).
func (b *Builder) Feed(lines int) {
	lines = min(max(lines, 0), 255)
	b.buf.Write([]byte{ESC, 'd', byte(lines)})
}

// Cut implements receipt.Sink: feeds past the cutter then partial cut.
func (b *Builder) Cut() {
	b.Feed(3)
	b.buf.Write([]byte{GS, 'V', 'A', 0x00})
}

func (b *Builder) lineWidth() int {
	if b.scale == receipt.ScaleDouble {
		return b.width / 2
	}
	return b.width
}

func cell(text string, a receipt.Alignment, w int) string {
	switch a {
	case receipt.AlignRight:
		return layout.PadLeft(text, w)
	case receipt.AlignCenter:
		if layout.Len(text) >= w {
			return layout.PadRight(text, w)
		}
		left := (w - layout.Len(text)) / 2
		return layout.PadRight(strings.Repeat(" ", left)+text, w)
	default:
		return layout.PadRight(text, w)
	}
}

// sanitize keeps printable ASCII; anything else would be misread under
// the printer's default code page.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if r < 0x20 || r > 0x7E {
			return '?'
		}
		return r
	}, s)
}
