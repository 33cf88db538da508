package receipt

// Alignment of printed text.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// Scale is the character size.
type Scale int

const (
	ScaleNormal Scale = iota
	ScaleSmall
	ScaleDouble
)

// Column is one cell of a table row. Width is a fraction of the line.
type Column struct {
	Text  string
	Align Alignment
	Width float64
}

// Sink receives printer primitives in order.
type Sink interface {
	Align(a Alignment)
	Bold(on bool)
	Size(s Scale)
	Line(text string)
	TableRow(cols []Column)
	Separator()
	Feed(lines int)
	Cut()
}
