package receipt

import "strings"

// OpKind names a recorded primitive.
type OpKind string

const (
	OpAlign     OpKind = "align"
	OpBold      OpKind = "bold"
	OpSize      OpKind = "size"
	OpLine      OpKind = "line"
	OpTableRow  OpKind = "row"
	OpSeparator OpKind = "separator"
	OpFeed      OpKind = "feed"
	OpCut       OpKind = "cut"
)

// Op is one recorded primitive call.
type Op struct {
	Kind    OpKind
	Text    string
	Columns []Column
	Align   Alignment
	Scale   Scale
	On      bool
	N       int
}

// Recorder is a Sink that keeps every call, for tests and dry runs.
type Recorder struct {
	Ops []Op
}

func (r *Recorder) Align(a Alignment) { r.Ops = append(r.Ops, Op{Kind: OpAlign, Align: a}) }
func (r *Recorder) Bold(on bool)      { r.Ops = append(r.Ops, Op{Kind: OpBold, On: on}) }
func (r *Recorder) Size(s Scale)      { r.Ops = append(r.Ops, Op{Kind: OpSize, Scale: s}) }
func (r *Recorder) Line(text string)  { r.Ops = append(r.Ops, Op{Kind: OpLine, Text: text}) }
func (r *Recorder) TableRow(cols []Column) {
	r.Ops = append(r.Ops, Op{Kind: OpTableRow, Columns: cols})
}
func (r *Recorder) Separator()     { r.Ops = append(r.Ops, Op{Kind: OpSeparator}) }
func (r *Recorder) Feed(lines int) { r.Ops = append(r.Ops, Op{Kind: OpFeed, N: lines}) }
func (r *Recorder) Cut()           { r.Ops = append(r.Ops, Op{Kind: OpCut}) }

// Texts returns the printed text of every line and row, rows rendered as
// their cell texts joined by "|".
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops {
		switch op.Kind {
		case OpLine:
			out = append(out, op.Text)
		case OpTableRow:
			cells := make([]string, len(op.Columns))
			for i, c := range op.Columns {
				cells[i] = c.Text
			}
			out = append(out, strings.Join(cells, "|"))
		}
	}
	return out
}

// Count returns how many ops of the given kind were recorded.
func (r *Recorder) Count(kind OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
