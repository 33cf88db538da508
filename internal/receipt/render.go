package receipt

import (
	"math"
	"strconv"
	"strings"

	"github.com/adcondev/print-agent/internal/layout"
)

// Footer is printed in small type at the bottom of every receipt.
const Footer = "Powered by Print Agent"

const (
	defaultPaymentUser = "System"
	defaultNoteAuthor  = "Unknown"
)

// Item table proportions: serial, item, quantity, price.
const (
	colSerial   = 0.08
	colItem     = 0.54
	colQuantity = 0.15
	colPrice    = 0.23
)

// Summary table proportions: label, value.
const (
	colLabel = 0.65
	colValue = 0.35
)

// Render emits the receipt for m and t onto sink, laid out for a line of
// width characters. It does no arithmetic on the totals.
func Render(sink Sink, m *Model, t *Totals, width int) {
	if m == nil {
		m = &Model{}
	}
	if t == nil {
		t = &Totals{}
	}
	if width <= 0 {
		width = layout.MinCharacters
	}

	r := renderer{sink: sink, width: width}
	r.header(&m.Organization)
	r.invoice(&m.Invoice)
	r.customer(m.Customer)
	r.items(m.Items)
	r.summary(t)
	r.payments(t)
	r.notes(m.Notes)
	r.footer()
}

type renderer struct {
	sink  Sink
	width int
}

func (r *renderer) header(org *Organization) {
	r.sink.Align(AlignCenter)
	r.sink.Size(ScaleDouble)
	r.sink.Bold(true)
	r.sink.Line(org.Name)
	r.sink.Bold(false)
	r.sink.Size(ScaleNormal)

	if org.TaxID != "" {
		r.sink.Line("BIN: " + org.TaxID)
	}
	if org.VATForm != "" {
		r.sink.Line("Mushak: " + org.VATForm)
	}
	if addr := strings.TrimSpace(org.Address); addr != "" {
		for _, line := range layout.WrapText(addr, r.width) {
			r.sink.Line(line)
		}
	}

	var contact []string
	if org.Phone != "" {
		contact = append(contact, org.Phone)
	}
	if org.Email != "" {
		contact = append(contact, org.Email)
	}
	if len(contact) > 0 {
		r.sink.Line(strings.Join(contact, ", "))
	}
	if org.CustomDomain != "" {
		r.sink.Line(org.CustomDomain)
	}
}

func (r *renderer) invoice(inv *Invoice) {
	r.sink.Align(AlignLeft)
	r.sink.Separator()
	r.sink.Line(layout.TwoColumnLine("INVOICE "+inv.Number, layout.FormatDate(inv.CreatedAt), r.width))
	r.sink.Line(layout.TwoColumnLine("", layout.FormatTime(inv.CreatedAt), r.width))
}

func (r *renderer) customer(c *Customer) {
	if c == nil {
		return
	}

	r.sink.Separator()
	r.sink.Bold(true)
	r.sink.Line("CUSTOMER")
	r.sink.Bold(false)

	if c.Name != "" {
		r.sink.Line("Name: " + c.Name)
	}
	if c.Phone != "" {
		r.sink.Line("Phone: " + c.Phone)
	}
	if c.Email != "" {
		r.sink.Line("Email: " + c.Email)
	}
	if len(c.Addresses) > 0 {
		if addr := c.Addresses[0].String(); addr != "" {
			r.sink.Line("Address: " + addr)
		}
	}
}

func (r *renderer) items(items []LineItem) {
	r.sink.Separator()
	r.sink.Bold(true)
	r.sink.TableRow(itemRow("#", "ITEM", "QTY", "PRICE"))
	r.sink.Bold(false)
	r.sink.Separator()

	nameWidth := int(math.Floor(float64(r.width) * colItem))
	for i, item := range items {
		lines := layout.WrapText(item.DisplayName(), nameWidth)
		r.sink.TableRow(itemRow(
			strconv.Itoa(i+1),
			lines[0],
			layout.Money(item.Quantity.Float()),
			layout.Money(item.UnitPrice.Float()),
		))
		for _, line := range lines[1:] {
			r.sink.TableRow(itemRow("", line, "", ""))
		}
	}
}

func itemRow(serial, name, qty, price string) []Column {
	return []Column{
		{Text: serial, Align: AlignLeft, Width: colSerial},
		{Text: name, Align: AlignLeft, Width: colItem},
		{Text: qty, Align: AlignCenter, Width: colQuantity},
		{Text: price, Align: AlignRight, Width: colPrice},
	}
}

func summaryRow(label, value string) []Column {
	return []Column{
		{Text: label, Align: AlignLeft, Width: colLabel},
		{Text: value, Align: AlignRight, Width: colValue},
	}
}

func (r *renderer) summary(t *Totals) {
	r.sink.Separator()

	unit := "items"
	if t.TotalQuantity.Float() == 1 {
		unit = "item"
	}
	label := "Subtotal (" + layout.Money(t.TotalQuantity.Float()) + " " + unit + ")"
	r.sink.TableRow(summaryRow(label, layout.Money(t.Subtotal.Float())))

	for _, c := range t.Charges {
		label := c.Label
		if c.ApplicationMethod == Inclusive {
			label += " (inc)"
		}
		r.sink.TableRow(summaryRow(label, layout.Money(math.Abs(c.CalculatedValue.Float()))))
	}

	r.sink.Bold(true)
	r.sink.TableRow(summaryRow("TOTAL", layout.Money(t.GrandTotal.Float())))
	r.sink.Bold(false)
}

func (r *renderer) payments(t *Totals) {
	if len(t.Payments) == 0 {
		return
	}

	r.sink.Separator()
	for _, p := range t.Payments {
		r.sink.TableRow(summaryRow(p.Method, layout.Money(p.Amount.Float())))
		user := p.User
		if user == "" {
			user = defaultPaymentUser
		}
		r.sink.Line("  " + joinNonEmpty(" ", layout.FormatDate(p.CreatedAt), layout.FormatTime(p.CreatedAt), "by "+user))
	}
	r.sink.Separator()

	if t.TotalPaid.Float() > 0 {
		r.sink.Bold(true)
		r.sink.TableRow(summaryRow("PAID", layout.Money(t.TotalPaid.Float())))
		r.sink.Bold(false)
	}
	if t.BalanceDue.Float() > 0 {
		r.sink.Bold(true)
		r.sink.TableRow(summaryRow("DUE", layout.Money(t.BalanceDue.Float())))
		r.sink.Bold(false)
	}
}

func (r *renderer) notes(notes []Note) {
	first := true
	for _, n := range notes {
		if !n.VisibleOnInvoice {
			continue
		}
		if first {
			r.sink.Separator()
			r.sink.Bold(true)
			r.sink.Line("NOTES")
			r.sink.Bold(false)
			first = false
		}

		for i, line := range layout.WrapText(n.Text, r.width-2) {
			if i == 0 {
				r.sink.Line("* " + line)
			} else {
				r.sink.Line("  " + line)
			}
		}
		author := n.Author
		if author == "" {
			author = defaultNoteAuthor
		}
		r.sink.Line("  " + joinNonEmpty(" ", layout.FormatDate(n.CreatedAt), layout.FormatTime(n.CreatedAt), "- "+author))
	}
}

func (r *renderer) footer() {
	r.sink.Feed(1)
	r.sink.Align(AlignCenter)
	r.sink.Size(ScaleSmall)
	r.sink.Line(Footer)
	r.sink.Size(ScaleNormal)
	r.sink.Cut()
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
