// Package layout contains the fixed-width text helpers used to lay out
// receipts: money and date formatting, padding, column alignment and
// word wrapping.
package layout

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultCurrency is the currency whose amounts keep their cents.
const DefaultCurrency = "BDT"

// timestampLayouts are tried in order when parsing upstream timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an upstream timestamp. Timestamps carrying a zone
// are converted to local time; zone-less ones are read as local time.
// It returns nil for empty or malformed input.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, l := range timestampLayouts {
		t, err := time.ParseInLocation(l, s, time.Local)
		if err == nil {
			t = t.Local()
			return &t
		}
	}
	return nil
}

// FormatDate renders a timestamp as DD/MM/YY, or "" when it cannot be parsed.
func FormatDate(ts string) string {
	t := ParseTimestamp(ts)
	if t == nil {
		return ""
	}
	return t.Format("02/01/06")
}

// FormatTime renders a timestamp as a 12-hour clock (3:04 PM), or "" when it
// cannot be parsed.
func FormatTime(ts string) string {
	t := ParseTimestamp(ts)
	if t == nil {
		return ""
	}
	return t.Format("3:04 PM")
}

// GroupThousands inserts "," separators into the integer part of a decimal
// string. The fraction is kept except for a trailing ".00", and a leading
// minus sign survives. It returns "" when the integer part is not a number.
func GroupThousands(amount string) string {
	s := strings.TrimSpace(amount)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	intPart, frac, hasFrac := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return ""
		}
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac && frac != "00" && frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// ParseAmount reads a decimal string, coercing anything non-numeric to 0.
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatCurrency rounds an amount half-up to cents and renders it without
// trailing zeros. Amounts in any currency other than DefaultCurrency are
// rounded to whole units first. Non-finite input renders as "0", like any
// other non-numeric amount.
func FormatCurrency(amount float64, currency string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "0"
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if currency != DefaultCurrency {
		amount = math.Floor(amount + 0.5)
	}

	rounded := math.Floor(math.Abs(amount)*100+0.5) / 100
	out := strings.TrimSuffix(strconv.FormatFloat(rounded, 'f', -1, 64), ".00")
	if amount < 0 && rounded != 0 {
		out = "-" + out
	}
	return out
}

// Money is the uniform rendering used for every amount printed on a receipt.
func Money(amount float64) string {
	return GroupThousands(FormatCurrency(amount, DefaultCurrency))
}
