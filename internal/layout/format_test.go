package layout

import (
	"math"
	"testing"
)

func TestGroupThousands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234567", "1,234,567"},
		{"1234567.00", "1,234,567"},
		{"1234567.5", "1,234,567.5"},
		{"-1234.25", "-1,234.25"},
		{"999", "999"},
		{"1000", "1,000"},
		{"0", "0"},
		{"abc", ""},
		{"12a4", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := GroupThousands(tt.in); got != tt.want {
				t.Errorf("GroupThousands(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     string
	}{
		{"cents below half round down", 10.004, "BDT", "10"},
		{"single decimal kept", 10.5, "BDT", "10.5"},
		{"negative keeps sign", -3.1, "BDT", "-3.1"},
		{"half cent rounds up", 0.125, "BDT", "0.13"},
		{"two decimals", 1234.56, "BDT", "1234.56"},
		{"default currency when empty", 7.25, "", "7.25"},
		{"other currency rounds to units", 10.5, "USD", "11"},
		{"other currency keeps sign", -4.2, "USD", "-4"},
		{"zero", 0, "BDT", "0"},
		{"NaN renders as zero", math.NaN(), "BDT", "0"},
		{"infinity renders as zero", math.Inf(1), "USD", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCurrency(tt.amount, tt.currency); got != tt.want {
				t.Errorf("FormatCurrency(%v, %q) = %q; want %q", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	if got := ParseAmount("12.50"); got != 12.5 {
		t.Errorf("ParseAmount(12.50) = %v", got)
	}
	if got := ParseAmount("abc"); got != 0 {
		t.Errorf("ParseAmount(abc) = %v; want 0", got)
	}
	if got := FormatCurrency(ParseAmount("abc"), DefaultCurrency); got != "0" {
		t.Errorf("non-numeric input formatted as %q; want %q", got, "0")
	}
}

func TestMoney(t *testing.T) {
	if got := Money(1234567); got != "1,234,567" {
		t.Errorf("Money(1234567) = %q", got)
	}
	if got := Money(-1500.5); got != "-1,500.5" {
		t.Errorf("Money(-1500.5) = %q", got)
	}
}

func TestFormatDateAndTime(t *testing.T) {
	tests := []struct {
		in       string
		wantDate string
		wantTime string
	}{
		{"2024-03-05T14:07:00", "05/03/24", "2:07 PM"},
		{"2024-12-31 00:15:00", "31/12/24", "12:15 AM"},
		{"2024-01-09", "09/01/24", "12:00 AM"},
		{"", "", ""},
		{"not a date", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatDate(tt.in); got != tt.wantDate {
				t.Errorf("FormatDate(%q) = %q; want %q", tt.in, got, tt.wantDate)
			}
			if got := FormatTime(tt.in); got != tt.wantTime {
				t.Errorf("FormatTime(%q) = %q; want %q", tt.in, got, tt.wantTime)
			}
		})
	}
}
