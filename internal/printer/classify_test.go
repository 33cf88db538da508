package printer

import "testing"

func TestClassify(t *testing.T) {
	raw := []RawPrinter{
		{Name: "TM_T20", DisplayName: "EPSON TM-T20", Media: "Custom.80x297mm", IsDefault: true},
		{Name: "PDF", DisplayName: "Microsoft Print to PDF", Media: "A4 210 X 297 MM", DPI: 600},
		{Name: "POS58", Media: ""},
		{Name: "Fax"},
	}

	got := Classify(raw)
	if len(got) != 4 {
		t.Fatalf("Classify returned %d descriptors", len(got))
	}

	tm := got[0]
	if tm.ID != "TM_T20" || tm.DisplayName != "EPSON TM-T20" || !tm.IsDefault {
		t.Errorf("identity fields wrong: %+v", tm)
	}
	if tm.Kind != KindPhysical || !tm.SupportsRawThermal {
		t.Errorf("thermal printer misclassified: %+v", tm)
	}
	if tm.WidthMM == nil || *tm.WidthMM != 80 || tm.HeightMM == nil || *tm.HeightMM != 297 {
		t.Errorf("media not parsed: %v x %v", tm.WidthMM, tm.HeightMM)
	}
	if tm.DPI != DefaultDPI {
		t.Errorf("DPI = %d; want default %d", tm.DPI, DefaultDPI)
	}

	pdf := got[1]
	if pdf.Kind != KindVirtual || pdf.SupportsRawThermal {
		t.Errorf("PDF printer misclassified: %+v", pdf)
	}
	if pdf.DPI != 600 {
		t.Errorf("reported DPI lost: %d", pdf.DPI)
	}
	if pdf.WidthMM == nil || *pdf.WidthMM != 210 {
		t.Errorf("case-insensitive media not parsed: %v", pdf.WidthMM)
	}

	pos := got[2]
	if pos.DisplayName != "POS58" {
		t.Errorf("display name should fall back to name: %q", pos.DisplayName)
	}
	if pos.WidthMM != nil || pos.HeightMM != nil {
		t.Errorf("missing media should leave dimensions unknown")
	}

	if got[3].Kind != KindVirtual {
		t.Errorf("fax driver should be virtual")
	}
}

func TestParseMedia(t *testing.T) {
	tests := []struct {
		media string
		w, h  float64
		ok    bool
	}{
		{"58 x 210 mm", 58, 210, true},
		{"Roll 79.5x3276mm", 79.5, 3276, true},
		{"Letter", 0, 0, false},
		{"80mm", 0, 0, false},
	}
	for _, tt := range tests {
		w, h := ParseMedia(tt.media)
		if !tt.ok {
			if w != nil || h != nil {
				t.Errorf("ParseMedia(%q) = %v, %v; want nil", tt.media, w, h)
			}
			continue
		}
		if w == nil || h == nil || *w != tt.w || *h != tt.h {
			t.Errorf("ParseMedia(%q) = %v, %v; want %v x %v", tt.media, w, h, tt.w, tt.h)
		}
	}
}
