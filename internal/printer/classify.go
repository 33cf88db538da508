package printer

import (
	"regexp"
	"strconv"
	"strings"
)

// virtualDrivers are name fragments of drivers that print to files.
var virtualDrivers = []string{
	"pdf",
	"xps",
	"onenote",
	"fax",
	"send to",
	"print to",
	"document writer",
	"virtual",
	"cups-pdf",
	"adobe pdf",
	"microsoft print to",
}

var mediaSize = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*mm`)

// Classify converts raw OS records into descriptors.
func Classify(raw []RawPrinter) []Descriptor {
	out := make([]Descriptor, 0, len(raw))
	for _, r := range raw {
		out = append(out, classifyOne(r))
	}
	return out
}

func classifyOne(r RawPrinter) Descriptor {
	name := r.DisplayName
	if name == "" {
		name = r.Name
	}
	d := Descriptor{
		ID:          r.Name,
		DisplayName: name,
		Description: r.Description,
		Status:      r.Status,
		IsDefault:   r.IsDefault,
		DPI:         r.DPI,
		Kind:        KindPhysical,
	}
	if d.DPI <= 0 {
		d.DPI = DefaultDPI
	}
	d.WidthMM, d.HeightMM = ParseMedia(r.Media)

	if IsVirtualName(name) {
		d.Kind = KindVirtual
	}
	d.SupportsRawThermal = d.Kind != KindVirtual
	return d
}

// IsVirtualName reports whether a display name matches a known
// file-backed driver.
func IsVirtualName(name string) bool {
	lower := strings.ToLower(name)
	for _, v := range virtualDrivers {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// ParseMedia extracts "W x H mm" from a media description. Both results
// are nil when no size is present.
func ParseMedia(media string) (width, height *float64) {
	m := mediaSize.FindStringSubmatch(media)
	if m == nil {
		return nil, nil
	}
	w, errW := strconv.ParseFloat(m[1], 64)
	h, errH := strconv.ParseFloat(m[2], 64)
	if errW != nil || errH != nil {
		return nil, nil
	}
	return &w, &h
}
