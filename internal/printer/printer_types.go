// Package printer enumerates OS printers and classifies them into the
// descriptors served to the front-end.
package printer

// Kind tells physical devices from file-backed drivers.
type Kind string

const (
	KindPhysical Kind = "physical"
	KindVirtual  Kind = "virtual"
)

// DefaultDPI is assumed when the OS does not report a resolution.
const DefaultDPI = 203

// RawPrinter is a printer record as reported by the OS.
type RawPrinter struct {
	Name        string
	DisplayName string
	Description string
	// Media is a free-form paper description, e.g. "Custom.80x297mm".
	Media     string
	IsDefault bool
	DPI       int
	Status    string
}

// Descriptor is the classified printer served over HTTP and WebSocket.
// WidthMM and HeightMM are nil when the paper size is unknown.
type Descriptor struct {
	ID                 string   `json:"id"`
	DisplayName        string   `json:"displayName"`
	Description        string   `json:"description,omitempty"`
	Status             string   `json:"status,omitempty"`
	IsDefault          bool     `json:"isDefault"`
	WidthMM            *float64 `json:"widthMM,omitempty"`
	HeightMM           *float64 `json:"heightMM,omitempty"`
	DPI                int      `json:"dpi"`
	Kind               Kind     `json:"kind"`
	SupportsRawThermal bool     `json:"supportsRawThermal"`
}

// Summary provides lightweight overview for health checks
type Summary struct {
	Status        string `json:"status"` // "ok", "warning", "error"
	DetectedCount int    `json:"detected_count"`
	ThermalCount  int    `json:"thermal_count"`
	DefaultName   string `json:"default_name,omitempty"`
}
