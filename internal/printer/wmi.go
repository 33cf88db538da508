package printer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const wmiQuery = `Get-CimInstance -ClassName Win32_Printer | ` +
	`Select-Object Name,Default,DriverName,Comment,HorizontalResolution,PrinterStatus,` +
	`@{n='PaperSizes';e={$_.PrinterPaperNames -join ';'}} | ConvertTo-Json -Compress`

// WMIEnumerator lists printers through PowerShell and Win32_Printer.
type WMIEnumerator struct {
	Run CommandRunner
}

type wmiPrinter struct {
	Name                 string `json:"Name"`
	Default              bool   `json:"Default"`
	DriverName           string `json:"DriverName"`
	Comment              string `json:"Comment"`
	HorizontalResolution int    `json:"HorizontalResolution"`
	PrinterStatus        int    `json:"PrinterStatus"`
	PaperSizes           string `json:"PaperSizes"`
}

// Enumerate implements Enumerator.
func (e WMIEnumerator) Enumerate(ctx context.Context) ([]RawPrinter, error) {
	run := e.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", wmiQuery)
	if err != nil {
		return nil, fmt.Errorf("Win32_Printer query: %w", err)
	}
	return parseWMI(out)
}

// parseWMI decodes ConvertTo-Json output, which is a bare object when
// only one printer exists.
func parseWMI(out []byte) ([]RawPrinter, error) {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}

	var list []wmiPrinter
	if strings.HasPrefix(trimmed, "{") {
		var one wmiPrinter
		if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
			return nil, fmt.Errorf("decode printer: %w", err)
		}
		list = []wmiPrinter{one}
	} else if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return nil, fmt.Errorf("decode printers: %w", err)
	}

	printers := make([]RawPrinter, 0, len(list))
	for _, w := range list {
		printers = append(printers, RawPrinter{
			Name:        w.Name,
			DisplayName: w.Name,
			Description: w.DriverName,
			Media:       strings.TrimSpace(w.Comment + ";" + w.PaperSizes),
			IsDefault:   w.Default,
			DPI:         w.HorizontalResolution,
			Status:      wmiStatus(w.PrinterStatus),
		})
	}
	return printers, nil
}

func wmiStatus(code int) string {
	switch code {
	case 3:
		return "idle"
	case 4:
		return "printing"
	case 5:
		return "warmup"
	case 7:
		return "offline"
	default:
		return "unknown"
	}
}
