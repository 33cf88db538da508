package server

import (
	"github.com/adcondev/print-agent/internal/printer"
	"github.com/adcondev/print-agent/internal/worker"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Worker   worker.Statistics `json:"worker"`
	Printers printer.Summary   `json:"printers"`
	Clients  int               `json:"ws_clients"`
	Build    BuildInfo         `json:"build"`
	Uptime   int               `json:"uptime_seconds"`
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Env  string `json:"env"`
	Date string `json:"date"`
	Time string `json:"time"`
}
