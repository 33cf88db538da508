package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adcondev/print-agent/internal/receipt"
	"github.com/adcondev/print-agent/internal/worker"
	workererrors "github.com/adcondev/print-agent/internal/worker/errors"
)

const (
	maxBodyBytes         = 10 << 20
	DefaultShutdownDelay = 500 * time.Millisecond
)

// PrintExecutor runs admitted print jobs.
type PrintExecutor interface {
	PrintThermal(ctx context.Context, req worker.ThermalRequest) error
	PrintHTML(ctx context.Context, req worker.HTMLRequest) error
	Stats() worker.Statistics
}

// Guard wraps handlers that need the shutdown token.
type Guard interface {
	Require(next http.Handler) http.Handler
}

// APIConfig wires the HTTP API.
type APIConfig struct {
	Executor PrintExecutor
	Printers PrinterLister
	// Hub, when set, reports its client count in /health.
	Hub *Hub
	// Guard protects /shutdown; nil leaves it open.
	Guard Guard
	// OnShutdown runs ShutdownDelay after /shutdown has answered.
	OnShutdown       func()
	ShutdownDelay    time.Duration
	AllowedOrigins   []string
	MaxJobsPerMinute int
	Build            BuildInfo
	StartTime        time.Time
}

// API serves the print endpoints.
type API struct {
	cfg          APIConfig
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewAPI creates the HTTP API.
func NewAPI(cfg APIConfig, logger *log.Logger) *API {
	if cfg.ShutdownDelay <= 0 {
		cfg.ShutdownDelay = DefaultShutdownDelay
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &API{cfg: cfg, logger: logger}
}

type printerRef struct {
	Name string `json:"name"`
}

type htmlPrintRequest struct {
	Printer  *printerRef `json:"printer"`
	HTML     string      `json:"html"`
	WidthMM  *float64    `json:"widthMM"`
	HeightMM *float64    `json:"heightMM"`
}

type thermalPrintRequest struct {
	Printer *printerRef     `json:"printer"`
	Data    *receipt.Model  `json:"data"`
	Totals  *receipt.Totals `json:"totals"`
	WidthMM *float64        `json:"widthMM"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Routes returns the router for the HTTP listener.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)
	r.Use(a.cors)

	r.Get("/list-printers", a.handleListPrinters)
	r.Get("/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		if a.cfg.MaxJobsPerMinute > 0 {
			r.Use(NewJobRateLimiter(a.cfg.MaxJobsPerMinute).Middleware)
		}
		r.Post("/print", a.handlePrint)
		r.Post("/print-thermal", a.handlePrintThermal)
	})

	shutdown := http.Handler(http.HandlerFunc(a.handleShutdown))
	if a.cfg.Guard != nil {
		shutdown = a.cfg.Guard.Require(shutdown)
	}
	r.Method(http.MethodPost, "/shutdown", shutdown)
	return r
}

func (a *API) handleListPrinters(w http.ResponseWriter, r *http.Request) {
	printers, err := a.cfg.Printers.GetPrinters(r.Context(), false)
	if err != nil {
		if printers == nil {
			a.logger.Error("❌ Printer discovery failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error: "failed to enumerate printers: " + err.Error(),
				Code:  string(workererrors.CodeInternal),
			})
			return
		}
		a.logger.Warn("⚠️ Serving cached printers after discovery error", "err", err)
	}
	writeJSON(w, http.StatusOK, nonNil(printers))
}

func (a *API) handlePrint(w http.ResponseWriter, r *http.Request) {
	var body htmlPrintRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := worker.HTMLRequest{
		HTML:     body.HTML,
		WidthMM:  body.WidthMM,
		HeightMM: body.HeightMM,
	}
	if body.Printer != nil {
		req.Printer = body.Printer.Name
	}
	if err := a.cfg.Executor.PrintHTML(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePrintThermal(w http.ResponseWriter, r *http.Request) {
	var body thermalPrintRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := worker.ThermalRequest{
		Receipt: body.Data,
		Totals:  body.Totals,
		WidthMM: body.WidthMM,
	}
	if body.Printer != nil {
		req.Printer = body.Printer.Name
	}
	if err := a.cfg.Executor.PrintThermal(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShutdown answers first and tears down after ShutdownDelay so the
// caller receives its response.
func (a *API) handleShutdown(w http.ResponseWriter, r *http.Request) {
	a.logger.Warn("📴 Shutdown requested", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	a.shutdownOnce.Do(func() {
		if a.cfg.OnShutdown != nil {
			time.AfterFunc(a.cfg.ShutdownDelay, a.cfg.OnShutdown)
		}
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "ok",
		Worker:   a.cfg.Executor.Stats(),
		Printers: a.cfg.Printers.GetSummary(r.Context()),
		Build:    a.cfg.Build,
		Uptime:   int(time.Since(a.cfg.StartTime).Seconds()),
	}
	if a.cfg.Hub != nil {
		response.Clients = a.cfg.Hub.ClientCount()
	}
	if response.Printers.Status == "error" {
		response.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, response)
}

// cors lets the remote front-end call the local agent. Preflight
// requests are answered here.
func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if allowed := a.allowOrigin(origin); allowed != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Shutdown-Token")
				h.Set("Access-Control-Allow-Private-Network", "true")
				if allowed != "*" {
					h.Add("Vary", "Origin")
				}
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) allowOrigin(origin string) string {
	if slices.Contains(a.cfg.AllowedOrigins, "*") {
		return "*"
	}
	for _, pattern := range a.cfg.AllowedOrigins {
		if ok, _ := path.Match(pattern, origin); ok {
			return origin
		}
	}
	return ""
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debug(r.Method+" "+r.URL.Path, "status", ww.Status(), "took", time.Since(start))
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return workererrors.New(workererrors.CodeValidation, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return workererrors.Wrap(workererrors.CodeValidation, err, "invalid JSON body")
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, workererrors.HTTPStatus(err), errorResponse{
		Error: workererrors.UserMessage(err),
		Code:  string(workererrors.CodeOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
