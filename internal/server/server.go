// Package server is the agent's front door: the HTTP print API and the
// WebSocket hub that pushes printer status.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/adcondev/print-agent/internal/printer"
)

// MessagePrinterStatus is the type of the printer list message.
const MessagePrinterStatus = "printer-status"

const (
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 10 * time.Second
	writeTimeout        = 5 * time.Second
)

// PrinterLister supplies classified printers.
type PrinterLister interface {
	GetPrinters(ctx context.Context, forceRefresh bool) ([]printer.Descriptor, error)
	GetSummary(ctx context.Context) printer.Summary
}

// PrinterStatus is pushed on connect and on every refresh.
type PrinterStatus struct {
	Type     string               `json:"type"`
	Printers []printer.Descriptor `json:"printers"`
}

// HubConfig holds WebSocket settings
type HubConfig struct {
	// AllowedOrigins are origin patterns; nil enforces same origin.
	AllowedOrigins []string
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// Hub manages WebSocket connections
type Hub struct {
	clients      *ClientRegistry
	printers     PrinterLister
	cfg          HubConfig
	logger       *log.Logger
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(cfg HubConfig, printers PrinterLister, logger *log.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients:      NewClientRegistry(),
		printers:     printers,
		cfg:          cfg,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return h.clients.Count()
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originHosts(h.cfg.AllowedOrigins),
	})
	if err != nil {
		h.logger.Warn("❌ Error accepting client", "remote", r.RemoteAddr, "err", err)
		return
	}

	h.clients.Add(conn, r.RemoteAddr)
	h.logger.Info("➕ Client connected", "total", h.clients.Count(), "remote", r.RemoteAddr)

	defer func() {
		if h.clients.Remove(conn) {
			_ = conn.Close(websocket.StatusNormalClosure, "disconnected")
			h.logger.Info("➖ Client disconnected", "remaining", h.clients.Count())
		}
	}()

	// Clients never send; CloseRead answers pings and notices closure.
	ctx := conn.CloseRead(r.Context())

	if err := h.pushCurrent(ctx, conn); err != nil {
		h.logger.Warn("⚠️ Initial printer push failed", "err", err)
		return
	}
	h.heartbeat(ctx, conn)
}

func (h *Hub) pushCurrent(ctx context.Context, conn *websocket.Conn) error {
	printers, err := h.printers.GetPrinters(ctx, false)
	if err != nil && printers == nil {
		h.logger.Warn("⚠️ Printer discovery failed, pushing empty list", "err", err)
	}
	return h.write(ctx, conn, PrinterStatus{Type: MessagePrinterStatus, Printers: nonNil(printers)})
}

// heartbeat pings until the client leaves, misses a pong or the hub
// shuts down.
func (h *Hub) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdownChan:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PongTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.Info("💤 Dropping client that missed a pong", "err", err)
				if h.clients.Remove(conn) {
					_ = conn.Close(websocket.StatusPolicyViolation, "pong timeout")
				}
				return
			}
		}
	}
}

// BroadcastPrinters sends the list to every client and returns how many
// received it. Clients that cannot be written to are dropped.
func (h *Hub) BroadcastPrinters(ctx context.Context, printers []printer.Descriptor) int {
	msg := PrinterStatus{Type: MessagePrinterStatus, Printers: nonNil(printers)}
	sent := 0
	for _, conn := range h.clients.Snapshot() {
		if err := h.write(ctx, conn, msg); err != nil {
			h.logger.Warn("⚠️ Broadcast failed, dropping client", "err", err)
			if h.clients.Remove(conn) {
				_ = conn.Close(websocket.StatusGoingAway, "write failed")
			}
			continue
		}
		sent++
	}
	h.logger.Debug("📡 Printer status broadcast", "clients", sent, "printers", len(printers))
	return sent
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// Shutdown gracefully disconnects every client
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.shutdownChan)

		conns := h.clients.Snapshot()
		h.logger.Info("🛑 Shutting down, disconnecting clients", "count", len(conns))

		for _, conn := range conns {
			if h.clients.Remove(conn) {
				_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
			}
		}
	})
}

// originHosts converts origins such as "http://localhost:*" into the host
// patterns websocket.Accept matches against.
func originHosts(origins []string) []string {
	if origins == nil {
		return nil
	}
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		hosts = append(hosts, strings.TrimSuffix(o, "/"))
	}
	return hosts
}

func nonNil(p []printer.Descriptor) []printer.Descriptor {
	if p == nil {
		return []printer.Descriptor{}
	}
	return p
}
