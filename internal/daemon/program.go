package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/judwhite/go-svc"

	"github.com/adcondev/print-agent/internal/arbiter"
	"github.com/adcondev/print-agent/internal/auth"
	"github.com/adcondev/print-agent/internal/config"
	"github.com/adcondev/print-agent/internal/htmlprint"
	"github.com/adcondev/print-agent/internal/instance"
	"github.com/adcondev/print-agent/internal/jobs"
	"github.com/adcondev/print-agent/internal/printer"
	"github.com/adcondev/print-agent/internal/server"
	"github.com/adcondev/print-agent/internal/spool"
	"github.com/adcondev/print-agent/internal/transport"
	"github.com/adcondev/print-agent/internal/worker"
)

const stopTimeout = 10 * time.Second

// Options are the command line choices that shape a Program.
type Options struct {
	// Env is the environment name; empty falls back to PRINT_AGENT_ENV
	// and then the build default.
	Env        string
	ConfigPath string
	Verbose    bool
	// Console mirrors the log to stderr.
	Console bool
	// LogDir overrides the PROGRAMDATA based log location.
	LogDir string
	// Enumerator overrides the platform printer enumerator.
	Enumerator printer.Enumerator
}

// Program implements svc.Service and svc.Context.
type Program struct {
	opts Options
	cfg  config.Environment
	logs *Logging
	log  *log.Logger

	// quit is canceled when a shutdown is requested over HTTP.
	quit     context.Context
	stopSelf context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lock       *instance.Lock
	listeners  []net.Listener
	httpServer *http.Server
	wsServer   *http.Server
	hub        *server.Hub
	discovery  *printer.Discovery
	startTime  time.Time
	stopOnce   sync.Once
}

// New creates a Program.
func New(opts Options) *Program {
	quit, stop := context.WithCancel(context.Background())
	return &Program{opts: opts, quit: quit, stopSelf: stop}
}

// Context is done once the running instance has been asked to shut down.
func (p *Program) Context() context.Context {
	return p.quit
}

// Config returns the loaded environment.
func (p *Program) Config() config.Environment {
	return p.cfg
}

// Init loads configuration and opens the log.
func (p *Program) Init(env svc.Environment) error {
	cfg, err := config.Load(config.ResolveName(p.opts.Env), p.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if p.opts.Verbose {
		cfg.Verbose = true
	}
	p.cfg = cfg

	console := p.opts.Console || env == nil || !env.IsWindowsService()
	logs, err := NewLogging(p.logPath(), cfg.Verbose, console)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	p.logs = logs
	p.log = logs.Logger("AGENT")

	p.log.Info("Starting print agent", "env", cfg.Name, "service", cfg.ServiceName)
	p.log.Info("Build", "date", config.BuildDate, "time", config.BuildTime)
	p.log.Info("Logs", "path", logs.Path())
	return nil
}

func (p *Program) logPath() string {
	if p.opts.LogDir != "" {
		return filepath.Join(p.opts.LogDir, p.cfg.ServiceName+".log")
	}
	base := os.Getenv("PROGRAMDATA")
	if base == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			base = dir
		} else {
			base = os.TempDir()
		}
	}
	return p.cfg.LogPath(base)
}

// Start arbitrates for the ports and brings up both servers.
func (p *Program) Start() error {
	if p.logs == nil {
		return errors.New("program not initialized")
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.startTime = time.Now()

	if err := p.acquire(); err != nil {
		p.cancel()
		return err
	}

	enum := p.opts.Enumerator
	if enum == nil {
		enum = printer.DefaultEnumerator()
	}
	p.discovery = printer.NewDiscovery(enum, p.cfg.PrinterCacheTTL, p.logs.Logger("PRINTERS"))
	p.discovery.LogStartupDiagnostics(p.ctx)

	registry := jobs.NewRegistry(jobs.ParsePolicy(p.cfg.JobLocking))
	spooler := spool.Default()
	executor := worker.NewExecutor(registry, worker.Options{
		Transport:      transport.ForEnvironment(p.cfg.Production, p.cfg.EmulatorAddr, spooler),
		Renderer:       htmlprint.Chrome{ExecPath: p.cfg.ChromePath},
		Spooler:        spooler,
		Printers:       p.discovery,
		ThermalTimeout: p.cfg.ThermalTimeout,
		HTMLTimeout:    p.cfg.HTMLTimeout,
	}, p.logs.Logger("JOBS"))

	p.hub = server.NewHub(server.HubConfig{
		AllowedOrigins: p.cfg.AllowedOrigins,
	}, p.discovery, p.logs.Logger("WS"))

	guard := auth.NewManager(p.ctx, config.ShutdownTokenHashB64, p.logs.Logger("AUTH"))
	api := server.NewAPI(server.APIConfig{
		Executor:         executor,
		Printers:         p.discovery,
		Hub:              p.hub,
		Guard:            guard,
		OnShutdown:       p.RequestStop,
		ShutdownDelay:    p.cfg.ShutdownDelay,
		AllowedOrigins:   p.cfg.AllowedOrigins,
		MaxJobsPerMinute: p.cfg.MaxJobsPerMinute,
		Build: server.BuildInfo{
			Env:  p.cfg.Name,
			Date: config.BuildDate,
			Time: config.BuildTime,
		},
		StartTime: p.startTime,
	}, p.logs.Logger("HTTP"))

	p.httpServer = &http.Server{
		Handler:      api.Routes(),
		ReadTimeout:  p.cfg.ReadTimeout,
		WriteTimeout: p.cfg.WriteTimeout,
		IdleTimeout:  p.cfg.IdleTimeout,
	}
	p.wsServer = &http.Server{
		Handler:           http.HandlerFunc(p.hub.HandleWebSocket),
		ReadHeaderTimeout: p.cfg.ReadTimeout,
	}

	p.serve("HTTP", p.httpServer, p.listeners[0])
	p.serve("WebSocket", p.wsServer, p.listeners[1])

	if p.cfg.RefreshInterval > 0 {
		p.wg.Add(1)
		go p.refreshLoop()
	}

	p.log.Info("Print agent running",
		"http", p.HTTPAddr(), "ws", p.WSAddr(), "locking", registry.Policy(),
		"production", p.cfg.Production)
	return nil
}

// acquire takes the instance lock and both ports, displacing an
// earlier instance if one holds them.
func (p *Program) acquire() error {
	arb := arbiter.New([]string{p.cfg.HTTPAddr, p.cfg.WSAddr}, p.cfg.ShutdownURL(), p.logs.Logger("ARBITER"))
	arb.Token = p.cfg.ShutdownToken
	if p.cfg.ArbitrationAttempts > 0 {
		arb.Attempts = p.cfg.ArbitrationAttempts
	}
	if p.cfg.ArbitrationBackoff > 0 {
		arb.Backoff = p.cfg.ArbitrationBackoff
	}
	if p.cfg.ArbitrationGrace > 0 {
		arb.Grace = p.cfg.ArbitrationGrace
	}

	p.lock = instance.New(p.cfg.ServiceName)
	if err := arb.Takeover(p.ctx, p.lock); err != nil {
		return err
	}

	listeners, err := arb.Acquire(p.ctx)
	if err != nil {
		if uerr := p.lock.Unlock(); uerr != nil {
			p.log.Warn("Failed to release instance lock", "error", uerr)
		}
		return err
	}
	p.listeners = listeners
	return nil
}

func (p *Program) serve(name string, srv *http.Server, ln net.Listener) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("Server stopped", "server", name, "error", err)
			p.RequestStop()
		}
	}()
}

func (p *Program) refreshLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RefreshPrinters(p.ctx)
		}
	}
}

// RefreshPrinters re-enumerates printers and pushes the list to every
// WebSocket client.
func (p *Program) RefreshPrinters(ctx context.Context) int {
	printers, err := p.discovery.GetPrinters(ctx, true)
	if err != nil {
		p.log.Warn("Printer refresh failed", "error", err)
		return 0
	}
	return p.hub.BroadcastPrinters(ctx, printers)
}

// HTTPAddr is the bound HTTP API address.
func (p *Program) HTTPAddr() string {
	if len(p.listeners) < 1 {
		return ""
	}
	return p.listeners[0].Addr().String()
}

// WSAddr is the bound WebSocket address.
func (p *Program) WSAddr() string {
	if len(p.listeners) < 2 {
		return ""
	}
	return p.listeners[1].Addr().String()
}

// RequestStop asks the service runner to stop the program.
func (p *Program) RequestStop() {
	p.log.Info("Shutdown requested")
	p.stopSelf()
}

// Stop stops the service gracefully
func (p *Program) Stop() error {
	var err error
	p.stopOnce.Do(func() { err = p.stop() })
	return err
}

func (p *Program) stop() error {
	if p.cancel == nil {
		return nil
	}
	p.log.Info("Print agent stopping")
	p.cancel()
	p.stopSelf()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if p.hub != nil {
		p.hub.Shutdown()
	}
	var errs []error
	for _, srv := range []*http.Server{p.httpServer, p.wsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.wg.Wait()

	if err := p.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release instance lock: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		p.log.Warn("Shutdown finished with errors", "error", err)
		_ = p.logs.Close()
		return err
	}

	p.log.Info("Print agent stopped")
	return p.logs.Close()
}
