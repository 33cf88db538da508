// Package config defines environment-specific settings for the Print Agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Build variables, injected at compile time
var (
	BuildEnvironment = "development"
	BuildDate        = "unknown"
	BuildTime        = "unknown"
	// ServiceName is used for logging and as part of the log and lock file paths.
	ServiceName = "PrintAgent"
	// ShutdownTokenHashB64 is a base64-encoded bcrypt hash injected via ldflags.
	// If empty, POST /shutdown is accepted from any local caller.
	ShutdownTokenHashB64 = ""
	// AllowedOrigins is a comma-separated list of allowed origins injected via ldflags.
	// Example: "https://pos.example.com,http://localhost:*"
	AllowedOrigins = ""
)

// EnvVar overrides BuildEnvironment at run time.
const EnvVar = "PRINT_AGENT_ENV"

const (
	Production  = "production"
	Development = "development"
)

// Environment holds environment-specific settings
type Environment struct {
	// Identity
	Name        string `toml:"-"`
	ServiceName string `toml:"service_name"`

	// Network
	HTTPAddr     string        `toml:"http_addr"`
	WSAddr       string        `toml:"ws_addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`

	// Printing
	Production     bool          `toml:"production"`
	EmulatorAddr   string        `toml:"emulator_addr"`
	JobLocking     string        `toml:"job_locking"`
	ThermalTimeout time.Duration `toml:"thermal_timeout"`
	HTMLTimeout    time.Duration `toml:"html_timeout"`
	ChromePath     string        `toml:"chrome_path"`
	// MaxJobsPerMinute limits print requests per client; 0 disables it.
	MaxJobsPerMinute int `toml:"max_jobs_per_minute"`

	// Printers
	PrinterCacheTTL time.Duration `toml:"printer_cache_ttl"`
	RefreshInterval time.Duration `toml:"refresh_interval"`

	// Arbitration
	ArbitrationAttempts int           `toml:"arbitration_attempts"`
	ArbitrationBackoff  time.Duration `toml:"arbitration_backoff"`
	ArbitrationGrace    time.Duration `toml:"arbitration_grace"`
	ShutdownDelay       time.Duration `toml:"shutdown_delay"`
	// ShutdownToken is presented to a running instance that checks
	// ShutdownTokenHashB64.
	ShutdownToken string `toml:"shutdown_token"`

	// Logging
	Verbose bool `toml:"verbose"`

	// Security
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LogPath returns the full log file path for this environment.
// Uses the convention: <programData>/<ServiceName>/<ServiceName>.log
func (e Environment) LogPath(programData string) string {
	return filepath.Join(programData, e.ServiceName, e.ServiceName+".log")
}

// ShutdownURL is where a running instance of this environment accepts
// POST /shutdown.
func (e Environment) ShutdownURL() string {
	return "http://" + e.HTTPAddr + "/shutdown"
}

// environments defines available deployment configurations
var environments = map[string]Environment{
	Production: {
		Name:                "PRODUCTION",
		ServiceName:         ServiceName,
		HTTPAddr:            "127.0.0.1:21321",
		WSAddr:              "127.0.0.1:21322",
		ReadTimeout:         15 * time.Second,
		WriteTimeout:        90 * time.Second,
		IdleTimeout:         60 * time.Second,
		Production:          true,
		EmulatorAddr:        "127.0.0.1:8100",
		JobLocking:          "exclusive",
		ThermalTimeout:      30 * time.Second,
		HTMLTimeout:         60 * time.Second,
		MaxJobsPerMinute:    120,
		PrinterCacheTTL:     30 * time.Second,
		RefreshInterval:     time.Minute,
		ArbitrationAttempts: 3,
		ArbitrationBackoff:  2 * time.Second,
		ArbitrationGrace:    3 * time.Second,
		ShutdownDelay:       500 * time.Millisecond,
		Verbose:             false,
		AllowedOrigins:      []string{"*"},
	},
	Development: {
		Name:                "DEVELOPMENT",
		ServiceName:         ServiceName,
		HTTPAddr:            "127.0.0.1:21321",
		WSAddr:              "127.0.0.1:21322",
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        90 * time.Second,
		IdleTimeout:         120 * time.Second,
		Production:          false,
		EmulatorAddr:        "127.0.0.1:8100",
		JobLocking:          "exclusive",
		ThermalTimeout:      30 * time.Second,
		HTMLTimeout:         60 * time.Second,
		MaxJobsPerMinute:    0,
		PrinterCacheTTL:     10 * time.Second,
		RefreshInterval:     30 * time.Second,
		ArbitrationAttempts: 3,
		ArbitrationBackoff:  time.Second,
		ArbitrationGrace:    3 * time.Second,
		ShutdownDelay:       500 * time.Millisecond,
		Verbose:             true,
		// Allow all in development for convenience, but can be overridden
		AllowedOrigins: []string{"*"},
	},
}

// GetEnvironment returns config for the specified environment.
func GetEnvironment(env string) Environment {
	cfg, ok := environments[strings.ToLower(env)]
	if !ok {
		log.Warn("Unknown environment, defaulting to development", "env", env)
		cfg = environments[Development]
	}
	cfg.AllowedOrigins = slices.Clone(cfg.AllowedOrigins)

	// Override allowed origins from ldflags if provided
	if AllowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(AllowedOrigins, ",")
	}

	return cfg
}

// ResolveName picks the environment name: an explicit flag first, then
// the environment variable, then the build default.
func ResolveName(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(EnvVar); v != "" {
		return v
	}
	return BuildEnvironment
}

// Load returns the named environment with the TOML file at path laid
// over it. Keys absent from the file keep their environment values.
func Load(env, path string) (Environment, error) {
	cfg := GetEnvironment(env)
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Environment{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Environment{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}
