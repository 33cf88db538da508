// Package auth guards the shutdown endpoint with an optional token and
// brute-force protection.
package auth

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
)

// TokenHeader carries the shutdown token.
const TokenHeader = "X-Shutdown-Token"

const (
	MaxAttempts     = 5
	LockoutDuration = 5 * time.Minute
	CleanupInterval = 5 * time.Minute
)

type failInfo struct {
	count       int
	lockedUntil time.Time
}

// Manager validates shutdown tokens and throttles failed attempts.
type Manager struct {
	hashB64      string
	logger       *log.Logger
	failedTokens map[string]failInfo
	mu           sync.RWMutex
}

// NewManager creates a manager for the base64-encoded bcrypt hash, with a
// cleanup goroutine bound to ctx. An empty hash disables checking.
func NewManager(ctx context.Context, hashB64 string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		hashB64:      hashB64,
		logger:       logger,
		failedTokens: make(map[string]failInfo),
	}
	go m.cleanupLoop(ctx)
	logger.Info("Shutdown guard initialized", "enabled", m.Enabled())
	return m
}

// Enabled returns true if a token hash was configured.
func (m *Manager) Enabled() bool {
	return m.hashB64 != ""
}

// ValidateToken decodes the base64 hash and compares with bcrypt.
func (m *Manager) ValidateToken(token string) bool {
	if !m.Enabled() {
		return true
	}
	hashBytes, err := base64.StdEncoding.DecodeString(m.hashB64)
	if err != nil {
		m.logger.Error("Failed to decode shutdown token hash", "err", err)
		return false
	}
	return bcrypt.CompareHashAndPassword(hashBytes, []byte(token)) == nil
}

// IsLockedOut returns true if the IP has exceeded MaxAttempts.
func (m *Manager) IsLockedOut(ip string) bool {
	m.mu.RLock()
	info, exists := m.failedTokens[ip]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	return info.count >= MaxAttempts && time.Now().Before(info.lockedUntil)
}

// RecordFailure increments the failure counter for an IP.
func (m *Manager) RecordFailure(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.failedTokens[ip]
	info.count++
	if info.count >= MaxAttempts {
		info.lockedUntil = time.Now().Add(LockoutDuration)
		m.logger.Warn("[AUDIT] shutdown caller locked out", "ip", ip, "for", LockoutDuration, "attempts", info.count)
	}
	m.failedTokens[ip] = info
}

// ClearFailures resets the counter after a valid token.
func (m *Manager) ClearFailures(ip string) {
	m.mu.Lock()
	delete(m.failedTokens, ip)
	m.mu.Unlock()
}

// Require wraps next so it only runs for callers presenting a valid
// token. With no hash configured every request passes.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if m.IsLockedOut(ip) {
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
			return
		}
		if !m.ValidateToken(r.Header.Get(TokenHeader)) {
			m.RecordFailure(ip)
			http.Error(w, "invalid shutdown token", http.StatusUnauthorized)
			return
		}
		m.ClearFailures(ip)
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for k, v := range m.failedTokens {
				if v.count >= MaxAttempts && now.After(v.lockedUntil) {
					delete(m.failedTokens, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
