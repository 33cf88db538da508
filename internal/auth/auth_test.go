package auth

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
)

func hashB64(t *testing.T, token string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return base64.StdEncoding.EncodeToString(h)
}

func newManager(t *testing.T, hash string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewManager(ctx, hash, log.New(io.Discard))
}

func TestDisabledManagerPassesEverything(t *testing.T) {
	m := newManager(t, "")
	if m.Enabled() || !m.ValidateToken("anything") {
		t.Fatal("disabled manager should accept every token")
	}

	h := m.Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequire(t *testing.T) {
	m := newManager(t, hashB64(t, "s3cret"))
	calls := 0
	h := m.Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
		req.RemoteAddr = "127.0.0.1:50000"
		if token != "" {
			req.Header.Set(TokenHeader, token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("s3cret"); code != http.StatusOK {
		t.Fatalf("valid token: %d", code)
	}
	if code := do(""); code != http.StatusUnauthorized {
		t.Errorf("missing token: %d", code)
	}
	for i := 1; i < MaxAttempts; i++ {
		do("wrong")
	}
	if code := do("s3cret"); code != http.StatusTooManyRequests {
		t.Errorf("after %d failures: %d; want 429", MaxAttempts, code)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times", calls)
	}
}

func TestBadHash(t *testing.T) {
	m := newManager(t, "not base64!")
	if m.ValidateToken("x") {
		t.Error("undecodable hash must reject")
	}
}
