package arbiter

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/adcondev/print-agent/internal/instance"
	workererrors "github.com/adcondev/print-agent/internal/worker/errors"
)

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (s *stateLog) observe(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *stateLog) has(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.states {
		if x == st {
			return true
		}
	}
	return false
}

type fakeReaper struct {
	mu    sync.Mutex
	calls int
	free  func()
	err   error
}

func (f *fakeReaper) Reclaim(context.Context, int) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.free != nil {
		f.free()
	}
	return f.err
}

func (f *fakeReaper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func occupy(t *testing.T, addr string) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("occupy %s: %v", addr, err)
	}
	return l
}

// deadURL points at a port nobody listens on.
func deadURL(t *testing.T) string {
	return "http://" + freeAddr(t) + "/shutdown"
}

func newTestArbiter(addrs []string, url string, reaper Reaper, states *stateLog) *Arbiter {
	return &Arbiter{
		Addrs:       addrs,
		ShutdownURL: url,
		Client:      &http.Client{Timeout: 500 * time.Millisecond},
		Reaper:      reaper,
		Attempts:    DefaultAttempts,
		Backoff:     10 * time.Millisecond,
		Grace:       150 * time.Millisecond,
		Observer:    states.observe,
		Logger:      log.New(io.Discard),
	}
}

func closeAll(ls []net.Listener) {
	for _, l := range ls {
		l.Close()
	}
}

func TestAcquireFreePorts(t *testing.T) {
	states := &stateLog{}
	reaper := &fakeReaper{}
	a := newTestArbiter([]string{freeAddr(t), freeAddr(t)}, deadURL(t), reaper, states)

	ls, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer closeAll(ls)

	if len(ls) != 2 {
		t.Fatalf("got %d listeners", len(ls))
	}
	if a.State() != StateRunning {
		t.Errorf("state = %s", a.State())
	}
	if states.has(StateBusy) || reaper.count() != 0 {
		t.Error("free ports should not trigger reclamation")
	}
}

func TestAcquireResponsiveIncumbent(t *testing.T) {
	addr := freeAddr(t)
	holder := occupy(t, addr)

	incumbent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/shutdown" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		go holder.Close()
	}))
	defer incumbent.Close()

	states := &stateLog{}
	reaper := &fakeReaper{}
	a := newTestArbiter([]string{addr}, incumbent.URL+"/shutdown", reaper, states)

	ls, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer closeAll(ls)

	if a.State() != StateRunning {
		t.Errorf("state = %s", a.State())
	}
	if !states.has(StateGracefulShutdownRequest) {
		t.Error("shutdown request never made")
	}
	if states.has(StateForceReclaim) || reaper.count() != 0 {
		t.Error("responsive incumbent should not be force-reclaimed")
	}
}

func TestAcquireUnresponsiveIncumbent(t *testing.T) {
	addr := freeAddr(t)
	holder := occupy(t, addr)

	states := &stateLog{}
	reaper := &fakeReaper{free: func() { holder.Close() }}
	a := newTestArbiter([]string{addr}, deadURL(t), reaper, states)

	ls, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer closeAll(ls)

	if a.State() != StateRunning {
		t.Errorf("state = %s", a.State())
	}
	if !states.has(StateForceReclaim) || reaper.count() != 1 {
		t.Errorf("reaper calls = %d; want 1", reaper.count())
	}
}

func TestAcquireGivesUp(t *testing.T) {
	addr := freeAddr(t)
	holder := occupy(t, addr)
	defer holder.Close()

	states := &stateLog{}
	reaper := &fakeReaper{}
	a := newTestArbiter([]string{addr}, deadURL(t), reaper, states)

	ls, err := a.Acquire(context.Background())
	if err == nil {
		closeAll(ls)
		t.Fatal("expected a startup error")
	}
	if !workererrors.Is(err, workererrors.CodeStartup) {
		t.Errorf("got %v; want STARTUP", err)
	}
	if reaper.count() != DefaultAttempts {
		t.Errorf("reaper calls = %d; want %d", reaper.count(), DefaultAttempts)
	}
	if a.State() != StateRetryOrFail {
		t.Errorf("state = %s", a.State())
	}
}

func TestAcquireReclaimUnsupported(t *testing.T) {
	addr := freeAddr(t)
	holder := occupy(t, addr)
	defer holder.Close()

	reaper := &fakeReaper{err: ErrReclaimUnsupported}
	a := newTestArbiter([]string{addr}, deadURL(t), reaper, &stateLog{})

	_, err := a.Acquire(context.Background())
	if !errors.Is(err, ErrReclaimUnsupported) || !workererrors.Is(err, workererrors.CodeStartup) {
		t.Fatalf("got %v", err)
	}
	if reaper.count() != 1 {
		t.Errorf("unsupported reclaim should not be retried, calls = %d", reaper.count())
	}
}

func TestTakeoverGraceful(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")
	holder := instance.NewAt(path)
	if err := holder.TryLock(); err != nil {
		t.Fatalf("holder lock: %v", err)
	}

	incumbent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		go holder.Unlock()
	}))
	defer incumbent.Close()

	reaper := &fakeReaper{}
	a := newTestArbiter(nil, incumbent.URL+"/shutdown", reaper, &stateLog{})

	newcomer := instance.NewAt(path)
	if err := a.Takeover(context.Background(), newcomer); err != nil {
		t.Fatalf("Takeover: %v", err)
	}
	defer newcomer.Unlock()

	if err := instance.NewAt(path).TryLock(); !errors.Is(err, instance.ErrLocked) {
		t.Errorf("newcomer does not hold the lock: %v", err)
	}
	if reaper.count() != 0 {
		t.Error("graceful takeover used the reaper")
	}
}

func TestTakeoverForced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")
	holder := instance.NewAt(path)
	if err := holder.TryLock(); err != nil {
		t.Fatalf("holder lock: %v", err)
	}
	addr := freeAddr(t)
	port := occupy(t, addr)

	reaper := &fakeReaper{free: func() {
		port.Close()
		holder.Unlock()
	}}
	a := newTestArbiter([]string{addr}, deadURL(t), reaper, &stateLog{})

	newcomer := instance.NewAt(path)
	if err := a.Takeover(context.Background(), newcomer); err != nil {
		t.Fatalf("Takeover: %v", err)
	}
	defer newcomer.Unlock()

	if reaper.count() != 1 {
		t.Errorf("reaper calls = %d; want 1", reaper.count())
	}
}

func TestParseNetstat(t *testing.T) {
	out := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       1012
  TCP    127.0.0.1:21321        0.0.0.0:0              LISTENING       4242
  TCP    127.0.0.1:21321        127.0.0.1:50123        ESTABLISHED     4242
  TCP    127.0.0.1:213210       0.0.0.0:0              LISTENING       77
  TCP    [::1]:21321            [::]:0                 LISTENING       4242
  UDP    0.0.0.0:21321          *:*                                    99
`
	got := parseNetstat(out, 21321)
	if len(got) != 1 || got[0] != 4242 {
		t.Errorf("parseNetstat = %v; want [4242]", got)
	}
}

func TestParseProcNetTCP(t *testing.T) {
	out := `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:5349 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 123456 1 0000000000000000 100 0 0 10 0
   1: 0100007F:534A 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 123457 1 0000000000000000 100 0 0 10 0
   2: 0100007F:5349 0100007F:C350 01 00000000:00000000 00:00000000 00000000  1000        0 123458 1 0000000000000000 20 4 30 10 -1
`
	got := parseProcNetTCP(out, 21321)
	if len(got) != 1 || got[0] != "123456" {
		t.Errorf("parseProcNetTCP = %v; want [123456]", got)
	}
}
