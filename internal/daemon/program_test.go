package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/adcondev/print-agent/internal/printer"
	"github.com/adcondev/print-agent/internal/server"
)

func startProgram(t *testing.T) (*Program, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agent.toml")
	cfg := fmt.Sprintf(`service_name = "PrintAgentTest%d"
http_addr = "127.0.0.1:0"
ws_addr = "127.0.0.1:0"
refresh_interval = "0s"
shutdown_delay = "10ms"
`, time.Now().UnixNano())
	if err := os.WriteFile(cfgPath, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}

	enum := printer.EnumeratorFunc(func(context.Context) ([]printer.RawPrinter, error) {
		return []printer.RawPrinter{{Name: "TM_T20", DisplayName: "EPSON TM-T20", IsDefault: true}}, nil
	})
	p := New(Options{Env: "development", ConfigPath: cfgPath, LogDir: dir, Enumerator: enum})
	if err := p.Init(nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop() })
	return p, dir
}

func TestProgramServesAndShutsDown(t *testing.T) {
	p, dir := startProgram(t)

	resp, err := http.Get("http://" + p.HTTPAddr() + "/list-printers")
	if err != nil {
		t.Fatalf("list-printers: %v", err)
	}
	var printers []printer.Descriptor
	err = json.NewDecoder(resp.Body).Decode(&printers)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(printers) != 1 || printers[0].ID != "TM_T20" {
		t.Fatalf("unexpected list: %d %+v", resp.StatusCode, printers)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+p.WSAddr()+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var status server.PrinterStatus
	if err := wsjson.Read(ctx, conn, &status); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if status.Type != server.MessagePrinterStatus || len(status.Printers) != 1 {
		t.Fatalf("unexpected initial status: %+v", status)
	}

	if sent := p.RefreshPrinters(ctx); sent != 1 {
		t.Errorf("RefreshPrinters reached %d clients, want 1", sent)
	}
	if err := wsjson.Read(ctx, conn, &status); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	resp, err = http.Post("http://"+p.HTTPAddr()+"/shutdown", "application/json", nil)
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("shutdown status %d", resp.StatusCode)
	}

	select {
	case <-p.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("program context not canceled after /shutdown")
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, p.Config().ServiceName+".log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Print agent stopped") {
		t.Errorf("log missing stop line:\n%s", data)
	}
}

func TestProgramStartWithoutInit(t *testing.T) {
	p := New(Options{})
	if err := p.Start(); err == nil {
		t.Fatal("expected Start to fail before Init")
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop on idle program: %v", err)
	}
}

func TestProgramInitRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("no_such_key = 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	p := New(Options{ConfigPath: path, LogDir: t.TempDir()})
	if err := p.Init(nil); err == nil {
		t.Fatal("expected Init to reject unknown keys")
	}
}
