package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %04d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestReadLastNLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	writeLines(t, path, 20)

	got := readLastNLines(path, 3)
	want := []string{"line 0018", "line 0019", "line 0020"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}

	if all := readLastNLines(path, 100); len(all) != 20 {
		t.Errorf("expected all 20 lines, got %d", len(all))
	}
	if missing := readLastNLines(filepath.Join(t.TempDir(), "nope.log"), 5); missing != nil {
		t.Errorf("expected nil for missing file, got %v", missing)
	}
}

func TestRotatingFileRotatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	writeLines(t, path, 50) // 500 bytes

	f, err := openRotatingFile(path, 100, 5)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "line 0046\n") {
		t.Errorf("expected the last 5 lines to survive, got %q", data)
	}
	if f.Size() != int64(len(data)) {
		t.Errorf("Size() = %d, want %d", f.Size(), len(data))
	}
}

func TestRotatingFileRotatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "agent.log")

	f, err := openRotatingFile(path, 100, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	for i := 1; i <= 20; i++ {
		if _, err := fmt.Fprintf(f, "entry %02d\n", i); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if f.Size() >= 100 {
		t.Errorf("expected rotation to keep the file under the limit, size %d", f.Size())
	}

	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "entry 20\n") {
		t.Errorf("latest entry missing: %q", data)
	}
}

func TestRotatingFileClosed(t *testing.T) {
	f, err := OpenRotatingFile(filepath.Join(t.TempDir(), "agent.log"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := f.Write([]byte("x")); err == nil {
		t.Error("expected write after close to fail")
	}
}

func TestLoggingPrefixAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")

	logs, err := NewLogging(path, false, false)
	if err != nil {
		t.Fatal(err)
	}
	jobs := logs.Logger("JOBS")
	jobs.Debug("hidden detail")
	jobs.Info("job done", "printer", "TM_T20")
	if err := logs.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	out := string(data)
	if !strings.Contains(out, "JOBS") || !strings.Contains(out, "job done") {
		t.Errorf("expected prefixed info line, got %q", out)
	}
	if strings.Contains(out, "hidden detail") {
		t.Errorf("debug output leaked without verbose: %q", out)
	}
}
