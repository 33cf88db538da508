package printer

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CUPSEnumerator lists printers through the CUPS command line tools.
type CUPSEnumerator struct {
	Run CommandRunner
}

// Enumerate implements Enumerator.
func (e CUPSEnumerator) Enumerate(ctx context.Context) ([]RawPrinter, error) {
	run := e.Run
	if run == nil {
		run = execRunner
	}

	out, err := run(ctx, "lpstat", "-p")
	if err != nil {
		return nil, fmt.Errorf("lpstat -p: %w", err)
	}
	printers := parseLpstatPrinters(string(out))

	// lpstat -d exits non-zero when no default is set.
	if out, err := run(ctx, "lpstat", "-d"); err == nil {
		def := parseLpstatDefault(string(out))
		for i := range printers {
			printers[i].IsDefault = printers[i].Name == def
		}
	}

	for i := range printers {
		out, err := run(ctx, "lpoptions", "-p", printers[i].Name)
		if err != nil {
			continue
		}
		opts := parseOptions(string(out))
		printers[i].DisplayName = opts["printer-info"]
		printers[i].Description = opts["printer-make-and-model"]
		printers[i].Media = opts["media"]
		printers[i].DPI = parseDPI(opts["printer-resolution"])
	}
	return printers, nil
}

// parseLpstatPrinters reads lines like
// "printer TM_T20 is idle.  enabled since ...".
func parseLpstatPrinters(out string) []RawPrinter {
	var printers []RawPrinter
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "printer" {
			continue
		}
		p := RawPrinter{Name: fields[1], Status: "unknown"}
		rest := strings.Join(fields[2:], " ")
		switch {
		case strings.Contains(rest, "disabled"):
			p.Status = "disabled"
		case strings.HasPrefix(rest, "is idle"):
			p.Status = "idle"
		case strings.HasPrefix(rest, "now printing"):
			p.Status = "printing"
		}
		printers = append(printers, p)
	}
	return printers
}

// parseLpstatDefault reads "system default destination: NAME".
func parseLpstatDefault(out string) string {
	_, name, ok := strings.Cut(strings.TrimSpace(out), "system default destination:")
	if !ok {
		return ""
	}
	return strings.TrimSpace(name)
}

// parseOptions splits lpoptions output into key/value pairs, honouring
// single quotes, double quotes and backslash escapes.
func parseOptions(out string) map[string]string {
	opts := make(map[string]string)
	var (
		token   strings.Builder
		quote   rune
		escaped bool
	)
	flush := func() {
		if token.Len() == 0 {
			return
		}
		k, v, _ := strings.Cut(token.String(), "=")
		opts[k] = v
		token.Reset()
	}

	for _, r := range strings.TrimSpace(out) {
		switch {
		case escaped:
			token.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				token.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			token.WriteRune(r)
		}
	}
	flush()
	return opts
}

var dpiPattern = regexp.MustCompile(`(\d+)(?:x\d+)?dpi`)

func parseDPI(s string) int {
	m := dpiPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
