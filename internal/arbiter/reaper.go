package arbiter

import (
	"bufio"
	"strconv"
	"strings"
)

// parseNetstat returns the PIDs listening on port in `netstat -ano`
// output.
func parseNetstat(out string, port int) []int {
	suffix := ":" + strconv.Itoa(port)
	seen := make(map[int]bool)
	var pids []int

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		// Proto  Local  Foreign  State  PID
		if len(f) != 5 || !strings.EqualFold(f[0], "TCP") || !strings.HasSuffix(f[1], suffix) {
			continue
		}
		if !strings.EqualFold(f[3], "LISTENING") {
			continue
		}
		pid, err := strconv.Atoi(f[4])
		if err != nil || pid <= 0 || seen[pid] {
			continue
		}
		seen[pid] = true
		pids = append(pids, pid)
	}
	return pids
}

// tcpListen is the st column value of a listening socket in /proc/net/tcp.
const tcpListen = "0A"

// parseProcNetTCP returns the socket inodes listening on port in the
// contents of /proc/net/tcp or /proc/net/tcp6.
func parseProcNetTCP(out string, port int) []string {
	want := strings.ToUpper(strconv.FormatInt(int64(port), 16))
	for len(want) < 4 {
		want = "0" + want
	}

	var inodes []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		// sl local rem st tx:rx tr:when retrnsmt uid timeout inode
		if len(f) < 10 || f[3] != tcpListen {
			continue
		}
		_, p, ok := strings.Cut(f[1], ":")
		if !ok || !strings.EqualFold(p, want) {
			continue
		}
		if f[9] != "0" {
			inodes = append(inodes, f[9])
		}
	}
	return inodes
}
