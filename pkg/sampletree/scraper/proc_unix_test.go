//go:build unix

package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processRunning reports whether pid is alive and not a zombie, using /proc.
func processRunning(t *testing.T, pid int) bool {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// state is the first field after the parenthesized command name
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z" && fields[0] != "X"
}

func TestGatewayTimeoutKillsProcessGroup(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("/proc not available")
	}

	pidFile := filepath.Join(t.TempDir(), "helper.pid")
	g := newScriptGateway(t, `
sleep 30 &
echo $! > "`+pidFile+`"
wait
`, WithTimeout(300*time.Millisecond))

	start := time.Now()
	_, err := g.Fetch(context.Background(), "Think")
	elapsed := time.Since(start)

	requireScrapeError(t, err, KindTimeout)
	// the helper holds stdout open; only killing it lets Fetch return before WaitDelay
	assert.Less(t, elapsed, 300*time.Millisecond+waitDelay)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !processRunning(t, pid)
	}, 2*time.Second, 20*time.Millisecond, "helper process %d still running", pid)
}
