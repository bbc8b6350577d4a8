// Package diag is the diagnostic logging surface for codeix. It exists
// so the engine can log recoverable errors exactly once (per §7's
// policy) without ever writing to stdio while the MCP server owns
// stdin/stdout for the tool-call protocol.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	mcpMode  bool
)

// SetMCPMode suppresses all diagnostic output when enabled; the MCP
// server calls this before it takes over stdio.
func SetMCPMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	mcpMode = enabled
}

// SetOutput redirects diagnostic output, primarily for tests. Passing
// nil disables output entirely.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Logf writes one timestamped diagnostic line. Safe for concurrent use.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if mcpMode || out == nil {
		return
	}
	fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

// Warn logs a recoverable-error diagnostic. Every call site in the
// engine that swallows an error per §7 routes it through here so the
// "never silently swallowed" policy holds.
func Warn(op string, err error) {
	Logf("warn: %s: %v", op, err)
}
