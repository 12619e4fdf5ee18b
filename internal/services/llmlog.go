package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger appends provider prompts and responses to a debug log file.
// A nil *LLMLogger is valid and logs nothing.
type LLMLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewLLMLogger opens (or creates) the provider interaction log under
// baseDir. Returns nil when disabled.
func NewLLMLogger(baseDir string, enabled bool) (*LLMLogger, error) {
	if !enabled {
		return nil, nil
	}

	dir := filepath.Join(baseDir, "log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, "provider.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open provider log: %w", err)
	}

	return &LLMLogger{file: file}, nil
}

func (ll *LLMLogger) logf(format string, args ...any) {
	if ll == nil {
		return
	}

	ll.mu.Lock()
	defer ll.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogRequest records an outgoing provider prompt.
func (ll *LLMLogger) LogRequest(module, prompt string) {
	ll.logf("=== REQUEST (%s) ===\n%s\n====================\n\n", module, prompt)
}

// LogResponse records a raw provider response.
func (ll *LLMLogger) LogResponse(module, response string) {
	ll.logf("=== RESPONSE (%s) ===\n%s\n=====================\n\n", module, response)
}

// Close closes the underlying log file.
func (ll *LLMLogger) Close() error {
	if ll == nil || ll.file == nil {
		return nil
	}

	ll.mu.Lock()
	defer ll.mu.Unlock()
	return ll.file.Close()
}
