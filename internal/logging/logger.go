package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CommandLog is a single audit entry for one dispatched Command.
type CommandLog struct {
	Timestamp     time.Time `json:"timestamp"`
	CommandID     string    `json:"command_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	Tag           string    `json:"tag"`
	ConnHandle    int64     `json:"conn_handle,omitempty"`
	TableHandle   int64     `json:"table_handle,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	BatchesStreamed int     `json:"batches_streamed,omitempty"`
}

// CommandLogger records one line per completed Command, with optional
// console and file dual output.
type CommandLogger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultCommandLogger = &CommandLogger{enabled: true, console: false}

// DefaultCommandLogger returns the process-wide command audit logger.
func DefaultCommandLogger() *CommandLogger {
	return defaultCommandLogger
}

// SetOutput directs JSON-line output to the given file, replacing any
// previously configured file.
func (l *CommandLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables or disables the human-readable console line.
func (l *CommandLogger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log records one command's outcome.
func (l *CommandLogger) Log(entry *CommandLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "ok"
		if !entry.Success {
			status = "err"
		}
		fmt.Printf("[command] %s %s %s %dms\n", status, entry.CommandID, entry.Tag, entry.DurationMs)
		if entry.Error != "" {
			fmt.Printf("[command]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, err := json.Marshal(entry)
		if err == nil {
			l.file.Write(append(data, '\n'))
		}
	}
}

// Close releases the underlying log file, if any.
func (l *CommandLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
