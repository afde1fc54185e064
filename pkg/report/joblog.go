package report

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// jobLog captures one report job's activity twice: structured JSON events in
// agent_log.jsonl and a human-readable stream in console_log.txt. The console
// handler lives only for the duration of the job.
type jobLog struct {
	mu      sync.Mutex
	events  *os.File
	console *os.File
	logger  *slog.Logger
	started time.Time
}

type logEvent struct {
	Timestamp string         `json:"timestamp"`
	Elapsed   float64        `json:"elapsed_seconds"`
	Action    string         `json:"action"`
	Stage     string         `json:"stage"`
	Section   string         `json:"section,omitempty"`
	Message   string         `json:"message,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// openJobLog attaches both log files in the report directory. Failures fall
// back to a console-only or discard logger so the job itself never aborts on
// logging.
func openJobLog(dir string) *jobLog {
	jl := &jobLog{started: time.Now()}
	jl.events, _ = os.OpenFile(filepath.Join(dir, AgentLogFile),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	jl.console, _ = os.OpenFile(filepath.Join(dir, ConsoleLogFile),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if jl.console != nil {
		jl.logger = slog.New(slog.NewTextHandler(jl.console, nil))
	} else {
		jl.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return jl
}

// event appends one structured record and mirrors it to the console stream.
func (jl *jobLog) event(action, stage, section, message string, detail map[string]any) {
	jl.mu.Lock()
	defer jl.mu.Unlock()

	if jl.events != nil {
		rec := logEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Elapsed:   time.Since(jl.started).Seconds(),
			Action:    action,
			Stage:     stage,
			Section:   section,
			Message:   message,
			Detail:    detail,
		}
		if line, err := json.Marshal(rec); err == nil {
			jl.events.Write(append(line, '\n'))
		}
	}

	attrs := []any{"action", action, "stage", stage}
	if section != "" {
		attrs = append(attrs, "section", section)
	}
	jl.logger.Info(message, attrs...)
}

// close detaches both streams.
func (jl *jobLog) close() {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	if jl.events != nil {
		jl.events.Close()
		jl.events = nil
	}
	if jl.console != nil {
		jl.console.Close()
		jl.console = nil
	}
	jl.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}
