// Package logging configures the process-wide slog logger with a stderr
// handler plus a daily rotating file under logs/{YYYY-MM-DD}.log.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dailyFileWriter appends to logs/{YYYY-MM-DD}.log, reopening the file when
// the local date changes.
type dailyFileWriter struct {
	mu      sync.Mutex
	dir     string
	current string
	file    *os.File
}

func newDailyFileWriter(dir string) (*dailyFileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &dailyFileWriter{dir: dir}, nil
}

func (w *dailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().Format("2006-01-02")
	if w.file == nil || day != w.current {
		if w.file != nil {
			w.file.Close()
		}
		f, err := os.OpenFile(filepath.Join(w.dir, day+".log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, err
		}
		w.file = f
		w.current = day
	}
	return w.file.Write(p)
}

func (w *dailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// teeHandler fans records out to both underlying handlers.
type teeHandler struct {
	a, b slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.a.Enabled(ctx, level) || h.b.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	errA := h.a.Handle(ctx, r.Clone())
	errB := h.b.Handle(ctx, r)
	if errA != nil {
		return errA
	}
	return errB
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{a: h.a.WithAttrs(attrs), b: h.b.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{a: h.a.WithGroup(name), b: h.b.WithGroup(name)}
}

// Setup installs the default slog logger: text on stderr, JSON in the daily
// file. Returns a closer for the file writer.
func Setup(logDir string) (io.Closer, error) {
	fw, err := newDailyFileWriter(logDir)
	if err != nil {
		return nil, err
	}
	handler := &teeHandler{
		a: slog.NewTextHandler(os.Stderr, nil),
		b: slog.NewJSONHandler(fw, nil),
	}
	slog.SetDefault(slog.New(handler))
	return fw, nil
}
