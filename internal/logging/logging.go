// Package logging sets up the one-line-per-record run log required by
// the external interface: "<timestamp> - <level> - <message>", written
// to logs/log_<timestamp>.log alongside the usual stdout handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// lineHandler renders one slog.Record per line as
// "<timestamp> - <LEVEL> - <message>", the format the original tool's
// logging.basicConfig produced.
type lineHandler struct {
	w     io.Writer
	level slog.Level
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
		return true
	})
	_, err := fmt.Fprintf(h.w, "%s - %s - %s\n",
		r.Time.Format("2006-01-02 15:04:05,000"), r.Level.String(), msg)
	return err
}

func (h *lineHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(_ string) slog.Handler      { return h }

// Setup opens logs/log_<timestamp>.log under root, installs a slog
// default logger that fans out to that file and to stdout, and returns
// a closer the caller should defer.
func Setup(root string, level slog.Level) (func() error, error) {
	dir := filepath.Join(root, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := "log_" + time.Now().UTC().Format("20060102T150405Z") + ".log"
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	multi := io.MultiWriter(f, os.Stdout)
	slog.SetDefault(slog.New(&lineHandler{w: multi, level: level}))

	return f.Close, nil
}
