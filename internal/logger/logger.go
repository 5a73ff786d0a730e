// Package logger backs all process logging with a slog text handler.
// Subsystems log through the levelled printf helpers; the order pipeline's
// canonical transition lines go through Order so the line is the whole
// message and stays greppable.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	current  atomic.Pointer[slog.Logger]
)

func init() {
	levelVar.Set(slog.LevelInfo)
	current.Store(newLogger(os.Stdout))
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetOutput swaps the destination for all subsequent log lines. Safe to
// call while other goroutines are logging.
func SetOutput(w io.Writer) {
	current.Store(newLogger(w))
}

// SetLevel applies a config-supplied level name. Unknown names fall back
// to info rather than failing startup.
func SetLevel(name string) {
	levelVar.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Order emits one canonical order transition line, e.g.
// [order:{client_id},{status},...]. The line is passed through untouched
// as the record message.
func Order(line string) {
	current.Load().Log(context.Background(), slog.LevelInfo, line)
}

func Debugf(format string, v ...any) {
	current.Load().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	current.Load().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	current.Load().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	current.Load().Error(fmt.Sprintf(format, v...))
}
