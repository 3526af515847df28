// Package logging is the process-wide structured logger.
//
// Call sites keep a flat shape: an event name plus an optional field map.
//
//	logging.Info("feed_ranked", map[string]any{"user_id": id, "items": n})
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger("info", "json", os.Stderr)
)

// Init reconfigures the global logger. format is "json" or "console".
func Init(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	l := newLogger(level, format, w)
	mu.Lock()
	log = l
	mu.Unlock()
}

func newLogger(level, format string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the current global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Log writes msg with fields at the given level.
func Log(level zerolog.Level, msg string, fields map[string]any) {
	l := Logger()
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			ev = ev.AnErr(k, err)
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func Debug(msg string, fields map[string]any) { Log(zerolog.DebugLevel, msg, fields) }
func Info(msg string, fields map[string]any) { Log(zerolog.InfoLevel, msg, fields) }
func Warn(msg string, fields map[string]any) { Log(zerolog.WarnLevel, msg, fields) }
func Error(msg string, fields map[string]any) { Log(zerolog.ErrorLevel, msg, fields) }
