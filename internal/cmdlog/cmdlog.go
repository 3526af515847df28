// Package cmdlog wraps CLI command bodies with run/error metrics and a log line.
package cmdlog

import (
	"time"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
)

// Run executes f as command cmd.
func Run(cmd string, f func() error) error {
	start := time.Now()
	metrics.IncCommandRun(cmd)
	err := f()
	fields := map[string]any{"took_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err
		logging.Error(cmd+"_error", fields)
	} else {
		logging.Info(cmd+"_ok", fields)
	}
	return err
}
