package cmdlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
)

func TestRunCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logging.Init("info", "json", &buf)

	runs := testutil.ToFloat64(metrics.CommandRuns.WithLabelValues("probe"))
	errs := testutil.ToFloat64(metrics.CommandErrors.WithLabelValues("probe"))

	gt.NoError(t, Run("probe", func() error { return nil }))
	gt.Error(t, Run("probe", func() error { return errors.New("nope") }))

	gt.Equal(t, testutil.ToFloat64(metrics.CommandRuns.WithLabelValues("probe")), runs+2)
	gt.Equal(t, testutil.ToFloat64(metrics.CommandErrors.WithLabelValues("probe")), errs+1)
	gt.S(t, buf.String()).Contains("probe_ok")
	gt.S(t, buf.String()).Contains("probe_error")
}
