package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedcore/internal/model"
)

// OtherLabel stands in for caller-supplied kinds outside the known set.
const OtherLabel = "other"

// FeedbackHideApplied counts hides that actually demoted content.
const FeedbackHideApplied = "hide_applied"

var (
	Interactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_interactions_total",
		Help: "Interactions appended to the behavior ledger",
	}, []string{"kind"})
	Feedback = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_feedback_total",
		Help: "Explicit feedback events by feedback kind",
	}, []string{"kind"})
	FingerprintRebuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_fingerprint_rebuilds_total",
		Help: "Fingerprint recomputations by fingerprint kind",
	}, []string{"fingerprint"})
	FingerprintErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_fingerprint_errors_total",
		Help: "Swallowed fingerprint recomputation failures",
	}, []string{"fingerprint"})
	FeedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_feed_requests_total",
		Help: "Feed requests by mode (personalized, cold_start)",
	}, []string{"mode"})
	FeedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedcore_feed_duration_seconds",
		Help:    "Feed ranking duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	RefreshQueue = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_refresh_queue_total",
		Help: "Queued user refresh events by outcome",
	}, []string{"outcome"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcore_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(Interactions, Feedback, FingerprintRebuilds, FingerprintErrors,
		FeedRequests, FeedDuration, RefreshQueue, CommandRuns, CommandErrors)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveFeedDuration records a ranking duration.
func ObserveFeedDuration(start time.Time) {
	FeedDuration.Observe(time.Since(start).Seconds())
}

// IncInteraction counts a ledger append. Kinds outside the weight table share
// the OtherLabel series.
func IncInteraction(kind model.BehaviorKind) {
	label := string(kind)
	if !kind.Known() {
		label = OtherLabel
	}
	Interactions.WithLabelValues(label).Inc()
}

// IncFeedback counts explicit feedback; only demotion kinds keep their own series.
func IncFeedback(kind string) {
	if !model.IsDemotion(kind) && kind != FeedbackHideApplied {
		kind = OtherLabel
	}
	Feedback.WithLabelValues(kind).Inc()
}

func IncRebuild(fingerprint string) { FingerprintRebuilds.WithLabelValues(fingerprint).Inc() }
func IncRebuildError(fingerprint string) { FingerprintErrors.WithLabelValues(fingerprint).Inc() }
func IncFeedRequest(mode string) { FeedRequests.WithLabelValues(mode).Inc() }
func IncRefreshQueue(outcome string) { RefreshQueue.WithLabelValues(outcome).Inc() }
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
