// Package engage applies explicit user feedback to content fingerprints.
package engage

import (
	"context"
	"errors"
	"time"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
	"feedcore/internal/model"
)

// AtomicCounterStore mutates one numeric fingerprint field in a single
// atomic step. Decrement floors and Scale clamps to the field's range, so
// concurrent callers can never drive a field out of bounds.
type AtomicCounterStore interface {
	Increment(ctx context.Context, contentID, field string, delta float64) (float64, error)
	Decrement(ctx context.Context, contentID, field string, delta float64) (float64, error)
	Scale(ctx context.Context, contentID, field string, factor float64) (float64, error)
}

// Adjuster demotes content on hide feedback.
type Adjuster struct {
	counters AtomicCounterStore
	penalty  float64
	budget   *Budget
}

// NewAdjuster returns an adjuster subtracting penalty from popularity on
// hide. A nil budget applies every hide.
func NewAdjuster(counters AtomicCounterStore, penalty float64, budget *Budget) *Adjuster {
	if penalty < 0 {
		penalty = model.DefaultHidePenalty
	}
	return &Adjuster{counters: counters, penalty: penalty, budget: budget}
}

// Apply mutates the content fingerprint for a feedback kind and reports
// whether anything changed. Non-demotion kinds, a missing fingerprint and an
// exhausted budget are no-ops.
func (a *Adjuster) Apply(ctx context.Context, userID, contentID, kind string) (bool, error) {
	if !model.IsDemotion(kind) {
		return false, nil
	}
	if a.budget != nil {
		ok, err := a.budget.Allow(ctx, userID, time.Now().UTC())
		if err != nil {
			return false, err
		}
		if !ok {
			logging.Info("hide not applied: feedback budget exhausted", map[string]any{"user_id": userID, "content_id": contentID})
			return false, nil
		}
	}
	pop, err := a.counters.Decrement(ctx, contentID, model.FieldPopularity, a.penalty)
	if errors.Is(err, model.ErrNotFound) {
		logging.Info("hide not applied: no content fingerprint", map[string]any{"content_id": contentID})
		return false, nil
	}
	if err != nil {
		return false, err
	}
	fresh, err := a.counters.Scale(ctx, contentID, model.FieldFreshness, model.HideFreshnessFactor)
	if errors.Is(err, model.ErrNotFound) {
		// deleted between the two updates
		return true, nil
	}
	if err != nil {
		return true, err
	}
	metrics.IncFeedback(metrics.FeedbackHideApplied)
	logging.Debug("content demoted", map[string]any{"content_id": contentID, "popularity": pop, "freshness": fresh})
	return true, nil
}
