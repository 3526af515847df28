package fingerprint

import (
	"context"
	"errors"
	"time"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
	"feedcore/internal/model"
	"feedcore/internal/util"
	"feedcore/internal/vector"
)

// UserBuilder derives a user fingerprint from the trailing ledger window.
type UserBuilder struct {
	ledger LedgerReader
	source ContentSource
	store  UserStore
	window time.Duration
	now    func() time.Time
}

// NewUserBuilder returns a builder over model.FingerprintWindow.
func NewUserBuilder(ledger LedgerReader, source ContentSource, store UserStore) *UserBuilder {
	return &UserBuilder{ledger: ledger, source: source, store: store, window: model.FingerprintWindow, now: utcNow}
}

// Build computes the fingerprint of userID. It reports false when no entry
// in the window references existing content; nothing is written then.
func (b *UserBuilder) Build(ctx context.Context, userID string, now time.Time) (model.UserFingerprint, bool, error) {
	events, err := b.ledger.InteractionsForUser(ctx, userID, now.Add(-b.window))
	if err != nil {
		return model.UserFingerprint{}, false, err
	}
	if len(events) == 0 {
		return model.UserFingerprint{}, false, nil
	}

	acc := make([]float64, model.Dim)
	interest := make([]string, 0, model.MaxInterestTags)
	categories := make([]string, 0, model.MaxCategoryTags)
	seen := make(map[string]*model.Content)
	var (
		count int
		total float64
	)
	for _, ev := range events {
		c, ok := seen[ev.ContentID]
		if !ok {
			got, err := b.source.GetContent(ctx, ev.ContentID)
			switch {
			case errors.Is(err, model.ErrNotFound):
				c = nil
			case err != nil:
				return model.UserFingerprint{}, false, err
			default:
				c = &got
			}
			seen[ev.ContentID] = c
		}
		if c == nil {
			// orphaned by a content deletion
			continue
		}
		vector.Accumulate(acc, ev.ContentID, ev.Weight)
		for _, w := range util.Words(c.Description, model.MaxInterestTags) {
			interest = util.AppendUnique(interest, model.MaxInterestTags, w)
		}
		categories = util.AppendUnique(categories, model.MaxCategoryTags, c.Category)
		count++
		total += ev.Weight
	}
	if count == 0 {
		return model.UserFingerprint{}, false, nil
	}
	return model.UserFingerprint{
		UserID:        userID,
		Vector:        vector.Normalize(acc),
		InterestTags:  interest,
		CategoryTags:  categories,
		BehaviorCount: count,
		AvgEngagement: total / float64(count),
		UpdatedAt:     now,
	}, true, nil
}

// Rebuild recomputes and upserts the fingerprint of userID. It reports false
// when there was nothing to build from; an existing fingerprint is left as is.
func (b *UserBuilder) Rebuild(ctx context.Context, userID string) (bool, error) {
	fp, ok, err := b.Build(ctx, userID, b.now())
	if err != nil {
		metrics.IncRebuildError("user")
		return false, err
	}
	if !ok {
		logging.Debug("user fingerprint skipped: no qualifying interactions", map[string]any{"user_id": userID})
		return false, nil
	}
	if err := b.store.UpsertUserFingerprint(ctx, fp); err != nil {
		metrics.IncRebuildError("user")
		return false, err
	}
	metrics.IncRebuild("user")
	return true, nil
}
