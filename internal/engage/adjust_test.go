package engage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"feedcore/internal/model"
	"feedcore/internal/store/sqlitevec"
)

func seeded(t *testing.T, pop, fresh float64) (*sqlitevec.DB, context.Context) {
	t.Helper()
	db, err := sqlitevec.Open(":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	gt.NoError(t, db.UpsertContentFingerprint(ctx, model.ContentFingerprint{
		ContentID: "c1", Vector: make([]float32, model.Dim), Popularity: pop, Freshness: fresh, UpdatedAt: time.Now(),
	}))
	return db, ctx
}

func TestHideOnLowPopularityFloorsAtZero(t *testing.T) {
	db, ctx := seeded(t, 3, 0.8)
	a := NewAdjuster(db, model.DefaultHidePenalty, nil)
	ok, err := a.Apply(ctx, "u1", "c1", model.FeedbackHide)
	gt.NoError(t, err)
	gt.True(t, ok)
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 0.0)
	gt.Equal(t, fp.Freshness, 0.4)
}

func TestNonDemotionIsNoop(t *testing.T) {
	db, ctx := seeded(t, 3, 0.8)
	ok, err := NewAdjuster(db, 5, nil).Apply(ctx, "u1", "c1", "more_like_this")
	gt.NoError(t, err)
	gt.False(t, ok)
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 3.0)
}

func TestHideMissingFingerprintIsNoop(t *testing.T) {
	db, ctx := seeded(t, 3, 0.8)
	ok, err := NewAdjuster(db, 5, nil).Apply(ctx, "u1", "absent", model.FeedbackHide)
	gt.NoError(t, err)
	gt.False(t, ok)
}

func TestConcurrentHidesStayInBounds(t *testing.T) {
	db, ctx := seeded(t, 40, 1)
	a := NewAdjuster(db, 5, nil)
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Apply(ctx, "u1", "c1", model.FeedbackHide)
			gt.NoError(t, err)
		}()
	}
	wg.Wait()
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 0.0)
	gt.Equal(t, fp.Freshness, model.FreshnessFloor)
}

func TestBudgetLimitsHides(t *testing.T) {
	db, ctx := seeded(t, 100, 1)
	now := time.Now().UTC()
	hide := func(id string) {
		_, err := db.AppendInteraction(ctx, model.Interaction{
			ID: id, UserID: "u1", ContentID: "c1", Kind: model.BehaviorView, Weight: -1,
			Metadata: map[string]any{"feedback_kind": model.FeedbackHide}, Timestamp: now,
		})
		gt.NoError(t, err)
	}
	a := NewAdjuster(db, 5, NewBudget(db, 2, 0))

	hide("h1")
	ok, err := a.Apply(ctx, "u1", "c1", model.FeedbackHide)
	gt.NoError(t, err)
	gt.True(t, ok)
	hide("h2")
	ok, err = a.Apply(ctx, "u1", "c1", model.FeedbackHide)
	gt.NoError(t, err)
	gt.True(t, ok)
	hide("h3")
	ok, err = a.Apply(ctx, "u1", "c1", model.FeedbackHide)
	gt.NoError(t, err)
	gt.False(t, ok)

	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 90.0)

	n, err := db.CountHidesSince(ctx, "u1", now.Add(-time.Minute))
	gt.NoError(t, err)
	gt.Equal(t, n, 3)
}
