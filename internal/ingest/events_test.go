package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"

	"feedcore/internal/model"
	"feedcore/internal/store/sqlitevec"
)

func setup(t *testing.T) (*sqlitevec.DB, context.Context) {
	t.Helper()
	db, err := sqlitevec.Open(":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	gt.NoError(t, db.PutContent(ctx, model.Content{ID: "c1", AuthorID: "a1", Category: "post", CreatedAt: time.Now().UTC()}))
	return db, ctx
}

func TestRecordAssignsWeightAndID(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, nil)

	in, err := r.Record(ctx, Event{UserID: "u1", ContentID: "c1", Kind: model.BehaviorSave})
	gt.NoError(t, err)
	gt.Equal(t, in.Weight, 3.0)
	_, err = uuid.Parse(in.ID)
	gt.NoError(t, err)
	gt.False(t, in.Timestamp.IsZero())

	in, err = r.Record(ctx, Event{UserID: "u1", ContentID: "c1", Kind: "mystery"})
	gt.NoError(t, err)
	gt.Equal(t, in.Weight, 1.0)

	got, err := db.InteractionsForUser(ctx, "u1", time.Now().Add(-time.Hour))
	gt.NoError(t, err)
	gt.A(t, got).Length(2)
}

func TestRecordWeightOverride(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, nil)
	w := -1.0
	in, err := r.Record(ctx, Event{UserID: "u1", ContentID: "c1", Kind: model.BehaviorView, Weight: &w,
		Metadata: map[string]any{"feedback_kind": "hide"}})
	gt.NoError(t, err)
	gt.Equal(t, in.Weight, -1.0)
}

func TestRecordValidation(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, nil)
	neg := -3
	for name, ev := range map[string]Event{
		"missing user":     {ContentID: "c1", Kind: model.BehaviorLike},
		"missing content":  {UserID: "u1", Kind: model.BehaviorLike},
		"missing kind":     {UserID: "u1", ContentID: "c1"},
		"negative seconds": {UserID: "u1", ContentID: "c1", Kind: model.BehaviorView, Duration: &neg},
		"bad id":           {ID: "not-a-uuid", UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Record(ctx, ev)
			gt.True(t, errors.Is(err, model.ErrValidation))
		})
	}
}

func TestRecordMissingContent(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, nil)
	_, err := r.Record(ctx, Event{UserID: "u1", ContentID: "nope", Kind: model.BehaviorLike})
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRecordIdentityEnforced(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, db)
	_, err := r.Record(ctx, Event{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.True(t, errors.Is(err, model.ErrNotFound))

	gt.NoError(t, db.PutUser(ctx, "u1"))
	_, err = r.Record(ctx, Event{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.NoError(t, err)
}

func TestRecordIdempotentRetry(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, nil)
	id := uuid.NewString()
	for i := 0; i < 2; i++ {
		in, err := r.Record(ctx, Event{ID: id, UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
		gt.NoError(t, err)
		gt.Equal(t, in.ID, id)
	}
	got, err := db.InteractionsForUser(ctx, "u1", time.Now().Add(-time.Hour))
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
}

func TestRecordRetryReturnsStoredEntry(t *testing.T) {
	db, ctx := setup(t)
	r := NewRecorder(db, db, nil)
	id := uuid.NewString()
	first := time.UnixMilli(time.Now().Add(-time.Minute).UnixMilli()).UTC()
	_, err := r.Record(ctx, Event{ID: id, UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike, Timestamp: first})
	gt.NoError(t, err)

	again, err := r.Record(ctx, Event{ID: id, UserID: "u1", ContentID: "c1", Kind: model.BehaviorSave, Timestamp: time.Now().UTC()})
	gt.NoError(t, err)
	gt.Equal(t, again.Kind, model.BehaviorLike)
	gt.Equal(t, again.Weight, 1.0)
	gt.True(t, again.Timestamp.Equal(first))
}
