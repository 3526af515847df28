// Package ingest validates interactions and appends them to the behavior ledger.
package ingest

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
	"feedcore/internal/model"
)

// Ledger appends immutable interaction entries.
type Ledger interface {
	AppendInteraction(ctx context.Context, in model.Interaction) (bool, error)
	GetInteraction(ctx context.Context, id string) (model.Interaction, error)
}

// ContentStore answers whether a content item exists.
type ContentStore interface {
	ContentExists(ctx context.Context, id string) (bool, error)
}

// IdentityStore answers whether a user exists.
type IdentityStore interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// Event is a caller-supplied interaction before it is accepted.
type Event struct {
	// ID makes retries idempotent; a new UUID is assigned when empty.
	ID        string             `validate:"omitempty,uuid"`
	UserID    string             `validate:"required,max=128"`
	ContentID string             `validate:"required,max=128"`
	Kind      model.BehaviorKind `validate:"required,max=64"`
	Duration  *int               `validate:"omitempty,gte=0"`
	Metadata  map[string]any
	// Weight overrides the kind's table weight (feedback entries).
	Weight    *float64
	Timestamp time.Time
}

// Recorder is the write path of the behavior ledger.
type Recorder struct {
	ledger   Ledger
	content  ContentStore
	identity IdentityStore
	validate *validator.Validate
	now      func() time.Time
}

// NewRecorder builds a Recorder. A nil identity store disables the user check.
func NewRecorder(ledger Ledger, content ContentStore, identity IdentityStore) *Recorder {
	return &Recorder{
		ledger:   ledger,
		content:  content,
		identity: identity,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record validates ev and appends it. The referenced content must exist.
// Retrying an id already in the ledger returns the stored entry unchanged.
func (r *Recorder) Record(ctx context.Context, ev Event) (model.Interaction, error) {
	if err := r.validate.Struct(ev); err != nil {
		return model.Interaction{}, goerr.Wrap(model.ErrValidation, "invalid interaction",
			goerr.V("user_id", ev.UserID), goerr.V("content_id", ev.ContentID), goerr.V("cause", err.Error()))
	}
	ok, err := r.content.ContentExists(ctx, ev.ContentID)
	if err != nil {
		return model.Interaction{}, err
	}
	if !ok {
		return model.Interaction{}, goerr.Wrap(model.ErrNotFound, "content not found", goerr.V("content_id", ev.ContentID))
	}
	if r.identity != nil {
		ok, err := r.identity.UserExists(ctx, ev.UserID)
		if err != nil {
			return model.Interaction{}, err
		}
		if !ok {
			return model.Interaction{}, goerr.Wrap(model.ErrNotFound, "user not found", goerr.V("user_id", ev.UserID))
		}
	}

	in := model.Interaction{
		ID:        ev.ID,
		UserID:    ev.UserID,
		ContentID: ev.ContentID,
		Kind:      ev.Kind,
		Weight:    ev.Kind.Weight(),
		Duration:  ev.Duration,
		Metadata:  ev.Metadata,
		Timestamp: ev.Timestamp,
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if ev.Weight != nil {
		in.Weight = *ev.Weight
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = r.now()
	}
	inserted, err := r.ledger.AppendInteraction(ctx, in)
	if err != nil {
		return model.Interaction{}, err
	}
	if !inserted {
		logging.Debug("interaction already recorded", map[string]any{"interaction_id": in.ID})
		return r.ledger.GetInteraction(ctx, in.ID)
	}
	metrics.IncInteraction(in.Kind)
	return in, nil
}
