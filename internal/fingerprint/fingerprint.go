// Package fingerprint builds the content and user fingerprints the ranker
// compares. Both builders recompute wholesale and upsert; neither increments.
package fingerprint

import (
	"context"
	"time"

	"feedcore/internal/model"
)

// ContentSource reads content items. Missing items return model.ErrNotFound.
type ContentSource interface {
	GetContent(ctx context.Context, id string) (model.Content, error)
}

// ContentStore persists content fingerprints.
type ContentStore interface {
	UpsertContentFingerprint(ctx context.Context, fp model.ContentFingerprint) error
}

// UserStore persists user fingerprints.
type UserStore interface {
	UpsertUserFingerprint(ctx context.Context, fp model.UserFingerprint) error
}

// LedgerReader reads a user's ledger entries since a point in time.
type LedgerReader interface {
	InteractionsForUser(ctx context.Context, userID string, since time.Time) ([]model.Interaction, error)
}

func utcNow() time.Time { return time.Now().UTC() }
