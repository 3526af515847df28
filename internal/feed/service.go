// Package feed is the entry point of the ranking core: it records
// interactions and feedback, keeps fingerprints current, and serves feeds.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/engage"
	"feedcore/internal/fingerprint"
	"feedcore/internal/ingest"
	"feedcore/internal/jobs"
	"feedcore/internal/logging"
	"feedcore/internal/metrics"
	"feedcore/internal/model"
	"feedcore/internal/recommend"
)

// ContentWriter is the write side of the bundled content store.
type ContentWriter interface {
	PutContent(ctx context.Context, c model.Content) error
	DeleteContent(ctx context.Context, id string) (int64, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Recorder    *ingest.Recorder
	Content     *fingerprint.ContentBuilder
	Users       *fingerprint.UserBuilder
	Refresher   jobs.Refresher
	Ranker      *recommend.Ranker
	Adjuster    *engage.Adjuster
	Store       ContentWriter
	RankTimeout time.Duration
}

// Service exposes the feed operations.
type Service struct {
	deps     Deps
	validate *validator.Validate
}

func New(deps Deps) *Service {
	if deps.Refresher == nil {
		deps.Refresher = jobs.SyncRefresher{Users: deps.Users}
	}
	return &Service{deps: deps, validate: validator.New()}
}

// Interaction is the input of RecordInteraction.
type Interaction struct {
	ID        string             `json:"id,omitempty"`
	UserID    string             `json:"user_id"`
	ContentID string             `json:"content_id"`
	Kind      model.BehaviorKind `json:"kind"`
	Duration  *int               `json:"duration,omitempty"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// Feedback is the input of SubmitFeedback.
type Feedback struct {
	UserID    string `json:"user_id" validate:"required"`
	ContentID string `json:"content_id" validate:"required"`
	Kind      string `json:"kind" validate:"required,max=64"`
	Reason    string `json:"reason,omitempty" validate:"max=512"`
}

// RecordInteraction appends an interaction and refreshes the user's
// fingerprint. A failed refresh does not fail the call.
func (s *Service) RecordInteraction(ctx context.Context, in Interaction) (model.Ack, error) {
	rec, err := s.deps.Recorder.Record(ctx, ingest.Event{
		ID:        in.ID,
		UserID:    in.UserID,
		ContentID: in.ContentID,
		Kind:      in.Kind,
		Duration:  in.Duration,
		Metadata:  in.Metadata,
	})
	if err != nil {
		return model.Ack{}, err
	}
	s.refreshUser(ctx, rec.UserID)
	return model.Ack{InteractionID: rec.ID, RecordedAt: rec.Timestamp}, nil
}

// RebuildContentFingerprint recomputes one content fingerprint. Missing
// content is not an error.
func (s *Service) RebuildContentFingerprint(ctx context.Context, contentID string) error {
	if strings.TrimSpace(contentID) == "" {
		return goerr.Wrap(model.ErrValidation, "content id is required")
	}
	_, err := s.deps.Content.Rebuild(ctx, contentID)
	return err
}

// RebuildUserFingerprint recomputes one user fingerprint inline and reports
// whether one was written.
func (s *Service) RebuildUserFingerprint(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, goerr.Wrap(model.ErrValidation, "user id is required")
	}
	return s.deps.Users.Rebuild(ctx, userID)
}

// RankFeed returns one page of userID's feed within the configured deadline.
func (s *Service) RankFeed(ctx context.Context, userID string, page, pageSize int) (model.FeedPage, error) {
	start := time.Now()
	defer metrics.ObserveFeedDuration(start)
	ctx, cancel := recommend.Deadline(ctx, s.deps.RankTimeout)
	defer cancel()

	out, err := s.deps.Ranker.Rank(ctx, userID, page, pageSize)
	if err != nil {
		metrics.IncFeedRequest("error")
		return model.FeedPage{}, err
	}
	if out.Personalized {
		metrics.IncFeedRequest("personalized")
	} else {
		metrics.IncFeedRequest("cold_start")
	}
	return out, nil
}

// SubmitFeedback records explicit feedback and, for a hide, demotes the
// content. Demotion failures are logged; the ledger entry stands.
func (s *Service) SubmitFeedback(ctx context.Context, fb Feedback) (model.Ack, error) {
	if err := s.validate.Struct(fb); err != nil {
		return model.Ack{}, goerr.Wrap(model.ErrValidation, "invalid feedback", goerr.V("cause", err.Error()))
	}
	w := model.FeedbackWeight(fb.Kind)
	rec, err := s.deps.Recorder.Record(ctx, ingest.Event{
		UserID:    fb.UserID,
		ContentID: fb.ContentID,
		Kind:      model.BehaviorView,
		Weight:    &w,
		Metadata:  map[string]any{"feedback_kind": fb.Kind, "reason": fb.Reason},
	})
	if err != nil {
		return model.Ack{}, err
	}
	metrics.IncFeedback(fb.Kind)
	if _, err := s.deps.Adjuster.Apply(ctx, fb.UserID, fb.ContentID, fb.Kind); err != nil {
		metrics.IncRebuildError("feedback")
		logging.Error("feedback_adjust_error", map[string]any{"content_id": fb.ContentID, "kind": fb.Kind, "error": err})
	}
	s.refreshUser(ctx, fb.UserID)
	return model.Ack{InteractionID: rec.ID, RecordedAt: rec.Timestamp}, nil
}

// PutContent upserts a content item and rebuilds its fingerprint.
func (s *Service) PutContent(ctx context.Context, c model.Content) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.AuthorID) == "" {
		return goerr.Wrap(model.ErrValidation, "content id and author id are required", goerr.V("content_id", c.ID))
	}
	if c.LikeCount < 0 || c.CommentCount < 0 {
		return goerr.Wrap(model.ErrValidation, "counts must not be negative", goerr.V("content_id", c.ID))
	}
	if err := s.deps.Store.PutContent(ctx, c); err != nil {
		return err
	}
	if _, err := s.deps.Content.Rebuild(ctx, c.ID); err != nil {
		logging.Error("content_fingerprint_error", map[string]any{"content_id": c.ID, "error": err})
	}
	return nil
}

// DeleteContent handles a content deletion: the item, its fingerprint and
// every ledger entry referencing it are removed together.
func (s *Service) DeleteContent(ctx context.Context, contentID string) (int64, error) {
	if strings.TrimSpace(contentID) == "" {
		return 0, goerr.Wrap(model.ErrValidation, "content id is required")
	}
	purged, err := s.deps.Store.DeleteContent(ctx, contentID)
	if err != nil {
		return 0, err
	}
	logging.Info("content_deleted", map[string]any{"content_id": contentID, "purged_interactions": purged})
	return purged, nil
}

func (s *Service) refreshUser(ctx context.Context, userID string) {
	if err := s.deps.Refresher.RefreshUser(ctx, userID); err != nil {
		logging.Error("user_fingerprint_refresh_error", map[string]any{"user_id": userID, "error": err})
	}
}
