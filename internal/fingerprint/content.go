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

// ContentBuilder derives a content fingerprint from a content item.
type ContentBuilder struct {
	source ContentSource
	store  ContentStore
	vec    vector.Vectorizer
	now    func() time.Time
}

// NewContentBuilder returns a builder. A nil vectorizer selects vector.CharHash.
func NewContentBuilder(source ContentSource, store ContentStore, vec vector.Vectorizer) *ContentBuilder {
	if vec == nil {
		vec = vector.CharHash{}
	}
	return &ContentBuilder{source: source, store: store, vec: vec, now: utcNow}
}

// Build computes the fingerprint of c as of now without persisting it.
func (b *ContentBuilder) Build(c model.Content, now time.Time) model.ContentFingerprint {
	return model.ContentFingerprint{
		ContentID:  c.ID,
		Vector:     b.vec.Vectorize(c.Description),
		Tags:       util.Words(c.Description, model.MaxContentTags),
		Hashtags:   util.Hashtags(c.Description, model.MaxHashtags),
		Popularity: model.Popularity(c.LikeCount, c.CommentCount),
		Freshness:  model.Freshness(c.CreatedAt, now),
		UpdatedAt:  now,
	}
}

// Rebuild recomputes and upserts the fingerprint of contentID. It reports
// false, with no error, when the content no longer exists.
func (b *ContentBuilder) Rebuild(ctx context.Context, contentID string) (bool, error) {
	c, err := b.source.GetContent(ctx, contentID)
	if errors.Is(err, model.ErrNotFound) {
		logging.Debug("content fingerprint skipped: content missing", map[string]any{"content_id": contentID})
		return false, nil
	}
	if err != nil {
		metrics.IncRebuildError("content")
		return false, err
	}
	if err := b.store.UpsertContentFingerprint(ctx, b.Build(c, b.now())); err != nil {
		metrics.IncRebuildError("content")
		return false, err
	}
	metrics.IncRebuild("content")
	return true, nil
}
