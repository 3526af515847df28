// Package recommend ranks content for a user by blending fingerprint
// similarity, popularity and freshness, then diversifies and paginates.
package recommend

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/model"
	"feedcore/internal/vector"
)

// Store is the read side the ranker needs. Ranking never writes.
type Store interface {
	GetUserFingerprint(ctx context.Context, userID string) (model.UserFingerprint, error)
	ContentCandidates(ctx context.Context, category string) ([]model.Candidate, error)
	ListContent(ctx context.Context, category string) ([]model.Content, error)
}

// Weights blend the three score components.
type Weights struct {
	Similarity float64
	Popularity float64
	Freshness  float64
}

// DefaultWeights are 0.4 similarity, 0.2 popularity, 0.15 freshness.
var DefaultWeights = Weights{Similarity: 0.4, Popularity: 0.2, Freshness: 0.15}

// Options configure a Ranker.
type Options struct {
	// Category restricts candidates; empty ranks every category.
	Category    string
	Weights     Weights
	Diversifier Diversifier
	MaxPageSize int
}

// Ranker produces feed pages.
type Ranker struct {
	store Store
	opts  Options
}

// NewRanker returns a ranker. Zero options fall back to the defaults.
func NewRanker(store Store, opts Options) *Ranker {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights
	}
	if opts.Diversifier == nil {
		opts.Diversifier = DropRepeatAuthors{}
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	return &Ranker{store: store, opts: opts}
}

// Score blends similarity, popularity and freshness with w.
func Score(w Weights, similarity, popularity, freshness float64) float64 {
	return w.Similarity*similarity + w.Popularity*popularity + w.Freshness*freshness
}

// Rank returns page (1-based) of userID's feed.
func (r *Ranker) Rank(ctx context.Context, userID string, page, pageSize int) (model.FeedPage, error) {
	if userID == "" {
		return model.FeedPage{}, goerr.Wrap(model.ErrValidation, "user id is required")
	}
	if page < 1 || pageSize < 1 || pageSize > r.opts.MaxPageSize {
		return model.FeedPage{}, goerr.Wrap(model.ErrValidation, "invalid pagination",
			goerr.V("page", page), goerr.V("page_size", pageSize), goerr.V("max_page_size", r.opts.MaxPageSize))
	}

	user, err := r.store.GetUserFingerprint(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return r.coldStart(ctx, userID, page, pageSize)
	}
	if err != nil {
		return model.FeedPage{}, err
	}

	cands, err := r.store.ContentCandidates(ctx, r.opts.Category)
	if err != nil {
		return model.FeedPage{}, err
	}
	items := make([]model.FeedItem, 0, len(cands))
	for _, c := range cands {
		if c.Content.AuthorID == userID {
			continue
		}
		sim := vector.Cosine(user.Vector, c.Fingerprint.Vector)
		items = append(items, model.FeedItem{
			Content:    c.Content,
			Score:      Score(r.opts.Weights, sim, c.Fingerprint.Popularity, c.Fingerprint.Freshness),
			Similarity: sim,
			Popularity: c.Fingerprint.Popularity,
			Freshness:  c.Fingerprint.Freshness,
		})
		if err := ctx.Err(); err != nil {
			return model.FeedPage{}, goerr.Wrap(err, "ranking cancelled", goerr.V("user_id", userID))
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	items = r.opts.Diversifier.Diversify(items)

	out, hasMore := Paginate(items, page, pageSize)
	return model.FeedPage{Items: out, HasMore: hasMore, Personalized: true}, nil
}

// coldStart ranks by like count, then recency, without similarity.
func (r *Ranker) coldStart(ctx context.Context, userID string, page, pageSize int) (model.FeedPage, error) {
	contents, err := r.store.ListContent(ctx, r.opts.Category)
	if err != nil {
		return model.FeedPage{}, err
	}
	items := make([]model.FeedItem, 0, len(contents))
	for _, c := range contents {
		if c.AuthorID == userID {
			continue
		}
		items = append(items, model.FeedItem{Content: c, Score: float64(c.LikeCount)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Content, items[j].Content
		if a.LikeCount != b.LikeCount {
			return a.LikeCount > b.LikeCount
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	out, hasMore := Paginate(items, page, pageSize)
	return model.FeedPage{Items: out, HasMore: hasMore, Personalized: false}, nil
}

// Paginate returns the 1-based page of items and whether the page is full.
// A full page does not guarantee that another page exists.
func Paginate(items []model.FeedItem, page, pageSize int) ([]model.FeedItem, bool) {
	if page < 1 || pageSize < 1 {
		return []model.FeedItem{}, false
	}
	// compare page counts first so huge page numbers cannot overflow start
	if len(items) == 0 || page-1 > (len(items)-1)/pageSize {
		return []model.FeedItem{}, false
	}
	start := (page - 1) * pageSize
	end := len(items)
	if pageSize < end-start {
		end = start + pageSize
	}
	out := items[start:end]
	return out, len(out) == pageSize
}

// Deadline returns ctx bounded by timeout; a non-positive timeout leaves it unbounded.
func Deadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
