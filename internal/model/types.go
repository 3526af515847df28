package model

import "time"

// Dim is the fixed length of every fingerprint vector.
const Dim = 128

// Caps on the auxiliary tag sets stored with fingerprints.
const (
	MaxContentTags  = 20
	MaxHashtags     = 10
	MaxInterestTags = 20
	MaxCategoryTags = 10
)

// BehaviorKind classifies an interaction recorded in the ledger.
type BehaviorKind string

const (
	BehaviorLike         BehaviorKind = "like"
	BehaviorComment      BehaviorKind = "comment"
	BehaviorSave         BehaviorKind = "save"
	BehaviorView         BehaviorKind = "view"
	BehaviorProfileVisit BehaviorKind = "profile_visit"
	BehaviorStoryView    BehaviorKind = "story_view"
	BehaviorSearch       BehaviorKind = "search"
	BehaviorFollow       BehaviorKind = "follow"
)

var behaviorWeights = map[BehaviorKind]float64{
	BehaviorLike:         1.0,
	BehaviorComment:      2.0,
	BehaviorSave:         3.0,
	BehaviorView:         0.5,
	BehaviorProfileVisit: 1.5,
	BehaviorStoryView:    0.8,
	BehaviorSearch:       1.2,
	BehaviorFollow:       2.5,
}

// Weight returns the importance weight of the kind. Unknown kinds weigh 1.0.
func (k BehaviorKind) Weight() float64 {
	if w, ok := behaviorWeights[k]; ok {
		return w
	}
	return 1.0
}

// Known reports whether the kind has its own entry in the weight table.
func (k BehaviorKind) Known() bool {
	_, ok := behaviorWeights[k]
	return ok
}

// Interaction is one immutable ledger entry.
type Interaction struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ContentID string         `json:"content_id"`
	Kind      BehaviorKind   `json:"kind"`
	Weight    float64        `json:"weight"`
	Duration  *int           `json:"duration,omitempty"` // seconds
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Content is the content store's view of a post, story or video.
type Content struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ContentFingerprint summarizes one content item for similarity ranking.
type ContentFingerprint struct {
	ContentID  string    `json:"content_id"`
	Vector     []float32 `json:"-"`
	Tags       []string  `json:"tags"`
	Hashtags   []string  `json:"hashtags"`
	Popularity float64   `json:"popularity"`
	Freshness  float64   `json:"freshness"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserFingerprint summarizes a user's trailing-window behavior.
type UserFingerprint struct {
	UserID        string    `json:"user_id"`
	Vector        []float32 `json:"-"`
	InterestTags  []string  `json:"interest_tags"`
	CategoryTags  []string  `json:"category_tags"`
	BehaviorCount int       `json:"behavior_count"`
	AvgEngagement float64   `json:"avg_engagement"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Candidate pairs a content item with its fingerprint for ranking.
type Candidate struct {
	Content     Content
	Fingerprint ContentFingerprint
}

// FeedItem is one ranked entry of a feed page.
type FeedItem struct {
	Content    Content `json:"content"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Popularity float64 `json:"popularity"`
	Freshness  float64 `json:"freshness"`
}

// FeedPage is the result of a ranking request.
type FeedPage struct {
	Items        []FeedItem `json:"items"`
	HasMore      bool       `json:"has_more"`
	Personalized bool       `json:"personalized"`
}

// Ack acknowledges a recorded ledger entry.
type Ack struct {
	InteractionID string    `json:"interaction_id"`
	RecordedAt    time.Time `json:"recorded_at"`
}
