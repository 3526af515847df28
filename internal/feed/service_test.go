package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"feedcore/internal/config"
	"feedcore/internal/model"
	"feedcore/internal/store/sqlitevec"
)

func newRuntime(t *testing.T, mutate func(*config.Config)) (*Runtime, *sqlitevec.DB) {
	t.Helper()
	db, err := sqlitevec.Open(":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := NewRuntime(db, cfg)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt, db
}

func seedContent(t *testing.T, svc *Service, items ...model.Content) {
	t.Helper()
	for _, c := range items {
		gt.NoError(t, svc.PutContent(context.Background(), c))
	}
}

func TestFeedLifecycle(t *testing.T) {
	rt, db := newRuntime(t, nil)
	svc := rt.Service
	ctx := context.Background()
	now := time.Now().UTC()
	seedContent(t, svc,
		model.Content{ID: "c1", AuthorID: "a1", Description: "homemade pasta recipe", LikeCount: 4, CreatedAt: now},
		model.Content{ID: "c2", AuthorID: "a2", Description: "street photography walk", LikeCount: 9, CreatedAt: now},
		model.Content{ID: "c3", AuthorID: "a2", Description: "pasta carbonara night", LikeCount: 1, CreatedAt: now},
		model.Content{ID: "c4", AuthorID: "u1", Description: "my own pasta", LikeCount: 50, CreatedAt: now},
	)

	// cold start: like count order, own content excluded
	page, err := svc.RankFeed(ctx, "u1", 1, 10)
	gt.NoError(t, err)
	gt.False(t, page.Personalized)
	gt.A(t, page.Items).Length(3)
	gt.Equal(t, page.Items[0].Content.ID, "c2")

	_, err = svc.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.NoError(t, err)
	ack, err := svc.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c3", Kind: model.BehaviorSave})
	gt.NoError(t, err)
	gt.True(t, ack.InteractionID != "")

	fp, err := db.GetUserFingerprint(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, fp.BehaviorCount, 2)
	gt.Equal(t, fp.AvgEngagement, 2.0)

	page, err = svc.RankFeed(ctx, "u1", 1, 10)
	gt.NoError(t, err)
	gt.True(t, page.Personalized)
	seen := map[string]bool{}
	for _, it := range page.Items {
		gt.False(t, seen[it.Content.AuthorID])
		seen[it.Content.AuthorID] = true
		gt.True(t, it.Content.AuthorID != "u1")
	}
}

func TestRecordInteractionMissingContent(t *testing.T) {
	rt, _ := newRuntime(t, nil)
	_, err := rt.Service.RecordInteraction(context.Background(), Interaction{UserID: "u1", ContentID: "nope", Kind: model.BehaviorLike})
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSubmitFeedbackHide(t *testing.T) {
	rt, db := newRuntime(t, nil)
	ctx := context.Background()
	seedContent(t, rt.Service, model.Content{ID: "c1", AuthorID: "a1", Description: "quiet morning", LikeCount: 3, CreatedAt: time.Now().UTC()})

	for i := 0; i < 4; i++ {
		_, err := rt.Service.SubmitFeedback(ctx, Feedback{UserID: "u1", ContentID: "c1", Kind: model.FeedbackHide, Reason: "not for me"})
		gt.NoError(t, err)
	}
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 0.0)
	gt.Equal(t, fp.Freshness, model.FreshnessFloor)

	entries, err := db.InteractionsForUser(ctx, "u1", time.Now().Add(-time.Hour))
	gt.NoError(t, err)
	gt.A(t, entries).Length(4)
	gt.Equal(t, entries[0].Kind, model.BehaviorView)
	gt.Equal(t, entries[0].Weight, -1.0)
	gt.Equal(t, entries[0].Metadata["feedback_kind"], any("hide"))

	_, err = rt.Service.SubmitFeedback(ctx, Feedback{UserID: "u1", ContentID: "c1"})
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestHideSurvivesContentRefresh(t *testing.T) {
	rt, db := newRuntime(t, nil)
	ctx := context.Background()
	c := model.Content{ID: "c1", AuthorID: "a1", Description: "quiet morning", LikeCount: 10, CreatedAt: time.Now().UTC()}
	seedContent(t, rt.Service, c)

	_, err := rt.Service.SubmitFeedback(ctx, Feedback{UserID: "u1", ContentID: "c1", Kind: model.FeedbackHide})
	gt.NoError(t, err)

	res, err := rt.ContentRefresh.RunOnce(ctx)
	gt.NoError(t, err)
	gt.Equal(t, res.Rebuilt, int64(1))
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 5.0)
	gt.True(t, fp.Freshness <= 0.5)

	// new likes recover popularity on top of the demotion
	c.LikeCount = 14
	gt.NoError(t, rt.Service.PutContent(ctx, c))
	fp, err = db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 9.0)
}

func TestSubmitFeedbackOtherKindRecordsPositiveWeight(t *testing.T) {
	rt, db := newRuntime(t, nil)
	ctx := context.Background()
	seedContent(t, rt.Service, model.Content{ID: "c1", AuthorID: "a1", LikeCount: 3, CreatedAt: time.Now().UTC()})
	_, err := rt.Service.SubmitFeedback(ctx, Feedback{UserID: "u1", ContentID: "c1", Kind: "more_like_this"})
	gt.NoError(t, err)
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, fp.Popularity, 3.0)
	entries, err := db.InteractionsForUser(ctx, "u1", time.Now().Add(-time.Hour))
	gt.NoError(t, err)
	gt.Equal(t, entries[0].Weight, 0.1)
}

func TestDeleteContentCascade(t *testing.T) {
	rt, db := newRuntime(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	seedContent(t, rt.Service,
		model.Content{ID: "c1", AuthorID: "a1", Description: "ocean waves", CreatedAt: now},
		model.Content{ID: "c2", AuthorID: "a2", Description: "forest trail", CreatedAt: now},
	)
	_, err := rt.Service.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.NoError(t, err)
	_, err = rt.Service.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c2", Kind: model.BehaviorComment})
	gt.NoError(t, err)

	purged, err := rt.Service.DeleteContent(ctx, "c1")
	gt.NoError(t, err)
	gt.Equal(t, purged, int64(1))
	_, err = db.GetContentFingerprint(ctx, "c1")
	gt.True(t, errors.Is(err, model.ErrNotFound))

	ok, err := rt.Service.RebuildUserFingerprint(ctx, "u1")
	gt.NoError(t, err)
	gt.True(t, ok)
	fp, err := db.GetUserFingerprint(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, fp.BehaviorCount, 1)

	page, err := rt.Service.RankFeed(ctx, "u1", 1, 10)
	gt.NoError(t, err)
	gt.A(t, page.Items).Length(1)
	gt.Equal(t, page.Items[0].Content.ID, "c2")

	_, err = rt.Service.DeleteContent(ctx, "c1")
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRebuildContentFingerprintMissingIsNoop(t *testing.T) {
	rt, _ := newRuntime(t, nil)
	gt.NoError(t, rt.Service.RebuildContentFingerprint(context.Background(), "ghost"))
	gt.True(t, errors.Is(rt.Service.RebuildContentFingerprint(context.Background(), " "), model.ErrValidation))
}

func TestPutContentValidation(t *testing.T) {
	rt, _ := newRuntime(t, nil)
	err := rt.Service.PutContent(context.Background(), model.Content{ID: "c1"})
	gt.True(t, errors.Is(err, model.ErrValidation))
	err = rt.Service.PutContent(context.Background(), model.Content{ID: "c1", AuthorID: "a", LikeCount: -1})
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestQueueModeRuntime(t *testing.T) {
	rt, db := newRuntime(t, func(c *config.Config) { c.Refresh.Mode = "queue" })
	gt.True(t, rt.Queue != nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Queue.Serve(ctx) }()

	seedContent(t, rt.Service, model.Content{ID: "c1", AuthorID: "a1", Description: "vintage cars", CreatedAt: time.Now().UTC()})
	_, err := rt.Service.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := db.GetUserFingerprint(ctx, "u1"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("queued refresh did not write the fingerprint")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIdentityEnforced(t *testing.T) {
	rt, db := newRuntime(t, func(c *config.Config) { c.Identity.Enforce = true })
	ctx := context.Background()
	seedContent(t, rt.Service, model.Content{ID: "c1", AuthorID: "a1", CreatedAt: time.Now().UTC()})
	_, err := rt.Service.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.True(t, errors.Is(err, model.ErrNotFound))
	gt.NoError(t, db.PutUser(ctx, "u1"))
	_, err = rt.Service.RecordInteraction(ctx, Interaction{UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike})
	gt.NoError(t, err)
}
