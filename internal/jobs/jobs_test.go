package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"feedcore/internal/fingerprint"
	"feedcore/internal/model"
	"feedcore/internal/store/sqlitevec"
)

type countingUsers struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingUsers) Rebuild(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[userID]++
	return true, nil
}

func (c *countingUsers) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[userID]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSyncRefresher(t *testing.T) {
	u := &countingUsers{}
	gt.NoError(t, SyncRefresher{Users: u}.RefreshUser(context.Background(), "u1"))
	gt.Equal(t, u.count("u1"), 1)
}

func TestQueueRefresherEventuallyWritesFingerprint(t *testing.T) {
	db, err := sqlitevec.Open(":memory:")
	gt.NoError(t, err)
	defer db.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now().UTC()
	gt.NoError(t, db.PutContent(ctx, model.Content{ID: "c1", AuthorID: "a1", Description: "garden flowers", CreatedAt: now}))
	_, err = db.AppendInteraction(ctx, model.Interaction{ID: "e1", UserID: "u1", ContentID: "c1", Kind: model.BehaviorLike, Weight: 1, Timestamp: now})
	gt.NoError(t, err)

	q, err := NewQueueRefresher(fingerprint.NewUserBuilder(db, db, db), 1000, 10, 16)
	gt.NoError(t, err)
	defer q.Close()
	gt.NoError(t, q.RefreshUser(ctx, "u1"))

	done := make(chan error, 1)
	go func() { done <- q.Serve(ctx) }()

	waitFor(t, func() bool {
		_, err := db.GetUserFingerprint(ctx, "u1")
		return err == nil
	})
	cancel()
	gt.True(t, errors.Is(<-done, context.Canceled))
}

func TestQueueRefresherCoalescesPending(t *testing.T) {
	u := &countingUsers{}
	q, err := NewQueueRefresher(u, 1000, 10, 16)
	gt.NoError(t, err)
	defer q.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// not being served yet, so these stay pending
	for i := 0; i < 5; i++ {
		gt.NoError(t, q.RefreshUser(ctx, "u1"))
	}
	gt.NoError(t, q.RefreshUser(ctx, "u2"))
	gt.Equal(t, q.Pending(), 2)

	go func() { _ = q.Serve(ctx) }()
	waitFor(t, func() bool { return u.count("u1") == 1 && u.count("u2") == 1 })
	waitFor(t, func() bool { return q.Pending() == 0 })

	gt.NoError(t, q.RefreshUser(ctx, "u1"))
	waitFor(t, func() bool { return u.count("u1") == 2 })
}

type flakyContent struct {
	calls atomic.Int64
}

func (f *flakyContent) Rebuild(_ context.Context, id string) (bool, error) {
	f.calls.Add(1)
	switch id {
	case "bad":
		return false, errors.New("boom")
	case "gone":
		return false, nil
	}
	return true, nil
}

type staticIDs []string

func (s staticIDs) ContentIDs(context.Context) ([]string, error) { return s, nil }

func TestRefreshAllContentCountsOutcomes(t *testing.T) {
	f := &flakyContent{}
	res, err := RefreshAllContent(context.Background(), staticIDs{"a", "b", "bad", "gone", "c"}, f, 2)
	gt.NoError(t, err)
	gt.Equal(t, res, RefreshResult{Rebuilt: 3, Skipped: 1, Failed: 1})
	gt.Equal(t, f.calls.Load(), int64(5))
}

func TestContentRefresherPersistsCursor(t *testing.T) {
	db, err := sqlitevec.Open(":memory:")
	gt.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	old := time.Now().UTC().Add(-20 * 24 * time.Hour)
	gt.NoError(t, db.PutContent(ctx, model.Content{ID: "c1", AuthorID: "a1", CreatedAt: old}))

	r := &ContentRefresher{
		Lister:   db,
		Content:  fingerprint.NewContentBuilder(db, db, nil),
		Cursors:  db,
		Interval: time.Hour,
		Workers:  2,
	}
	gt.Equal(t, r.untilDue(ctx, time.Now().UTC()), time.Duration(0))

	res, err := r.RunOnce(ctx)
	gt.NoError(t, err)
	gt.Equal(t, res.Rebuilt, int64(1))
	fp, err := db.GetContentFingerprint(ctx, "c1")
	gt.NoError(t, err)
	gt.True(t, fp.Freshness < 0.34)

	wait := r.untilDue(ctx, time.Now().UTC())
	gt.True(t, wait > 59*time.Minute)
}

func TestContentRefresherDisabledBlocksUntilCancel(t *testing.T) {
	r := &ContentRefresher{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	gt.True(t, errors.Is(r.Serve(ctx), context.DeadlineExceeded))
}
