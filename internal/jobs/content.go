package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
)

const contentCursorKey = "content_refresh:last_run"

// ContentRebuilder recomputes one content fingerprint.
type ContentRebuilder interface {
	Rebuild(ctx context.Context, contentID string) (bool, error)
}

// ContentLister lists every content id.
type ContentLister interface {
	ContentIDs(ctx context.Context) ([]string, error)
}

// CursorStore persists named progress markers.
type CursorStore interface {
	SaveCursor(ctx context.Context, key, value string) error
	LoadCursor(ctx context.Context, key string) (string, error)
}

// RefreshResult summarizes one full content refresh.
type RefreshResult struct {
	Rebuilt int64
	Skipped int64
	Failed  int64
}

// RefreshAllContent rebuilds every content fingerprint with at most workers
// rebuilds in flight. Individual failures are logged and counted; only
// cancellation aborts the run.
func RefreshAllContent(ctx context.Context, lister ContentLister, content ContentRebuilder, workers int) (RefreshResult, error) {
	ids, err := lister.ContentIDs(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	if workers < 1 {
		workers = 1
	}
	var rebuilt, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			ok, err := content.Rebuild(gctx, id)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				failed.Add(1)
				logging.Warn("content_refresh_item_error", map[string]any{"content_id": id, "error": err})
			case ok:
				rebuilt.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	res := RefreshResult{Rebuilt: rebuilt.Load(), Skipped: skipped.Load(), Failed: failed.Load()}
	if err == nil {
		err = ctx.Err()
	}
	return res, err
}

// ContentRefresher periodically rebuilds every content fingerprint so
// freshness decays without new events.
type ContentRefresher struct {
	Lister   ContentLister
	Content  ContentRebuilder
	Cursors  CursorStore
	Interval time.Duration
	Workers  int
}

// RunOnce performs one full refresh and records its completion time.
func (r *ContentRefresher) RunOnce(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	metrics.IncCommandRun("content_refresh")
	res, err := RefreshAllContent(ctx, r.Lister, r.Content, r.Workers)
	if err != nil {
		metrics.IncCommandError("content_refresh")
		return res, err
	}
	_ = r.Cursors.SaveCursor(ctx, contentCursorKey, time.Now().UTC().Format(time.RFC3339Nano))
	logging.Info("content_refresh_once", map[string]any{
		"rebuilt": res.Rebuilt, "skipped": res.Skipped, "failed": res.Failed, "took": time.Since(start).String(),
	})
	return res, nil
}

// untilDue is how long to wait before the next run, given the last one.
func (r *ContentRefresher) untilDue(ctx context.Context, now time.Time) time.Duration {
	v, err := r.Cursors.LoadCursor(ctx, contentCursorKey)
	if err != nil || v == "" {
		return 0
	}
	last, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return 0
	}
	wait := last.Add(r.Interval).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Serve runs RunOnce every Interval until ctx is cancelled. A run that
// completed less than Interval ago (per the persisted cursor) is not repeated
// on startup.
func (r *ContentRefresher) Serve(ctx context.Context) error {
	if r.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	first := time.NewTimer(r.untilDue(ctx, time.Now().UTC()))
	defer first.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-first.C:
	}
	if _, err := r.RunOnce(ctx); err != nil {
		logging.Error("content_refresh_error", map[string]any{"error": err})
	}

	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("content_refresh_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				logging.Error("content_refresh_error", map[string]any{"error": err})
			}
		}
	}
}
