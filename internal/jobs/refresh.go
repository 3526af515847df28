// Package jobs schedules fingerprint recomputation outside the request path.
package jobs

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"feedcore/internal/logging"
	"feedcore/internal/metrics"
)

const refreshTopic = "fingerprint.user.refresh"

// UserRebuilder recomputes one user fingerprint.
type UserRebuilder interface {
	Rebuild(ctx context.Context, userID string) (bool, error)
}

// Refresher triggers a user fingerprint recompute after a ledger append.
type Refresher interface {
	RefreshUser(ctx context.Context, userID string) error
}

// SyncRefresher recomputes inline.
type SyncRefresher struct{ Users UserRebuilder }

func (s SyncRefresher) RefreshUser(ctx context.Context, userID string) error {
	_, err := s.Users.Rebuild(ctx, userID)
	return err
}

// QueueRefresher defers recomputes to a worker fed by an in-process topic.
// Requests for a user already waiting in the queue are coalesced, and the
// worker is throttled by a token bucket.
type QueueRefresher struct {
	users   UserRebuilder
	pubsub  *gochannel.GoChannel
	msgs    <-chan *message.Message
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewQueueRefresher subscribes to the refresh topic immediately so nothing
// published before Serve starts is lost.
func NewQueueRefresher(users UserRebuilder, perSecond float64, burst, buffer int) (*QueueRefresher, error) {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(buffer)}, watermill.NewStdLogger(false, false))
	msgs, err := ps.Subscribe(context.Background(), refreshTopic)
	if err != nil {
		_ = ps.Close()
		return nil, goerr.Wrap(err, "failed to subscribe to refresh topic")
	}
	return &QueueRefresher{
		users:   users,
		pubsub:  ps,
		msgs:    msgs,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		pending: make(map[string]struct{}),
	}, nil
}

// RefreshUser enqueues userID unless it is already pending.
func (q *QueueRefresher) RefreshUser(_ context.Context, userID string) error {
	q.mu.Lock()
	if _, ok := q.pending[userID]; ok {
		q.mu.Unlock()
		metrics.IncRefreshQueue("coalesced")
		return nil
	}
	q.pending[userID] = struct{}{}
	q.mu.Unlock()

	if err := q.pubsub.Publish(refreshTopic, message.NewMessage(uuid.NewString(), []byte(userID))); err != nil {
		q.mu.Lock()
		delete(q.pending, userID)
		q.mu.Unlock()
		metrics.IncRefreshQueue("dropped")
		return goerr.Wrap(err, "failed to enqueue refresh", goerr.V("user_id", userID))
	}
	metrics.IncRefreshQueue("published")
	return nil
}

// Pending is the number of users waiting for a recompute.
func (q *QueueRefresher) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Serve consumes refresh requests until ctx is cancelled or the queue closes.
func (q *QueueRefresher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			logging.Info("refresh_worker_stop", nil)
			return ctx.Err()
		case msg, ok := <-q.msgs:
			if !ok {
				return nil
			}
			userID := string(msg.Payload)
			// a request arriving from here on queues a fresh recompute
			q.mu.Lock()
			delete(q.pending, userID)
			q.mu.Unlock()

			if err := q.limiter.Wait(ctx); err != nil {
				msg.Nack()
				return ctx.Err()
			}
			if _, err := q.users.Rebuild(ctx, userID); err != nil {
				metrics.IncRefreshQueue("failed")
				logging.Error("refresh_user_error", map[string]any{"user_id": userID, "error": err})
			} else {
				metrics.IncRefreshQueue("processed")
			}
			msg.Ack()
		}
	}
}

// Close stops the topic; Serve returns once the subscription drains.
func (q *QueueRefresher) Close() error { return q.pubsub.Close() }
