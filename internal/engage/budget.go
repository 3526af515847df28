package engage

import (
	"context"
	"time"
)

// HideCounter counts the hide feedback entries a user recorded since a time.
type HideCounter interface {
	CountHidesSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Budget caps how many demotions one user can apply per hour and per day.
// Zero limits are unlimited.
type Budget struct {
	counter    HideCounter
	maxPerHour int
	maxPerDay  int
}

func NewBudget(counter HideCounter, maxPerHour, maxPerDay int) *Budget {
	return &Budget{counter: counter, maxPerHour: maxPerHour, maxPerDay: maxPerDay}
}

// Allow reports whether userID is still within budget at now. The entry for
// the feedback being evaluated is expected to be recorded already.
func (b *Budget) Allow(ctx context.Context, userID string, now time.Time) (bool, error) {
	if b.maxPerHour > 0 {
		n, err := b.counter.CountHidesSince(ctx, userID, now.Add(-time.Hour))
		if err != nil {
			return false, err
		}
		if n > b.maxPerHour {
			return false, nil
		}
	}
	if b.maxPerDay > 0 {
		n, err := b.counter.CountHidesSince(ctx, userID, now.Add(-24*time.Hour))
		if err != nil {
			return false, err
		}
		if n > b.maxPerDay {
			return false, nil
		}
	}
	return true, nil
}
