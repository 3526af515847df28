// Package analytics summarizes ledger entries for monitoring.
package analytics

import (
	"sort"
	"time"

	"feedcore/internal/model"
)

// HourlyEngagement buckets entries by UTC hour and behavior kind.
func HourlyEngagement(events []model.Interaction) map[time.Time]map[model.BehaviorKind]int {
	buckets := make(map[time.Time]map[model.BehaviorKind]int)
	for _, e := range events {
		key := e.Timestamp.UTC().Truncate(time.Hour)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[model.BehaviorKind]int)
		}
		buckets[key][e.Kind]++
	}
	return buckets
}

// SortedBucketKeys returns the hour keys in ascending order.
func SortedBucketKeys(m map[time.Time]map[model.BehaviorKind]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// ContentCount is a content id with its summed engagement weight.
type ContentCount struct {
	ContentID string  `json:"content_id"`
	Weight    float64 `json:"weight"`
	Events    int     `json:"events"`
}

// Summary aggregates a range of ledger entries.
type Summary struct {
	Total      int                        `json:"total"`
	ByKind     map[model.BehaviorKind]int `json:"by_kind"`
	Users      int                        `json:"users"`
	Hides      int                        `json:"hides"`
	TopContent []ContentCount             `json:"top_content"`
	MeanWeight float64                    `json:"mean_weight"`
}

// Summarize aggregates events, keeping the top n content items by summed weight.
func Summarize(events []model.Interaction, n int) Summary {
	s := Summary{ByKind: make(map[model.BehaviorKind]int)}
	users := make(map[string]struct{})
	per := make(map[string]*ContentCount)
	var total float64
	for _, e := range events {
		s.Total++
		s.ByKind[e.Kind]++
		users[e.UserID] = struct{}{}
		total += e.Weight
		if fk, _ := e.Metadata["feedback_kind"].(string); model.IsDemotion(fk) {
			s.Hides++
		}
		c, ok := per[e.ContentID]
		if !ok {
			c = &ContentCount{ContentID: e.ContentID}
			per[e.ContentID] = c
		}
		c.Weight += e.Weight
		c.Events++
	}
	s.Users = len(users)
	if s.Total > 0 {
		s.MeanWeight = total / float64(s.Total)
	}
	top := make([]ContentCount, 0, len(per))
	for _, c := range per {
		top = append(top, *c)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Weight != top[j].Weight {
			return top[i].Weight > top[j].Weight
		}
		return top[i].ContentID < top[j].ContentID
	})
	if n >= 0 && len(top) > n {
		top = top[:n]
	}
	s.TopContent = top
	return s
}
