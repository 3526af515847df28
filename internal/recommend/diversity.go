package recommend

import "feedcore/internal/model"

// Diversifier reorders or filters score-sorted items so authors are spread out.
type Diversifier interface {
	Name() string
	Diversify(items []model.FeedItem) []model.FeedItem
}

// NewDiversifier returns the diversifier for a configured mode:
// "interleave" or, for anything else, "drop".
func NewDiversifier(mode string) Diversifier {
	if mode == "interleave" {
		return InterleaveAuthors{}
	}
	return DropRepeatAuthors{}
}

// DropRepeatAuthors keeps only the highest-scored item of each author.
type DropRepeatAuthors struct{}

func (DropRepeatAuthors) Name() string { return "drop" }

func (DropRepeatAuthors) Diversify(items []model.FeedItem) []model.FeedItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.FeedItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Content.AuthorID]; ok {
			continue
		}
		seen[it.Content.AuthorID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// InterleaveAuthors keeps every item but deals them round-robin by author:
// each round takes the next best item of every author, visiting authors in
// the order their first item appears. Within a round a lower-scored item can
// precede a higher-scored one.
// Two adjacent items share an author only once a single author remains.
type InterleaveAuthors struct{}

func (InterleaveAuthors) Name() string { return "interleave" }

func (InterleaveAuthors) Diversify(items []model.FeedItem) []model.FeedItem {
	var order []string
	queues := make(map[string][]model.FeedItem)
	for _, it := range items {
		a := it.Content.AuthorID
		if _, ok := queues[a]; !ok {
			order = append(order, a)
		}
		queues[a] = append(queues[a], it)
	}

	out := make([]model.FeedItem, 0, len(items))
	last := ""
	for len(out) < len(items) {
		// one round: the head of every author in first-appearance order
		round := make([]model.FeedItem, 0, len(order))
		for _, a := range order {
			if q := queues[a]; len(q) > 0 {
				round = append(round, q[0])
				queues[a] = q[1:]
			}
		}
		// avoid a repeat across the round boundary
		if len(round) > 1 && round[0].Content.AuthorID == last {
			round[0], round[1] = round[1], round[0]
		}
		out = append(out, round...)
		last = round[len(round)-1].Content.AuthorID
	}
	return out
}
