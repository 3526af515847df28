package feed

import (
	"feedcore/internal/config"
	"feedcore/internal/engage"
	"feedcore/internal/fingerprint"
	"feedcore/internal/ingest"
	"feedcore/internal/jobs"
	"feedcore/internal/recommend"
	"feedcore/internal/store/sqlitevec"
	"feedcore/internal/vector"
)

// Runtime is a Service wired to a database, plus the background workers
// the caller is expected to run.
type Runtime struct {
	Service *Service
	// Queue is nil in sync refresh mode.
	Queue          *jobs.QueueRefresher
	ContentRefresh *jobs.ContentRefresher
}

// NewRuntime wires every component over db according to cfg.
func NewRuntime(db *sqlitevec.DB, cfg config.Config) (*Runtime, error) {
	var identity ingest.IdentityStore
	if cfg.Identity.Enforce {
		identity = db
	}
	contentBuilder := fingerprint.NewContentBuilder(db, db, vector.CharHash{})
	users := fingerprint.NewUserBuilder(db, db, db)

	var (
		refresher jobs.Refresher = jobs.SyncRefresher{Users: users}
		queue     *jobs.QueueRefresher
	)
	if cfg.Refresh.Mode == "queue" {
		q, err := jobs.NewQueueRefresher(users, cfg.Refresh.Rate, cfg.Refresh.Burst, cfg.Refresh.Buffer)
		if err != nil {
			return nil, err
		}
		refresher, queue = q, q
	}

	var budget *engage.Budget
	if cfg.Feedback.MaxHidesPerHour > 0 || cfg.Feedback.MaxHidesPerDay > 0 {
		budget = engage.NewBudget(db, cfg.Feedback.MaxHidesPerHour, cfg.Feedback.MaxHidesPerDay)
	}

	svc := New(Deps{
		Recorder:  ingest.NewRecorder(db, db, identity),
		Content:   contentBuilder,
		Users:     users,
		Refresher: refresher,
		Ranker: recommend.NewRanker(db, recommend.Options{
			Category: cfg.Ranking.Category,
			Weights: recommend.Weights{
				Similarity: cfg.Ranking.SimilarityWeight,
				Popularity: cfg.Ranking.PopularityWeight,
				Freshness:  cfg.Ranking.FreshnessWeight,
			},
			Diversifier: recommend.NewDiversifier(cfg.Ranking.Diversity),
			MaxPageSize: cfg.Ranking.MaxPageSize,
		}),
		Adjuster:    engage.NewAdjuster(db, cfg.Feedback.HidePenalty, budget),
		Store:       db,
		RankTimeout: cfg.Ranking.Timeout,
	})
	return &Runtime{
		Service: svc,
		Queue:   queue,
		ContentRefresh: &jobs.ContentRefresher{
			Lister:   db,
			Content:  contentBuilder,
			Cursors:  db,
			Interval: cfg.Refresh.ContentInterval,
			Workers:  cfg.Refresh.Workers,
		},
	}, nil
}

// Close releases the refresh queue, if any.
func (r *Runtime) Close() error {
	if r.Queue != nil {
		return r.Queue.Close()
	}
	return nil
}
