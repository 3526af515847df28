package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"feedcore/internal/analytics"
	"feedcore/internal/config"
	"feedcore/internal/feed"
	"feedcore/internal/jobs"
	"feedcore/internal/model"
	"feedcore/internal/store/sqlitevec"
	"feedcore/internal/theme"
)

func initCommand(g *globals) *cli.Command {
	var path string
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "path",
				Usage:       "Where to write the config",
				Value:       "./feedcore.yaml",
				Destination: &path,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			theme.PrintBanner(g.out, Version)
			fmt.Fprintln(g.out, "Config written to:", abs)
			return nil
		},
	}
}

func contentCommand(g *globals) *cli.Command {
	var (
		id, author, description, category string
		likes, comments                   int64
		createdAt                         string
	)
	return &cli.Command{
		Name:  "content",
		Usage: "Upsert a content item and rebuild its fingerprint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Content id", Required: true, Destination: &id},
			&cli.StringFlag{Name: "author", Usage: "Author user id", Required: true, Destination: &author},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description text", Destination: &description},
			&cli.StringFlag{Name: "category", Usage: "Content category (post, story, video)", Value: "post", Destination: &category},
			&cli.IntFlag{Name: "likes", Usage: "Like count", Destination: &likes},
			&cli.IntFlag{Name: "comments", Usage: "Comment count", Destination: &comments},
			&cli.StringFlag{Name: "created-at", Usage: "RFC3339 creation time (default now)", Destination: &createdAt},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "content", func(ctx context.Context, _ config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				item := model.Content{
					ID:           id,
					AuthorID:     author,
					Description:  description,
					Category:     category,
					LikeCount:    int(likes),
					CommentCount: int(comments),
				}
				if createdAt != "" {
					ts, err := time.Parse(time.RFC3339, createdAt)
					if err != nil {
						return goerr.Wrap(model.ErrValidation, "invalid --created-at", goerr.V("value", createdAt))
					}
					item.CreatedAt = ts.UTC()
				}
				if err := rt.Service.PutContent(ctx, item); err != nil {
					return err
				}
				fmt.Fprintln(g.out, "content stored:", id)
				return nil
			})
		},
	}
}

func recordCommand(g *globals) *cli.Command {
	var (
		user, content, kind string
		duration            int64
	)
	return &cli.Command{
		Name:  "record",
		Usage: "Record an interaction",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &user},
			&cli.StringFlag{Name: "content", Required: true, Destination: &content},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "like, comment, save, view, ...", Required: true, Destination: &kind},
			&cli.IntFlag{Name: "duration", Usage: "Seconds spent; negative omits it", Value: -1, Destination: &duration},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "record", func(ctx context.Context, _ config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				in := feed.Interaction{UserID: user, ContentID: content, Kind: model.BehaviorKind(kind)}
				if duration >= 0 {
					d := int(duration)
					in.Duration = &d
				}
				ack, err := rt.Service.RecordInteraction(ctx, in)
				if err != nil {
					return err
				}
				return g.printJSON(ack)
			})
		},
	}
}

func feedbackCommand(g *globals) *cli.Command {
	var user, content, kind, reason string
	return &cli.Command{
		Name:  "feedback",
		Usage: "Submit explicit feedback (hide demotes the content)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &user},
			&cli.StringFlag{Name: "content", Required: true, Destination: &content},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: model.FeedbackHide, Destination: &kind},
			&cli.StringFlag{Name: "reason", Destination: &reason},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "feedback", func(ctx context.Context, _ config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				ack, err := rt.Service.SubmitFeedback(ctx, feed.Feedback{UserID: user, ContentID: content, Kind: kind, Reason: reason})
				if err != nil {
					return err
				}
				return g.printJSON(ack)
			})
		},
	}
}

func rankCommand(g *globals) *cli.Command {
	var (
		user           string
		page, pageSize int64
	)
	return &cli.Command{
		Name:  "rank",
		Usage: "Print one page of a user's feed",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &user},
			&cli.IntFlag{Name: "page", Value: 1, Destination: &page},
			&cli.IntFlag{Name: "page-size", Value: 20, Destination: &pageSize},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "rank", func(ctx context.Context, _ config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				out, err := rt.Service.RankFeed(ctx, user, int(page), int(pageSize))
				if err != nil {
					return err
				}
				return g.printJSON(out)
			})
		},
	}
}

func rebuildCommand(g *globals) *cli.Command {
	var (
		user, content string
		allContent    bool
	)
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Recompute fingerprints",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "Rebuild one user fingerprint", Destination: &user},
			&cli.StringFlag{Name: "content", Usage: "Rebuild one content fingerprint", Destination: &content},
			&cli.BoolFlag{Name: "all-content", Usage: "Rebuild every content fingerprint", Destination: &allContent},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if user == "" && content == "" && !allContent {
				return goerr.New("one of --user, --content or --all-content is required")
			}
			return g.withRuntime(ctx, "rebuild", func(ctx context.Context, _ config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				if content != "" {
					if err := rt.Service.RebuildContentFingerprint(ctx, content); err != nil {
						return err
					}
					fmt.Fprintln(g.out, "content fingerprint rebuilt:", content)
				}
				if user != "" {
					ok, err := rt.Service.RebuildUserFingerprint(ctx, user)
					if err != nil {
						return err
					}
					fmt.Fprintf(g.out, "user fingerprint rebuilt: %s (written=%t)\n", user, ok)
				}
				if allContent {
					res, err := rt.ContentRefresh.RunOnce(ctx)
					if err != nil {
						return err
					}
					return g.printJSON(res)
				}
				return nil
			})
		},
	}
}

func purgeCommand(g *globals) *cli.Command {
	var content string
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete a content item with its fingerprint and ledger entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "content", Required: true, Destination: &content},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "purge", func(ctx context.Context, _ config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				n, err := rt.Service.DeleteContent(ctx, content)
				if err != nil {
					return err
				}
				fmt.Fprintf(g.out, "content %s deleted, %d interactions purged\n", content, n)
				return nil
			})
		},
	}
}

func monitorCommand(g *globals) *cli.Command {
	var (
		hours, top int64
		asJSON     bool
	)
	return &cli.Command{
		Name:  "monitor",
		Usage: "Show hourly engagement from the ledger",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "hours", Value: 24, Usage: "Look-back window", Destination: &hours},
			&cli.IntFlag{Name: "top", Value: 10, Usage: "Top content items to list", Destination: &top},
			&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "monitor", func(ctx context.Context, _ config.Config, db *sqlitevec.DB, _ *feed.Runtime) error {
				end := time.Now().UTC()
				events, err := db.InteractionsRange(ctx, end.Add(-time.Duration(hours)*time.Hour), end.Add(time.Second))
				if err != nil {
					return err
				}
				summary := analytics.Summarize(events, int(top))
				if asJSON {
					return g.printJSON(summary)
				}
				buckets := analytics.HourlyEngagement(events)
				for _, k := range analytics.SortedBucketKeys(buckets) {
					fmt.Fprintf(g.out, "%s %v\n", k.Format(time.RFC3339), buckets[k])
				}
				fmt.Fprintf(g.out, "total=%d users=%d hides=%d mean_weight=%.2f\n", summary.Total, summary.Users, summary.Hides, summary.MeanWeight)
				for _, c := range summary.TopContent {
					fmt.Fprintf(g.out, "  %s weight=%.1f events=%d\n", c.ContentID, c.Weight, c.Events)
				}
				return nil
			})
		},
	}
}

// refreshSummary is printed by serve on shutdown.
func refreshSummary(q *jobs.QueueRefresher) map[string]any {
	if q == nil {
		return map[string]any{"mode": "sync"}
	}
	return map[string]any{"mode": "queue", "pending": q.Pending()}
}
