package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v3"

	"feedcore/internal/api"
	"feedcore/internal/config"
	"feedcore/internal/feed"
	"feedcore/internal/logging"
	"feedcore/internal/store/sqlitevec"
	"feedcore/internal/theme"
)

func serveCommand(g *globals) *cli.Command {
	var addr string
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and refresh workers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides server.addr)", Destination: &addr},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withRuntime(ctx, "serve", func(ctx context.Context, cfg config.Config, _ *sqlitevec.DB, rt *feed.Runtime) error {
				if addr != "" {
					cfg.Server.Addr = addr
				}
				theme.PrintBanner(os.Stderr, Version)
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				sup := newSupervisor(cfg, rt)
				err := sup.Serve(ctx)
				logging.Info("serve_stop", refreshSummary(rt.Queue))
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

// newSupervisor assembles the services run by serve.
func newSupervisor(cfg config.Config, rt *feed.Runtime) *suture.Supervisor {
	sup := suture.New("feedcore", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn("supervisor_event", e.Map())
		},
		Timeout: cfg.Server.ShutdownTimeout,
	})
	sup.Add(api.NewServer(cfg.Server.Addr, api.NewRouter(rt.Service), cfg.Server.ShutdownTimeout))
	if rt.Queue != nil {
		sup.Add(rt.Queue)
	}
	if cfg.Refresh.ContentInterval > 0 {
		sup.Add(rt.ContentRefresh)
	}
	return sup
}
