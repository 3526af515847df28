// Package cli implements the feedcore command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"feedcore/internal/cmdlog"
	"feedcore/internal/config"
	"feedcore/internal/feed"
	"feedcore/internal/logging"
	"feedcore/internal/store/sqlitevec"
)

// Version is stamped at build time.
var Version = "dev"

// Error carries the process exit code.
type Error struct {
	Code    int
	Message string
}

// globals are the flags shared by every command.
type globals struct {
	configPath string
	dbPath     string
	out        io.Writer
}

// Run executes the CLI with argv and writes command output to stdout.
func Run(ctx context.Context, argv []string) *Error {
	return run(ctx, argv, os.Stdout)
}

func run(ctx context.Context, argv []string, out io.Writer) *Error {
	g := &globals{out: out}
	cmd := &cli.Command{
		Name:    "feedcore",
		Usage:   "Feed ranking and personalization core",
		Version: Version,
		Flags:   globalFlags(g),
		Commands: []*cli.Command{
			initCommand(g),
			serveCommand(g),
			contentCommand(g),
			recordCommand(g),
			feedbackCommand(g),
			rankCommand(g),
			rebuildCommand(g),
			purgeCommand(g),
			monitorCommand(g),
		},
	}
	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{Code: 1, Message: err.Error()}
	}
	return nil
}

func globalFlags(g *globals) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the YAML config file",
			Value:       "./feedcore.yaml",
			Sources:     cli.EnvVars("FEEDCORE_CONFIG"),
			Destination: &g.configPath,
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "SQLite database path (overrides storage.db_path)",
			Destination: &g.dbPath,
		},
	}
}

// loadConfig loads the layered config and initializes logging from it.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.dbPath != "" {
		cfg.Storage.DBPath = g.dbPath
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return cfg, nil
}

// withRuntime opens the database, wires the service and runs fn as a
// metered command.
func (g *globals) withRuntime(ctx context.Context, name string, fn func(ctx context.Context, cfg config.Config, db *sqlitevec.DB, rt *feed.Runtime) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	return cmdlog.Run(name, func() error {
		db, err := sqlitevec.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		rt, err := feed.NewRuntime(db, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, cfg, db, rt)
	})
}

func (g *globals) printJSON(v any) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}
