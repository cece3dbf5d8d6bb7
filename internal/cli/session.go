package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/config"
	"github.com/codeatlas-dev/codeatlas/internal/engine"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// session is one command's view of the repository: config, store and engine.
type session struct {
	root     string
	cfg      *config.Config
	engine   *engine.Engine
	progress *stepProgressReporter
	store    *store.GraphStore
}

func openSession(cmd *cobra.Command, asJSON bool) (*session, error) {
	root, err := resolveRoot(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	rules, err := LoadIgnoreRules(root)
	if err != nil {
		return nil, err
	}
	cfg.Scan.Ignore = append(cfg.Scan.Ignore, rules...)

	verbose, _ := OptionalBoolFlag(cmd, "verbose", false)
	progress := newStepProgressReporter(asJSON)
	rep := events.Tee(
		events.NewSlogReporter(newLogger(cfg.Log.Level, verbose)),
		&events.Reporter{Progress: progress.Update},
	)

	backend, err := store.Open(commandContext(cmd), store.Options{
		Kind:       store.Kind(cfg.Store.Backend),
		Path:       cfg.StorePath(),
		RedisURL:   cfg.Store.RedisAddr,
		Passphrase: cfg.Store.Passphrase,
	})
	if err != nil {
		return nil, err
	}
	gs, err := store.NewGraphStore(backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	eng, err := engine.New(cfg, gs, rep)
	if err != nil {
		_ = gs.Close()
		return nil, err
	}
	return &session{root: root, cfg: cfg, engine: eng, progress: progress, store: gs}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func newLogger(level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
