package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/ignore"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
	"github.com/codeatlas-dev/codeatlas/internal/synclock"
)

func RunSync(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	watch, err := OptionalBoolFlag(cmd, "watch", false)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()
	if err := syncOnce(ctx, s, args[0], out, asJSON); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	g, err := s.engine.Load(ctx, args[0])
	if err != nil {
		return err
	}
	debounce := time.Duration(0)
	if cmd.Flags().Lookup("debounce") != nil {
		debounce, _ = cmd.Flags().GetDuration("debounce")
	}
	addr, err := OptionalStringFlag(cmd, "metrics-addr")
	if err != nil {
		return err
	}
	if addr != "" {
		stop := serveMetrics(ctx, addr, s.engine.Reporter)
		defer stop()
	}

	w, err := synclock.NewWatcher(g.RepoID, func(paths []string) {
		s.engine.Reporter.Debug(events.CategorySync, "change detected", map[string]any{"paths": paths})
		if err := syncOnce(ctx, s, g.ID, out, asJSON); err != nil {
			s.engine.Reporter.Warn(events.CategorySync, "sync failed", map[string]string{"error": err.Error()})
		}
	}, synclock.WatchOptions{
		Debounce: debounce,
		Matcher:  ignore.NewMatcher(s.cfg.Scan.Ignore),
		Reporter: s.engine.Reporter,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (ctrl-c to stop)\n", g.RepoID)
	return w.Run(ctx)
}

func syncOnce(ctx context.Context, s *session, ref string, out io.Writer, asJSON bool) error {
	res, err := s.engine.Sync(ctx, ref, nil)
	if err != nil {
		return err
	}
	g, err := s.engine.Load(ctx, res.GraphID)
	if err != nil {
		return err
	}
	return PrintSyncSummary(out, newSyncSummary(g, res.Report), asJSON)
}

// serveMetrics exposes the Prometheus registry until ctx ends or the
// returned stop func is called.
func serveMetrics(ctx context.Context, addr string, rep *events.Reporter) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rep.Warn(events.CategorySync, "metrics server stopped", map[string]string{"error": err.Error()})
		}
	}()
	rep.Info(events.CategorySync, "serving metrics", map[string]string{"addr": addr})

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
