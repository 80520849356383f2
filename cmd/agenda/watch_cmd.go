package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventosacademicos/campus-agenda/internal/metrics"
)

// cmdWatch keeps the terminal showing the user's upcoming events,
// refetching on an interval. With a metrics address configured it also
// serves the Prometheus registry for the duration of the session.
func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 30*time.Second, "refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Warn().Err(err).Msg("metrics listener failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
	}

	if err := a.refreshAndRender(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			if err := a.refreshAndRender(ctx); err != nil {
				// Forced logout already cleared the session; anything else
				// is transient and worth waiting out.
				fmt.Fprintln(os.Stderr, "agenda:", renderError(err))
			}
		}
	}
}

func (a *app) refreshAndRender(ctx context.Context) error {
	events, err := a.events.RefreshUserEvents(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s: %d event(s)\n", time.Now().Format("15:04:05"), len(events))
	renderEvents(os.Stdout, events)
	return nil
}
