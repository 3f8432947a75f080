package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/panel"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live preview server",
		Long: `Serves the preview panel and its JSON/SSE API. Editor events posted to
/api/events are applied to the session and trigger a debounced evaluation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ln, err := net.Listen("tcp", a.cfg.ListenAddr)
			if err != nil {
				return err
			}
			return a.serve(ctx, ln)
		},
	}
	addGraphFlags(cmd)
	return cmd
}

// serve runs the panel on ln until ctx ends, then shuts down gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	var history panel.RunHistory
	if a.journal != nil {
		history = a.journal
	}
	srv := &http.Server{
		Handler: panel.NewServer(panel.Deps{
			Session:  a.session,
			Hub:      a.hub,
			History:  history,
			Dialects: a.sandbox,
			Logger:   a.logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.refresher != nil {
		if err := a.refresher.Start(ctx); err != nil {
			return err
		}
	}
	a.session.EvaluateNow(ctx, editor.TriggerManual)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.logger.Info("bonsai serving",
		slog.String("addr", ln.Addr().String()),
		slog.String("session_id", a.session.ID()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
