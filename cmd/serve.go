package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adam01140114/WaterData/internal/api"
	"github.com/Adam01140114/WaterData/internal/export"
	"github.com/Adam01140114/WaterData/internal/notify"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the levelogd daemon (default command)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// Make serve the default command.
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides.
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	slog.Info("starting levelogd",
		"listen_addr", cfg.ListenAddr,
		"sites", len(cfg.Sites),
		"remote_enabled", cfg.Storage.Remote.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := notify.NewHub(slog.Default(), originPatterns(cfg.CORSOrigin)...)

	a, err := openApp(ctx, cfg, func(op string, err error) {
		hub.Error(notify.MsgRemoteFallback)
	})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if a.repo.Len() == 0 {
		hub.Success(notify.MsgWelcome)
	}

	srv := api.NewServer(a.repo, hub, slog.Default(), api.Options{
		Sites:      cfg.Sites,
		CORSOrigin: cfg.CORSOrigin,
		Storage:    a.store,
		Version:    Version,
	})

	slog.Info("levelogd ready", "addr", cfg.ListenAddr, "storage_mode", a.store.Mode())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })
	if cfg.Export.Schedule != "" {
		sched := export.NewScheduler(cfg.Export.Schedule, cfg.Export.Dir, a.repo, a.loc, slog.Default())
		g.Go(func() error { return sched.Run(gctx) })
	}

	waitErr := g.Wait()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		slog.Error("levelogd exited with error", "error", waitErr)
	}

	// Always run graceful cleanup, even on error.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	slog.Info("levelogd shutdown complete")
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// originPatterns turns the CORS origin into a websocket origin pattern.
func originPatterns(origin string) []string {
	if origin == "" {
		return nil
	}
	if origin == "*" {
		return []string{"*"}
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return []string{u.Host}
	}
	return []string{origin}
}
