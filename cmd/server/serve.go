package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tagsrv/internal/config"
	"github.com/DoyleJ11/tagsrv/internal/httpapi"
	"github.com/DoyleJ11/tagsrv/internal/hub"
	"github.com/DoyleJ11/tagsrv/internal/logging"
	"github.com/DoyleJ11/tagsrv/internal/store"
)

func newServeCmd(v *viper.Viper, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "listen address")
	f.Duration("tick-interval", 0, "game tick interval")
	f.Duration("broadcast-interval", 0, "snapshot broadcast interval")
	f.Duration("restart-delay", 0, "delay between a win and the next round")
	f.Uint64("seed", 0, "random seed, 0 for time based")
	f.String("database-url", "", "postgres DSN for round history")
	for _, name := range []string{"addr", "tick-interval", "broadcast-interval", "restart-delay", "seed", "database-url"} {
		_ = v.BindPFlag(flagKey(name), f.Lookup(name))
	}
	return cmd
}

func serve(parent context.Context, cfg config.Config) (err error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var rec store.Recorder = store.NewMemory()
	if cfg.DatabaseURL != "" {
		g, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		rec = g
	}
	defer func() { err = multierr.Append(err, rec.Close()) }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Settings{
		RestartDelay:      cfg.RestartDelay,
		Seed:              cfg.Seed,
		TickInterval:      cfg.TickInterval,
		BroadcastInterval: cfg.BroadcastInterval,
		Logger:            log,
		Recorder:          rec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, rec, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
