package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/raffle-draw-backend/internal/config"
	"github.com/DoyleJ11/raffle-draw-backend/internal/httpapi"
	"github.com/DoyleJ11/raffle-draw-backend/internal/hub"
	"github.com/DoyleJ11/raffle-draw-backend/internal/presenter"
	"github.com/DoyleJ11/raffle-draw-backend/internal/roster"
	"github.com/DoyleJ11/raffle-draw-backend/internal/session"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Warn("could not load .env file", zap.Error(envErr))
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := roster.NewDirectory(cfg.ParticipantsDir, cfg.PlaceholdersDir)
	h := hub.NewHub(ctx, session.Options{
		Pacing: cfg.Pacing,
		Reveal: cfg.Reveal,
		Assets: presenter.Assets{Base: cfg.PublicURL},
		Logger: log,

		IdleTimeout: cfg.SessionIdle,
	}, cfg.Seed)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:             h,
		Source:          src,
		ParticipantsDir: cfg.ParticipantsDir,
		PlaceholdersDir: cfg.PlaceholdersDir,
		AllowedOrigins:  cfg.AllowedOrigins,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("public_url", cfg.PublicURL),
			zap.String("participants_dir", cfg.ParticipantsDir),
			zap.String("placeholders_dir", cfg.PlaceholdersDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		return err
	})
	return g.Wait()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
