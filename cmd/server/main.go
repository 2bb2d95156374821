package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valeevte/pricewatch/internal/app"
	"github.com/valeevte/pricewatch/internal/config"
	"github.com/valeevte/pricewatch/internal/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.IsDevelopment(), cfg.Logger.Level)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// prices are JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("server exited with error", zap.Error(err))
		_ = zl.Sync()
		os.Exit(1)
	}
	zl.Info("graceful shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	if cfg.Scheduler.Enabled {
		if err := a.Scheduler.Start(); err != nil {
			return err
		}
	} else {
		zl.Info("scheduler disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http server listening", zap.String("addr", srv.Addr), zap.String("version", app.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := a.Scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
