// Command labelsync moves vendor price and promotion documents onto the
// label platform, one store at a time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/config"
	"github.com/erp/labelsync/internal/infrastructure/logger"
	"github.com/erp/labelsync/internal/infrastructure/scheduler"
	"github.com/erp/labelsync/internal/interfaces/http/handler"
	"github.com/erp/labelsync/internal/interfaces/http/router"
)

var version = "dev"

func main() {
	var (
		configFile  string
		once        bool
		promoSwitch bool
		storeCode   string
	)
	flag.StringVar(&configFile, "config", "", "Path to config file (default: config.toml in . or /app)")
	flag.BoolVar(&once, "once", false, "Run every store once and exit")
	flag.BoolVar(&promoSwitch, "promo-switch", false, "With -once, run the promotion switch check instead of a sync")
	flag.StringVar(&storeCode, "store", "", "Limit the run to one store code")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
		Service:    cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(cfg, log, once, promoSwitch, storeCode); err != nil {
		log.Error("labelsync exited with error", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, once, promoSwitch bool, storeCode string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting labelsync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	stores, err := cfg.DomainStores()
	if err != nil {
		return err
	}
	stores, err = selectStores(stores, storeCode)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, version, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(closeCtx, log)
	}()

	sched, err := scheduler.NewStoreSyncScheduler(scheduler.StoreSyncSchedulerConfig{
		Interval:   cfg.Scheduler.Interval,
		RunTimeout: cfg.Scheduler.RunTimeout,
		QueueSize:  scheduler.DefaultStoreSyncSchedulerConfig().QueueSize,
		MaxHistory: scheduler.DefaultStoreSyncSchedulerConfig().MaxHistory,
	}, a.pipeline, stores, log.Named("scheduler"))
	if err != nil {
		return err
	}

	if once {
		kind := scheduler.JobKindSync
		if promoSwitch {
			kind = scheduler.JobKindPromoSwitch
		}
		runErr := sched.RunAll(ctx, kind, "once")
		if err := a.meters.ForceFlush(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to flush metrics", zap.Error(err))
		}
		return runErr
	}
	return serve(ctx, cfg, log, a, sched, stores)
}

// serve runs the scheduler, the daily promotion trigger and the ops server
// until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, a *app, sched *scheduler.StoreSyncScheduler, stores []integration.Store) error {
	var jobs handler.JobSubmitter
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		jobs = sched
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = sched.Stop(stopCtx)
		}()
	}

	if cfg.Scheduler.Enabled && cfg.Scheduler.PromoSwitch {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		trigger, err := scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
			Hour:          cfg.Scheduler.PromoSwitchHour,
			Location:      loc,
			CheckInterval: time.Minute,
		}, sched.TriggerPromoSwitch, log.Named("promo-switch"))
		if err != nil {
			return err
		}
		if err := trigger.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = trigger.Stop(stopCtx)
		}()
	}

	if !cfg.HTTP.Enabled {
		<-ctx.Done()
		log.Info("Shutting down labelsync...")
		return nil
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(log.Named("http"), router.Handlers{
		System: handler.NewSystemHandler(cfg.App.Name, version),
		Stores: handler.NewStoreHandler(stores, a.pipeline, jobs),
	})
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Ops server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down labelsync...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server forced to shutdown: %w", err)
	}
	log.Info("labelsync exited gracefully")
	return nil
}

// selectStores narrows stores to code when it is set
func selectStores(stores []integration.Store, code string) ([]integration.Store, error) {
	if code == "" {
		return stores, nil
	}
	for _, s := range stores {
		if s.Code == code {
			return []integration.Store{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownStore, code)
}
