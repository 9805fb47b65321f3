// Command courierd runs the courier job engine, webhook dispatcher and cron
// scheduler behind an HTTP API. Schedules submit webhook.trigger jobs, so a
// cron entry can publish an event on a timer. Configuration comes from
// COURIER_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/courier"
	"github.com/xraph/courier/api"
	"github.com/xraph/courier/cron"
	"github.com/xraph/courier/engine"
	relayhook "github.com/xraph/courier/relay_hook"
	"github.com/xraph/courier/store/redis"
	"github.com/xraph/courier/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "courierd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := courier.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	loc, err := cfg.ScheduleLocation()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var regOpts []webhook.RegistryOption
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		store := redis.New(rdb,
			redis.WithLogger(logger),
			redis.WithNamespace(cfg.RedisNamespace),
		)
		if err := store.Ping(ctx); err != nil {
			return err
		}
		regOpts = append(regOpts, webhook.WithStore(store))
		logger.Info("subscription store enabled", slog.String("redis", cfg.RedisAddr))
	}

	dispatcher, err := webhook.NewDispatcher(
		webhook.NewRegistry(logger, regOpts...),
		webhook.WithConfig(cfg),
		webhook.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	// Job lifecycle events are published to webhook subscribers.
	eng, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithExtension(relayhook.New(dispatcher)),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	engine.Register(eng, dispatcher.TriggerDefinition())

	scheduler := cron.NewScheduler(eng.SubmitRaw, logger,
		cron.WithLocation(loc),
		cron.WithEmitter(eng.Extensions()),
		cron.WithKnownKinds(eng.HasKind),
	)

	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	handler := api.New(eng, dispatcher,
		api.WithLogger(logger),
		api.WithScheduler(scheduler),
	).Handler()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Webhook.Timeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("courierd listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("courierd shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			scheduler.Stop(shutdownCtx),
			srv.Shutdown(shutdownCtx),
			eng.Stop(shutdownCtx),
			dispatcher.Stop(shutdownCtx),
		)
	})
	return g.Wait()
}

func newLogger(cfg courier.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
