package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coro-sched/coro/internal/adminapi"
	"github.com/coro-sched/coro/internal/config"
	"github.com/coro-sched/coro/internal/events"
	"github.com/coro-sched/coro/internal/logger"
	"github.com/coro-sched/coro/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("Starting scheduler daemon...")

	bus := events.NewBus()

	proc := scheduler.NewProcessor(scheduler.Config{
		ID:              "schedulerd",
		Workers:         cfg.Processor.WorkerThreads,
		QueueDepth:      cfg.Processor.TaskQueueSizeLimit,
		MaxQueueAge:     cfg.Processor.TaskQueueWaitLimit,
		ShutdownTimeout: cfg.Processor.ShutdownTimeout,
		EventQueueDepth: cfg.EventLoop.QueueDepth,
		EventBus:        bus,
	})

	server := adminapi.NewServer(cfg, proc.Internal(), bus)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.AdminAPI.Host, cfg.AdminAPI.Port),
		Handler:      server,
		ReadTimeout:  cfg.AdminAPI.ReadTimeout,
		WriteTimeout: cfg.AdminAPI.WriteTimeout,
		IdleTimeout:  cfg.AdminAPI.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.Start(ctx)

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("admin API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin API server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down scheduler daemon...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	server.Stop()
	if n := proc.DetachedCount(); n > 0 {
		log.Info().Int("detached_tasks", n).Msg("awaiting detached tasks before shutdown")
	}
	proc.Stop(shutdownCtx)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin API shutdown error")
	}

	log.Info().Msg("Scheduler daemon stopped")
}
