/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server bundles the HTTP API, job queue consumer, and their shared
// dependencies into one runnable unit.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skirnir_market/internal/api"
	"github.com/friendsincode/skirnir_market/internal/cache"
	"github.com/friendsincode/skirnir_market/internal/config"
	"github.com/friendsincode/skirnir_market/internal/db"
	"github.com/friendsincode/skirnir_market/internal/eventgen"
	"github.com/friendsincode/skirnir_market/internal/genlock"
	"github.com/friendsincode/skirnir_market/internal/jobs"
	"github.com/friendsincode/skirnir_market/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	db        *gorm.DB
	cache     *cache.Cache
	generator *eventgen.Service
	queue     *jobs.Queue
	api       *api.API

	closers []func() error

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New wires dependencies and prepares the HTTP server. Nothing listens until
// Start is called.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	scheduleCache, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	s.cache = scheduleCache
	s.DeferClose(scheduleCache.Close)

	s.generator = eventgen.New(s.db, s.cfg.MaxOccurrencesPerRun, s.logger)
	if scheduleCache.IsAvailable() {
		s.generator.SetCache(scheduleCache)
	}

	var locker jobs.Locker
	if client := scheduleCache.Client(); client != nil {
		locker = genlock.New(client, s.logger)
	} else {
		// Without Redis there is no cross-process exclusion; single-instance
		// deployments still get correct results from the unique index.
		s.logger.Warn().Msg("Redis unavailable, generation lock disabled")
		locker = noopLocker{}
	}

	processor := jobs.NewProcessor(s.generator, locker,
		s.cfg.JobMaxAttempts, s.cfg.GenerationLockTTL, s.logger)

	queue, err := jobs.NewQueue(jobs.QueueConfig{
		URL:         s.cfg.NATSURL,
		StreamName:  s.cfg.JobStreamName,
		DurableName: s.cfg.JobDurableName,
		WorkerCount: s.cfg.WorkerCount,
		MaxAttempts: s.cfg.JobMaxAttempts,
		AckWait:     s.cfg.JobAckWait,
	}, processor, s.logger)
	if err != nil {
		return fmt.Errorf("init job queue: %w", err)
	}
	s.queue = queue
	s.DeferClose(func() error { queue.Close(); return nil })

	s.api = api.New(s.db, s.queue, s.cfg.LookaheadDays, s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.api.Routes(s.router)
	s.router.Handle("/metrics", telemetry.Handler())
}

// Start runs the queue consumer and the HTTP listener. It blocks until the
// listener stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.queue.Run(ctx)
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener, drains in-flight jobs, and releases
// dependencies.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}

	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup run during Shutdown, in reverse order.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// DB exposes the database handle for CLI subcommands sharing server wiring.
func (s *Server) DB() *gorm.DB {
	return s.db
}

// Queue exposes the job queue for CLI subcommands.
func (s *Server) Queue() *jobs.Queue {
	return s.queue
}

type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, key, ownerToken string, ttl time.Duration) bool {
	return true
}

func (noopLocker) Release(ctx context.Context, key, ownerToken string) {}
