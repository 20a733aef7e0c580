/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventgen materializes occurrence dates of recurring experiences into
// bookable event instances.
package eventgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skirnir_market/internal/cache"
	"github.com/friendsincode/skirnir_market/internal/models"
	"github.com/friendsincode/skirnir_market/internal/recurrence"
	"github.com/friendsincode/skirnir_market/internal/telemetry"
)

// Result reports what one generation run did.
type Result struct {
	Created    int
	Considered int
}

// Service turns occurrence dates into persisted event instances.
type Service struct {
	db        *gorm.DB
	cache     *cache.Cache
	logger    zerolog.Logger
	maxPerRun int

	warnMu     sync.Mutex
	warnedKeys map[string]struct{}
}

// New constructs the generation service. maxPerRun caps occurrences expanded
// per window; values below 1 fall back to the engine default.
func New(db *gorm.DB, maxPerRun int, logger zerolog.Logger) *Service {
	if maxPerRun < 1 {
		maxPerRun = recurrence.DefaultMaxResults
	}
	return &Service{
		db:         db,
		logger:     logger.With().Str("component", "eventgen").Logger(),
		maxPerRun:  maxPerRun,
		warnedKeys: make(map[string]struct{}),
	}
}

// SetCache sets the schedule snapshot cache.
func (s *Service) SetCache(c *cache.Cache) {
	s.cache = c
}

// Anchor returns the DTSTART of an experience, for resolving horizon targets.
func (s *Service) Anchor(ctx context.Context, experienceID string) (time.Time, error) {
	sched, err := s.loadSchedule(ctx, experienceID)
	if err != nil {
		return time.Time{}, err
	}
	return sched.DTStart, nil
}

// Generate expands the experience's rule over [from, to] (UTC-day truncated,
// inclusive) and creates one event instance per occurrence date not yet
// materialized. It returns ErrValidation-wrapped errors for bad input,
// ErrConflict-wrapped errors when a concurrent writer beat us to a date, and
// raw errors for transient storage failures.
func (s *Service) Generate(ctx context.Context, experienceID string, from, to time.Time) (Result, error) {
	start := time.Now()

	if experienceID == "" {
		return Result{}, fmt.Errorf("experience id required: %w", ErrValidation)
	}

	sched, err := s.loadSchedule(ctx, experienceID)
	if err != nil {
		return Result{}, err
	}
	if !sched.Active {
		s.logger.Info().Str("experience", experienceID).Msg("experience inactive, skipping generation")
		return Result{}, nil
	}

	occs, err := s.expand(sched, from, to)
	if err != nil {
		return Result{}, err
	}

	// The anchor's time-of-day carries over to every occurrence; the UTC
	// midnight date remains the idempotency key.
	anchorDay := recurrence.StartOfUTCDay(sched.DTStart)
	timeOfDay := sched.DTStart.UTC().Sub(anchorDay)
	duration := time.Duration(sched.DurationMinutes) * time.Minute

	var res Result
	for _, occ := range occs {
		res.Considered++

		var count int64
		err := s.db.WithContext(ctx).
			Model(&models.EventInstance{}).
			Where("experience_id = ? AND starts_on = ?", experienceID, occ).
			Count(&count).Error
		if err != nil {
			return res, fmt.Errorf("check existing instance: %w", err)
		}
		if count > 0 {
			continue
		}

		instance := models.EventInstance{
			ID:           uuid.NewString(),
			ExperienceID: experienceID,
			TenantID:     sched.TenantID,
			StartsOn:     occ,
			StartsAt:     occ.Add(timeOfDay),
			EndsAt:       occ.Add(timeOfDay).Add(duration),
			Capacity:     sched.Capacity,
			Status:       models.EventInstanceScheduled,
		}
		if err := s.db.WithContext(ctx).Create(&instance).Error; err != nil {
			if isDuplicateError(err) {
				// Lost a race with a concurrent generator; the date exists.
				return res, fmt.Errorf("occurrence %s for experience %s: %w",
					occ.Format("2006-01-02"), experienceID, ErrConflict)
			}
			return res, fmt.Errorf("create event instance: %w", err)
		}
		res.Created++
		telemetry.EventInstancesCreatedTotal.Inc()
	}

	telemetry.GenerationDuration.WithLabelValues(experienceID).Observe(time.Since(start).Seconds())
	return res, nil
}

// expand resolves the schedule's rule into occurrence dates within the window.
func (s *Service) expand(sched *cache.CachedSchedule, from, to time.Time) ([]time.Time, error) {
	windowStart := recurrence.StartOfUTCDay(from)
	windowEnd := recurrence.StartOfUTCDay(to)
	if sched.DTEnd != nil {
		windowEnd = recurrence.MinTime(windowEnd, recurrence.StartOfUTCDay(*sched.DTEnd))
	}

	if sched.RRule == "" {
		// One-off experience: at most the anchor day itself.
		anchorDay := recurrence.StartOfUTCDay(sched.DTStart)
		if _, ok := recurrence.ClampUTC(anchorDay, windowStart, windowEnd); ok {
			return []time.Time{anchorDay}, nil
		}
		return nil, nil
	}

	rule, err := recurrence.ParseRRule(sched.RRule)
	if err != nil {
		return nil, fmt.Errorf("experience %s: %w: %v", sched.ExperienceID, ErrValidation, err)
	}
	if !rule.Expandable() {
		s.warnOnce("unexpandable_frequency:"+sched.ExperienceID, func(e *zerolog.Event) {
			e.Str("experience", sched.ExperienceID).
				Str("frequency", string(rule.Frequency)).
				Msg("frequency not implemented by the expansion engine, no occurrences generated")
		})
		return nil, nil
	}

	return recurrence.ExpandWindow(rule, sched.DTStart, windowStart, windowEnd, s.maxPerRun), nil
}

// loadSchedule retrieves expansion inputs, using cache when available.
func (s *Service) loadSchedule(ctx context.Context, experienceID string) (*cache.CachedSchedule, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetSchedule(ctx, experienceID); ok {
			return cached, nil
		}
	}

	var exp models.Experience
	err := s.db.WithContext(ctx).First(&exp, "id = ?", experienceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("experience %s not found: %w", experienceID, ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("load experience: %w", err)
	}

	sched := &cache.CachedSchedule{
		ExperienceID:    exp.ID,
		TenantID:        exp.TenantID,
		RRule:           exp.RRule,
		DTStart:         exp.DTStart,
		DTEnd:           exp.DTEnd,
		DurationMinutes: exp.DurationMinutes,
		Capacity:        exp.DefaultCapacity,
		Active:          exp.Active,
	}

	if s.cache != nil {
		if err := s.cache.SetSchedule(ctx, sched); err != nil {
			s.logger.Debug().Err(err).Str("experience", experienceID).Msg("failed to cache schedule")
		}
	}

	return sched, nil
}

func (s *Service) warnOnce(key string, logFn func(e *zerolog.Event)) {
	s.warnMu.Lock()
	if _, ok := s.warnedKeys[key]; ok {
		s.warnMu.Unlock()
		return
	}
	s.warnedKeys[key] = struct{}{}
	s.warnMu.Unlock()

	logFn(s.logger.Warn())
}

// isDuplicateError recognizes unique-constraint violations. gorm translates
// most drivers to ErrDuplicatedKey; the text check covers drivers that bypass
// translation. This is the only place driver error text is inspected.
func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
