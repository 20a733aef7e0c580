/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skirnir_market/internal/eventgen"
	"github.com/friendsincode/skirnir_market/internal/genlock"
	"github.com/friendsincode/skirnir_market/internal/recurrence"
	"github.com/friendsincode/skirnir_market/internal/telemetry"
)

// Generator materializes event instances for an experience.
type Generator interface {
	Anchor(ctx context.Context, experienceID string) (time.Time, error)
	Generate(ctx context.Context, experienceID string, from, to time.Time) (eventgen.Result, error)
}

// Locker provides per-source mutual exclusion during generation.
type Locker interface {
	Acquire(ctx context.Context, key, ownerToken string, ttl time.Duration) bool
	Release(ctx context.Context, key, ownerToken string)
}

// Processor runs one generation job to a classified outcome.
type Processor struct {
	gen         Generator
	lock        Locker
	logger      zerolog.Logger
	maxAttempts int
	lockTTL     time.Duration
	now         func() time.Time
}

// NewProcessor constructs the job processor.
func NewProcessor(gen Generator, lock Locker, maxAttempts int, lockTTL time.Duration, logger zerolog.Logger) *Processor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Processor{
		gen:         gen,
		lock:        lock,
		logger:      logger.With().Str("component", "jobs").Logger(),
		maxAttempts: maxAttempts,
		lockTTL:     lockTTL,
		now:         time.Now,
	}
}

// Process validates the job, resolves its target horizons, acquires the
// per-experience generation lock, and delegates to the generator. The returned
// Outcome tells the queue whether to ack, retry, or terminate; delivery is the
// 1-based delivery attempt reported by the queue.
func (p *Processor) Process(ctx context.Context, job GenerateEventsJob, delivery int) (JobResult, Outcome) {
	start := p.now()

	ctx, span := telemetry.StartSpan(ctx, "jobs", "processGeneration")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"experience_id": job.ExperienceID,
		"batch_id":      job.BatchID,
		"delivery":      delivery,
	})

	logger := p.logger.With().
		Str("experience", job.ExperienceID).
		Str("batch", job.BatchID).
		Int("delivery", delivery).
		Logger()

	if job.ExperienceID == "" {
		logger.Warn().Msg("job missing experience id")
		return p.finish(JobResult{OK: false, ValidationError: true}, OutcomeValidationFailed, start)
	}

	targets, legacy, err := p.resolveTargets(ctx, job)
	if err != nil {
		telemetry.RecordError(span, err)
		return p.classify(logger, JobResult{}, err, delivery, start)
	}
	if legacy {
		logger.Info().Str("mode", "legacy").Msg("no target date on job, using fixed anchor horizons")
	}

	token := genlock.NewOwnerToken()
	if !p.lock.Acquire(ctx, lockKey(job.ExperienceID), token, p.lockTTL) {
		// Another worker is generating this experience; let the queue retry
		// later rather than wait.
		logger.Info().Msg("generation lock busy, deferring job")
		return p.finish(JobResult{OK: false}, OutcomeRetry, start)
	}
	defer p.lock.Release(ctx, lockKey(job.ExperienceID), token)

	from := recurrence.StartOfUTCDay(p.now())

	var result JobResult
	for _, target := range targets {
		result.Targets = append(result.Targets, target.Format("2006-01-02"))
		res, err := p.gen.Generate(ctx, job.ExperienceID, from, target)
		result.Created += res.Created
		result.Considered += res.Considered
		if err != nil {
			telemetry.RecordError(span, err)
			return p.classify(logger, result, err, delivery, start)
		}
	}

	result.OK = true
	logger.Info().
		Int("created", result.Created).
		Int("considered", result.Considered).
		Strs("targets", result.Targets).
		Msg("generation job completed")
	return p.finish(result, OutcomeCompleted, start)
}

// classify maps a generation error onto the job outcome taxonomy.
func (p *Processor) classify(logger zerolog.Logger, partial JobResult, err error, delivery int, start time.Time) (JobResult, Outcome) {
	switch {
	case errors.Is(err, eventgen.ErrConflict):
		// Duplicate materialization attempts are benign; success with a flag.
		logger.Warn().Err(err).Msg("occurrence already materialized, treating as idempotent success")
		partial.OK = true
		partial.Idempotent = true
		return p.finish(partial, OutcomeCompleted, start)

	case errors.Is(err, eventgen.ErrValidation):
		logger.Warn().Err(err).Msg("generation job failed validation, not retrying")
		partial.OK = false
		partial.ValidationError = true
		return p.finish(partial, OutcomeValidationFailed, start)

	case delivery < p.maxAttempts:
		logger.Warn().Err(err).Int("max_attempts", p.maxAttempts).Msg("generation job failed, will retry")
		partial.OK = false
		return p.finish(partial, OutcomeRetry, start)

	default:
		logger.Error().Err(err).Int("max_attempts", p.maxAttempts).Msg("generation job failed permanently")
		partial.OK = false
		return p.finish(partial, OutcomePermanentFailure, start)
	}
}

func (p *Processor) finish(result JobResult, outcome Outcome, start time.Time) (JobResult, Outcome) {
	elapsed := p.now().Sub(start)
	result.DurationMS = elapsed.Milliseconds()
	telemetry.JobsProcessedTotal.WithLabelValues(outcome.String()).Inc()
	telemetry.JobDuration.Observe(elapsed.Seconds())
	return result, outcome
}

// resolveTargets determines the generation horizons for the job. The legacy
// return value reports whether the fixed-horizon fallback was taken.
func (p *Processor) resolveTargets(ctx context.Context, job GenerateEventsJob) ([]time.Time, bool, error) {
	if job.TargetDate != "" {
		d, err := parseTargetDate(job.TargetDate)
		if err != nil {
			return nil, false, fmt.Errorf("target date %q: %w", job.TargetDate, eventgen.ErrValidation)
		}
		return []time.Time{recurrence.StartOfUTCDay(d)}, false, nil
	}

	anchor, err := p.gen.Anchor(ctx, job.ExperienceID)
	if err != nil {
		return nil, false, err
	}
	anchorDay := recurrence.StartOfUTCDay(anchor)
	return []time.Time{
		recurrence.AddDaysUTC(anchorDay, legacyShortHorizonDays),
		recurrence.AddDaysUTC(anchorDay, legacyLongHorizonDays),
	}, true, nil
}

func parseTargetDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range targetDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func lockKey(experienceID string) string {
	return "generate:" + experienceID
}
