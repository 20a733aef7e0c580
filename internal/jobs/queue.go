/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	subjectGenerate = "skirnir.jobs.generate"
	subjectResults  = "skirnir.jobs.results"

	fetchBatch   = 10
	fetchTimeout = 5 * time.Second

	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = 10 * time.Minute
)

// QueueConfig parameterizes the JetStream work queue.
type QueueConfig struct {
	URL         string
	StreamName  string
	DurableName string
	WorkerCount int
	MaxAttempts int
	AckWait     time.Duration
}

// Queue is a JetStream backed work queue for generation jobs.
type Queue struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	sub       *nats.Subscription
	processor *Processor
	logger    zerolog.Logger
	cfg       QueueConfig

	wg sync.WaitGroup
}

// NewQueue connects to NATS, ensures the work-queue stream exists, and binds a
// durable pull consumer for generation jobs.
func NewQueue(cfg QueueConfig, processor *Processor, logger zerolog.Logger) (*Queue, error) {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(cfg.StreamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("check stream %s: %w", cfg.StreamName, err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.StreamName,
			Subjects:  []string{subjectGenerate},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
		}
	}

	sub, err := js.PullSubscribe(subjectGenerate, cfg.DurableName,
		nats.AckWait(cfg.AckWait),
		nats.MaxDeliver(cfg.MaxAttempts),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", subjectGenerate, err)
	}

	return &Queue{
		nc:        nc,
		js:        js,
		sub:       sub,
		processor: processor,
		logger:    logger.With().Str("component", "queue").Logger(),
		cfg:       cfg,
	}, nil
}

// Enqueue publishes a generation job.
func (q *Queue) Enqueue(ctx context.Context, job GenerateEventsJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := q.js.Publish(subjectGenerate, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	q.logger.Debug().
		Str("experience", job.ExperienceID).
		Str("batch", job.BatchID).
		Msg("job enqueued")
	return nil
}

// Run fetches and processes jobs until ctx is canceled, keeping at most
// WorkerCount jobs in flight.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info().
		Int("workers", q.cfg.WorkerCount).
		Str("stream", q.cfg.StreamName).
		Msg("job queue consumer started")

	sem := make(chan struct{}, q.cfg.WorkerCount)

	for {
		select {
		case <-ctx.Done():
			q.wg.Wait()
			q.logger.Info().Msg("job queue consumer stopped")
			return
		default:
		}

		msgs, err := q.sub.Fetch(fetchBatch, nats.MaxWait(fetchTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			q.logger.Warn().Err(err).Msg("failed to fetch jobs")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			sem <- struct{}{}
			q.wg.Add(1)
			go func(m *nats.Msg) {
				defer q.wg.Done()
				defer func() { <-sem }()
				q.handle(ctx, m)
			}(msg)
		}
	}
}

// handle decodes one message, runs the processor, and translates the outcome
// into the message's fate.
func (q *Queue) handle(ctx context.Context, m *nats.Msg) {
	delivery := 1
	if meta, err := m.Metadata(); err == nil {
		delivery = int(meta.NumDelivered)
	}

	var job GenerateEventsJob
	if err := json.Unmarshal(m.Data, &job); err != nil {
		q.logger.Error().Err(err).Msg("malformed job payload, terminating")
		if err := m.Term(); err != nil {
			q.logger.Warn().Err(err).Msg("failed to terminate malformed job")
		}
		return
	}

	result, outcome := q.processor.Process(ctx, job, delivery)

	switch outcome {
	case OutcomeCompleted:
		if err := m.Ack(); err != nil {
			q.logger.Warn().Err(err).Str("experience", job.ExperienceID).Msg("failed to ack job")
		}
	case OutcomeValidationFailed, OutcomePermanentFailure:
		if err := m.Term(); err != nil {
			q.logger.Warn().Err(err).Str("experience", job.ExperienceID).Msg("failed to terminate job")
		}
	case OutcomeRetry:
		delay := retryDelay(delivery)
		if err := m.NakWithDelay(delay); err != nil {
			q.logger.Warn().Err(err).Str("experience", job.ExperienceID).Msg("failed to nak job")
		}
	}

	q.publishResult(job, result, outcome)
}

// publishResult reports the job outcome on the results subject, best effort.
func (q *Queue) publishResult(job GenerateEventsJob, result JobResult, outcome Outcome) {
	payload := struct {
		ExperienceID string    `json:"experience_id"`
		BatchID      string    `json:"batch_id,omitempty"`
		Outcome      string    `json:"outcome"`
		Result       JobResult `json:"result"`
	}{
		ExperienceID: job.ExperienceID,
		BatchID:      job.BatchID,
		Outcome:      outcome.String(),
		Result:       result,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := q.nc.Publish(subjectResults, data); err != nil {
		q.logger.Debug().Err(err).Msg("failed to publish job result")
	}
}

// retryDelay backs off exponentially per delivery attempt.
func retryDelay(delivery int) time.Duration {
	if delivery < 1 {
		delivery = 1
	}
	delay := retryBaseDelay << (delivery - 1)
	if delay > retryMaxDelay || delay <= 0 {
		return retryMaxDelay
	}
	return delay
}

// Close drains the subscription and closes the connection.
func (q *Queue) Close() {
	if q.sub != nil {
		if err := q.sub.Drain(); err != nil {
			q.logger.Warn().Err(err).Msg("failed to drain subscription")
		}
	}
	q.wg.Wait()
	if q.nc != nil {
		q.nc.Close()
	}
}
