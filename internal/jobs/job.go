/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package jobs consumes generation jobs from the queue and drives the
// materialization of recurring experiences.
package jobs

import "time"

// GenerateEventsJob asks for event instances of one experience to be
// materialized. TargetDate is an ISO date or RFC 3339 instant naming the
// generation horizon; when absent the processor falls back to the legacy fixed
// horizons.
type GenerateEventsJob struct {
	ExperienceID string `json:"experience_id"`
	TargetDate   string `json:"target_date,omitempty"`
	BatchID      string `json:"batch_id"`
}

// JobResult is the structured outcome reported back to the queue.
type JobResult struct {
	OK              bool     `json:"ok"`
	Idempotent      bool     `json:"idempotent,omitempty"`
	ValidationError bool     `json:"validation_error,omitempty"`
	Created         int      `json:"created"`
	Considered      int      `json:"considered"`
	DurationMS      int64    `json:"duration_ms"`
	Targets         []string `json:"targets,omitempty"`
}

// Outcome tells the queue what to do with the message.
type Outcome int

const (
	// OutcomeCompleted acknowledges the job (success or benign conflict).
	OutcomeCompleted Outcome = iota
	// OutcomeValidationFailed terminates the job; retrying cannot help.
	OutcomeValidationFailed
	// OutcomeRetry hands the job back for redelivery with backoff.
	OutcomeRetry
	// OutcomePermanentFailure terminates the job after exhausted attempts.
	OutcomePermanentFailure
)

// String returns the metrics label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeRetry:
		return "retry"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Legacy generation horizons, relative to the experience anchor, used when a
// job names no target date. Kept as an explicit branch so it can be deprecated
// independently of the general path.
const (
	legacyShortHorizonDays = 16
	legacyLongHorizonDays  = 31
)

// targetDateLayouts are the accepted TargetDate formats.
var targetDateLayouts = []string{time.RFC3339, "2006-01-02"}
