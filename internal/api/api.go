/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface for schedules and generation jobs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skirnir_market/internal/jobs"
	"github.com/friendsincode/skirnir_market/internal/models"
	"github.com/friendsincode/skirnir_market/internal/recurrence"
)

// Enqueuer submits generation jobs to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job jobs.GenerateEventsJob) error
}

// API exposes HTTP handlers.
type API struct {
	db            *gorm.DB
	queue         Enqueuer
	lookaheadDays int
	logger        zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, queue Enqueuer, lookaheadDays int, logger zerolog.Logger) *API {
	if lookaheadDays < 1 {
		lookaheadDays = recurrence.DefaultLookaheadDays
	}
	return &API{
		db:            db,
		queue:         queue,
		lookaheadDays: lookaheadDays,
		logger:        logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/readyz", a.handleReady)

		r.Route("/experiences", func(r chi.Router) {
			r.Get("/", a.handleExperiencesList)
			r.Route("/{experienceID}", func(r chi.Router) {
				r.Get("/", a.handleExperiencesGet)
				r.Get("/next-occurrence", a.handleNextOccurrence)
				r.Get("/instances", a.handleInstancesList)
				r.Post("/generate", a.handleGenerate)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) handleExperiencesList(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context())
	if tenantID := r.URL.Query().Get("tenant_id"); tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}

	var experiences []models.Experience
	if err := q.Order("created_at DESC").Find(&experiences).Error; err != nil {
		a.logger.Error().Err(err).Msg("list experiences failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, experiences)
}

func (a *API) handleExperiencesGet(w http.ResponseWriter, r *http.Request) {
	exp, ok := a.loadExperience(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// handleNextOccurrence reports the first occurrence date at or after `from`
// (default: now), or 204 when none falls within the lookahead horizon.
func (a *API) handleNextOccurrence(w http.ResponseWriter, r *http.Request) {
	exp, ok := a.loadExperience(w, r)
	if !ok {
		return
	}

	from := time.Now().UTC()
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from")
			return
		}
		from = parsed
	}

	if exp.RRule == "" {
		anchorDay := recurrence.StartOfUTCDay(exp.DTStart)
		if anchorDay.Before(recurrence.StartOfUTCDay(from)) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"experience_id": exp.ID,
			"next":          anchorDay.Format("2006-01-02"),
		})
		return
	}

	rule, err := recurrence.ParseRRule(exp.RRule)
	if err != nil {
		a.logger.Warn().Err(err).Str("experience", exp.ID).Msg("stored rule failed to parse")
		writeError(w, http.StatusUnprocessableEntity, "invalid_rrule")
		return
	}

	next, ok := recurrence.NextOccurrenceUTC(rule, exp.DTStart, from, a.lookaheadDays)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"experience_id": exp.ID,
		"next":          next.Format("2006-01-02"),
	})
}

func (a *API) handleInstancesList(w http.ResponseWriter, r *http.Request) {
	exp, ok := a.loadExperience(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	var instances []models.EventInstance
	err := a.db.WithContext(r.Context()).
		Where("experience_id = ? AND starts_on >= ?", exp.ID, recurrence.StartOfUTCDay(time.Now())).
		Order("starts_on ASC").
		Limit(limit).
		Find(&instances).Error
	if err != nil {
		a.logger.Error().Err(err).Str("experience", exp.ID).Msg("list instances failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

// handleGenerate enqueues an asynchronous generation job for the experience.
func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	exp, ok := a.loadExperience(w, r)
	if !ok {
		return
	}

	var req struct {
		TargetDate string `json:"target_date"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
	}
	if req.TargetDate != "" {
		if _, err := parseDateParam(req.TargetDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_target_date")
			return
		}
	}

	job := jobs.GenerateEventsJob{
		ExperienceID: exp.ID,
		TargetDate:   req.TargetDate,
		BatchID:      uuid.NewString(),
	}
	if err := a.queue.Enqueue(r.Context(), job); err != nil {
		a.logger.Error().Err(err).Str("experience", exp.ID).Msg("failed to enqueue generation job")
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"experience_id": exp.ID,
		"batch_id":      job.BatchID,
	})
}

func (a *API) loadExperience(w http.ResponseWriter, r *http.Request) (*models.Experience, bool) {
	experienceID := chi.URLParam(r, "experienceID")
	if experienceID == "" {
		writeError(w, http.StatusBadRequest, "missing_experience_id")
		return nil, false
	}

	var exp models.Experience
	err := a.db.WithContext(r.Context()).First(&exp, "id = ?", experienceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "experience_not_found")
		return nil, false
	}
	if err != nil {
		a.logger.Error().Err(err).Str("experience", experienceID).Msg("load experience failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return &exp, true
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
