/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/skirnir_market/internal/jobs"
	"github.com/friendsincode/skirnir_market/internal/models"
)

type fakeEnqueuer struct {
	jobs []jobs.GenerateEventsJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job jobs.GenerateEventsJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestAPI(t *testing.T) (*API, *gorm.DB, *fakeEnqueuer) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(&models.Tenant{}, &models.Experience{}, &models.EventInstance{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	queue := &fakeEnqueuer{}
	return New(db, queue, 365, zerolog.Nop()), db, queue
}

func newTestRouter(a *API) http.Handler {
	r := chi.NewRouter()
	a.Routes(r)
	return r
}

func seedExperience(t *testing.T, db *gorm.DB, id, rrule string, dtstart time.Time) {
	t.Helper()
	exp := models.Experience{
		ID:              id,
		TenantID:        "tenant-1",
		Title:           "Sunset Sailing",
		DefaultCapacity: 10,
		DurationMinutes: 120,
		RRule:           rrule,
		DTStart:         dtstart,
		Timezone:        "UTC",
		Active:          true,
	}
	if err := db.Create(&exp).Error; err != nil {
		t.Fatalf("failed to seed experience: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	a, _, _ := newTestAPI(t)
	router := newTestRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestNextOccurrence(t *testing.T) {
	a, db, _ := newTestAPI(t)
	router := newTestRouter(a)

	seedExperience(t, db, "exp-1", "FREQ=WEEKLY;BYDAY=MO,WE",
		time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/experiences/exp-1/next-occurrence?from=2024-01-02", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	// Jan 1 2024 is a Monday; next at-or-after Jan 2 is Wednesday Jan 3.
	if body["next"] != "2024-01-03" {
		t.Fatalf("next = %q, want 2024-01-03", body["next"])
	}
}

func TestNextOccurrenceNoneInHorizon(t *testing.T) {
	a, db, _ := newTestAPI(t)
	a.lookaheadDays = 5
	router := newTestRouter(a)

	seedExperience(t, db, "exp-sparse", "FREQ=DAILY;INTERVAL=30",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/experiences/exp-sparse/next-occurrence?from=2024-01-02", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestNextOccurrenceUnknownExperience(t *testing.T) {
	a, _, _ := newTestAPI(t)
	router := newTestRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/experiences/missing/next-occurrence", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGenerateEnqueuesJob(t *testing.T) {
	a, db, queue := newTestAPI(t)
	router := newTestRouter(a)

	seedExperience(t, db, "exp-gen", "FREQ=DAILY",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/experiences/exp-gen/generate",
		strings.NewReader(`{"target_date":"2024-02-01"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(queue.jobs))
	}
	job := queue.jobs[0]
	if job.ExperienceID != "exp-gen" || job.TargetDate != "2024-02-01" {
		t.Fatalf("job = %+v", job)
	}
	if job.BatchID == "" {
		t.Fatalf("job missing batch id")
	}
}

func TestGenerateWithoutBodyUsesLegacyPath(t *testing.T) {
	a, db, queue := newTestAPI(t)
	router := newTestRouter(a)

	seedExperience(t, db, "exp-legacy", "FREQ=DAILY",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/experiences/exp-legacy/generate", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].TargetDate != "" {
		t.Fatalf("jobs = %+v, want one job without target date", queue.jobs)
	}
}

func TestGenerateRejectsBadTargetDate(t *testing.T) {
	a, db, queue := newTestAPI(t)
	router := newTestRouter(a)

	seedExperience(t, db, "exp-bad", "FREQ=DAILY",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/experiences/exp-bad/generate",
		strings.NewReader(`{"target_date":"soon"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("job enqueued despite bad target date")
	}
}

func TestGenerateQueueUnavailable(t *testing.T) {
	a, db, queue := newTestAPI(t)
	queue.err = errors.New("nats: connection closed")
	router := newTestRouter(a)

	seedExperience(t, db, "exp-down", "FREQ=DAILY",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/experiences/exp-down/generate", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestInstancesList(t *testing.T) {
	a, db, _ := newTestAPI(t)
	router := newTestRouter(a)

	seedExperience(t, db, "exp-inst", "FREQ=DAILY",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	future := time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	past := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, startsOn := range []time.Time{future, past} {
		inst := models.EventInstance{
			ID:           "inst-" + string(rune('a'+i)),
			ExperienceID: "exp-inst",
			TenantID:     "tenant-1",
			StartsOn:     startsOn,
			StartsAt:     startsOn,
			EndsAt:       startsOn.Add(2 * time.Hour),
			Capacity:     10,
			Status:       models.EventInstanceScheduled,
		}
		if err := db.Create(&inst).Error; err != nil {
			t.Fatalf("failed to seed instance: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/experiences/exp-inst/instances", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var instances []models.EventInstance
	if err := json.Unmarshal(rec.Body.Bytes(), &instances); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	// Only the future instance should be listed.
	if len(instances) != 1 || instances[0].ID != "inst-a" {
		t.Fatalf("instances = %+v, want only the future one", instances)
	}
}
