/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// EventInstanceStatus defines the lifecycle state of a materialized event.
type EventInstanceStatus string

const (
	EventInstanceScheduled EventInstanceStatus = "scheduled"
	EventInstanceCancelled EventInstanceStatus = "cancelled"
	EventInstanceCompleted EventInstanceStatus = "completed"
)

// Experience is a bookable recurring listing and the recurrence source for
// event generation.
type Experience struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	TenantID    string `gorm:"type:uuid;index:idx_experiences_tenant;not null"`
	Title       string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	DefaultCapacity int `gorm:"not null;default:10"`
	DurationMinutes int `gorm:"not null;default:60"`

	// Recurrence (RFC 5545 RRULE). An empty RRule means a one-off experience
	// occurring only at DTStart.
	RRule    string     `gorm:"type:text"`                               // e.g. "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE"
	DTStart  time.Time  `gorm:"not null"`                                // first occurrence, never mutated
	DTEnd    *time.Time `gorm:"index:idx_experiences_dtend"`             // end of recurrence (NULL = forever)
	Timezone string     `gorm:"type:varchar(64);not null;default:'UTC'"` // scheduling math is UTC-only

	Active   bool           `gorm:"not null;default:true"`
	Metadata map[string]any `gorm:"type:jsonb;serializer:json"`

	Tenant    *Tenant         `gorm:"foreignKey:TenantID"`
	Instances []EventInstance `gorm:"foreignKey:ExperienceID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Experience) TableName() string {
	return "experiences"
}

// EventInstance is one materialized occurrence of an experience. The
// (experience_id, starts_on) pair is unique so concurrent generation surfaces
// as a recognizable duplicate-key conflict rather than a double booking slot.
type EventInstance struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	ExperienceID string `gorm:"type:uuid;uniqueIndex:idx_event_instances_experience_date;not null"`
	TenantID     string `gorm:"type:uuid;index:idx_event_instances_tenant_time;not null"`

	// StartsOn is the UTC-midnight occurrence date, the idempotency key.
	StartsOn time.Time `gorm:"uniqueIndex:idx_event_instances_experience_date;not null"`
	StartsAt time.Time `gorm:"index:idx_event_instances_tenant_time;not null"`
	EndsAt   time.Time `gorm:"not null"`

	Capacity int                 `gorm:"not null"`
	Status   EventInstanceStatus `gorm:"type:varchar(32);not null;default:'scheduled'"`

	Metadata map[string]any `gorm:"type:jsonb;serializer:json"`

	Experience *Experience `gorm:"foreignKey:ExperienceID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (EventInstance) TableName() string {
	return "event_instances"
}

// IsCancelled returns true if this instance is cancelled.
func (ei *EventInstance) IsCancelled() bool {
	return ei.Status == EventInstanceCancelled
}
