package models

import "time"

// Tenant is a marketplace seller account. Experiences and their generated
// event instances are always scoped to one tenant.
type Tenant struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Slug      string `gorm:"type:varchar(64);uniqueIndex"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Tenant) TableName() string {
	return "tenants"
}
