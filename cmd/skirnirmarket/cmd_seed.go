/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/friendsincode/skirnir_market/internal/db"
	"github.com/friendsincode/skirnir_market/internal/models"
	"github.com/friendsincode/skirnir_market/internal/recurrence"
)

// Seed manifest types.

type seedManifest struct {
	Version     int              `yaml:"version"`
	Tenants     []seedTenant     `yaml:"tenants"`
	Experiences []seedExperience `yaml:"experiences"`
}

type seedTenant struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

type seedExperience struct {
	ID              string `yaml:"id"`
	TenantID        string `yaml:"tenant_id"`
	Title           string `yaml:"title"`
	Description     string `yaml:"description"`
	Capacity        int    `yaml:"capacity"`
	DurationMinutes int    `yaml:"duration_minutes"`
	RRule           string `yaml:"rrule"`
	DTStart         string `yaml:"dtstart"`
	DTEnd           string `yaml:"dtend"`
	Inactive        bool   `yaml:"inactive"`
}

// Seed flags
var (
	seedManifestPath string
	seedDryRun       bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed tenants and experiences from a YAML manifest",
	Long: `Reads a YAML manifest of tenants and experiences and upserts them into the
database. Recurrence rules are validated before anything is written.

Examples:
  skirnirmarket seed --manifest fixtures/demo.yaml --dry-run
  skirnirmarket seed --manifest fixtures/demo.yaml`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedManifestPath, "manifest", "", "Path to YAML seed manifest (required)")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Validate the manifest without writing")
	seedCmd.MarkFlagRequired("manifest")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	data, err := os.ReadFile(seedManifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var manifest seedManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	if manifest.Version != 1 {
		return fmt.Errorf("unsupported manifest version: %d", manifest.Version)
	}

	tenants, experiences, err := buildSeedRecords(manifest)
	if err != nil {
		return err
	}

	fmt.Printf("Manifest: %d tenants, %d experiences\n", len(tenants), len(experiences))

	if seedDryRun {
		fmt.Println("Dry run, nothing written")
		return nil
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	err = database.Transaction(func(tx *gorm.DB) error {
		for i := range tenants {
			if err := tx.Save(&tenants[i]).Error; err != nil {
				return fmt.Errorf("save tenant %s: %w", tenants[i].ID, err)
			}
		}
		for i := range experiences {
			if err := tx.Save(&experiences[i]).Error; err != nil {
				return fmt.Errorf("save experience %s: %w", experiences[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println("Seed complete")
	return nil
}

// buildSeedRecords validates the manifest and converts it to model records.
func buildSeedRecords(manifest seedManifest) ([]models.Tenant, []models.Experience, error) {
	tenantIDs := make(map[string]struct{}, len(manifest.Tenants))
	tenants := make([]models.Tenant, 0, len(manifest.Tenants))
	for _, t := range manifest.Tenants {
		if t.Name == "" {
			return nil, nil, fmt.Errorf("tenant without name in manifest")
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		tenantIDs[t.ID] = struct{}{}
		tenants = append(tenants, models.Tenant{
			ID:   t.ID,
			Name: t.Name,
			Slug: t.Slug,
		})
	}

	experiences := make([]models.Experience, 0, len(manifest.Experiences))
	for _, e := range manifest.Experiences {
		if e.Title == "" {
			return nil, nil, fmt.Errorf("experience without title in manifest")
		}
		if _, ok := tenantIDs[e.TenantID]; !ok {
			return nil, nil, fmt.Errorf("experience %q references unknown tenant %q", e.Title, e.TenantID)
		}
		if e.RRule != "" {
			if err := recurrence.ValidateRRule(e.RRule); err != nil {
				return nil, nil, fmt.Errorf("experience %q: invalid rrule: %w", e.Title, err)
			}
		}

		dtstart, err := parseSeedTime(e.DTStart)
		if err != nil {
			return nil, nil, fmt.Errorf("experience %q: invalid dtstart: %w", e.Title, err)
		}

		var dtend *time.Time
		if e.DTEnd != "" {
			parsed, err := parseSeedTime(e.DTEnd)
			if err != nil {
				return nil, nil, fmt.Errorf("experience %q: invalid dtend: %w", e.Title, err)
			}
			dtend = &parsed
		}

		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Capacity < 1 {
			e.Capacity = 1
		}
		if e.DurationMinutes < 1 {
			e.DurationMinutes = 60
		}

		experiences = append(experiences, models.Experience{
			ID:              e.ID,
			TenantID:        e.TenantID,
			Title:           e.Title,
			Description:     e.Description,
			DefaultCapacity: e.Capacity,
			DurationMinutes: e.DurationMinutes,
			RRule:           e.RRule,
			DTStart:         dtstart,
			DTEnd:           dtend,
			Timezone:        "UTC",
			Active:          !e.Inactive,
		})
	}

	return tenants, experiences, nil
}

func parseSeedTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing value")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return recurrence.StartOfUTCDay(t), nil
}
