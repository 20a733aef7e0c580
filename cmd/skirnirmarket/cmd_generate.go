/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/skirnir_market/internal/db"
	"github.com/friendsincode/skirnir_market/internal/eventgen"
	"github.com/friendsincode/skirnir_market/internal/models"
	"github.com/friendsincode/skirnir_market/internal/recurrence"
)

// Generate flags
var (
	generateExperienceID string
	generateTargetDate   string
	generateAll          bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Materialize event instances directly, without the job queue",
	Long: `Runs event generation synchronously against the database. Useful for
backfilling after an import or inspecting what a generation run would
produce, without a worker or NATS in the loop.

Examples:
  skirnirmarket generate --experience-id <uuid> --target-date 2026-12-01
  skirnirmarket generate --all --target-date 2026-12-01`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateExperienceID, "experience-id", "", "Generate for a single experience")
	generateCmd.Flags().StringVar(&generateTargetDate, "target-date", "", "Generation horizon end, YYYY-MM-DD (required)")
	generateCmd.Flags().BoolVar(&generateAll, "all", false, "Generate for every active experience")
	generateCmd.MarkFlagRequired("target-date")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if generateExperienceID == "" && !generateAll {
		return fmt.Errorf("either --experience-id or --all is required")
	}

	target, err := time.Parse("2006-01-02", generateTargetDate)
	if err != nil {
		return fmt.Errorf("parse target date: %w", err)
	}
	target = recurrence.StartOfUTCDay(target)
	from := recurrence.StartOfUTCDay(time.Now())

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	generator := eventgen.New(database, cfg.MaxOccurrencesPerRun, logger)
	ctx := context.Background()

	var ids []string
	if generateExperienceID != "" {
		ids = []string{generateExperienceID}
	} else {
		var experiences []models.Experience
		if err := database.Where("active = ?", true).Find(&experiences).Error; err != nil {
			return fmt.Errorf("list experiences: %w", err)
		}
		for _, exp := range experiences {
			ids = append(ids, exp.ID)
		}
	}

	var totalCreated, failures int
	for _, id := range ids {
		res, err := generator.Generate(ctx, id, from, target)
		switch {
		case err == nil:
			fmt.Printf("%s: created %d of %d considered\n", id, res.Created, res.Considered)
		case errors.Is(err, eventgen.ErrConflict):
			fmt.Printf("%s: already materialized (created %d)\n", id, res.Created)
		default:
			failures++
			fmt.Printf("%s: error: %v\n", id, err)
		}
		totalCreated += res.Created
	}

	fmt.Printf("Done: %d experiences, %d instances created, %d failures\n",
		len(ids), totalCreated, failures)
	if failures > 0 {
		return fmt.Errorf("%d experiences failed", failures)
	}
	return nil
}
