// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import (
	"time"

	"github.com/google/uuid"
)

// LatestVersion is reported as the target version label when the
// migration engine did not report a concrete schema version.
const LatestVersion = "latest"

// MigrationOutcome describes one completed run of the migration engine.
// It is produced once per run and is kept read-only by the lifecycle
// controller until its unit stops.
type MigrationOutcome struct {
	RunID              uuid.UUID          `json:"runId"`
	Success            bool               `json:"success"`
	Count              int                `json:"migrationsExecuted"`
	DatabaseLabel      string             `json:"database"`
	TargetVersionLabel string             `json:"targetSchemaVersion"`
	Warnings           []string           `json:"warnings"`
	Migrations         []AppliedMigration `json:"migrations"`
	Duration           time.Duration      `json:"duration"`
}

// AppliedMigration describes one script which was applied by a run.
type AppliedMigration struct {
	Version       string        `json:"version,omitempty"`
	Description   string        `json:"description"`
	Type          string        `json:"type"`
	Script        string        `json:"script"`
	ExecutionTime time.Duration `json:"executionTime"`
}

// Clone returns a deep copy of mo, so callers may keep it without
// sharing the slices of the cached outcome.
func (mo *MigrationOutcome) Clone() *MigrationOutcome {
	if mo == nil {
		return nil
	}
	cp := *mo
	cp.Warnings = append([]string(nil), mo.Warnings...)
	cp.Migrations = append([]AppliedMigration(nil), mo.Migrations...)
	return &cp
}
