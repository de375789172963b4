// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// HistoryRow is one row of the schema history table.
type HistoryRow struct {
	InstalledRank int       `gorm:"primaryKey;autoIncrement:false"`
	Version       *string   `gorm:"size:50"`
	Description   string    `gorm:"size:200;not null"`
	Type          string    `gorm:"size:20;not null"`
	Script        string    `gorm:"size:1000;not null"`
	Checksum      *int32    `gorm:"type:integer"`
	InstalledBy   string    `gorm:"size:100;not null"`
	InstalledOn   time.Time `gorm:"not null"`
	ExecutionTime int       `gorm:"not null"` // milliseconds
	Success       bool      `gorm:"not null;index"`
}

// ParsedVersion returns the version of r, or a zero Version for the
// repeatable rows.
func (r *HistoryRow) ParsedVersion() (Version, error) {
	if r.Version == nil || *r.Version == "" {
		return Version{}, nil
	}
	return ParseVersion(*r.Version)
}

// History gives access to the schema history table of a database.
type History struct {
	table string
}

// NewHistory returns a History which keeps its rows in table.
func NewHistory(table string) *History {
	return &History{table: table}
}

// Table returns the history table name.
func (h *History) Table() string {
	return h.table
}

// Ensure creates the history table if it does not exist yet. It
// reports whether the table had to be created.
func (h *History) Ensure(ctx context.Context, db *gorm.DB) (bool, error) {
	m := db.WithContext(ctx).Migrator()
	if m.HasTable(h.table) {
		return false, nil
	}
	err := db.WithContext(ctx).Table(h.table).AutoMigrate(&HistoryRow{})
	if err != nil {
		return false, fmt.Errorf("creating history table %s: %w", h.table, err)
	}
	return true, nil
}

// Rows returns every history row in installation order.
func (h *History) Rows(ctx context.Context, db *gorm.DB) ([]HistoryRow, error) {
	var rows []HistoryRow
	err := db.WithContext(ctx).Table(h.table).
		Order("installed_rank").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reading history table %s: %w", h.table, err)
	}
	return rows, nil
}

// Append stores r with the next installed rank.
func (h *History) Append(ctx context.Context, db *gorm.DB, r *HistoryRow) error {
	var last sql.NullInt64
	err := db.WithContext(ctx).Table(h.table).
		Select("MAX(installed_rank)").Row().Scan(&last)
	if err != nil {
		return fmt.Errorf("reading last installed rank: %w", err)
	}
	r.InstalledRank = int(last.Int64) + 1
	if err = db.WithContext(ctx).Table(h.table).Create(r).Error; err != nil {
		return fmt.Errorf("recording %s: %w", r.Script, err)
	}
	return nil
}
