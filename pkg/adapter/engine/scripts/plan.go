// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"fmt"
	"strings"

	"github.com/momeni/migrun/pkg/core/model"
)

// States of migrations which ignore patterns may refer to.
const (
	StateMissing = "missing" // applied, but not resolved locally
	StateIgnored = "ignored" // resolved, older than the current version
	StateFuture  = "future"  // applied, newer than every resolved one
	StatePending = "pending"
	StateFailed  = "failed"
)

// Plan lists what a migrate run is going to apply.
type Plan struct {
	Pending  []*Migration
	Current  Version // newest applied (or baselined) version
	Warnings []string
}

// NewPlan compares the history rows with the resolved migrations.
// If baseline is non-nil, a baseline row of that version is going to
// be written before the pending migrations are applied.
func NewPlan(
	rows []HistoryRow, resolved []*Migration, s Settings, baseline *Version,
) (*Plan, error) {
	p := &Plan{}
	applied := make(map[string]*HistoryRow)
	repeatables := make(map[string]*HistoryRow)
	var floor Version // versions up to floor are covered by a baseline
	if baseline != nil {
		floor = *baseline
		p.Current = *baseline
	}
	for i := range rows {
		r := &rows[i]
		v, err := r.ParsedVersion()
		if err != nil {
			return nil, fmt.Errorf("history row %d: %w", r.InstalledRank, err)
		}
		if !r.Success {
			kind := "versioned"
			if v.IsZero() {
				kind = "repeatable"
			}
			if !ignored(s.IgnorePatterns, kind, StateFailed) {
				return nil, fmt.Errorf(
					"detected failed migration %s in history, repair it first",
					r.Script,
				)
			}
			continue
		}
		if v.IsZero() {
			repeatables[r.Description] = r
			continue
		}
		if Kind(r.Type) == KindBaseline && v.Compare(floor) > 0 {
			floor = v
		}
		applied[v.String()] = r
		if v.Compare(p.Current) > 0 {
			p.Current = v
		}
	}

	target, err := targetVersion(s.Target, p.Current)
	if err != nil {
		return nil, err
	}
	if s.ValidateOnMigrate {
		if err := p.validate(applied, resolved, s); err != nil {
			return nil, err
		}
	}

	var pendingRepeatables []*Migration
	for _, m := range resolved {
		if m.Repeatable() {
			r, ok := repeatables[m.Description]
			if !ok || r.Checksum == nil || *r.Checksum != m.Checksum {
				pendingRepeatables = append(pendingRepeatables, m)
			}
			continue
		}
		if _, ok := applied[m.Version.String()]; ok {
			continue
		}
		if !floor.IsZero() && m.Version.Compare(floor) <= 0 {
			continue
		}
		if !target.IsZero() && m.Version.Compare(target) > 0 {
			continue
		}
		if m.Version.Compare(p.Current) < 0 && !s.OutOfOrder {
			if !ignored(s.IgnorePatterns, "versioned", StateIgnored) {
				p.warn("ignoring %s older than the current version %s, "+
					"enable out-of-order to apply it", m, p.Current)
			}
			continue
		}
		p.Pending = append(p.Pending, m)
	}
	p.Pending = append(p.Pending, pendingRepeatables...)
	return p, nil
}

// validate checks the applied versioned migrations against the
// resolved ones.
func (p *Plan) validate(
	applied map[string]*HistoryRow, resolved []*Migration, s Settings,
) error {
	byVersion := make(map[string]*Migration, len(resolved))
	var newest Version
	for _, m := range resolved {
		if m.Repeatable() {
			continue
		}
		byVersion[m.Version.String()] = m
		if m.Version.Compare(newest) > 0 {
			newest = m.Version
		}
	}
	for key, r := range applied {
		if Kind(r.Type) == KindBaseline {
			continue
		}
		m, ok := byVersion[key]
		if !ok {
			v, _ := r.ParsedVersion()
			state := StateMissing
			if v.Compare(newest) > 0 {
				state = StateFuture
			}
			switch {
			case ignored(s.IgnorePatterns, "versioned", state):
			case state == StateFuture:
				p.warn("applied migration %s is newer than every local script", r.Script)
			default:
				return fmt.Errorf(
					"detected applied migration not resolved locally: %s",
					r.Script,
				)
			}
			continue
		}
		if r.Checksum != nil && *r.Checksum != m.Checksum {
			return fmt.Errorf(
				"migration checksum mismatch for %s: applied %d, resolved locally %d",
				m, *r.Checksum, m.Checksum,
			)
		}
		if r.Description != m.Description {
			return fmt.Errorf(
				"migration description mismatch for %s: applied %q",
				m, r.Description,
			)
		}
	}
	return nil
}

func (p *Plan) warn(format string, a ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, a...))
}

// targetVersion returns the newest version to migrate to, or a zero
// Version when there is no limit.
func targetVersion(t string, current Version) (Version, error) {
	switch t {
	case "", model.LatestVersion:
		return Version{}, nil
	case "current":
		if current.IsZero() {
			return MustParseVersion("0"), nil
		}
		return current, nil
	}
	return ParseVersion(t)
}

// ignored reports whether a migration of kind (versioned or
// repeatable) in state is matched by one of the type:state patterns.
func ignored(patterns []string, kind, state string) bool {
	for _, pat := range patterns {
		k, st, ok := strings.Cut(strings.ToLower(pat), ":")
		if !ok {
			continue
		}
		if (k == "*" || k == kind) && (st == "*" || st == state) {
			return true
		}
	}
	return false
}
