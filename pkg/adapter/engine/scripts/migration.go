// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// Kind of a migration as stored in the history table.
type Kind string

// Kinds of the history rows.
const (
	KindSQL      Kind = "SQL"
	KindBaseline Kind = "BASELINE"
)

// Migration is one resolved migration script.
type Migration struct {
	Version     Version // zero for repeatable migrations
	Description string
	Script      string // name relative to its location
	Location    string
	Checksum    int32
	Type        Kind

	body string
}

// Repeatable reports whether m is re-applied whenever its checksum
// changes instead of being applied once.
func (m *Migration) Repeatable() bool {
	return m.Version.IsZero()
}

// Body returns the script contents before placeholder replacement.
func (m *Migration) Body() string {
	return m.body
}

func (m *Migration) String() string {
	if m.Repeatable() {
		return fmt.Sprintf("repeatable %q", m.Description)
	}
	return fmt.Sprintf("version %s (%s)", m.Version, m.Description)
}

// Checksum computes the CRC32 checksum of a script body. Line endings
// are normalized first, so the checksum does not depend on the platform
// which checked out the script.
func Checksum(body string) int32 {
	body = strings.TrimPrefix(body, "\uFEFF")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return int32(crc32.ChecksumIEEE([]byte(body)))
}

// Naming describes the file naming convention of migration scripts.
type Naming struct {
	Prefix           string   `validate:"required"` // of versioned scripts, e.g. V
	RepeatablePrefix string   `validate:"required"` // e.g. R
	Separator        string   `validate:"required"` // between version and description
	Suffixes         []string `validate:"required,min=1,dive,required"`
}

// Parse splits a script file name into its version and description.
// It returns ok=false for files which do not look like migrations at
// all (wrong prefix or suffix) and an error for files which look like
// migrations but are malformed.
func (n Naming) Parse(name string) (v Version, desc string, ok bool, err error) {
	base, hasSuffix := n.trimSuffix(name)
	if !hasSuffix {
		return Version{}, "", false, nil
	}
	switch {
	case strings.HasPrefix(base, n.RepeatablePrefix+n.Separator):
		desc = base[len(n.RepeatablePrefix+n.Separator):]
		if desc == "" {
			return Version{}, "", true, fmt.Errorf(
				"repeatable script %q has no description", name,
			)
		}
		return Version{}, describe(desc), true, nil
	case strings.HasPrefix(base, n.Prefix):
		rest := base[len(n.Prefix):]
		raw, d, found := strings.Cut(rest, n.Separator)
		if !found {
			d = ""
		}
		v, err = ParseVersion(raw)
		if err != nil {
			return Version{}, "", true, fmt.Errorf("script %q: %w", name, err)
		}
		return v, describe(d), true, nil
	}
	return Version{}, "", false, nil
}

func (n Naming) trimSuffix(name string) (string, bool) {
	for _, s := range n.Suffixes {
		if strings.HasSuffix(name, s) && len(name) > len(s) {
			return name[:len(name)-len(s)], true
		}
	}
	return name, false
}

func describe(d string) string {
	return strings.TrimSpace(strings.ReplaceAll(d, "_", " "))
}
