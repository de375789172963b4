// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"errors"
	"fmt"
	"strings"
)

// Version is a migration version made of numeric parts, such as 1.2.10
// or 20240101120000. Parts are compared numerically and missing trailing
// parts count as zero, so 1.0 equals 1.
type Version struct {
	parts []string // without leading zeros, "0" for zero
}

var errEmptyVersion = errors.New("empty version")

// ParseVersion parses a version whose parts are separated by dots or
// underscores.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, errEmptyVersion
	}
	raw := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '_'
	})
	if len(raw) == 0 || strings.Count(s, ".")+strings.Count(s, "_") != len(raw)-1 {
		return Version{}, fmt.Errorf("malformed version %q", s)
	}
	parts := make([]string, len(raw))
	for i, p := range raw {
		for _, r := range p {
			if r < '0' || r > '9' {
				return Version{}, fmt.Errorf(
					"version %q has a non-numeric part %q", s, p,
				)
			}
		}
		p = strings.TrimLeft(p, "0")
		if p == "" {
			p = "0"
		}
		parts[i] = p
	}
	return Version{parts: parts}, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

// Compare returns -1, 0, or +1 if v is older than, equal to, or newer
// than w respectively.
func (v Version) Compare(w Version) int {
	n := max(len(v.parts), len(w.parts))
	for i := 0; i < n; i++ {
		a, b := part(v.parts, i), part(w.parts, i)
		if c := compareDigits(a, b); c != 0 {
			return c
		}
	}
	return 0
}

func part(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

// compareDigits compares two decimal numbers without leading zeros.
func compareDigits(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}

func (v Version) String() string {
	return strings.Join(v.parts, ".")
}
