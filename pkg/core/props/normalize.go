// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package props holds the configuration keys of migration units, their
// defaults, and the resolver which merges property sources into one
// canonical configuration.
//
// Two key namespaces are accepted. The long "spring.flyway." namespace
// is canonical and the short "flyway." namespace is folded onto it, so
// "flyway.locations" and "spring.flyway.locations" name one setting.
package props

import "strings"

// Normalize maps key onto the canonical namespace. Canonical keys pass
// through unchanged, short keys get the canonical prefix, and any other
// key (including a bare prefix) yields ok=false. Normalize is pure and
// idempotent.
func Normalize(key string) (canonical string, ok bool) {
	switch {
	case strings.HasPrefix(key, Prefix):
		if len(key) == len(Prefix) {
			return "", false
		}
		return key, true
	case strings.HasPrefix(key, ShortPrefix):
		if len(key) == len(ShortPrefix) {
			return "", false
		}
		return Prefix + key[len(ShortPrefix):], true
	default:
		return "", false
	}
}
