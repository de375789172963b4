// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import "sort"

// ResolvedConfiguration maps canonical keys to their resolved values.
// A resolved configuration always carries the complete defaults table
// before any source overlay was applied. Values are shared between
// holders, so callers which need to change a configuration must Clone
// it first.
type ResolvedConfiguration map[string]string

// Get returns the value of the canonical key and whether it is present.
func (rc ResolvedConfiguration) Get(key string) (string, bool) {
	v, ok := rc[key]
	return v, ok
}

// Keys returns the canonical keys of rc in sorted order.
func (rc ResolvedConfiguration) Keys() []string {
	keys := make([]string, 0, len(rc))
	for k := range rc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of rc.
func (rc ResolvedConfiguration) Clone() ResolvedConfiguration {
	cp := make(ResolvedConfiguration, len(rc))
	for k, v := range rc {
		cp[k] = v
	}
	return cp
}

// WithPrefix returns entries whose keys start with prefix, keyed by
// the remaining key suffix. It is used for the placeholders and the
// driver-level properties tables.
func (rc ResolvedConfiguration) WithPrefix(prefix string) map[string]string {
	m := make(map[string]string)
	for k, v := range rc {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			m[k[len(prefix):]] = v
		}
	}
	return m
}
