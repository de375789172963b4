// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import "sort"

// Origin tells where a PropertySource was captured from.
type Origin int

// Origins of property sources, from the least specific to the most
// specific one. The ordering of constants carries no precedence by
// itself; precedence is decided by the order of sources passed to the
// configuration resolver.
const (
	OriginEnvironment Origin = iota + 1
	OriginSystemProperties
	OriginSharedBase
	OriginPerUnit
)

// String returns a human readable name of the origin.
func (o Origin) String() string {
	switch o {
	case OriginEnvironment:
		return "environment"
	case OriginSystemProperties:
		return "system-properties"
	case OriginSharedBase:
		return "shared-base"
	case OriginPerUnit:
		return "per-unit"
	default:
		return "unknown"
	}
}

// PropertySource is a named flat string to string mapping which was
// captured from one Origin. Instances are immutable once created by
// NewPropertySource; the Get and Keys methods only read from them.
type PropertySource struct {
	Name   string
	Origin Origin

	props map[string]string
	keys  []string
}

// NewPropertySource captures a copy of props as a PropertySource.
// Later changes to props are not visible through the returned source.
func NewPropertySource(
	name string, o Origin, props map[string]string,
) PropertySource {
	cp := make(map[string]string, len(props))
	keys := make([]string, 0, len(props))
	for k, v := range props {
		cp[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return PropertySource{Name: name, Origin: o, props: cp, keys: keys}
}

// Get returns the value of key and whether it was present.
func (ps PropertySource) Get(key string) (string, bool) {
	v, ok := ps.props[key]
	return v, ok
}

// Keys returns the sorted keys of ps. The returned slice must not be
// modified.
func (ps PropertySource) Keys() []string {
	return ps.keys
}

// Len returns the number of entries in ps.
func (ps PropertySource) Len() int {
	return len(ps.keys)
}
