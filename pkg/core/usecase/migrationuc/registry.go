// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc

import (
	"sort"
	"sync"
)

// Registry keeps the started units of a host by name. It implements
// the Sink interface, so controllers publish themselves into it once
// they start and withdraw once they stop.
type Registry struct {
	rwlock sync.RWMutex
	units  map[string]*Controller
}

var _ Sink = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Controller)}
}

// Publish stores c as the controller of unit, or removes the unit if c
// is nil.
func (r *Registry) Publish(unit string, c *Controller) {
	r.rwlock.Lock()
	defer r.rwlock.Unlock()
	if c == nil {
		delete(r.units, unit)
		return
	}
	r.units[unit] = c
}

// Get returns the controller of unit.
func (r *Registry) Get(unit string) (*Controller, bool) {
	r.rwlock.RLock()
	defer r.rwlock.RUnlock()
	c, ok := r.units[unit]
	return c, ok
}

// Units returns the names of the published units in sorted order.
func (r *Registry) Units() []string {
	r.rwlock.RLock()
	names := make([]string, 0, len(r.units))
	for n := range r.units {
		names = append(names, n)
	}
	r.rwlock.RUnlock()
	sort.Strings(names)
	return names
}
