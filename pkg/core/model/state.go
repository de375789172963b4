// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

// LifecycleState is the tagged state of one migration unit.
// A unit starts in StateIdle and only moves forward; a stopped unit
// is discarded, never reused.
type LifecycleState int

// Lifecycle states of a migration unit.
const (
	StateIdle LifecycleState = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

var stateNames = [...]string{
	StateIdle:     "idle",
	StateStarting: "starting",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateFailed:   "failed",
}

// String returns the lower-case name of s.
func (s LifecycleState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition may leave s.
func (s LifecycleState) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// States lists all lifecycle states in declaration order.
func States() []LifecycleState {
	return []LifecycleState{
		StateIdle, StateStarting, StateRunning,
		StateStopping, StateStopped, StateFailed,
	}
}
