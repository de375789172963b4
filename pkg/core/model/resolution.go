// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

// TargetOrigin indicates which tier provided the connection target of
// a ResolutionResult.
type TargetOrigin int

// Supported target origins, in the order they are consulted.
const (
	TargetPerUnit TargetOrigin = iota + 1
	TargetSharedBase
	TargetDiscovered
)

// String returns a human readable name of the target origin.
func (to TargetOrigin) String() string {
	switch to {
	case TargetPerUnit:
		return "per-unit"
	case TargetSharedBase:
		return "shared-base"
	case TargetDiscovered:
		return "auto-discovery"
	default:
		return "unknown"
	}
}

// ResolutionResult is produced by the configuration builder for one
// deployment unit. It is created once per resolution attempt and is
// consumed by exactly one lifecycle controller.
type ResolutionResult struct {
	Target     string                // connection target identifier
	Properties ResolvedConfiguration // shared-base overlaid by per-unit
	Origin     TargetOrigin          // tier which provided Target
}

// FromSharedBase reports whether the connection target was taken from
// the shared-base configuration.
func (rr *ResolutionResult) FromSharedBase() bool {
	return rr.Origin == TargetSharedBase
}
