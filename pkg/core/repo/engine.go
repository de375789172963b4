// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package repo

import (
	"context"

	"github.com/momeni/migrun/pkg/core/model"
)

// Engine applies pending migration scripts to a database and keeps
// track of the applied ones.
type Engine interface {
	// Migrate applies all pending scripts once. The returned outcome
	// may be non-nil even when an error is returned, describing the
	// scripts which were applied before the failure.
	Migrate(ctx context.Context) (*model.MigrationOutcome, error)
}

// EngineLoader builds an Engine from a fully resolved configuration.
// The vendor tag is empty if it could not be detected.
type EngineLoader interface {
	Load(
		ctx context.Context,
		ds DataSource,
		cfg model.ResolvedConfiguration,
		v model.Vendor,
	) (Engine, error)
}
