// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc

import (
	"time"

	"github.com/momeni/migrun/pkg/core/model"
)

// Observer is notified about the progress of migration units, for
// example in order to export metrics. Its methods are called
// synchronously and must not block.
type Observer interface {
	StateChanged(unit string, from, to model.LifecycleState)
	ProbeFailed(unit string, attempt int, err error)
	RunFinished(unit string, o *model.MigrationOutcome, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) StateChanged(string, model.LifecycleState, model.LifecycleState) {
}

func (nopObserver) ProbeFailed(string, int, error) {
}

func (nopObserver) RunFinished(string, *model.MigrationOutcome, time.Duration, error) {
}
