// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc

import (
	"context"
	"log/slog"

	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/model"
)

// Stop brings a Starting or Running unit to the Stopped state. Calling
// it in any other state is a no-op.
//
// If a migration is in progress, Stop polls it up to the configured
// number of times (30 polls, one second apart, by default) and then
// proceeds regardless with a warning. In that case the engine may keep
// executing after Stop returned, since running migrations cannot be
// cancelled. Stop also gives up waiting once ctx is done.
//
// The cached engine, outcome, and configuration are dropped, nil is
// published to the sink, and the data source is closed.
func (c *Controller) Stop(ctx context.Context) {
	c.rwlock.Lock()
	from := c.state
	if from != model.StateRunning && from != model.StateStarting {
		c.rwlock.Unlock()
		log.Debug(ctx, "ignoring stop request",
			log.Unit(c.unit), slog.String("state", from.String()),
		)
		return
	}
	c.state = model.StateStopping
	c.rwlock.Unlock()
	c.observer.StateChanged(c.unit, from, model.StateStopping)

	if !c.awaitRun(ctx) {
		log.Warn(ctx, "stopping while a migration is still in progress",
			log.Unit(c.unit),
		)
	}

	c.rwlock.Lock()
	ds := c.ds
	c.ds, c.engine, c.outcome, c.config = nil, nil, nil, nil
	c.state = model.StateStopped
	c.rwlock.Unlock()
	c.observer.StateChanged(c.unit, model.StateStopping, model.StateStopped)

	c.publishMu.Lock()
	if c.sink != nil {
		c.sink.Publish(c.unit, nil)
	}
	c.publishMu.Unlock()

	closeDataSource(ctx, c.unit, ds)
	log.Info(ctx, "migration unit stopped", log.Unit(c.unit))
}

// awaitRun waits for the in-progress flag to clear and reports whether
// it did.
func (c *Controller) awaitRun(ctx context.Context) bool {
	for i := 0; i < c.stopPolls; i++ {
		if !c.inProgress.Load() {
			return true
		}
		select {
		case <-c.clock.After(c.stopInterval):
		case <-ctx.Done():
			return !c.inProgress.Load()
		}
	}
	return !c.inProgress.Load()
}
