// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package migrationuc contains the migration lifecycle use case.
// A Controller owns one deployment unit: it verifies the unit's data
// source, detects the database vendor with bounded retries, resolves
// the unit's configuration, loads the migration engine and runs it,
// and keeps the outcome for readers until the unit stops.
//
// The unit moves through the states of model.LifecycleState:
//
//	Idle --Start--> Starting --success--> Running --Stop--> Stopping --> Stopped
//	                Starting --failure--> Failed
//	                Starting --disabled--> Idle
//
// A Controller is never reused after it stopped or failed.
//
// Stop waits a bounded time for a running migration and then proceeds
// regardless. The engine call may therefore still be executing in
// another goroutine after Stop returned; in-flight migrations cannot be
// cancelled midway.
package migrationuc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/repo"
)

// Defaults of the retry and wait policies.
const (
	ProbeAttempts   = 3
	ProbeDelay      = time.Second
	ValidityTimeout = 30 * time.Second
	StopPolls       = 30
	StopInterval    = time.Second
)

// Clock provides the current time and timers for the retry loop and
// the stop wait. The juju/clock WallClock satisfies it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Sink receives a Controller once its unit started successfully and
// nil once the unit stopped.
type Sink interface {
	Publish(unit string, c *Controller)
}

// Controller is the lifecycle controller of one migration unit.
// It is safe for concurrent use.
type Controller struct {
	unit     string
	supplier repo.DataSourceSupplier
	sink     Sink
	result   *model.ResolutionResult
	loader   repo.EngineLoader

	clock        Clock
	observer     Observer
	process      *expr.Process
	attempts     int
	delay        time.Duration
	validity     time.Duration
	stopPolls    int
	stopInterval time.Duration

	// publishMu serializes the state check and the Sink call of
	// publications, so a Stop can never be overtaken by the Publish of
	// the Start which it interrupted.
	publishMu sync.Mutex

	// rwlock guards the tagged state and the cached values below it.
	// Writers hold it only while moving between states or storing
	// results, never across the blocking steps of Start, so readers
	// and Stop are not kept waiting by a long migration run.
	rwlock  sync.RWMutex
	state   model.LifecycleState
	ds      repo.DataSource
	engine  repo.Engine
	outcome *model.MigrationOutcome
	vendor  model.Vendor
	config  model.ResolvedConfiguration
	lastErr error

	// inProgress guards the single engine invocation, independently
	// of the rwlock.
	inProgress atomic.Bool
}

// New creates a Controller in the Idle state. The unit name, supplier,
// sink, result, and loader are validated by Start, so a misconfigured
// unit fails when it is started. Only invalid options fail here.
func New(
	unit string,
	supplier repo.DataSourceSupplier,
	sink Sink,
	result *model.ResolutionResult,
	loader repo.EngineLoader,
	opts ...Option,
) (*Controller, error) {
	c := &Controller{
		unit:         unit,
		supplier:     supplier,
		sink:         sink,
		result:       result,
		loader:       loader,
		clock:        clock.WallClock,
		observer:     nopObserver{},
		attempts:     ProbeAttempts,
		delay:        ProbeDelay,
		validity:     ValidityTimeout,
		stopPolls:    StopPolls,
		stopInterval: StopInterval,
		state:        model.StateIdle,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	if c.process == nil {
		c.process = expr.OSProcess(nil)
	}
	return c, nil
}

// Unit returns the deployment unit name.
func (c *Controller) Unit() string {
	return c.unit
}

// State returns the current lifecycle state.
func (c *Controller) State() model.LifecycleState {
	c.rwlock.RLock()
	defer c.rwlock.RUnlock()
	return c.state
}

// IsRunning reports whether the unit is in the Running state.
func (c *Controller) IsRunning() bool {
	return c.State() == model.StateRunning
}

// IsMigrationInProgress reports whether the engine is executing.
func (c *Controller) IsMigrationInProgress() bool {
	return c.inProgress.Load()
}

// Outcome returns a copy of the last recorded outcome, or nil if there
// is none. A failed run keeps its outcome for inspection.
func (c *Controller) Outcome() *model.MigrationOutcome {
	c.rwlock.RLock()
	defer c.rwlock.RUnlock()
	return c.outcome.Clone()
}

// Vendor returns the detected vendor tag, empty if it is unknown.
func (c *Controller) Vendor() model.Vendor {
	c.rwlock.RLock()
	defer c.rwlock.RUnlock()
	return c.vendor
}

// Configuration returns a copy of the resolved configuration of a
// started unit, or nil. It may contain credentials.
func (c *Controller) Configuration() model.ResolvedConfiguration {
	c.rwlock.RLock()
	defer c.rwlock.RUnlock()
	if c.config == nil {
		return nil
	}
	return c.config.Clone()
}

// Err returns the failure which moved the unit into the Failed state.
func (c *Controller) Err() error {
	c.rwlock.RLock()
	defer c.rwlock.RUnlock()
	return c.lastErr
}
