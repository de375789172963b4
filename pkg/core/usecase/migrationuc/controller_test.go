// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momeni/migrun/pkg/core/cerr"
	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/repo"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

type fixture struct {
	clock    *fakeClock
	ds       *fakeDataSource
	engine   *fakeEngine
	loader   *fakeLoader
	sink     *fakeSink
	observer *fakeObserver
	result   *model.ResolutionResult
	process  *expr.Process
	supplier repo.DataSourceSupplier
}

func newFixture() *fixture {
	f := &fixture{
		clock: &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		ds:    &fakeDataSource{target: "jdbc:postgresql://db/orders"},
		engine: &fakeEngine{outcome: &model.MigrationOutcome{
			Success: true, Count: 2, DatabaseLabel: "orders",
			TargetVersionLabel: "2",
		}},
		sink:     &fakeSink{},
		observer: &fakeObserver{},
		result: &model.ResolutionResult{
			Target: "jdbc:postgresql://db/orders",
			Properties: model.ResolvedConfiguration{
				props.KeyURL:       "jdbc:postgresql://db/orders",
				props.KeyEnabled:   "true",
				props.KeyLocations: "classpath:db/{vendor}",
			},
			Origin: model.TargetPerUnit,
		},
		process: expr.NewProcess(nil, nil),
	}
	f.loader = &fakeLoader{engine: f.engine}
	f.supplier = func(context.Context) (repo.DataSource, error) {
		return f.ds, nil
	}
	return f
}

func (f *fixture) controller(t *testing.T, opts ...migrationuc.Option) *migrationuc.Controller {
	t.Helper()
	opts = append([]migrationuc.Option{
		migrationuc.WithClock(f.clock),
		migrationuc.WithObserver(f.observer),
		migrationuc.WithProcess(f.process),
	}, opts...)
	c, err := migrationuc.New(
		"orders", f.supplier, f.sink, f.result, f.loader, opts...,
	)
	require.NoError(t, err)
	require.Equal(t, model.StateIdle, c.State())
	return c
}

func TestStartRunsOnceAndPublishes(t *testing.T) {
	f := newFixture()
	c := f.controller(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, model.StateRunning, c.State())
	assert.True(t, c.IsRunning())
	assert.False(t, c.IsMigrationInProgress())
	assert.Equal(t, model.VendorPostgreSQL, c.Vendor())
	assert.Equal(t, "classpath:db/postgresql", f.loader.cfg[props.KeyLocations])
	assert.Equal(t, "flyway_schema_history", f.loader.cfg[props.KeyTable])

	o := c.Outcome()
	require.NotNil(t, o)
	assert.True(t, o.Success)
	assert.Equal(t, 2, o.Count)
	assert.Equal(t, "2", o.TargetVersionLabel)
	assert.NotZero(t, o.RunID)
	assert.Equal(t, []*migrationuc.Controller{c}, f.sink.Published())

	// second start is a no-op
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, model.StateRunning, c.State())
	assert.EqualValues(t, 1, f.engine.calls.Load())
	assert.Len(t, f.sink.Published(), 1)
	assert.Equal(t, []string{"idle>starting", "starting>running"},
		f.observer.transitions,
	)
	assert.Equal(t, 1, f.observer.runs)
}

func TestStartLabelsLatestVersion(t *testing.T) {
	f := newFixture()
	f.engine.outcome = &model.MigrationOutcome{Success: true}
	c := f.controller(t)
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, model.LatestVersion, c.Outcome().TargetVersionLabel)
}

func TestStartWithoutDataSource(t *testing.T) {
	f := newFixture()
	f.supplier = func(context.Context) (repo.DataSource, error) {
		return nil, nil
	}
	c := f.controller(t)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrConnectionUnavailable)
	assert.Contains(t, err.Error(), `unit "orders"`)
	assert.Equal(t, model.StateFailed, c.State())
	assert.False(t, c.IsRunning())
	assert.Equal(t, err, c.Err())
	assert.Empty(t, f.sink.Published())

	// a failed unit cannot be started again
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, model.StateFailed, c.State())
	assert.Zero(t, f.engine.calls.Load())
}

func TestStartSupplierError(t *testing.T) {
	f := newFixture()
	cause := errors.New("pool exhausted")
	f.supplier = func(context.Context) (repo.DataSource, error) {
		return nil, cause
	}
	err := f.controller(t).Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrConnectionUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestStartMissingCollaborators(t *testing.T) {
	for name, mutate := range map[string]func(f *fixture) (string, migrationuc.Sink, *model.ResolutionResult){
		"unit": func(f *fixture) (string, migrationuc.Sink, *model.ResolutionResult) {
			return "", f.sink, f.result
		},
		"sink": func(f *fixture) (string, migrationuc.Sink, *model.ResolutionResult) {
			return "orders", nil, f.result
		},
		"result": func(f *fixture) (string, migrationuc.Sink, *model.ResolutionResult) {
			return "orders", f.sink, nil
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			unit, sink, result := mutate(f)
			c, err := migrationuc.New(unit, f.supplier, sink, result, f.loader,
				migrationuc.WithClock(f.clock),
				migrationuc.WithProcess(f.process),
			)
			require.NoError(t, err)
			err = c.Start(context.Background())
			require.ErrorIs(t, err, cerr.ErrInvalidConfiguration)
			assert.Equal(t, model.StateFailed, c.State())
			assert.Zero(t, f.ds.Probes())
		})
	}
}

func TestStartInvalidConnection(t *testing.T) {
	f := newFixture()
	f.ds.validateErr = context.DeadlineExceeded
	c := f.controller(t)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrConnectionInvalid)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, model.StateFailed, c.State())
	assert.EqualValues(t, 1, f.ds.closed.Load())
	assert.Zero(t, f.ds.Probes())
}

func TestStartProbeRetriesExhausted(t *testing.T) {
	f := newFixture()
	f.ds.probeErrs = []error{errProbe, errProbe, errProbe}
	c := f.controller(t)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrConnectionUnavailable)
	assert.ErrorIs(t, err, errProbe)
	assert.Equal(t, model.StateFailed, c.State())
	assert.Equal(t, 3, f.ds.Probes())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, f.clock.Sleeps())
	assert.Equal(t, 3, f.observer.probeFailures)
	assert.Zero(t, f.engine.calls.Load())
}

func TestStartProbeRecovers(t *testing.T) {
	f := newFixture()
	f.ds.probeErrs = []error{errProbe, errProbe}
	c := f.controller(t)
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 3, f.ds.Probes())
	assert.Equal(t, model.StateRunning, c.State())
}

func TestStartInterruptedDuringBackoff(t *testing.T) {
	f := newFixture()
	f.ds.probeErrs = []error{errProbe, errProbe, errProbe}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.clock.block = true
	f.clock.onAfter = cancel
	c := f.controller(t)
	err := c.Start(ctx)
	require.ErrorIs(t, err, cerr.ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.ds.Probes())
	assert.Equal(t, model.StateFailed, c.State())
}

func TestStartUnknownVendorKeepsPlaceholder(t *testing.T) {
	f := newFixture()
	f.ds.target = "jdbc:unknown://db/orders"
	c := f.controller(t)
	require.NoError(t, c.Start(context.Background()))
	assert.Empty(t, c.Vendor())
	assert.Equal(t, "classpath:db/{vendor}", f.loader.cfg[props.KeyLocations])
}

func TestStartDisabledReturnsToIdle(t *testing.T) {
	f := newFixture()
	f.result.Properties[props.KeyEnabled] = "false"
	c := f.controller(t)
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, model.StateIdle, c.State())
	assert.Zero(t, f.engine.calls.Load())
	assert.EqualValues(t, 1, f.ds.closed.Load())
	assert.Empty(t, f.sink.Published())
}

func TestStartLoadFailure(t *testing.T) {
	f := newFixture()
	f.loader.err = errors.New("bad locations")
	c := f.controller(t)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrInvalidConfiguration)
	assert.Equal(t, model.StateFailed, c.State())
}

func TestStartEngineReportsFailure(t *testing.T) {
	f := newFixture()
	f.engine.outcome = &model.MigrationOutcome{
		Success: false, Count: 1, Warnings: []string{"V3 failed"},
	}
	c := f.controller(t)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrMigrationExecutionFailed)
	assert.Equal(t, model.StateFailed, c.State())
	o := c.Outcome()
	require.NotNil(t, o)
	assert.False(t, o.Success)
	assert.Equal(t, []string{"V3 failed"}, o.Warnings)
	assert.Empty(t, f.sink.Published())
}

func TestStartEngineError(t *testing.T) {
	f := newFixture()
	cause := errors.New("syntax error at V2")
	f.engine.outcome, f.engine.err = nil, cause
	c := f.controller(t)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, cerr.ErrMigrationExecutionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, c.Outcome())
}

func TestResolutionPrecedence(t *testing.T) {
	f := newFixture()
	f.process = expr.NewProcess(
		[]string{
			"FLYWAY_TABLE=env_table",
			"FLYWAY_INSTALLED_BY=ci",
			"FLYWAY_SCHEMAS=env_schema",
			"TENANT=acme",
		},
		map[string]string{"flyway.schemas": "sys_schema"},
	)
	f.result.Properties[props.KeyTable] = "unit_table"
	f.result.Properties[props.PlaceholdersPrefix+"tenant"] = "${env.TENANT}"
	c := f.controller(t)
	require.NoError(t, c.Start(context.Background()))
	cfg := c.Configuration()
	assert.Equal(t, "unit_table", cfg[props.KeyTable])
	assert.Equal(t, "sys_schema", cfg[props.KeySchemas])
	assert.Equal(t, "ci", cfg[props.KeyInstalledBy])
	assert.Equal(t, "acme", cfg[props.PlaceholdersPrefix+"tenant"])
}

func TestResolvedTargetIsNotExpandedAgain(t *testing.T) {
	f := newFixture()
	f.process = expr.NewProcess(
		[]string{
			"U=jdbc:postgresql://db/${sys.p}",
			"FLYWAY_URL=jdbc:postgresql://other/app",
		},
		map[string]string{"p": "LEAK"},
	)
	f.result.Target = "jdbc:postgresql://db/${sys.p}"
	f.result.Properties[props.KeyURL] = f.result.Target
	c := f.controller(t)
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, f.result.Target, f.loader.cfg[props.KeyURL])
	assert.Equal(t, f.result.Target, c.Configuration()[props.KeyURL])
}

func TestResolveKeepsBuilderTarget(t *testing.T) {
	p := expr.NewProcess(
		[]string{"SPRING_FLYWAY_URL=jdbc:h2:mem:env"},
		map[string]string{"p": "LEAK"},
	)
	rr := &model.ResolutionResult{
		Target: "jdbc:mysql://db/${sys.p}/{vendor}",
		Properties: model.ResolvedConfiguration{
			props.KeyURL:   "jdbc:mysql://db/${sys.p}/{vendor}",
			props.KeyTable: "t_${sys.p}",
		},
	}
	cfg := migrationuc.Resolve(
		context.Background(), p, "orders", rr, model.VendorMySQL,
	)
	assert.Equal(t, rr.Target, cfg[props.KeyURL])
	assert.Equal(t, "t_LEAK", cfg[props.KeyTable], "other keys still expand")
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	f := newFixture()
	c := f.controller(t)
	c.Stop(context.Background())
	assert.Equal(t, model.StateIdle, c.State())
	assert.Empty(t, f.sink.Published())
}

func TestStopAfterStart(t *testing.T) {
	f := newFixture()
	c := f.controller(t)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	c.Stop(ctx)
	assert.Equal(t, model.StateStopped, c.State())
	assert.Nil(t, c.Outcome())
	assert.Nil(t, c.Configuration())
	assert.Equal(t, []*migrationuc.Controller{c, nil}, f.sink.Published())
	assert.EqualValues(t, 1, f.ds.closed.Load())
	assert.Empty(t, f.clock.Sleeps())

	// stopped units are discarded, never restarted
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, model.StateStopped, c.State())
	c.Stop(ctx)
	assert.Len(t, f.sink.Published(), 2)
}

func TestStopWaitIsBounded(t *testing.T) {
	f := newFixture()
	f.engine.started = make(chan struct{})
	f.engine.release = make(chan struct{})
	c := f.controller(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		startErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		startErr = c.Start(ctx)
	}()
	<-f.engine.started
	assert.True(t, c.IsMigrationInProgress())
	assert.True(t, c.IsRunning())

	_, err := c.Migrate(ctx)
	require.ErrorIs(t, err, cerr.ErrMigrationAlreadyInProgress)

	c.Stop(ctx)
	assert.Equal(t, model.StateStopped, c.State())
	assert.Len(t, f.clock.Sleeps(), migrationuc.StopPolls)
	assert.True(t, c.IsMigrationInProgress())
	assert.Equal(t, []*migrationuc.Controller{nil}, f.sink.Published())
	assert.EqualValues(t, 1, f.ds.closed.Load())

	close(f.engine.release)
	wg.Wait()
	require.ErrorIs(t, startErr, cerr.ErrInterrupted)
	assert.False(t, c.IsMigrationInProgress())
	assert.Equal(t, model.StateStopped, c.State())
	assert.Nil(t, c.Outcome())
	assert.Len(t, f.sink.Published(), 1)
}

func TestStopWaitsForShortRun(t *testing.T) {
	f := newFixture()
	f.engine.started = make(chan struct{})
	f.engine.release = make(chan struct{})
	var c *migrationuc.Controller
	released := false
	f.clock.onAfter = func() {
		if released {
			return
		}
		released = true
		close(f.engine.release)
		for c.IsMigrationInProgress() {
			time.Sleep(time.Millisecond)
		}
	}
	c = f.controller(t)
	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-f.engine.started

	c.Stop(ctx)
	assert.Equal(t, model.StateStopped, c.State())
	assert.Len(t, f.clock.Sleeps(), 1)
	assert.False(t, c.IsMigrationInProgress())
	require.ErrorIs(t, <-done, cerr.ErrInterrupted)
}

func TestMigrateRerun(t *testing.T) {
	f := newFixture()
	c := f.controller(t)
	ctx := context.Background()

	_, err := c.Migrate(ctx)
	require.ErrorIs(t, err, cerr.ErrNotRunning)

	require.NoError(t, c.Start(ctx))
	f.engine.outcome = &model.MigrationOutcome{Success: true, Count: 0}
	o, err := c.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, o.Count)
	assert.EqualValues(t, 2, f.engine.calls.Load())
	assert.Equal(t, 0, c.Outcome().Count)

	f.engine.outcome = &model.MigrationOutcome{Success: false}
	_, err = c.Migrate(ctx)
	require.ErrorIs(t, err, cerr.ErrMigrationExecutionFailed)
	assert.Equal(t, model.StateRunning, c.State())

	c.Stop(ctx)
	_, err = c.Migrate(ctx)
	require.ErrorIs(t, err, cerr.ErrNotRunning)
}

func TestConcurrentReaders(t *testing.T) {
	f := newFixture()
	c := f.controller(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = c.Outcome()
					_ = c.IsRunning()
					_ = c.IsMigrationInProgress()
				}
			}
		}()
	}
	require.NoError(t, c.Start(ctx))
	c.Stop(ctx)
	close(stop)
	wg.Wait()
	assert.Equal(t, model.StateStopped, c.State())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	f := newFixture()
	for _, opt := range []migrationuc.Option{
		migrationuc.WithClock(nil),
		migrationuc.WithObserver(nil),
		migrationuc.WithProcess(nil),
		migrationuc.WithProbeRetry(0, time.Second),
		migrationuc.WithProbeRetry(3, 0),
		migrationuc.WithValidityTimeout(0),
		migrationuc.WithStopWait(-1, time.Second),
	} {
		_, err := migrationuc.New(
			"orders", f.supplier, f.sink, f.result, f.loader, opt,
		)
		assert.Error(t, err)
	}
}

func TestRegistry(t *testing.T) {
	f := newFixture()
	r := migrationuc.NewRegistry()
	c, err := migrationuc.New("orders", f.supplier, r, f.result, f.loader,
		migrationuc.WithClock(f.clock), migrationuc.WithProcess(f.process),
	)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	got, ok := r.Get("orders")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, []string{"orders"}, r.Units())

	c.Stop(ctx)
	_, ok = r.Get("orders")
	assert.False(t, ok)
	assert.Empty(t, r.Units())
}
