// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/juju/retry"

	"github.com/momeni/migrun/pkg/core/cerr"
	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/repo"
	"github.com/momeni/migrun/pkg/core/vendor"
)

// errStopped marks a Start which was overtaken by Stop.
var errStopped = errors.New("unit stopped while starting")

// Start brings an Idle unit to the Running state, migrating its
// database once. Calling Start in any other state is a logged no-op.
// If the resolved configuration disables the unit, it returns to Idle
// without an error.
//
// Failures are returned as *cerr.Error values and leave the unit in
// the Failed state: InvalidConfiguration if a collaborator is missing
// or the engine cannot be loaded, ConnectionUnavailable if no data
// source is available or vendor detection exhausted its attempts,
// ConnectionInvalid if the validity check fails, Interrupted if ctx is
// done while waiting between probes, and MigrationExecutionFailed if
// the engine reports a failure. The data source which was taken from
// the supplier is owned by the Controller and is closed when the unit
// stops or fails.
func (c *Controller) Start(ctx context.Context) error {
	if !c.transition(model.StateIdle, model.StateStarting) {
		log.Info(ctx, "ignoring start request",
			log.Unit(c.unit),
			slog.String("state", c.State().String()),
		)
		return nil
	}
	if err := c.start(ctx); err != nil {
		return c.fail(ctx, err)
	}
	return nil
}

func (c *Controller) start(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}
	ds, err := c.supplier(ctx)
	if err != nil || ds == nil {
		return cerr.New(cerr.ConnectionUnavailable, c.unit,
			"supplier returned no data source", err,
		)
	}
	if err := c.keepDataSource(ds); err != nil {
		return err
	}
	vctx, cancel := context.WithTimeout(ctx, c.validity)
	err = ds.Validate(vctx)
	cancel()
	if err != nil {
		return cerr.Newf(cerr.ConnectionInvalid, c.unit, err,
			"validity check (timeout %s)", c.validity,
		)
	}
	v, err := c.detectVendor(ctx, ds)
	if err != nil {
		return err
	}
	cfg := c.resolve(ctx, v)
	if !props.Enabled(cfg) {
		return c.disable(ctx)
	}
	if !props.Bool(cfg, props.KeyCleanDisabled, true) {
		log.Warn(ctx, "clean operation is enabled for this unit",
			log.Unit(c.unit),
		)
	}
	engine, err := c.loader.Load(ctx, ds, cfg, v)
	if err != nil {
		return cerr.New(cerr.InvalidConfiguration, c.unit,
			"loading migration engine", err,
		)
	}
	if err := c.enterRunning(engine, cfg, v); err != nil {
		return err
	}
	o, err := c.run(ctx, engine)
	if err != nil {
		return err
	}
	log.Info(ctx, "migration unit started",
		log.Unit(c.unit),
		slog.String("vendor", v.String()),
		slog.Int("migrations", o.Count),
		slog.String("version", o.TargetVersionLabel),
		slog.Int("warnings", len(o.Warnings)),
	)
	return c.publish(ctx)
}

func (c *Controller) validate() error {
	var missing string
	switch {
	case c.unit == "":
		missing = "deployment unit name"
	case c.supplier == nil:
		missing = "data source supplier"
	case c.sink == nil:
		missing = "result sink"
	case c.result == nil:
		missing = "resolution result"
	case c.loader == nil:
		missing = "engine loader"
	default:
		return nil
	}
	return cerr.New(cerr.InvalidConfiguration, c.unit, "missing "+missing, nil)
}

// keepDataSource caches ds, so Stop or a failure can close it.
func (c *Controller) keepDataSource(ds repo.DataSource) error {
	c.rwlock.Lock()
	defer c.rwlock.Unlock()
	if c.state != model.StateStarting {
		_ = ds.Close()
		return errStopped
	}
	c.ds = ds
	return nil
}

// detectVendor probes the data source with bounded retries. Unknown
// vendors are not an error; the vendor placeholder is left as is.
func (c *Controller) detectVendor(
	ctx context.Context, ds repo.DataSource,
) (model.Vendor, error) {
	var v model.Vendor
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			id, err := ds.Probe(ctx)
			if err != nil {
				return err
			}
			tag, ok := vendor.Detect(id)
			if !ok {
				log.Warn(ctx, "unknown database vendor",
					log.Unit(c.unit), log.Target("target", id),
				)
			}
			v = tag
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			log.Warn(ctx, "probing data source failed",
				log.Unit(c.unit),
				slog.Int("attempt", attempt),
				slog.Int("attempts", c.attempts),
				log.Err("err", err),
			)
			c.observer.ProbeFailed(c.unit, attempt, err)
		},
		Attempts: c.attempts,
		Delay:    c.delay,
		Clock:    c.clock,
		Stop:     ctx.Done(),
	})
	switch {
	case err == nil:
		return v, nil
	case retry.IsRetryStopped(err):
		return "", cerr.New(cerr.Interrupted, c.unit,
			"waiting to probe data source", ctx.Err(),
		)
	default:
		return "", cerr.Newf(cerr.ConnectionUnavailable, c.unit,
			retry.LastError(err), "vendor detection failed after %d attempts",
			c.attempts,
		)
	}
}

func (c *Controller) resolve(
	ctx context.Context, v model.Vendor,
) model.ResolvedConfiguration {
	return Resolve(ctx, c.process, c.unit, c.result, v)
}

// Resolve merges, in increasing precedence, the environment and system
// properties of p, and the shared-base plus per-unit properties of rr
// on top of the defaults. The target was resolved once by the builder,
// so spring.flyway.url is taken from rr.Target as is; expanding it
// again could reach another database than the data source does.
func Resolve(
	ctx context.Context, p *expr.Process, unit string,
	rr *model.ResolutionResult, v model.Vendor,
) model.ResolvedConfiguration {
	perUnit := rr.Properties.Clone()
	delete(perUnit, props.KeyURL)
	cfg := props.NewResolver(p, v).Resolve(ctx,
		props.FromEnvironment(p.Env()),
		model.NewPropertySource(
			"system-properties", model.OriginSystemProperties,
			p.Properties(),
		),
		model.NewPropertySource(unit, model.OriginPerUnit, perUnit),
	)
	cfg[props.KeyURL] = rr.Target
	return cfg
}

// disable moves a disabled unit back to Idle.
func (c *Controller) disable(ctx context.Context) error {
	c.rwlock.Lock()
	if c.state != model.StateStarting {
		c.rwlock.Unlock()
		return errStopped
	}
	ds := c.ds
	c.ds = nil
	c.state = model.StateIdle
	c.rwlock.Unlock()
	c.observer.StateChanged(c.unit, model.StateStarting, model.StateIdle)
	closeDataSource(ctx, c.unit, ds)
	log.Info(ctx, "migrations are disabled", log.Unit(c.unit))
	return nil
}

func (c *Controller) enterRunning(
	e repo.Engine, cfg model.ResolvedConfiguration, v model.Vendor,
) error {
	c.rwlock.Lock()
	if c.state != model.StateStarting {
		c.rwlock.Unlock()
		return errStopped
	}
	c.engine, c.config, c.vendor = e, cfg, v
	c.state = model.StateRunning
	c.rwlock.Unlock()
	c.observer.StateChanged(c.unit, model.StateStarting, model.StateRunning)
	return nil
}

// run invokes the engine once, refusing overlapping invocations.
func (c *Controller) run(
	ctx context.Context, e repo.Engine,
) (*model.MigrationOutcome, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		return nil, cerr.New(cerr.MigrationAlreadyInProgress, c.unit, "", nil)
	}
	defer c.inProgress.Store(false)

	begin := c.clock.Now()
	o, err := e.Migrate(ctx)
	d := c.clock.Now().Sub(begin)
	if o != nil {
		o = o.Clone()
		if o.RunID == uuid.Nil {
			o.RunID = uuid.New()
		}
		if o.TargetVersionLabel == "" {
			o.TargetVersionLabel = model.LatestVersion
		}
		if o.Duration == 0 {
			o.Duration = d
		}
		c.rwlock.Lock()
		if c.state == model.StateRunning {
			c.outcome = o
		}
		c.rwlock.Unlock()
	}
	c.observer.RunFinished(c.unit, o, d, err)
	switch {
	case err != nil:
		return o, cerr.New(cerr.MigrationExecutionFailed, c.unit, "", err)
	case o == nil:
		return nil, cerr.New(cerr.MigrationExecutionFailed, c.unit,
			"engine returned no outcome", nil,
		)
	case !o.Success:
		return o, cerr.Newf(cerr.MigrationExecutionFailed, c.unit, nil,
			"engine reported failure (run %s)", o.RunID,
		)
	}
	return o, nil
}

// Migrate runs the engine of a Running unit once more, for example on
// an operator request. Overlapping runs fail with
// MigrationAlreadyInProgress. A failed run keeps the unit Running and
// its outcome is recorded like the outcome of Start.
func (c *Controller) Migrate(ctx context.Context) (*model.MigrationOutcome, error) {
	c.rwlock.RLock()
	state, e := c.state, c.engine
	c.rwlock.RUnlock()
	if state != model.StateRunning || e == nil {
		return nil, cerr.Newf(cerr.NotRunning, c.unit, nil, "state is %s", state)
	}
	o, err := c.run(ctx, e)
	if err != nil {
		log.Error(ctx, "migration run failed",
			log.Unit(c.unit), log.Err("err", err),
		)
	}
	return o, err
}

func (c *Controller) publish(ctx context.Context) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if c.State() != model.StateRunning {
		return errStopped
	}
	c.sink.Publish(c.unit, c)
	log.Debug(ctx, "published migration unit", log.Unit(c.unit))
	return nil
}

// transition moves the unit from one state to another one if it is
// currently in the from state.
func (c *Controller) transition(from, to model.LifecycleState) bool {
	c.rwlock.Lock()
	ok := c.state == from
	if ok {
		c.state = to
	}
	c.rwlock.Unlock()
	if ok {
		c.observer.StateChanged(c.unit, from, to)
	}
	return ok
}

// fail moves a starting or running unit into the Failed state and
// closes its data source. If the unit was stopped meanwhile, the
// failure is reported as an interruption and the state is kept.
func (c *Controller) fail(ctx context.Context, err error) error {
	c.rwlock.Lock()
	from := c.state
	if from == model.StateStopping || from == model.StateStopped {
		c.rwlock.Unlock()
		if !errors.Is(err, errStopped) {
			err = fmt.Errorf("%w: %w", errStopped, err)
		}
		return cerr.New(cerr.Interrupted, c.unit, "", err)
	}
	ds := c.ds
	c.ds, c.engine = nil, nil
	c.state = model.StateFailed
	c.lastErr = err
	c.rwlock.Unlock()
	c.observer.StateChanged(c.unit, from, model.StateFailed)
	closeDataSource(ctx, c.unit, ds)
	log.Error(ctx, "migration unit failed",
		log.Unit(c.unit), log.Err("err", err),
	)
	return err
}

func closeDataSource(ctx context.Context, unit string, ds repo.DataSource) {
	if ds == nil {
		return
	}
	if err := ds.Close(); err != nil {
		log.Warn(ctx, "closing data source",
			log.Unit(unit), log.Err("err", err),
		)
	}
}
