// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package migrationuc_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/repo"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

var errProbe = errors.New("connection refused")

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	block   bool
	onAfter func()
}

var _ migrationuc.Clock = (*fakeClock)(nil)

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) After(d time.Duration) <-chan time.Time {
	fc.mu.Lock()
	fc.sleeps = append(fc.sleeps, d)
	fc.now = fc.now.Add(d)
	now, block, hook := fc.now, fc.block, fc.onAfter
	fc.mu.Unlock()
	if hook != nil {
		hook()
	}
	ch := make(chan time.Time, 1)
	if !block {
		ch <- now
	}
	return ch
}

func (fc *fakeClock) Sleeps() []time.Duration {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]time.Duration(nil), fc.sleeps...)
}

type fakeDataSource struct {
	target      string
	validateErr error

	mu        sync.Mutex
	probeErrs []error
	probes    int
	closed    atomic.Int32
}

var _ repo.DataSource = (*fakeDataSource)(nil)

func (ds *fakeDataSource) Validate(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("validity check without deadline")
	}
	return ds.validateErr
}

func (ds *fakeDataSource) Probe(context.Context) (string, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.probes++
	if len(ds.probeErrs) > 0 {
		err := ds.probeErrs[0]
		ds.probeErrs = ds.probeErrs[1:]
		return "", err
	}
	return ds.target, nil
}

func (ds *fakeDataSource) Probes() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.probes
}

func (ds *fakeDataSource) Close() error {
	ds.closed.Add(1)
	return nil
}

type fakeEngine struct {
	outcome *model.MigrationOutcome
	err     error
	calls   atomic.Int32

	started chan struct{} // closed by the first call if not nil
	release chan struct{} // blocks calls until closed if not nil
	once    sync.Once
}

func (e *fakeEngine) Migrate(context.Context) (*model.MigrationOutcome, error) {
	e.calls.Add(1)
	if e.started != nil {
		e.once.Do(func() { close(e.started) })
	}
	if e.release != nil {
		<-e.release
	}
	return e.outcome, e.err
}

type fakeLoader struct {
	engine *fakeEngine
	err    error

	mu     sync.Mutex
	cfg    model.ResolvedConfiguration
	vendor model.Vendor
}

func (l *fakeLoader) Load(
	_ context.Context,
	_ repo.DataSource,
	cfg model.ResolvedConfiguration,
	v model.Vendor,
) (repo.Engine, error) {
	l.mu.Lock()
	l.cfg, l.vendor = cfg, v
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.engine, nil
}

type fakeSink struct {
	mu        sync.Mutex
	published []*migrationuc.Controller
}

func (s *fakeSink) Publish(_ string, c *migrationuc.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, c)
}

func (s *fakeSink) Published() []*migrationuc.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*migrationuc.Controller(nil), s.published...)
}

type fakeObserver struct {
	mu            sync.Mutex
	transitions   []string
	probeFailures int
	runs          int
}

func (o *fakeObserver) StateChanged(_ string, from, to model.LifecycleState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from.String()+">"+to.String())
}

func (o *fakeObserver) ProbeFailed(string, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.probeFailures++
}

func (o *fakeObserver) RunFinished(string, *model.MigrationOutcome, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
}
