// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package scripts is the default migration engine. It applies the
// versioned and repeatable SQL scripts of the configured locations to
// a database and keeps track of them in a schema history table, which
// is accessed through GORM.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/repo"
)

// GORMSource is a data source which exposes a GORM instance. The
// database adapter pools implement it.
type GORMSource interface {
	GORM(ctx context.Context) *gorm.DB
}

// namedSource optionally reports the current database name.
type namedSource interface {
	DatabaseName(ctx context.Context) string
}

// DefaultInstaller is recorded as installed_by when neither the
// installed-by nor the user setting is present.
const DefaultInstaller = "migrun"

// Loader creates engines for the data sources of migration units.
type Loader struct {
	root string
	open FSOpener
	ext  *Extensions
	now  func() time.Time
}

var _ repo.EngineLoader = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(l *Loader)

// WithFS replaces the opener of script locations.
func WithFS(open FSOpener) LoaderOption {
	return func(l *Loader) {
		l.open = open
	}
}

// WithExtensions replaces the registry of callbacks and resolvers.
func WithExtensions(x *Extensions) LoaderOption {
	return func(l *Loader) {
		l.ext = x
	}
}

// WithNow replaces the clock which stamps history rows.
func WithNow(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

// NewLoader returns a Loader which resolves classpath locations below
// the root directory.
func NewLoader(root string, opts ...LoaderOption) *Loader {
	l := &Loader{
		root: root,
		open: DirFS,
		ext:  NewExtensions(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load validates the engine settings of cfg and returns an Engine which
// migrates ds.
func (l *Loader) Load(
	ctx context.Context,
	ds repo.DataSource,
	cfg model.ResolvedConfiguration,
	v model.Vendor,
) (repo.Engine, error) {
	gs, ok := ds.(GORMSource)
	if !ok {
		return nil, fmt.Errorf("data source %T does not expose GORM", ds)
	}
	s, err := SettingsFrom(cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		ds:        gs,
		settings:  s,
		vendor:    v,
		user:      cfg[props.KeyUser],
		history:   NewHistory(s.Table),
		replacer:  NewReplacer(s),
		resolvers: l.ext.Resolvers(ctx, s, l.root, l.open),
		callbacks: l.ext.Callbacks(ctx, s),
		now:       l.now,
	}
	if ns, ok := ds.(namedSource); ok {
		e.dbName = ns.DatabaseName
	}
	return e, nil
}

// Engine applies the pending scripts of one migration unit.
type Engine struct {
	ds        GORMSource
	dbName    func(ctx context.Context) string
	settings  Settings
	vendor    model.Vendor
	user      string
	history   *History
	replacer  *Replacer
	resolvers []Resolver
	callbacks []Callback
	now       func() time.Time
}

var _ repo.Engine = (*Engine)(nil)

// Settings returns the validated settings of e.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Migrate applies every pending migration. The returned outcome lists
// the migrations which were applied, even if a later one failed.
func (e *Engine) Migrate(ctx context.Context) (*model.MigrationOutcome, error) {
	db := e.ds.GORM(ctx)
	o := &model.MigrationOutcome{DatabaseLabel: e.databaseLabel(ctx)}
	resolved, err := e.resolve(ctx, o)
	if err != nil {
		return o, err
	}
	created, err := e.history.Ensure(ctx, db)
	if err != nil {
		return o, err
	}
	if created {
		log.Info(ctx, "created schema history table",
			slog.String("table", e.history.Table()),
		)
	}
	rows, err := e.history.Rows(ctx, db)
	if err != nil {
		return o, err
	}
	baseline, err := e.baseline(ctx, db, rows)
	if err != nil {
		return o, err
	}
	plan, err := NewPlan(rows, resolved, e.settings, baseline)
	if err != nil {
		return o, err
	}
	for _, w := range plan.Warnings {
		log.Warn(ctx, w)
	}
	o.Warnings = append(o.Warnings, plan.Warnings...)
	if baseline != nil {
		if err = e.writeBaseline(ctx, db, *baseline); err != nil {
			return o, err
		}
	}
	if !plan.Current.IsZero() {
		o.TargetVersionLabel = plan.Current.String()
	}

	if err = e.notify(ctx, BeforeMigrate, EventContext{DB: db}); err != nil {
		return o, err
	}
	label := o.TargetVersionLabel
	if e.settings.Group && len(plan.Pending) > 0 {
		err = db.Transaction(func(tx *gorm.DB) error {
			for _, m := range plan.Pending {
				if err := e.applyOne(ctx, tx, m, o); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			o.Migrations, o.Count = nil, 0
			o.TargetVersionLabel = label
		}
	} else {
		for _, m := range plan.Pending {
			err = db.Transaction(func(tx *gorm.DB) error {
				return e.applyOne(ctx, tx, m, o)
			})
			if err != nil {
				e.recordFailure(ctx, db, m, err)
				break
			}
		}
	}
	if err != nil {
		e.notify(ctx, AfterMigrateError, EventContext{DB: db, Err: err})
		return o, err
	}
	if err = e.notify(ctx, AfterMigrate, EventContext{DB: db}); err != nil {
		o.Warnings = append(o.Warnings, err.Error())
	}
	o.Success = true
	log.Info(ctx, "migrate run finished",
		slog.Int("applied", o.Count),
		slog.String("version", o.TargetVersionLabel),
	)
	return o, nil
}

func (e *Engine) databaseLabel(ctx context.Context) string {
	if e.dbName != nil {
		if name := e.dbName(ctx); name != "" {
			return name
		}
	}
	return string(e.vendor)
}

func (e *Engine) installedBy() string {
	switch {
	case e.settings.InstalledBy != "":
		return e.settings.InstalledBy
	case e.user != "":
		return e.user
	}
	return DefaultInstaller
}

// resolve collects the migrations of all resolvers.
func (e *Engine) resolve(
	ctx context.Context, o *model.MigrationOutcome,
) ([]*Migration, error) {
	var all []*Migration
	for _, r := range e.resolvers {
		res, err := r.Resolve(ctx, e.settings)
		if err != nil {
			return nil, fmt.Errorf("resolving migrations: %w", err)
		}
		all = append(all, res.Migrations...)
		o.Warnings = append(o.Warnings, res.Warnings...)
	}
	if err := sortAndCheck(all); err != nil {
		return nil, err
	}
	return all, nil
}

// baseline returns the version to baseline an existing database with,
// or nil if no baseline is needed. Only a non-empty database without
// history is baselined.
func (e *Engine) baseline(
	ctx context.Context, db *gorm.DB, rows []HistoryRow,
) (*Version, error) {
	if len(rows) > 0 || !e.settings.BaselineOnMigrate {
		return nil, nil
	}
	tables, err := db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	for _, t := range tables {
		if t != e.history.Table() {
			v, err := ParseVersion(e.settings.BaselineVersion)
			if err != nil {
				return nil, err
			}
			return &v, nil
		}
	}
	return nil, nil
}

func (e *Engine) writeBaseline(ctx context.Context, db *gorm.DB, v Version) error {
	version := v.String()
	log.Info(ctx, "baselining database", slog.String("version", version))
	return e.history.Append(ctx, db, &HistoryRow{
		Version:     &version,
		Description: e.settings.BaselineDescription,
		Type:        string(KindBaseline),
		Script:      e.settings.BaselineDescription,
		InstalledBy: e.installedBy(),
		InstalledOn: e.now(),
		Success:     true,
	})
}

// applyOne runs m and records it on tx.
func (e *Engine) applyOne(
	ctx context.Context, tx *gorm.DB, m *Migration, o *model.MigrationOutcome,
) error {
	ec := EventContext{DB: tx, Vendor: e.vendor, Migration: m}
	if err := e.notify(ctx, BeforeEachMigrate, ec); err != nil {
		return err
	}
	body, err := e.body(m, o.DatabaseLabel)
	if err != nil {
		return err
	}
	begin := e.now()
	if err = tx.WithContext(ctx).Exec(body).Error; err != nil {
		ec.Err = err
		e.notify(ctx, AfterEachMigrateError, ec)
		return fmt.Errorf("migration %s failed: %w", m.Script, err)
	}
	elapsed := e.now().Sub(begin)
	row := e.row(m, elapsed, true)
	if err = e.history.Append(ctx, tx, row); err != nil {
		return err
	}
	o.Count++
	o.Migrations = append(o.Migrations, model.AppliedMigration{
		Version:       optional(row.Version),
		Description:   m.Description,
		Type:          string(m.Type),
		Script:        m.Script,
		ExecutionTime: elapsed,
	})
	if !m.Repeatable() {
		o.TargetVersionLabel = m.Version.String()
	}
	if err = e.notify(ctx, AfterEachMigrate, ec); err != nil {
		log.Warn(ctx, "callback failed", log.Err("err", err))
	}
	return nil
}

// body replaces the placeholders of m. It runs inside the transaction
// of m, so it must not touch the pool.
func (e *Engine) body(m *Migration, database string) (string, error) {
	if !e.settings.PlaceholderReplacement {
		return m.body, nil
	}
	version := ""
	if !m.Repeatable() {
		version = m.Version.String()
	}
	r := e.replacer.With(
		PlaceholderDatabase, database,
		PlaceholderUser, e.installedBy(),
		PlaceholderTable, e.history.Table(),
		PlaceholderTimestamp, e.now().Format("2006-01-02 15:04:05"),
		PlaceholderFilename, m.Script,
		"flyway:version", version,
	)
	return r.Replace(m.Script, m.body)
}

// recordFailure stores a failed row on vendors whose DDL is not
// transactional, so a partially applied script is visible.
func (e *Engine) recordFailure(
	ctx context.Context, db *gorm.DB, m *Migration, cause error,
) {
	switch e.vendor {
	case model.VendorMySQL, model.VendorMariaDB:
	default:
		return
	}
	if err := e.history.Append(ctx, db, e.row(m, 0, false)); err != nil {
		log.Error(ctx, "recording failed migration",
			slog.String("script", m.Script),
			log.Err("err", errors.Join(cause, err)),
		)
	}
}

func (e *Engine) row(m *Migration, d time.Duration, ok bool) *HistoryRow {
	var version *string
	if !m.Repeatable() {
		v := m.Version.String()
		version = &v
	}
	checksum := m.Checksum
	return &HistoryRow{
		Version:       version,
		Description:   m.Description,
		Type:          string(m.Type),
		Script:        m.Script,
		Checksum:      &checksum,
		InstalledBy:   e.installedBy(),
		InstalledOn:   e.now(),
		ExecutionTime: int(d / time.Millisecond),
		Success:       ok,
	}
}

func (e *Engine) notify(ctx context.Context, ev Event, ec EventContext) error {
	ec.Vendor = e.vendor
	for _, cb := range e.callbacks {
		if err := cb.Handle(ctx, ev, ec); err != nil {
			return fmt.Errorf("callback on %s: %w", ev, err)
		}
	}
	return nil
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
