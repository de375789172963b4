// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/model"
)

// Event of a migrate run which is reported to callbacks.
type Event string

// Events, in the order they are reported.
const (
	BeforeMigrate         Event = "beforeMigrate"
	BeforeEachMigrate     Event = "beforeEachMigrate"
	AfterEachMigrate      Event = "afterEachMigrate"
	AfterEachMigrateError Event = "afterEachMigrateError"
	AfterMigrate          Event = "afterMigrate"
	AfterMigrateError     Event = "afterMigrateError"
)

// EventContext describes the circumstances of an event.
type EventContext struct {
	DB        *gorm.DB
	Vendor    model.Vendor
	Migration *Migration // nil for the run level events
	Err       error      // set for the error events
}

// Callback is notified about the events of migrate runs. An error
// returned for a Before event aborts the run.
type Callback interface {
	Handle(ctx context.Context, e Event, ec EventContext) error
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(ctx context.Context, e Event, ec EventContext) error

// Handle calls f.
func (f CallbackFunc) Handle(ctx context.Context, e Event, ec EventContext) error {
	return f(ctx, e, ec)
}

// Resolver finds migrations for a run.
type Resolver interface {
	Resolve(ctx context.Context, s Settings) (*ScanResult, error)
}

// CallbackFactory creates a Callback instance for one engine.
type CallbackFactory func() Callback

// ResolverFactory creates a Resolver instance for one engine. The
// classpath root and the file system opener of the loader are passed.
type ResolverFactory func(root string, open FSOpener) Resolver

// Tags of the built-in extensions.
const (
	LoggingCallback = "logging"
	AnalyzeCallback = "analyze"
	SQLResolver     = "sql"
)

// Extensions is a registry of callbacks and resolvers which may be
// enabled by their tags in the callbacks and resolvers settings.
type Extensions struct {
	mu        sync.RWMutex
	callbacks map[string]CallbackFactory
	resolvers map[string]ResolverFactory
}

// NewExtensions returns a registry which knows the built-in logging
// and analyze callbacks and the sql resolver.
func NewExtensions() *Extensions {
	x := &Extensions{
		callbacks: map[string]CallbackFactory{
			LoggingCallback: func() Callback { return loggingCallback{} },
			AnalyzeCallback: func() Callback { return analyzeCallback{} },
		},
		resolvers: map[string]ResolverFactory{
			SQLResolver: func(root string, open FSOpener) Resolver {
				return &sqlResolver{root: root, open: open}
			},
		},
	}
	return x
}

// RegisterCallback registers a callback factory under tag.
func (x *Extensions) RegisterCallback(tag string, f CallbackFactory) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, exists := x.callbacks[tag]; exists {
		return fmt.Errorf("callback %s already registered", tag)
	}
	x.callbacks[tag] = f
	return nil
}

// RegisterResolver registers a resolver factory under tag.
func (x *Extensions) RegisterResolver(tag string, f ResolverFactory) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, exists := x.resolvers[tag]; exists {
		return fmt.Errorf("resolver %s already registered", tag)
	}
	x.resolvers[tag] = f
	return nil
}

// Tags returns the registered callback and resolver tags, sorted.
func (x *Extensions) Tags() (callbacks, resolvers []string) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for tag := range x.callbacks {
		callbacks = append(callbacks, tag)
	}
	for tag := range x.resolvers {
		resolvers = append(resolvers, tag)
	}
	sort.Strings(callbacks)
	sort.Strings(resolvers)
	return callbacks, resolvers
}

// Callbacks instantiates the callbacks of s: the default logging one
// unless skipped, then the configured tags. Unknown tags are logged
// and skipped.
func (x *Extensions) Callbacks(ctx context.Context, s Settings) []Callback {
	tags := s.Callbacks
	if !s.SkipDefaultCallbacks {
		tags = append([]string{LoggingCallback}, tags...)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	var cbs []Callback
	for _, tag := range dedup(tags) {
		f, ok := x.callbacks[tag]
		if !ok {
			log.Warn(ctx, "unknown callback is skipped", slog.String("tag", tag))
			continue
		}
		cbs = append(cbs, f())
	}
	return cbs
}

// Resolvers instantiates the resolvers of s: the default sql one
// unless skipped, then the configured tags. Unknown tags are logged
// and skipped.
func (x *Extensions) Resolvers(
	ctx context.Context, s Settings, root string, open FSOpener,
) []Resolver {
	tags := s.Resolvers
	if !s.SkipDefaultResolvers {
		tags = append([]string{SQLResolver}, tags...)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	var rs []Resolver
	for _, tag := range dedup(tags) {
		f, ok := x.resolvers[tag]
		if !ok {
			log.Warn(ctx, "unknown resolver is skipped", slog.String("tag", tag))
			continue
		}
		rs = append(rs, f(root, open))
	}
	return rs
}

func dedup(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

type sqlResolver struct {
	root string
	open FSOpener
}

func (r *sqlResolver) Resolve(ctx context.Context, s Settings) (*ScanResult, error) {
	return Scan(ctx, r.root, r.open, s)
}

type loggingCallback struct{}

func (loggingCallback) Handle(ctx context.Context, e Event, ec EventContext) error {
	attrs := []slog.Attr{slog.String("event", string(e))}
	if ec.Migration != nil {
		attrs = append(attrs, slog.String("script", ec.Migration.Script))
	}
	if ec.Err != nil {
		log.Error(ctx, "migration event", append(attrs, log.Err("err", ec.Err))...)
		return nil
	}
	log.Info(ctx, "migration event", attrs...)
	return nil
}

// analyzeCallback refreshes the planner statistics after a
// successful run.
type analyzeCallback struct{}

func (analyzeCallback) Handle(ctx context.Context, e Event, ec EventContext) error {
	if e != AfterMigrate || ec.DB == nil {
		return nil
	}
	db := ec.DB.WithContext(ctx)
	switch ec.Vendor {
	case model.VendorPostgreSQL:
		return db.Exec("ANALYZE").Error
	case model.VendorMySQL, model.VendorMariaDB:
		tables, err := db.Migrator().GetTables()
		if err != nil {
			return err
		}
		for _, t := range tables {
			q := "ANALYZE TABLE " + db.Statement.Quote(t)
			if err := db.Exec(q).Error; err != nil {
				return err
			}
		}
		return nil
	}
	log.Debug(ctx, "analyze is not supported", slog.String("vendor", string(ec.Vendor)))
	return nil
}
