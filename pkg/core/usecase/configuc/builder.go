// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package configuc implements the configuration builder use case.
// It merges the shared-base and per-unit configurations of one
// deployment unit and decides which connection target the unit must
// migrate, trying three tiers in this order:
//
//  1. the per-unit flyway.url or spring.flyway.url property,
//  2. the default target of the shared-base configuration,
//  3. an optional auto-discovery hook, only if the
//     spring.flyway.auto-discovery.enabled setting is true.
//
// The target expressions are resolved before use, and targets are
// masked whenever they are logged.
package configuc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/momeni/migrun/pkg/core/cerr"
	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
)

// Discoverer tries to find a connection target when neither the unit
// nor the shared-base configuration names one.
type Discoverer func(ctx context.Context) (target string, ok bool)

// Builder builds ResolutionResult instances for deployment units.
type Builder struct {
	shared   *SharedBase
	expr     *expr.Resolver
	discover Discoverer
}

// Option represents an optional setting for the Builder.
type Option func(b *Builder) error

// WithDiscoverer installs d as the auto-discovery hook.
func WithDiscoverer(d Discoverer) Option {
	return func(b *Builder) error {
		if d == nil {
			return fmt.Errorf("discoverer must not be nil")
		}
		b.discover = d
		return nil
	}
}

// New creates a Builder which uses the shared snapshot for all units
// and resolves target expressions against l.
func New(shared *SharedBase, l expr.Lookup, opts ...Option) (*Builder, error) {
	if shared == nil {
		shared = NewSharedBase(nil, "")
	}
	if l == nil {
		return nil, fmt.Errorf("lookup must not be nil")
	}
	b := &Builder{shared: shared, expr: expr.New(l)}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return b, nil
}

// Build merges the shared-base properties with perUnit (which always
// wins for the same canonical key) and determines the connection
// target of the unit. The returned properties only contain explicitly
// configured entries; defaults are applied by the configuration
// resolver. The returned properties always hold the target under the
// spring.flyway.url key and an enabled flag, which is forced to true
// when neither source set it.
//
// If no tier yields a target, an error of kind cerr.NoTargetConfigured
// is returned.
func (b *Builder) Build(
	ctx context.Context, unit string, perUnit model.PropertySource,
) (*model.ResolutionResult, error) {
	merged := make(model.ResolvedConfiguration)
	overlay(merged, b.shared.Source())
	overlay(merged, perUnit)

	target, origin, err := b.target(ctx, unit, perUnit, merged)
	if err != nil {
		return nil, err
	}
	merged[props.KeyURL] = target
	if _, ok := merged[props.KeyEnabled]; !ok {
		merged[props.KeyEnabled] = "true"
	}
	log.Info(ctx, "resolved connection target",
		log.Unit(unit),
		log.Target("target", target),
		slog.String("origin", origin.String()),
	)
	return &model.ResolutionResult{
		Target:     target,
		Properties: merged,
		Origin:     origin,
	}, nil
}

// overlay normalizes the keys of src into rc, visiting them in sorted
// order so the canonical form of a key wins over its short form.
func overlay(rc model.ResolvedConfiguration, src model.PropertySource) {
	for _, raw := range src.Keys() {
		key, ok := props.Normalize(raw)
		if !ok || !props.IsValidKey(raw) {
			continue
		}
		v, _ := src.Get(raw)
		rc[key] = v
	}
}

func (b *Builder) target(
	ctx context.Context,
	unit string,
	perUnit model.PropertySource,
	merged model.ResolvedConfiguration,
) (string, model.TargetOrigin, error) {
	for _, k := range []string{props.ShortPrefix + "url", props.KeyURL} {
		if raw, ok := perUnit.Get(k); ok {
			if t := b.resolve(ctx, unit, raw); t != "" {
				return t, model.TargetPerUnit, nil
			}
		}
	}
	if raw := b.shared.DefaultTarget(); raw != "" {
		if t := b.resolve(ctx, unit, raw); t != "" {
			return t, model.TargetSharedBase, nil
		}
	}
	discovery := props.Bool(merged, props.KeyAutoDiscoveryEnabled, false)
	if discovery && b.discover != nil {
		if t, ok := b.discover(ctx); ok && t != "" {
			return t, model.TargetDiscovered, nil
		}
		log.Debug(ctx, "auto-discovery found no target",
			log.Unit(unit),
		)
	}
	return "", 0, cerr.Newf(cerr.NoTargetConfigured, unit, nil,
		"none of per-unit %s or %s, shared-base default target, or "+
			"auto-discovery (enabled=%t) provided a connection target",
		props.ShortPrefix+"url", props.KeyURL, discovery,
	)
}

// resolve resolves the expressions of a raw target. A target which
// resolves to an empty string counts as absent.
func (b *Builder) resolve(ctx context.Context, unit, raw string) string {
	t := b.expr.Resolve(ctx, raw)
	if t == "" {
		log.Warn(ctx, "connection target resolved to an empty string",
			log.Unit(unit),
		)
	}
	return t
}
