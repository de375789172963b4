// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"context"
	"fmt"

	"github.com/momeni/migrun/pkg/adapter/config"
	"github.com/momeni/migrun/pkg/adapter/db"
	"github.com/momeni/migrun/pkg/adapter/engine/scripts"
	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/repo"
	"github.com/momeni/migrun/pkg/core/usecase/configuc"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

// DiscoveryVariable names the environment variable which provides the
// connection target of units with auto-discovery enabled.
const DiscoveryVariable = "DATABASE_URL"

// host wires the adapters into the migration use cases for the units
// named on the command line.
type host struct {
	process  *expr.Process
	builder  *configuc.Builder
	loader   *scripts.Loader
	registry *migrationuc.Registry
	opts     []migrationuc.Option
}

func newHost(s settings, opts ...migrationuc.Option) (*host, error) {
	var shared *configuc.SharedBase
	if s.Shared != "" {
		var err error
		shared, err = config.LoadShared(s.Shared)
		if err != nil {
			return nil, fmt.Errorf("config.LoadShared(%q): %w", s.Shared, err)
		}
	}
	p := expr.OSProcess(s.SysProps)
	b, err := configuc.New(shared, p, configuc.WithDiscoverer(
		func(context.Context) (string, bool) {
			t, ok := p.LookupEnv(DiscoveryVariable)
			return t, ok && t != ""
		},
	))
	if err != nil {
		return nil, fmt.Errorf("creating configuration builder: %w", err)
	}
	return &host{
		process:  p,
		builder:  b,
		loader:   scripts.NewLoader(s.ScriptsRoot),
		registry: migrationuc.NewRegistry(),
		opts: append(
			[]migrationuc.Option{migrationuc.WithProcess(p)}, opts...,
		),
	}, nil
}

// unit loads the per-unit configuration from path and builds its
// resolution result. An empty name selects the base name of path.
func (h *host) unit(
	ctx context.Context, path, name string,
) (*config.Unit, *model.ResolutionResult, error) {
	u, err := config.LoadUnit(path, name)
	if err != nil {
		return nil, nil, err
	}
	rr, err := h.builder.Build(ctx, u.Name, u.Source)
	if err != nil {
		return nil, nil, err
	}
	return u, rr, nil
}

// resolved merges all property sources of a unit like its controller
// does after the vendor detection, for the given vendor tag.
func (h *host) resolved(
	ctx context.Context, unit string, rr *model.ResolutionResult, v model.Vendor,
) model.ResolvedConfiguration {
	return migrationuc.Resolve(ctx, h.process, unit, rr, v)
}

// controller creates the migration controller of the unit at path.
// Its data source supplier takes the credentials, driver properties,
// and connect retries from the resolved unit configuration.
func (h *host) controller(
	ctx context.Context, path string,
) (*migrationuc.Controller, error) {
	u, rr, err := h.unit(ctx, path, "")
	if err != nil {
		return nil, err
	}
	supplier := func(ctx context.Context) (repo.DataSource, error) {
		o, err := db.OptionsFrom(h.resolved(ctx, u.Name, rr, ""))
		if err != nil {
			return nil, err
		}
		return db.Supplier(rr.Target, o)(ctx)
	}
	return migrationuc.New(
		u.Name, supplier, h.registry, rr, h.loader, h.opts...,
	)
}
