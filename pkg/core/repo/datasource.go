// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package repo declares the collaborators which the core use cases
// need from the infrastructure: data sources which reach a database
// and the migration engine which applies scripts to it.
package repo

import "context"

// DataSource is a handle to a database which a migration unit targets.
type DataSource interface {
	// Validate checks that the data source can serve requests. It must
	// give up once ctx is done.
	Validate(ctx context.Context) error

	// Probe opens a dedicated connection, closes it again, and returns
	// the connection identifier (URL or DSN) which was used. The
	// returned identifier may contain credentials and must be masked
	// before it is logged.
	Probe(ctx context.Context) (string, error)

	// Close releases all connections of the data source.
	Close() error
}

// DataSourceSupplier returns the data source of a migration unit.
// A nil data source without an error counts as unavailable.
type DataSourceSupplier func(ctx context.Context) (DataSource, error)
