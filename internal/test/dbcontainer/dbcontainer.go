// Copyright (c) 2023 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package dbcontainer is an internal helper for the test packages.
// This packages facilitates creation of a temporary postgres:16
// podman container and connecting to it, using a *db.Pool
// connection pool.
// It may be used in all integration-level test suites which require
// a real PostgreSQL DBMS server. Such suites only run when the
// MIGRUN_INTEGRATION environment variable is set to 1.
package dbcontainer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bitcomplete/sqltestutil"
	"github.com/stretchr/testify/assert"

	"github.com/momeni/migrun/pkg/adapter/db"
)

// EnvVar enables the integration tests when it is set to 1.
const EnvVar = "MIGRUN_INTEGRATION"

// New creates and starts up a postgres podman container.
// The podman.service needs to be started and the DOCKER_HOST
// environment variable needs to be initialized beforehand like
// DOCKER_HOST=unix://$XDG_RUNTIME_DIR/podman/podman.sock
// in order to be identified by this function properly.
// The ctx will be used during the container start up and shutdown,
// while the timeout will be considered only during the start up phase.
// The test is skipped unless EnvVar is set to 1.
func New(ctx context.Context, timeout time.Duration, t *testing.T) (
	pg *sqltestutil.PostgresContainer,
	pool *db.Pool,
	dfrs []func(),
	ok bool,
) {
	if os.Getenv(EnvVar) != "1" {
		t.Skipf("set %s=1 to run integration tests", EnvVar)
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	dbmsVer := "16"
	pg, err := sqltestutil.StartPostgresContainer(ctx2, dbmsVer)
	ok = assert.NoError(t, err, "failed to set up a test database")
	if !ok {
		return
	}
	dfrs = append(dfrs, func() {
		err := pg.Shutdown(ctx)
		assert.NoError(t, err, "failed to shutdown test database")
	})
	// the database system may still be starting up (57P03) or not
	// listening yet; both are retried until ctx2 expires.
	pool, err = db.Open(ctx2, pg.ConnectionString(), db.Options{
		ConnectRetries:   int(timeout / time.Second),
		MaxRetryInterval: 2 * time.Second,
	})
	ok = assert.NoError(t, err, "cannot connect to test database")
	if !ok {
		return
	}
	dfrs = append(dfrs, func() {
		err := pool.Close()
		assert.NoError(t, err, "failed to close the connections pool")
	})
	return
}
