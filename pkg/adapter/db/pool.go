// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/repo"
)

// Pool is a connection pool to the target database of one migration
// unit. It embeds the *gorm.DB, so the migration engine can use GORM
// on it, and implements the repo.DataSource interface.
type Pool struct {
	*gorm.DB

	target string
	vendor model.Vendor
}

var _ repo.DataSource = (*Pool)(nil)

// ConnHandler is called with a dedicated connection of a Pool.
type ConnHandler func(ctx context.Context, c *Conn) error

// NoOpConnHandler does nothing. It is used for testing connections.
func NoOpConnHandler(context.Context, *Conn) error {
	return nil
}

// Conn runs f with a dedicated connection which is returned to the
// pool after f returns.
func (p *Pool) Conn(ctx context.Context, f ConnHandler) error {
	return p.DB.WithContext(ctx).Connection(func(c *gorm.DB) error {
		cc := &Conn{DB: c}
		return f(ctx, cc)
	})
}

// Validate pings the database.
func (p *Pool) Validate(ctx context.Context) error {
	db, err := p.DB.DB()
	if err != nil {
		return err
	}
	if err = db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", maskErr(err, p.target))
	}
	return nil
}

// Probe runs a trivial query on a dedicated connection and returns the
// connection target of the pool.
func (p *Pool) Probe(ctx context.Context) (string, error) {
	err := p.Conn(ctx, func(ctx context.Context, c *Conn) error {
		_, err := c.Exec(ctx, "SELECT 1")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("probe: %w", maskErr(err, p.target))
	}
	return p.target, nil
}

// Close closes all connections of the pool.
func (p *Pool) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Target returns the connection target which was used to open p.
// It may contain credentials.
func (p *Pool) Target() string {
	return p.target
}

// Vendor returns the vendor of the database behind p.
func (p *Pool) Vendor() model.Vendor {
	return p.vendor
}

// DatabaseName returns the name of the current database.
func (p *Pool) DatabaseName(ctx context.Context) string {
	return p.DB.WithContext(ctx).Migrator().CurrentDatabase()
}

// GORM returns the embedded *gorm.DB instance, configuring it
// to operate on the given ctx context (in a gorm.Session).
func (p *Pool) GORM(ctx context.Context) *gorm.DB {
	return p.DB.WithContext(ctx)
}

// configurePool applies the standard pool limits. A migration unit
// only needs a few connections: one for the engine, one for probes.
// SQLite files are written through a single connection.
func configurePool(gdb *gorm.DB, v model.Vendor) error {
	db, err := gdb.DB()
	if err != nil {
		return err
	}
	if v == model.VendorSQLite {
		db.SetMaxOpenConns(1)
		return nil
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return nil
}
