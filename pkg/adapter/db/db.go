// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package db opens connection pools to the target databases of
// migration units. PostgreSQL targets are served by the pgx driver,
// MySQL or MariaDB targets by the go-sql-driver/mysql driver, and
// SQLite files by the go-sqlite3 driver, all behind GORM.
//
// Targets may be given as JDBC style identifiers such as
// jdbc:postgresql://db:5432/app, as URLs such as
// postgres://user:pass@db/app or mysql://user:pass@db:3306/app, or as
// native MySQL DSNs such as user:pass@tcp(db:3306)/app, or
// jdbc:sqlite:/var/lib/app.db for SQLite files.
package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/spf13/cast"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/mask"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/repo"
	"github.com/momeni/migrun/pkg/core/vendor"
)

// Options of opening a Pool.
type Options struct {
	User     string // used if the target carries no user
	Password string // used if the target carries no password

	// DriverProps are passed to the driver: as connection parameters
	// for PostgreSQL (unknown ones become runtime parameters) and as
	// DSN parameters for MySQL.
	DriverProps map[string]string

	// ConnectRetries is how many times a failed connection attempt is
	// retried if its error is transient.
	ConnectRetries int

	// MaxRetryInterval caps the doubling delay between two attempts.
	MaxRetryInterval time.Duration
}

// OptionsFrom reads the connection options out of a resolved unit
// configuration.
func OptionsFrom(rc model.ResolvedConfiguration) (Options, error) {
	retries, err := intSetting(rc, props.KeyConnectRetries, 0)
	if err != nil {
		return Options{}, err
	}
	interval, err := intSetting(rc, props.KeyConnectRetriesInterval, 120)
	if err != nil {
		return Options{}, err
	}
	if retries < 0 || interval < 0 {
		return Options{}, errors.New("connect retries must not be negative")
	}
	return Options{
		User:             rc[props.KeyUser],
		Password:         rc[props.KeyPassword],
		DriverProps:      rc.WithPrefix(props.DriverPropsPrefix),
		ConnectRetries:   retries,
		MaxRetryInterval: time.Duration(interval) * time.Second,
	}, nil
}

func intSetting(rc model.ResolvedConfiguration, key string, dflt int) (int, error) {
	v := strings.TrimSpace(rc[key])
	if v == "" {
		return dflt, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Supplier returns a repo.DataSourceSupplier which opens a new Pool to
// target whenever it is called.
func Supplier(target string, o Options) repo.DataSourceSupplier {
	return func(ctx context.Context) (repo.DataSource, error) {
		p, err := Open(ctx, target, o)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Open opens a Pool to target and tests it with one connection.
// Transient failures are retried up to o.ConnectRetries times.
func Open(ctx context.Context, target string, o Options) (*Pool, error) {
	v, ok := vendor.Detect(target)
	if !ok {
		return nil, fmt.Errorf(
			"unknown database vendor of %s", mask.Target(target),
		)
	}
	dialector, err := dialectorOf(v, target, o)
	if err != nil {
		return nil, maskErr(err, target)
	}
	var pool *Pool
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			p, err := open(ctx, dialector, target, v)
			if err != nil {
				return err
			}
			pool = p
			return nil
		},
		IsFatalError: func(err error) bool {
			return !Retriable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			log.Warn(ctx, "connecting to database failed",
				log.Target("target", target),
				slog.Int("attempt", attempt),
				log.Err("err", maskErr(err, target)),
			)
		},
		Attempts:    o.ConnectRetries + 1,
		Delay:       time.Second,
		MaxDelay:    max(o.MaxRetryInterval, time.Second),
		BackoffFunc: retry.DoubleDelay,
		Clock:       clock.WallClock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return pool, nil
	case retry.IsAttemptsExceeded(err):
		err = retry.LastError(err)
	case retry.IsRetryStopped(err):
		err = ctx.Err()
	}
	return nil, fmt.Errorf("opening %s: %w", mask.Target(target), maskErr(err, target))
}

func dialectorOf(v model.Vendor, target string, o Options) (gorm.Dialector, error) {
	switch v {
	case model.VendorPostgreSQL:
		dsn, err := postgresDSN(target, o)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	case model.VendorMySQL, model.VendorMariaDB:
		dsn, err := mysqlDSN(target, o)
		if err != nil {
			return nil, err
		}
		return gormmysql.Open(dsn), nil
	case model.VendorSQLite:
		dsn, err := sqliteDSN(target, o)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("vendor %s is not supported", v)
	}
}

func open(
	ctx context.Context, d gorm.Dialector, target string, v model.Vendor,
) (*Pool, error) {
	gdb, err := gorm.Open(d, &gorm.Config{
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open: %w", err)
	}
	if err = configurePool(gdb, v); err != nil {
		return nil, err
	}
	pool := &Pool{DB: gdb, target: target, vendor: v}
	err = pool.Conn(ctx, NoOpConnHandler)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}
	return pool, nil
}

// Retriable reports whether err is a transient connection failure:
// network errors, bad connections, a PostgreSQL server which is still
// starting up, or a MySQL server which has too many connections.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.SQLState() {
		case "57P03", "53300": // cannot_connect_now, too_many_connections
			return true
		}
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1040 // ER_CON_COUNT_ERROR
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn)
}

// maskedError hides a connection target inside the message of err.
type maskedError struct {
	msg string
	err error
}

func (me *maskedError) Error() string { return me.msg }
func (me *maskedError) Unwrap() error { return me.err }

func maskErr(err error, target string) error {
	if err == nil || target == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, target) {
		return err
	}
	return &maskedError{
		msg: strings.ReplaceAll(msg, target, mask.Target(target)),
		err: err,
	}
}

// slogWriter routes the GORM logger into the structured log.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	log.Warn(context.Background(), fmt.Sprintf(format, args...),
		slog.String("component", "gorm"),
	)
}
