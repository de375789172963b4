// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package db

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
)

func trimJDBC(target string) string {
	t := strings.TrimSpace(target)
	if len(t) >= 5 && strings.EqualFold(t[:5], "jdbc:") {
		t = t[5:]
	}
	return t
}

// postgresDSN converts target into a pgx connection URL.
func postgresDSN(target string, o Options) (string, error) {
	u, err := url.Parse(trimJDBC(target))
	if err != nil {
		return "", fmt.Errorf("parsing target: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.Scheme = "postgres"
	case "pgx":
		u.Scheme = "postgres"
	default:
		return "", fmt.Errorf("scheme %q is not a PostgreSQL scheme", u.Scheme)
	}
	q := u.Query()
	if u.User == nil && q.Get("user") == "" && o.User != "" {
		if o.Password != "" {
			u.User = url.UserPassword(o.User, o.Password)
		} else {
			u.User = url.User(o.User)
		}
	}
	for k, v := range o.DriverProps {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	dsn := u.String()
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("parsing connection config: %w", err)
	}
	return dsn, nil
}

// mysqlDSN converts target into a go-sql-driver/mysql DSN. Multiple
// statements per Exec are enabled, since migration scripts carry many.
func mysqlDSN(target string, o Options) (string, error) {
	t := trimJDBC(target)
	var (
		cfg *mysql.Config
		err error
	)
	rest, isURL := cutScheme(t)
	switch {
	case isURL && strings.ContainsAny(rest, "()"):
		cfg, err = mysql.ParseDSN(rest)
	case isURL:
		cfg, err = mysqlURL(rest)
	default:
		cfg, err = mysql.ParseDSN(t)
	}
	if err != nil {
		return "", fmt.Errorf("parsing target: %w", err)
	}
	if cfg.User == "" {
		cfg.User = o.User
	}
	if cfg.Passwd == "" {
		cfg.Passwd = o.Password
	}
	if len(o.DriverProps) > 0 && cfg.Params == nil {
		cfg.Params = make(map[string]string, len(o.DriverProps))
	}
	for k, v := range o.DriverProps {
		cfg.Params[k] = v
	}
	cfg.MultiStatements = true
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func cutScheme(t string) (string, bool) {
	for _, s := range []string{"mysql://", "mariadb://"} {
		if len(t) >= len(s) && strings.EqualFold(t[:len(s)], s) {
			return t[len(s):], true
		}
	}
	return t, false
}

// mysqlURL parses user:pass@host:port/db?params (without the scheme).
func mysqlURL(rest string) (*mysql.Config, error) {
	u, err := url.Parse("mysql://" + rest)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, errors.New("missing host")
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	port := u.Port()
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(u.Hostname(), port)
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	for k, vs := range u.Query() {
		if len(vs) == 0 {
			continue
		}
		switch k {
		case "user":
			cfg.User = vs[0]
		case "password":
			cfg.Passwd = vs[0]
		default:
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			cfg.Params[k] = vs[0]
		}
	}
	return cfg, nil
}

// sqliteDSN converts target into a go-sqlite3 file name. Driver
// properties become query parameters such as _foreign_keys=on.
func sqliteDSN(target string, o Options) (string, error) {
	t := trimJDBC(target)
	for _, s := range []string{"sqlite3:", "sqlite:"} {
		if len(t) >= len(s) && strings.EqualFold(t[:len(s)], s) {
			t = t[len(s):]
			break
		}
	}
	t = strings.TrimPrefix(t, "//")
	if t == "" {
		return "", errors.New("missing database file")
	}
	if len(o.DriverProps) == 0 {
		return t, nil
	}
	q := url.Values{}
	for k, v := range o.DriverProps {
		q.Set(k, v)
	}
	sep := "?"
	if strings.Contains(t, "?") {
		sep = "&"
	}
	return t + sep + q.Encode(), nil
}
