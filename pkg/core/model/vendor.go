// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

// Vendor is a short tag which identifies the kind of database engine
// behind a connection target. It is substituted for the {vendor}
// placeholder in migration script locations.
type Vendor string

// Known vendor tags.
const (
	VendorH2         Vendor = "h2"
	VendorHSQLDB     Vendor = "hsqldb"
	VendorSQLite     Vendor = "sqlite"
	VendorPostgreSQL Vendor = "postgresql"
	VendorMySQL      Vendor = "mysql"
	VendorMariaDB    Vendor = "mariadb"
	VendorOracle     Vendor = "oracle"
	VendorSQLServer  Vendor = "sqlserver"
	VendorDB2        Vendor = "db2"
)

// String returns the tag itself.
func (v Vendor) String() string {
	return string(v)
}
