// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package props

import (
	"regexp"

	"github.com/momeni/migrun/pkg/core/model"
)

// Namespaces of configuration keys. Prefix is the canonical one and
// ShortPrefix is folded onto it by Normalize.
const (
	Prefix      = "spring.flyway."
	ShortPrefix = "flyway."
)

// VendorToken is replaced by the detected vendor tag in resolved values.
const VendorToken = "{vendor}"

// Canonical keys of the settings surface.
const (
	KeyEnabled                      = Prefix + "enabled"
	KeyURL                          = Prefix + "url"
	KeyUser                         = Prefix + "user"
	KeyPassword                     = Prefix + "password"
	KeyAutoDiscoveryEnabled         = Prefix + "auto-discovery.enabled"
	KeyLocations                    = Prefix + "locations"
	KeyTable                        = Prefix + "table"
	KeySchemas                      = Prefix + "schemas"
	KeyTablespace                   = Prefix + "tablespace"
	KeyCreateSchemas                = Prefix + "create-schemas"
	KeyBaselineOnMigrate            = Prefix + "baseline-on-migrate"
	KeyBaselineVersion              = Prefix + "baseline-version"
	KeyBaselineDescription          = Prefix + "baseline-description"
	KeyValidateOnMigrate            = Prefix + "validate-on-migrate"
	KeyValidateMigrationNaming      = Prefix + "validate-migration-naming"
	KeyCleanDisabled                = Prefix + "clean-disabled"
	KeyCleanOnValidationError       = Prefix + "clean-on-validation-error"
	KeyOutOfOrder                   = Prefix + "out-of-order"
	KeyTarget                       = Prefix + "target"
	KeyInstalledBy                  = Prefix + "installed-by"
	KeyEncoding                     = Prefix + "encoding"
	KeyDetectEncoding               = Prefix + "detect-encoding"
	KeyMixed                        = Prefix + "mixed"
	KeyGroup                        = Prefix + "group"
	KeyCallbacks                    = Prefix + "callbacks"
	KeyResolvers                    = Prefix + "resolvers"
	KeySkipDefaultCallbacks         = Prefix + "skip-default-callbacks"
	KeySkipDefaultResolvers         = Prefix + "skip-default-resolvers"
	KeyIgnoreMigrationPatterns      = Prefix + "ignore-migration-patterns"
	KeySQLMigrationPrefix           = Prefix + "sql-migration-prefix"
	KeySQLMigrationSeparator        = Prefix + "sql-migration-separator"
	KeySQLMigrationSuffixes         = Prefix + "sql-migration-suffixes"
	KeyRepeatableSQLMigrationPrefix = Prefix + "repeatable-sql-migration-prefix"
	KeyPlaceholderReplacement       = Prefix + "placeholder-replacement"
	KeyPlaceholderPrefix            = Prefix + "placeholder-prefix"
	KeyPlaceholderSuffix            = Prefix + "placeholder-suffix"
	KeyPlaceholderSeparator         = Prefix + "placeholder-separator"
	KeyScriptPlaceholderPrefix      = Prefix + "script-placeholder-prefix"
	KeyScriptPlaceholderSuffix      = Prefix + "script-placeholder-suffix"
	KeyLockRetryCount               = Prefix + "lock-retry-count"
	KeyConnectRetries               = Prefix + "connect-retries"
	KeyConnectRetriesInterval       = Prefix + "connect-retries-interval"
	KeyCheckLocation                = Prefix + "check-location"
	KeyPostgresTransactionalLock    = Prefix + "postgresql-transactional-lock"
	KeyOracleSQLPlus                = Prefix + "oracle-sqlplus"
	KeyOracleSQLPlusWarn            = Prefix + "oracle-sqlplus-warn"
)

// Prefixes of the key/value tables of the settings surface.
const (
	PlaceholdersPrefix = Prefix + "placeholders."
	DriverPropsPrefix  = Prefix + "jdbc-properties."
)

var defaults = map[string]string{
	KeyEnabled:                      "true",
	KeyAutoDiscoveryEnabled:         "false",
	KeyLocations:                    "classpath:db/migration",
	KeyTable:                        "flyway_schema_history",
	KeyCreateSchemas:                "true",
	KeyBaselineOnMigrate:            "false",
	KeyBaselineVersion:              "1",
	KeyBaselineDescription:          "<< Flyway Baseline >>",
	KeyValidateOnMigrate:            "true",
	KeyValidateMigrationNaming:      "false",
	KeyCleanDisabled:                "true",
	KeyCleanOnValidationError:       "false",
	KeyOutOfOrder:                   "false",
	KeyEncoding:                     "UTF-8",
	KeyDetectEncoding:               "false",
	KeyMixed:                        "false",
	KeyGroup:                        "false",
	KeySkipDefaultCallbacks:         "false",
	KeySkipDefaultResolvers:         "false",
	KeySQLMigrationPrefix:           "V",
	KeySQLMigrationSeparator:        "__",
	KeySQLMigrationSuffixes:         ".sql",
	KeyRepeatableSQLMigrationPrefix: "R",
	KeyPlaceholderReplacement:       "true",
	KeyPlaceholderPrefix:            "${",
	KeyPlaceholderSuffix:            "}",
	KeyPlaceholderSeparator:         ":",
	KeyScriptPlaceholderPrefix:      "FP__",
	KeyScriptPlaceholderSuffix:      "__",
	KeyLockRetryCount:               "50",
	KeyConnectRetries:               "0",
	KeyConnectRetriesInterval:       "120",
	KeyCheckLocation:                "true",
	KeyPostgresTransactionalLock:    "true",
	KeyOracleSQLPlus:                "false",
	KeyOracleSQLPlusWarn:            "false",
}

// Defaults returns a fresh copy of the defaults table. Every recognized
// setting which has a meaningful default is present in it.
func Defaults() model.ResolvedConfiguration {
	rc := make(model.ResolvedConfiguration, len(defaults))
	for k, v := range defaults {
		rc[k] = v
	}
	return rc
}

// MaxKeyLength bounds the accepted length of a configuration key.
const MaxKeyLength = 256

var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// IsValidKey reports whether key has an acceptable length and only
// consists of letters, digits, dots, underscores, and dashes.
func IsValidKey(key string) bool {
	return len(key) <= MaxKeyLength && validKey.MatchString(key)
}
