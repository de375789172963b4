// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package props

import (
	"regexp"
	"strings"

	"github.com/momeni/migrun/pkg/core/model"
)

var validEnvName = regexp.MustCompile(`^[A-Z0-9_]+$`)

// env var prefixes and the namespaces they map onto
var envPrefixes = []struct{ env, ns string }{
	{"SPRING_FLYWAY_", Prefix},
	{"FLYWAY_", ShortPrefix},
}

// table prefixes keep the case-insensitive suffix as one segment
var envTables = []struct{ env, key string }{
	{"PLACEHOLDERS_", "placeholders."},
	{"JDBC_PROPERTIES_", "jdbc-properties."},
	{"AUTO_DISCOVERY_", "auto-discovery."},
}

// EnvKey converts an environment variable name such as
// FLYWAY_BASELINE_ON_MIGRATE into its configuration key, for example
// flyway.baseline-on-migrate. Names outside both namespaces, or with
// characters other than upper-case letters, digits, and underscores,
// yield ok=false.
func EnvKey(name string) (key string, ok bool) {
	if !validEnvName.MatchString(name) {
		return "", false
	}
	for _, p := range envPrefixes {
		rest, found := strings.CutPrefix(name, p.env)
		if !found || rest == "" {
			continue
		}
		for _, t := range envTables {
			if sub, isTable := strings.CutPrefix(rest, t.env); isTable {
				if sub == "" {
					return "", false
				}
				return p.ns + t.key + strings.ToLower(sub), true
			}
		}
		rest = strings.ReplaceAll(strings.ToLower(rest), "_", "-")
		return p.ns + rest, true
	}
	return "", false
}

// FromEnvironment captures the migration related variables of env as
// a PropertySource. Unrelated variables are ignored.
func FromEnvironment(env map[string]string) model.PropertySource {
	m := make(map[string]string)
	for name, v := range env {
		if k, ok := EnvKey(name); ok {
			m[k] = v
		}
	}
	return model.NewPropertySource(
		"environment", model.OriginEnvironment, m,
	)
}
