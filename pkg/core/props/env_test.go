// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package props_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
)

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"FLYWAY_LOCATIONS":                     "flyway.locations",
		"FLYWAY_BASELINE_ON_MIGRATE":           "flyway.baseline-on-migrate",
		"SPRING_FLYWAY_URL":                    "spring.flyway.url",
		"SPRING_FLYWAY_PLACEHOLDERS_TENANT_ID": "spring.flyway.placeholders.tenant_id",
		"FLYWAY_JDBC_PROPERTIES_SSLMODE":       "flyway.jdbc-properties.sslmode",
		"FLYWAY_AUTO_DISCOVERY_ENABLED":        "flyway.auto-discovery.enabled",
	}
	for name, exp := range cases {
		k, ok := props.EnvKey(name)
		assert.True(t, ok, name)
		assert.Equal(t, exp, k, name)
	}
	for _, name := range []string{
		"PATH", "FLYWAY_", "flyway_locations", "FLYWAY-X",
		"FLYWAY_PLACEHOLDERS_", "DATABASE_URL",
	} {
		_, ok := props.EnvKey(name)
		assert.False(t, ok, name)
	}
}

func TestFromEnvironment(t *testing.T) {
	src := props.FromEnvironment(map[string]string{
		"HOME":              "/root",
		"FLYWAY_TABLE":      "history",
		"SPRING_FLYWAY_URL": "postgres://db/app",
	})
	assert.Equal(t, model.OriginEnvironment, src.Origin)
	require.Equal(t, []string{"flyway.table", "spring.flyway.url"}, src.Keys())
	v, ok := src.Get("flyway.table")
	assert.True(t, ok)
	assert.Equal(t, "history", v)
}
