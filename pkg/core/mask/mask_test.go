// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mask_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momeni/migrun/pkg/core/mask"
)

func TestIsSensitive(t *testing.T) {
	for key, exp := range map[string]bool{
		"spring.flyway.password":            true,
		"spring.flyway.jdbc-properties.pwd": true,
		"flyway.placeholders.apiKey":        true,
		"FLYWAY_SECRET":                     true,
		"spring.flyway.table":               false,
		"spring.flyway.locations":           false,
		"":                                  false,
	} {
		assert.Equal(t, exp, mask.IsSensitive(key), key)
	}
}

func TestValue(t *testing.T) {
	assert.Equal(t, mask.Placeholder, mask.Value("db.password", "s3cr3t"))
	assert.Equal(t, "", mask.Value("db.password", ""))
	assert.Equal(t, "public", mask.Value("spring.flyway.schemas", "public"))
}

func TestTarget(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{
			"postgres://app:s3cr3t@db:5432/app?sslmode=disable",
			"postgres://app:***@db:5432/***?sslmode=disable",
		},
		{
			"jdbc:postgresql://db/app?user=x&password=s3cr3t",
			"jdbc:postgresql://db/***?user=x&password=***",
		},
		{
			"java:jboss/datasources/ExampleDS",
			"java:jboss/datasources/***",
		},
		{
			"jdbc:h2:mem:test;DB_CLOSE_DELAY=-1",
			"jdbc:h2:mem:test;DB_CLOSE_DELAY=-1",
		},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, mask.Target(c.in), c.in)
	}
}

func ExamplePath() {
	fmt.Println(mask.Path("/srv/units/orders"))
	fmt.Println(mask.Path("orders"))
	// Output:
	// /srv/units/***
	// orders
}
