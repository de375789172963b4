// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momeni/migrun/pkg/adapter/engine/scripts"
)

func TestReplacer(t *testing.T) {
	r := scripts.NewReplacer(scripts.Settings{
		PlaceholderPrefix: "${",
		PlaceholderSuffix: "}",
		Placeholders:      map[string]string{"Owner": "alice"},
	}).With(scripts.PlaceholderTable, "history")

	out, err := r.Replace("V1__x.sql",
		"GRANT ALL ON ${flyway:table} TO ${owner}; -- ${ OWNER }")
	require.NoError(t, err)
	assert.Equal(t, "GRANT ALL ON history TO alice; -- alice", out)

	out, err = r.Replace("V1__x.sql", "SELECT '${unterminated'")
	require.NoError(t, err)
	assert.Equal(t, "SELECT '${unterminated'", out)

	_, err = r.Replace("V2__y.sql", "SELECT ${missing}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "V2__y.sql")
}
