// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package log_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/mask"
)

func TestJSONRecords(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	h, err := log.NewHandler(&buf, log.FormatJSON, slog.LevelInfo)
	require.NoError(t, err)
	log.SetDefault(h)

	ctx := context.Background()
	log.Debug(ctx, "hidden")
	log.Warn(ctx, "probe failed",
		log.Unit("orders"),
		log.Target("target", "postgres://app:pw@db:5432/orders"),
		log.Masked("password", "s3cret"),
		log.Err("err", errors.New("refused")),
	)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "probe failed", rec["msg"])
	assert.Equal(t, "orders", rec["unit"])
	assert.Equal(t, mask.Placeholder, rec["password"])
	assert.Equal(t, "refused", rec["err"])
	assert.NotContains(t, rec["target"], "pw")
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	_, err := log.NewHandler(&buf, log.FormatText, slog.LevelDebug)
	assert.NoError(t, err)
	_, err = log.NewHandler(&buf, "xml", slog.LevelDebug)
	assert.Error(t, err)
	assert.Equal(t, "no-error", log.Err("err", nil).Value.String())
	assert.Equal(t, "", log.Masked("password", "").Value.String())
}
