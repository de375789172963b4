// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package log

import (
	"log/slog"

	"github.com/momeni/migrun/pkg/core/mask"
)

// Unit returns the Attr which names the deployment unit of a record.
func Unit(name string) slog.Attr {
	return slog.String("unit", name)
}

// Err returns an Attr for the given error value.
// The error value is resolved as a string by its Error() method.
// If error value is nil, the constant "no-error" value will be used.
func Err(key string, value error) slog.Attr {
	if value == nil {
		return slog.String(key, "no-error")
	}
	return slog.String(key, value.Error())
}

// Masked returns an Attr for a sensitive value. The value itself is
// never rendered, only a fixed placeholder (or an empty string when
// there was nothing to hide).
func Masked(key, value string) slog.Attr {
	if value == "" {
		return slog.String(key, "")
	}
	return slog.String(key, mask.Placeholder)
}

// Target returns an Attr for a connection identifier with credentials
// and the final path segment masked.
func Target(key, target string) slog.Attr {
	return slog.String(key, mask.Target(target))
}
