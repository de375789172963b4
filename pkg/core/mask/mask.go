// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mask hides credential-like values and connection identifiers
// before they are logged or embedded in error messages.
package mask

import (
	"regexp"
	"strings"
)

// Placeholder is what a sensitive value is replaced with.
const Placeholder = "***MASKED***"

var sensitiveWords = []string{
	"password", "passwd", "pwd", "secret", "token", "credential", "key",
}

var (
	passwordParam = regexp.MustCompile(`(?i)(password=)[^;&]*`)
	userInfo      = regexp.MustCompile(`(//[^/:@]*):[^:@/]+@`)
	secretParam   = regexp.MustCompile(`(?i)(secret|token|key|pwd)=[^;&]*`)
	lastSegment   = regexp.MustCompile(`/([^/?;]+)([?;].*)?$`)
)

// IsSensitive reports whether key names a password-like setting.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, w := range sensitiveWords {
		if strings.Contains(k, w) {
			return true
		}
	}
	return false
}

// Value returns v unless key is sensitive, in which case the
// Placeholder is returned. Empty values stay empty.
func Value(key, v string) string {
	if v == "" || !IsSensitive(key) {
		return v
	}
	return Placeholder
}

// Target masks a connection identifier. Credentials embedded as
// user-info or as password/secret/token/key/pwd parameters are replaced
// and the final path segment (usually the database or datasource name)
// is hidden too. Values without any path separator are returned after
// the credential masking only.
func Target(t string) string {
	if t == "" {
		return t
	}
	s := passwordParam.ReplaceAllString(t, "${1}***")
	s = userInfo.ReplaceAllString(s, "${1}:***@")
	s = secretParam.ReplaceAllString(s, "${1}=***")
	return Path(s)
}

// Path replaces the final path segment of a path-like value with a
// placeholder, keeping any trailing query or parameter part.
func Path(p string) string {
	if !strings.Contains(p, "/") {
		return p
	}
	loc := lastSegment.FindStringSubmatchIndex(p)
	if loc == nil {
		return p
	}
	// loc[2:4] covers the segment itself.
	return p[:loc[2]] + "***" + p[loc[3]:]
}
