// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sanitize strips injection payloads from untrusted string
// values before they reach the configuration of a migration unit.
//
// Sanitization is conservative. Legitimate connection identifiers,
// including ones with semicolon separated parameters, pass unchanged,
// while script tags, SQL comment and tautology fragments, directory
// service lookups and (for location-like values) parent directory
// traversal and shell metacharacters are removed.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	scriptTag = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	sqlInject = regexp.MustCompile(
		`(?i)('[^']*--)|(--)|(\*/)|(/\*)|(char\()|('\s*or\s*'1'\s*=\s*'1)|(\s+or\s+1\s*=\s*1)`,
	)
	lookup     = regexp.MustCompile(`(?i)\$\{\s*(jndi|ldap|ldaps|rmi|dns):[^}]*}`)
	traversal  = regexp.MustCompile(`\.\.[\\/]`)
	shellMeta  = regexp.MustCompile("`|\\$\\(|[()]")
	shellSubst = regexp.MustCompile("`|\\$\\(")
)

// schemes which mark a value as a location even without separators.
var schemes = []string{"classpath:", "filesystem:", "file:"}

// IsPathLike reports whether v looks like a filesystem or classpath
// location, so it is subject to traversal and metacharacter stripping.
func IsPathLike(v string) bool {
	if strings.ContainsAny(v, `/\`) {
		return true
	}
	l := strings.ToLower(v)
	for _, s := range schemes {
		if strings.HasPrefix(l, s) {
			return true
		}
	}
	return false
}

// Value returns v without injection payloads. It never panics; if an
// internal failure occurs, v is returned unmodified.
func Value(v string) (s string) {
	if v == "" {
		return v
	}
	defer func() {
		if r := recover(); r != nil {
			s = v
		}
	}()
	s = scriptTag.ReplaceAllString(v, "")
	s = lookup.ReplaceAllString(s, "")
	s = sqlInject.ReplaceAllString(s, "")
	if IsPathLike(v) {
		s = stripAll(traversal, s)
		if isMySQLAddress(v) {
			s = shellSubst.ReplaceAllString(s, "")
		} else {
			s = shellMeta.ReplaceAllString(s, "")
		}
	}
	return s
}

// stripAll repeats the replacement until the value is stable, so
// "..././" cannot reassemble a traversal sequence after one pass.
func stripAll(re *regexp.Regexp, s string) string {
	for {
		r := re.ReplaceAllString(s, "")
		if r == s {
			return r
		}
		s = r
	}
}

// isMySQLAddress reports whether v is a MySQL DSN whose address is
// wrapped in parentheses, such as "tcp(db:3306)". Only those keep their
// parentheses; command substitution is stripped from every location.
func isMySQLAddress(v string) bool {
	l := strings.ToLower(v)
	return strings.Contains(l, "@tcp(") || strings.Contains(l, "@unix(")
}

// Changed reports whether sanitizing v modifies it.
func Changed(v string) bool {
	return Value(v) != v
}
