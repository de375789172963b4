// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package expr resolves ${name} and ${name:default} expressions in
// configuration values.
//
// A name starting with "env." is looked up as an environment variable.
// Any other name, optionally prefixed by "sys.", is looked up as a
// process system property. Missing values are replaced by the default
// text, or by an empty string if no default was given.
// Resolution is not recursive: the substituted text is never scanned
// again, so "${A:${B}}" yields the literal "${B}" when A is missing.
//
// Values which look like injection attempts are returned unresolved:
// values with mismatched braces, with more than MaxDepth nested braces,
// or with a directory service lookup such as "${jndi:...}".
package expr

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/momeni/migrun/pkg/core/log"
)

// MaxDepth is the deepest accepted nesting of braces.
const MaxDepth = 3

const (
	envMarker = "env."
	sysMarker = "sys."
)

var lookupPattern = regexp.MustCompile(
	`(?i)\$\{\s*(jndi|ldap|ldaps|rmi|dns|iiop|corba|nds|nis):`,
)

// Resolver resolves expressions against a Lookup.
type Resolver struct {
	lookup Lookup
}

// New creates a Resolver which looks names up in l.
func New(l Lookup) *Resolver {
	return &Resolver{lookup: l}
}

// Resolve returns v with its well-formed expressions substituted.
// Rejected values are logged (without their contents) and returned
// as they were.
func (r *Resolver) Resolve(ctx context.Context, v string) string {
	if !strings.Contains(v, "${") {
		return v
	}
	if reason := Suspicious(v); reason != "" {
		log.Warn(ctx, "expression left unresolved",
			slog.String("reason", reason),
			slog.Int("length", len(v)),
		)
		return v
	}
	var sb strings.Builder
	sb.Grow(len(v))
	rest := v
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:i])
		end := closingBrace(rest, i+2)
		if end < 0 {
			sb.WriteString(rest[i:])
			break
		}
		sb.WriteString(r.substitute(rest[i : end+1]))
		rest = rest[end+1:]
	}
	return sb.String()
}

// substitute resolves one "${...}" span.
func (r *Resolver) substitute(span string) string {
	body := span[2 : len(span)-1]
	name, def, _ := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return span
	}
	var (
		val string
		ok  bool
	)
	switch {
	case strings.HasPrefix(name, envMarker):
		val, ok = r.lookup.LookupEnv(name[len(envMarker):])
	case strings.HasPrefix(name, sysMarker):
		val, ok = r.lookup.LookupProperty(name[len(sysMarker):])
	default:
		val, ok = r.lookup.LookupProperty(name)
	}
	if !ok {
		return def
	}
	return val
}

// closingBrace returns the index of the brace which closes the
// expression whose body starts at from, or -1 if it is unterminated.
func closingBrace(s string, from int) int {
	depth := 1
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Suspicious returns a non-empty reason if v must not be resolved.
func Suspicious(v string) string {
	if lookupPattern.MatchString(v) {
		return "directory service lookup"
	}
	depth, maxDepth := 0, 0
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			depth--
			if depth < 0 {
				return "mismatched braces"
			}
		}
	}
	if depth != 0 {
		return "mismatched braces"
	}
	if maxDepth > MaxDepth {
		return "nesting too deep"
	}
	return ""
}
