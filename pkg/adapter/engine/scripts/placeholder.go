// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"fmt"
	"strings"
)

// Built-in placeholders which are always available.
const (
	PlaceholderDatabase  = "flyway:database"
	PlaceholderUser      = "flyway:user"
	PlaceholderTable     = "flyway:table"
	PlaceholderTimestamp = "flyway:timestamp"
	PlaceholderFilename  = "flyway:filename"
)

// Replacer substitutes placeholders like ${name} in script bodies.
type Replacer struct {
	prefix, suffix string
	values         map[string]string
}

// NewReplacer returns a Replacer for the placeholders table of s.
// Placeholder names are case-insensitive.
func NewReplacer(s Settings) *Replacer {
	values := make(map[string]string, len(s.Placeholders))
	for k, v := range s.Placeholders {
		values[strings.ToLower(k)] = v
	}
	return &Replacer{
		prefix: s.PlaceholderPrefix,
		suffix: s.PlaceholderSuffix,
		values: values,
	}
}

// With returns a copy of r which also knows the given built-ins.
func (r *Replacer) With(kv ...string) *Replacer {
	cp := &Replacer{
		prefix: r.prefix,
		suffix: r.suffix,
		values: make(map[string]string, len(r.values)+len(kv)/2),
	}
	for k, v := range r.values {
		cp.values[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		cp.values[strings.ToLower(kv[i])] = kv[i+1]
	}
	return cp
}

// Replace substitutes every placeholder of body. An unknown
// placeholder is an error, naming the script.
func (r *Replacer) Replace(script, body string) (string, error) {
	var sb strings.Builder
	rest := body
	for {
		i := strings.Index(rest, r.prefix)
		if i < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		j := strings.Index(rest[i+len(r.prefix):], r.suffix)
		if j < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		name := rest[i+len(r.prefix) : i+len(r.prefix)+j]
		v, ok := r.values[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return "", fmt.Errorf(
				"no value provided for placeholder %s%s%s in %s",
				r.prefix, name, r.suffix, script,
			)
		}
		sb.WriteString(rest[:i])
		sb.WriteString(v)
		rest = rest[i+len(r.prefix)+j+len(r.suffix):]
	}
}
