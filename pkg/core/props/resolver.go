// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package props

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/mask"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/sanitize"
)

// Resolver merges property sources into a ResolvedConfiguration.
// The zero value is not usable; use NewResolver.
type Resolver struct {
	expr   *expr.Resolver
	vendor model.Vendor
}

// NewResolver creates a Resolver which resolves expressions against l
// and substitutes v for the VendorToken. An empty v leaves the token
// in place.
func NewResolver(l expr.Lookup, v model.Vendor) *Resolver {
	return &Resolver{expr: expr.New(l), vendor: v}
}

type entry struct {
	key, value string
}

// Resolve starts from Defaults and overlays sources in the given order,
// so later sources take precedence over earlier ones. Only keys of the
// two namespaces are considered. Each value is sanitized, its
// expressions are resolved, and the VendorToken is substituted.
//
// A source whose resolution fails is logged and skipped as a whole,
// while the remaining sources are still applied. Inside one source,
// keys are visited in sorted order, so a canonical key beats the short
// form of the same setting. Resolving the same sources twice yields
// identical configurations.
func (r *Resolver) Resolve(
	ctx context.Context, sources ...model.PropertySource,
) model.ResolvedConfiguration {
	rc := Defaults()
	for _, src := range sources {
		entries, err := r.resolveSource(ctx, src)
		if err != nil {
			log.Error(ctx, "ignoring property source",
				slog.String("source", src.Name),
				slog.String("origin", src.Origin.String()),
				log.Err("err", err),
			)
			continue
		}
		for _, e := range entries {
			rc[e.key] = e.value
		}
	}
	return rc
}

func (r *Resolver) resolveSource(
	ctx context.Context, src model.PropertySource,
) (entries []entry, err error) {
	defer func() {
		if p := recover(); p != nil {
			entries, err = nil, fmt.Errorf("resolving source: %v", p)
		}
	}()
	entries = make([]entry, 0, src.Len())
	for _, raw := range src.Keys() {
		key, ok := Normalize(raw)
		if !ok {
			continue
		}
		if !IsValidKey(raw) {
			log.Warn(ctx, "skipping invalid key",
				slog.String("source", src.Name),
				slog.Int("length", len(raw)),
			)
			continue
		}
		v, _ := src.Get(raw)
		if !utf8.ValidString(v) {
			return nil, fmt.Errorf("value of %q is not valid UTF-8", raw)
		}
		entries = append(entries, entry{key, r.value(ctx, key, v)})
	}
	return entries, nil
}

// value sanitizes, resolves, and vendor-substitutes v.
func (r *Resolver) value(ctx context.Context, key, v string) string {
	s := sanitize.Value(v)
	switch {
	case mask.IsSensitive(key):
		log.Debug(ctx, "sanitized sensitive value",
			slog.String("key", key), log.Masked("value", s),
		)
	case s != v:
		log.Warn(ctx, "sanitized value",
			slog.String("key", key), slog.String("value", s),
		)
	}
	s = r.expr.Resolve(ctx, s)
	return SubstituteVendor(s, r.vendor)
}

// SubstituteVendor replaces VendorToken in s by v. An empty v leaves s
// unchanged.
func SubstituteVendor(s string, v model.Vendor) string {
	if v == "" || !strings.Contains(s, VendorToken) {
		return s
	}
	return strings.ReplaceAll(s, VendorToken, string(v))
}

// Bool reads key from rc as a boolean. Missing or malformed values
// yield dflt.
func Bool(rc model.ResolvedConfiguration, key string, dflt bool) bool {
	v, ok := rc[key]
	if !ok || strings.TrimSpace(v) == "" {
		return dflt
	}
	b, err := cast.ToBoolE(strings.TrimSpace(v))
	if err != nil {
		return dflt
	}
	return b
}

// Enabled reports whether the enabled flag of rc resolves to true.
func Enabled(rc model.ResolvedConfiguration) bool {
	return Bool(rc, KeyEnabled, false)
}

// List splits the comma separated value of key, trimming blanks and
// dropping empty items.
func List(rc model.ResolvedConfiguration, key string) []string {
	v := rc[key]
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	items := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// Masked returns a copy of rc whose sensitive values and connection
// target are masked, suitable for printing.
func Masked(rc model.ResolvedConfiguration) model.ResolvedConfiguration {
	cp := rc.Clone()
	for k, v := range cp {
		switch {
		case k == KeyURL:
			cp[k] = mask.Target(v)
		case mask.IsSensitive(k):
			cp[k] = mask.Value(k, v)
		}
	}
	return cp
}
