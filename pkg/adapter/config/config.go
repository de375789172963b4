// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config is an adapter which loads the configuration files of
// a migration host. The shared-base configuration is a versioned YAML
// file which applies to all deployment units, while each unit may carry
// its own flat properties file.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/momeni/migrun/pkg/adapter/config/vers"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/usecase/configuc"
)

// These constants define the major, minor, and patch version of the
// shared-base configuration files which are supported by Shared.
const (
	Major = 1
	Minor = 0
	Patch = 0
)

// Version is the semantic version of the Shared struct.
var Version = model.SemVer{Major, Minor, Patch}

// Shared is the format of the shared-base configuration file.
type Shared struct {
	Vers       vers.Config `yaml:",inline"`
	Migrations Migrations  `yaml:"migrations"`
}

// Migrations holds the shared-base migration settings. Unset fields
// leave the corresponding defaults in place.
type Migrations struct {
	Enabled       *bool  `yaml:"enabled"`
	DefaultTarget string `yaml:"default-target"`
	AutoDiscovery struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"auto-discovery"`
	Locations         string `yaml:"locations"`
	Table             string `yaml:"table"`
	BaselineOnMigrate *bool  `yaml:"baseline-on-migrate"`
	CleanDisabled     *bool  `yaml:"clean-disabled"`
	ValidateOnMigrate *bool  `yaml:"validate-on-migrate"`

	// Properties holds further settings in either key namespace.
	Properties map[string]any `yaml:"properties"`
}

// LoadShared loads, validates, and converts the shared-base
// configuration file at path.
func LoadShared(path string) (*configuc.SharedBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading shared config file: %w", err)
	}
	sb, err := ParseShared(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return sb, nil
}

// ParseShared is like LoadShared but decodes data directly.
func ParseShared(data []byte) (*configuc.SharedBase, error) {
	v, err := vers.Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading versions: %w", err)
	}
	if err = v.Validate(Version); err != nil {
		return nil, err
	}
	s := &Shared{}
	if err = yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decoding migrations: %w", err)
	}
	kv, err := s.Migrations.canonical()
	if err != nil {
		return nil, err
	}
	return configuc.NewSharedBase(kv, strings.TrimSpace(s.Migrations.DefaultTarget)), nil
}

// canonical converts m into canonical keys. The explicit attributes
// take precedence over the same keys in the properties table.
func (m *Migrations) canonical() (map[string]string, error) {
	kv := make(map[string]string, len(m.Properties)+8)
	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		canonical, ok := props.Normalize(k)
		if !ok {
			return nil, fmt.Errorf(
				"property %q is not in the %s or %s namespace",
				k, props.Prefix, props.ShortPrefix,
			)
		}
		v, err := cast.ToStringE(m.Properties[k])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		kv[canonical] = v // canonical keys sort last and win
	}
	setBool(kv, props.KeyEnabled, m.Enabled)
	setBool(kv, props.KeyAutoDiscoveryEnabled, m.AutoDiscovery.Enabled)
	setBool(kv, props.KeyBaselineOnMigrate, m.BaselineOnMigrate)
	setBool(kv, props.KeyCleanDisabled, m.CleanDisabled)
	setBool(kv, props.KeyValidateOnMigrate, m.ValidateOnMigrate)
	setString(kv, props.KeyLocations, m.Locations)
	setString(kv, props.KeyTable, m.Table)
	return kv, nil
}

func setBool(kv map[string]string, key string, b *bool) {
	if b != nil {
		kv[key] = cast.ToString(*b)
	}
}

func setString(kv map[string]string, key, s string) {
	if s = strings.TrimSpace(s); s != "" {
		kv[key] = s
	}
}
