// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package vers parses the versions section of the shared-base
// configuration files. The version is known before the remaining
// settings are decoded, so the format of those settings can be chosen
// and verified while loading them.
package vers

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/momeni/migrun/pkg/core/cerr"
	"github.com/momeni/migrun/pkg/core/model"
)

// Config contains the version of a configuration file. It is embedded
// with the inline format in the versioned configuration structs.
type Config struct {
	Versions Versions `yaml:"versions"`
}

// Versions holds the configuration file format version.
type Versions struct {
	Config model.SemVer `yaml:"config"`
}

// Load deserializes the data byte slice into a new instance of Config.
// Data may contain extra fields which are ignored.
func Load(data []byte) (*Config, error) {
	vc := &Config{}
	if err := yaml.Unmarshal(data, vc); err != nil {
		return nil, err
	}
	return vc, nil
}

// Validate returns an error if the version of vc is not supported by
// the given version. That is, the major versions must match and the
// minor version of vc must not be newer than the given one.
func (vc *Config) Validate(supported model.SemVer) error {
	v := vc.Versions.Config
	if v.IsZero() {
		return fmt.Errorf("missing versions.config")
	}
	if !supported.Supports(v) {
		return fmt.Errorf("unsupported config version: %w",
			&cerr.MismatchingSemVerError{supported, v},
		)
	}
	return nil
}
