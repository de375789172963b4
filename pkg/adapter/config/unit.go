// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"

	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
)

// UnitFiles lists the per-unit configuration files which are looked up
// inside a unit directory, in order. The first existing one is used.
var UnitFiles = []string{
	"META-INF/flyway.properties",
	"WEB-INF/classes/META-INF/flyway.properties",
}

// Unit is the per-unit configuration of one deployment unit.
type Unit struct {
	Name   string
	File   string // empty if the unit carries no configuration file
	Source model.PropertySource
}

// LoadUnit loads the per-unit configuration from path, which may be a
// properties file or a unit directory. The unit is named after the
// base name of path (without its extension) unless name is given.
// Only keys of the migration namespaces are kept. Expansion of ${...}
// references is left to the expression resolver.
func LoadUnit(path, name string) (*Unit, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", path, err)
	}
	if name == "" {
		name = unitName(path)
	}
	u := &Unit{Name: name}
	file := path
	if fi.IsDir() {
		file, err = lookupUnitFile(path)
		if err != nil {
			return nil, err
		}
	}
	kv := map[string]string{}
	if file != "" {
		kv, err = loadProperties(file)
		if err != nil {
			return nil, err
		}
		u.File = file
	}
	u.Source = model.NewPropertySource(name, model.OriginPerUnit, kv)
	return u, nil
}

func unitName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func lookupUnitFile(dir string) (string, error) {
	for _, f := range UnitFiles {
		p := filepath.Join(dir, filepath.FromSlash(f))
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("unit file %s: %w", p, err)
		}
	}
	return "", nil
}

func loadProperties(file string) (map[string]string, error) {
	l := &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
	p, err := l.LoadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", file, err)
	}
	kv := make(map[string]string, p.Len())
	for k, v := range p.Map() {
		if _, ok := props.Normalize(k); ok {
			kv[k] = v
		}
	}
	return kv, nil
}
