// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package expr

import (
	"os"
	"strings"
)

// Lookup finds the values of environment variables and process
// properties by name.
type Lookup interface {
	LookupEnv(name string) (string, bool)
	LookupProperty(name string) (string, bool)
}

// Process is a captured, immutable view of the process environment and
// its system properties. It implements the Lookup interface.
type Process struct {
	env   map[string]string
	props map[string]string
}

var _ Lookup = (*Process)(nil)

// NewProcess captures environ (as returned by os.Environ, that is
// KEY=VALUE strings) and a copy of the props system properties.
// Malformed environ entries are ignored.
func NewProcess(environ []string, props map[string]string) *Process {
	p := &Process{
		env:   make(map[string]string, len(environ)),
		props: make(map[string]string, len(props)),
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		p.env[k] = v
	}
	for k, v := range props {
		p.props[k] = v
	}
	return p
}

// OSProcess captures the current environment of this process alongside
// the given system properties.
func OSProcess(props map[string]string) *Process {
	return NewProcess(os.Environ(), props)
}

// LookupEnv returns the value of the name environment variable.
func (p *Process) LookupEnv(name string) (string, bool) {
	v, ok := p.env[name]
	return v, ok
}

// LookupProperty returns the value of the name system property.
func (p *Process) LookupProperty(name string) (string, bool) {
	v, ok := p.props[name]
	return v, ok
}

// Env returns a copy of the captured environment.
func (p *Process) Env() map[string]string {
	return copyMap(p.env)
}

// Properties returns a copy of the captured system properties.
func (p *Process) Properties() map[string]string {
	return copyMap(p.props)
}

func copyMap(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
