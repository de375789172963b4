// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package configuc

import "github.com/momeni/migrun/pkg/core/model"

// SharedBase is an immutable snapshot of the configuration which is
// shared by all deployment units of a host. It is created once while
// the host boots and is passed explicitly to every Builder.
type SharedBase struct {
	src           model.PropertySource
	defaultTarget string
}

// NewSharedBase captures a copy of props (keys in either namespace)
// and the defaultTarget connection target, which may be empty.
func NewSharedBase(props map[string]string, defaultTarget string) *SharedBase {
	return &SharedBase{
		src: model.NewPropertySource(
			"shared-base", model.OriginSharedBase, props,
		),
		defaultTarget: defaultTarget,
	}
}

// Source returns the shared-base properties.
func (sb *SharedBase) Source() model.PropertySource {
	return sb.src
}

// DefaultTarget returns the default connection target of all units.
func (sb *SharedBase) DefaultTarget() string {
	return sb.defaultTarget
}
