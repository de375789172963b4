// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is the major.minor.patch version of a configuration file
// format. A newer major version changes the format incompatibly, a
// newer minor version only adds settings, and the patch version never
// changes what a reader must understand.
type SemVer [3]uint

// UnmarshalText parses one to three dot-separated non-negative numbers
// into sv, so "1" and "1.2" stand for "1.0.0" and "1.2.0". In case of
// errors, sv is left unchanged.
func (sv *SemVer) UnmarshalText(text []byte) error {
	p := strings.Split(strings.TrimSpace(string(text)), ".")
	if len(p) > 3 {
		return fmt.Errorf("the %q has wrong number of components", text)
	}
	var v SemVer
	for i, s := range p {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("the %q component is not a number", s)
		}
		v[i] = uint(n)
	}
	*sv = v
	return nil
}

// MarshalText serializes sv in its major.minor.patch form.
func (sv SemVer) MarshalText() ([]byte, error) {
	return []byte(sv.String()), nil
}

// String formats sv as major.minor.patch.
func (sv SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", sv[0], sv[1], sv[2])
}

// IsZero reports whether sv is 0.0.0, which is never a released
// version and so marks a missing version.
func (sv SemVer) IsZero() bool {
	return sv == SemVer{}
}

// Supports reports whether a reader of the sv format can read files
// of the other format: their majors must match and other must not be
// newer in its minor component.
func (sv SemVer) Supports(other SemVer) bool {
	return sv[0] == other[0] && other[1] <= sv[1]
}
