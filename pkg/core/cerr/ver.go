// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cerr

import (
	"fmt"

	"github.com/momeni/migrun/pkg/core/model"
)

// MismatchingSemVerError reports a configuration file whose format
// version is not supported. The first element is the supported version
// and the second one is the version found in the file.
type MismatchingSemVerError [2]model.SemVer

func (msve *MismatchingSemVerError) Error() string {
	return fmt.Sprintf(
		"version %s is not readable by the supported version %s",
		msve[1], msve[0],
	)
}
