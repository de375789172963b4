// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package unitsrs

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/momeni/migrun/pkg/adapter/restful/gin/serdser"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

// ListUnitsReq holds the query parameters of the units list.
type ListUnitsReq struct {
	State string `form:"state" binding:"omitempty,oneof=idle starting running stopping stopped failed"`
}

// DserListUnitsReq deserializes and validates the query parameters of
// the units list. On failure, the error response is already written.
func DserListUnitsReq(c *gin.Context) (*ListUnitsReq, bool) {
	req := &ListUnitsReq{}
	if !serdser.Bind(c, req, binding.Query) {
		return nil, false
	}
	return req, true
}

// UnitSummary is the serialized form of one item of the units list.
type UnitSummary struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	InProgress bool   `json:"migrationInProgress"`
}

// UnitDetail is the serialized form of a single unit.
type UnitDetail struct {
	UnitSummary
	Vendor        string                  `json:"vendor,omitempty"`
	Outcome       *model.MigrationOutcome `json:"outcome,omitempty"`
	Configuration map[string]string       `json:"configuration,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// SerUnitSummary captures the current state of ctrl.
func SerUnitSummary(ctrl *migrationuc.Controller) UnitSummary {
	return UnitSummary{
		Name:       ctrl.Unit(),
		State:      ctrl.State().String(),
		InProgress: ctrl.IsMigrationInProgress(),
	}
}

// SerUnitDetail captures the current state of ctrl including its
// resolved configuration with sensitive values masked.
func SerUnitDetail(ctrl *migrationuc.Controller) UnitDetail {
	d := UnitDetail{
		UnitSummary: SerUnitSummary(ctrl),
		Vendor:      string(ctrl.Vendor()),
		Outcome:     ctrl.Outcome(),
	}
	if cfg := ctrl.Configuration(); cfg != nil {
		d.Configuration = props.Masked(cfg)
	}
	if err := ctrl.Err(); err != nil {
		d.Error = err.Error()
	}
	return d
}
