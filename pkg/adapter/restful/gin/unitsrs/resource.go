// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package unitsrs realizes the deployment units resource, exposing the
// state of the published migration controllers and allowing operators
// to re-run the migrations of a running unit.
package unitsrs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/momeni/migrun/pkg/adapter/restful/gin/serdser"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

type resource struct {
	registry *migrationuc.Registry
}

// Register instantiates a resource adapting the units registry with
// the relevant REST APIs including:
//  1. GET request to units (with an optional state query parameter)
//     in order to list the published units and their states.
//  2. GET request to units/:unit
//     in order to fetch the state, vendor, last outcome, and masked
//     resolved configuration of one unit.
//  3. POST request to units/:unit/migrate
//     in order to run the migrations of a running unit once more.
func Register(r *gin.RouterGroup, registry *migrationuc.Registry) {
	rs := &resource{registry: registry}
	r.GET("units", rs.ListUnits)
	r.GET("units/:unit", rs.FetchUnit)
	r.POST("units/:unit/migrate", rs.Migrate)
}

func (rs *resource) ListUnits(c *gin.Context) {
	req, ok := DserListUnitsReq(c)
	if !ok {
		return
	}
	names := rs.registry.Units()
	units := make([]UnitSummary, 0, len(names))
	for _, n := range names {
		ctrl, ok := rs.registry.Get(n)
		if !ok {
			continue // removed concurrently
		}
		u := SerUnitSummary(ctrl)
		if req.State != "" && req.State != u.State {
			continue
		}
		units = append(units, u)
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

func (rs *resource) FetchUnit(c *gin.Context) {
	ctrl, ok := rs.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SerUnitDetail(ctrl))
}

func (rs *resource) Migrate(c *gin.Context) {
	ctrl, ok := rs.controller(c)
	if !ok {
		return
	}
	o, err := ctrl.Migrate(c)
	if err != nil {
		serdser.SerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (rs *resource) controller(c *gin.Context) (*migrationuc.Controller, bool) {
	unit := c.Param("unit")
	ctrl, ok := rs.registry.Get(unit)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "unit is not published",
			"unit":   unit,
		})
		return nil, false
	}
	return ctrl, true
}
