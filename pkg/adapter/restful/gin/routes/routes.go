// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package routes contains all resource packages and facilitates
// their registration on a gin-gonic engine.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momeni/migrun/pkg/adapter/restful/gin/unitsrs"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

// BasePath is the prefix of all versioned REST APIs.
const BasePath = "/api/migrun/v1"

// Register registers the units resource over the r registry below
// BasePath of the e engine. If g is not nil, its metrics are also
// served in the prometheus exposition format at /metrics.
func Register(
	e *gin.Engine, r *migrationuc.Registry, g prometheus.Gatherer,
) {
	api := e.Group(BasePath)
	unitsrs.Register(api, r)
	if g != nil {
		e.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(g, promhttp.HandlerOpts{}),
		))
	}
}
