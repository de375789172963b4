// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package gin adapts the gin-gonic web framework for serving the
// deployment units REST APIs. The resource packages, named like
// unitsrs, are registered by the routes package.
package gin

import (
	"log/slog"

	"github.com/FabienMht/ginslog"
	"github.com/gin-gonic/gin"
)

// HandlerFunc is a gin-gonic middleware or request handler.
type HandlerFunc = gin.HandlerFunc

// Engine is the gin-gonic router which also implements http.Handler.
type Engine = gin.Engine

// New instantiates a gin-gonic engine which runs the given middlewares
// for all requests.
func New(middlewares ...HandlerFunc) *Engine {
	e := gin.New()
	e.Use(middlewares...)
	return e
}

// Logger returns a middleware which logs each request using l.
// The default slog logger is used when l is nil.
func Logger(l *slog.Logger) HandlerFunc {
	if l == nil {
		l = slog.Default()
	}
	return ginslog.New(l)
}

// Recovery returns a middleware which converts panics to 500 responses.
func Recovery() HandlerFunc {
	return gin.Recovery()
}

// SetMode switches gin-gonic between its debug, release, and test
// modes. It is not safe to call it while requests are being served.
func SetMode(mode string) {
	gin.SetMode(mode)
}

// Release and Test are the accepted SetMode arguments besides debug.
const (
	Release = gin.ReleaseMode
	Test    = gin.TestMode
)
