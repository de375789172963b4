// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package serdser provides the serialization and deserialization
// helpers which are shared by the resource packages.
package serdser

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/momeni/migrun/pkg/core/cerr"
)

// Bind deserializes the request into req using b and validates it.
// On failure, it writes a 400 response (or 500 if req cannot be
// validated at all) and returns false.
func Bind(c *gin.Context, req any, b binding.Binding) bool {
	switch err := c.ShouldBindWith(req, b).(type) {
	case *validator.InvalidValidationError:
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": err.Error(),
		})
	case validator.ValidationErrors:
		var nameToErrs map[string][]string
		for _, ferr := range err {
			AddErr(&nameToErrs, ferr.Field(), ferr.Error())
		}
		c.JSON(http.StatusBadRequest, nameToErrs)
	default:
		if err == nil {
			return true
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": err.Error(),
		})
	}
	return false
}

// AddErr appends msgs to the name entry of errs, allocating errs if
// it is nil.
func AddErr(errs *map[string][]string, name string, msgs ...string) {
	if (*errs) == nil {
		*errs = make(map[string][]string)
	}
	(*errs)[name] = append((*errs)[name], msgs...)
}

// SerErr serializes err. A *cerr.Error selects the status code by its
// kind and reports the kind and unit alongside the message. Other
// errors are reported as 500.
func SerErr(c *gin.Context, err error) {
	var ce *cerr.Error
	if errors.As(err, &ce) {
		body := gin.H{
			"kind":   ce.Kind.String(),
			"detail": ce.Error(),
		}
		if ce.Unit != "" {
			body["unit"] = ce.Unit
		}
		c.JSON(ce.HTTPStatusCode(), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"detail": err.Error(),
	})
}
