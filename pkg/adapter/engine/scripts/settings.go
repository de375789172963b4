// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
)

// Settings of the scripts engine, as read from a resolved
// configuration.
type Settings struct {
	Locations     []string `validate:"required,min=1,dive,required"`
	CheckLocation bool
	Table         string `validate:"required,max=128,identifier"`

	BaselineOnMigrate   bool
	BaselineVersion     string `validate:"required,version"`
	BaselineDescription string `validate:"max=200"`

	ValidateOnMigrate bool
	ValidateNaming    bool
	OutOfOrder        bool
	Target            string   `validate:"required,target"`
	IgnorePatterns    []string `validate:"dive,ignorepattern"`
	Group             bool
	InstalledBy       string `validate:"max=100"`
	Encoding          string `validate:"oneof=UTF-8 utf-8 UTF8 utf8"`

	Naming Naming

	PlaceholderReplacement bool
	PlaceholderPrefix      string `validate:"required_if=PlaceholderReplacement true"`
	PlaceholderSuffix      string `validate:"required_if=PlaceholderReplacement true"`
	Placeholders           map[string]string

	Callbacks            []string
	Resolvers            []string
	SkipDefaultCallbacks bool
	SkipDefaultResolvers bool
}

var (
	validate = newValidator()

	identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	patternRegexp    = regexp.MustCompile(
		`^(\*|repeatable|versioned):(\*|missing|ignored|future|pending|failed)$`,
	)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRegexp.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("version", func(fl validator.FieldLevel) bool {
		_, err := ParseVersion(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("target", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == model.LatestVersion || s == "current" {
			return true
		}
		_, err := ParseVersion(s)
		return err == nil
	}))
	must(v.RegisterValidation("ignorepattern", func(fl validator.FieldLevel) bool {
		return patternRegexp.MatchString(strings.ToLower(fl.Field().String()))
	}))
	return v
}

// SettingsFrom reads Settings from a resolved configuration and
// validates them.
func SettingsFrom(rc model.ResolvedConfiguration) (Settings, error) {
	r := reader{rc: rc}
	s := Settings{
		Locations:           props.List(rc, props.KeyLocations),
		CheckLocation:       r.bool(props.KeyCheckLocation),
		Table:               strings.TrimSpace(rc[props.KeyTable]),
		BaselineOnMigrate:   r.bool(props.KeyBaselineOnMigrate),
		BaselineVersion:     strings.TrimSpace(rc[props.KeyBaselineVersion]),
		BaselineDescription: rc[props.KeyBaselineDescription],
		ValidateOnMigrate:   r.bool(props.KeyValidateOnMigrate),
		ValidateNaming:      r.bool(props.KeyValidateMigrationNaming),
		OutOfOrder:          r.bool(props.KeyOutOfOrder),
		Target:              strings.TrimSpace(rc[props.KeyTarget]),
		IgnorePatterns:      props.List(rc, props.KeyIgnoreMigrationPatterns),
		Group:               r.bool(props.KeyGroup),
		InstalledBy:         strings.TrimSpace(rc[props.KeyInstalledBy]),
		Encoding:            strings.TrimSpace(rc[props.KeyEncoding]),
		Naming: Naming{
			Prefix:           rc[props.KeySQLMigrationPrefix],
			RepeatablePrefix: rc[props.KeyRepeatableSQLMigrationPrefix],
			Separator:        rc[props.KeySQLMigrationSeparator],
			Suffixes:         props.List(rc, props.KeySQLMigrationSuffixes),
		},
		PlaceholderReplacement: r.bool(props.KeyPlaceholderReplacement),
		PlaceholderPrefix:      rc[props.KeyPlaceholderPrefix],
		PlaceholderSuffix:      rc[props.KeyPlaceholderSuffix],
		Placeholders:           rc.WithPrefix(props.PlaceholdersPrefix),
		Callbacks:              props.List(rc, props.KeyCallbacks),
		Resolvers:              props.List(rc, props.KeyResolvers),
		SkipDefaultCallbacks:   r.bool(props.KeySkipDefaultCallbacks),
		SkipDefaultResolvers:   r.bool(props.KeySkipDefaultResolvers),
	}
	if s.Target == "" {
		s.Target = model.LatestVersion
	}
	if r.err != nil {
		return Settings{}, r.err
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, settingsError(err)
	}
	return s, nil
}

// reader converts resolved strings, remembering the first failure.
type reader struct {
	rc  model.ResolvedConfiguration
	err error
}

func (r *reader) bool(key string) bool {
	v := strings.TrimSpace(r.rc[key])
	if v == "" {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return b
}

func settingsError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf(
			"%s fails the %q rule", fe.Namespace(), fe.Tag(),
		))
	}
	return fmt.Errorf("invalid engine settings: %s", strings.Join(msgs, "; "))
}
