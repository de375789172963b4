// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package command provides the root and sub-commands of migrun.
// Commands are organized using the cobra library and their global
// flags may also be given as MIGRUN_* environment variables, which
// are read with viper.
//
//	./migrun resolve [--shared shared.yaml] [-D k=v]... unit-path
//	./migrun vendor jdbc:postgresql://db:5432/orders
//	./migrun migrate [--scripts-root dir] unit-path...
//	./migrun serve [--listen :8080] unit-path...
//
// A unit-path is either a properties file or a unit directory holding
// META-INF/flyway.properties (or WEB-INF/classes/META-INF/...).
package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momeni/migrun/pkg/core/log"
)

// settings holds the global flags after applying MIGRUN_* variables.
type settings struct {
	Shared      string
	LogLevel    slog.Level
	LogFormat   string
	Listen      string
	ScriptsRoot string
	SysProps    map[string]string
}

var (
	cfg      settings
	sysProps map[string]string
)

var rootCmd = &cobra.Command{
	Use:   "migrun",
	Short: "Run the database migrations of deployment units",
	Long: `Run the database migrations of deployment units.
Each deployment unit carries its own migration properties, which are
overlaid on a shared base configuration, the system properties
(-D key=value), the SPRING_FLYWAY_* and FLYWAY_* environment
variables, and the built-in defaults. The connection target of a unit
is taken from its own properties, the shared default target, or the
DATABASE_URL variable when auto-discovery is enabled.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the rootCmd which in turn parses CLI arguments and
// flags and runs the most specific cobra command. Any error makes
// the process exit with a non-zero status code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("shared", "", "shared base configuration file path")
	pf.String("log-level", "info", "debug, info, warn, or error")
	pf.String("log-format", log.FormatText, "text or json")
	pf.String("listen", ":8080", "REST API listening address of serve")
	pf.String("scripts-root", ".", "directory of classpath: locations")
	pf.StringToStringVarP(&sysProps, "define", "D", nil,
		"system property as key=value (repeatable)",
	)
}

// loadSettings fills cfg from the persistent flags. A flag which was
// not given on the command line may be set by its MIGRUN_* variable,
// e.g., MIGRUN_SCRIPTS_ROOT for --scripts-root.
func loadSettings(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	v.SetEnvPrefix("MIGRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	s := settings{
		Shared:      v.GetString("shared"),
		LogFormat:   v.GetString("log-format"),
		Listen:      v.GetString("listen"),
		ScriptsRoot: v.GetString("scripts-root"),
		SysProps:    sysProps,
	}
	if err := s.LogLevel.UnmarshalText(
		[]byte(v.GetString("log-level")),
	); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if err := setupLogging(cmd.ErrOrStderr(), s); err != nil {
		return err
	}
	cfg = s
	return nil
}

func setupLogging(w io.Writer, s settings) error {
	h, err := log.NewHandler(w, s.LogFormat, s.LogLevel)
	if err != nil {
		return err
	}
	log.SetDefault(h)
	return nil
}
