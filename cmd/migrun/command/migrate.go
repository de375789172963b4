// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate unit-path...",
	Short: "Run the pending migrations of deployment units",
	Long: `Run the pending migrations of deployment units, one unit at a
time. Each unit is started, which connects to its target, detects its
vendor, and runs its migration engine. Its outcome is printed as JSON
and the unit is stopped again. The first failing unit stops the whole
command with a non-zero exit status; disabled units are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: migrate,
}

func migrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	h, err := newHost(cfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, path := range args {
		c, err := h.controller(ctx, path)
		if err != nil {
			return fmt.Errorf("unit %s: %w", path, err)
		}
		err = c.Start(ctx)
		o := c.Outcome()
		c.Stop(ctx)
		if o != nil {
			if err := enc.Encode(o); err != nil {
				return fmt.Errorf("printing outcome: %w", err)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
