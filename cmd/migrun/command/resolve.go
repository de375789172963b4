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

	"github.com/momeni/migrun/pkg/core/mask"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/vendor"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve unit-path",
	Short: "Print the resolved configuration of a deployment unit",
	Long: `Print the resolved configuration of a deployment unit as JSON.
The unit is not connected to, so its vendor is detected from the
connection target text. Passwords, secrets, and the credentials of the
connection target are masked.`,
	Args: cobra.ExactArgs(1),
	RunE: resolve,
}

var unitName string

type resolution struct {
	Unit       string            `json:"unit"`
	Target     string            `json:"target"`
	Origin     string            `json:"origin"`
	Vendor     string            `json:"vendor,omitempty"`
	Properties map[string]string `json:"properties"`
}

func resolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	h, err := newHost(cfg)
	if err != nil {
		return err
	}
	u, rr, err := h.unit(ctx, args[0], unitName)
	if err != nil {
		return err
	}
	v, _ := vendor.Detect(rr.Target)
	rc := h.resolved(ctx, u.Name, rr, v)
	out, err := json.MarshalIndent(resolution{
		Unit:       u.Name,
		Target:     mask.Target(rr.Target),
		Origin:     rr.Origin.String(),
		Vendor:     string(v),
		Properties: props.Masked(rc),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling resolution: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	resolveCmd.Flags().StringVar(
		&unitName, "unit", "", "unit name instead of the path base name",
	)
	rootCmd.AddCommand(resolveCmd)
}
