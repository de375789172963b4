// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/momeni/migrun/pkg/core/vendor"
)

var vendorCmd = &cobra.Command{
	Use:   "vendor target",
	Short: "Print the vendor tag of a connection target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := vendor.Detect(args[0])
		if !ok {
			return fmt.Errorf("unknown vendor")
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vendorCmd)
}
