// SPDX-License-Identifier: Apache-2.0
//
// Copyright 2025 Jeremy Hahn
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging defaults, the config
file, environment variables and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Printf("config file: %s\n", file)
		}
		fmt.Printf("relay:   %s\n", viper.GetString("relay"))
		fmt.Printf("codec:   %s\n", viper.GetString("codec"))
		fmt.Printf("user:    %d\n", viper.GetInt64("user"))
		fmt.Printf("verbose: %t\n", viper.GetBool("verbose"))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
