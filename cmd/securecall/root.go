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
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information - set via ldflags at build time
var (
	// Version is the semantic version (from VERSION file)
	Version = "dev"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

var (
	cfgFile string
	verbose bool
)

// Global flags
var (
	relayAddr string
	codec     string
	userID    int64
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "securecall",
	Short: "End-to-end encrypted call negotiation tool",
	Long: `securecall negotiates end-to-end encrypted calls against a signaling relay.

The tool drives the call key exchange (commitment, reveal, fingerprint
verification) over a WebSocket relay and prints every observable call state
transition, including the four-emoji key verification sequence.

Use 'securecall call' to place an outgoing call.
Use 'securecall answer' to wait for and answer an incoming call.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env bootstrap before viper reads the environment.
		_ = godotenv.Load()

		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME/.securecall")
			viper.AddConfigPath(".")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}

		if err := viper.ReadInConfig(); err == nil && verbose {
			fmt.Printf("Using config file: %s\n", viper.ConfigFileUsed())
		}

		viper.SetEnvPrefix("SECURECALL")
		viper.AutomaticEnv()
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version number and build information of securecall.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("securecall version %s\n", Version)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build date: %s\n", BuildTime)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// newLogger builds the console logger shared by all commands.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.securecall/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&relayAddr, "relay", "ws://localhost:8090/signaling", "signaling relay address")
	rootCmd.PersistentFlags().StringVar(&codec, "codec", "json", "serialization format (json, msgpack, cbor, yaml, bson, toml)")
	rootCmd.PersistentFlags().Int64Var(&userID, "user", 0, "local user identifier")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("relay", rootCmd.PersistentFlags().Lookup("relay")); err != nil {
		panic(fmt.Sprintf("failed to bind relay flag: %v", err))
	}
	if err := viper.BindPFlag("codec", rootCmd.PersistentFlags().Lookup("codec")); err != nil {
		panic(fmt.Sprintf("failed to bind codec flag: %v", err))
	}
	if err := viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user")); err != nil {
		panic(fmt.Sprintf("failed to bind user flag: %v", err))
	}
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind verbose flag: %v", err))
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(answerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
