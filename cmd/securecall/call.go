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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	callPeer  int64
	callVideo bool
	callGroup string
)

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place an outgoing encrypted call",
	Long: `Place an outgoing encrypted call to a peer via the signaling relay.

The command offers the call, completes the key exchange once the peer
answers and prints the four-emoji verification sequence. Interrupt with
Ctrl-C to hang up.

Examples:
  # Call peer 42 through the default relay
  securecall call --peer 42

  # Video call through a custom relay
  securecall call --peer 42 --video --relay wss://relay.example.com/signaling`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().Int64Var(&callPeer, "peer", 0, "peer user identifier")
	callCmd.Flags().BoolVar(&callVideo, "video", false, "offer a video call")
	callCmd.Flags().StringVar(&callGroup, "group-call", "", "conference call to associate the call with")

	if err := callCmd.MarkFlagRequired("peer"); err != nil {
		panic(err)
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := newSession(ctx, log, callPeer, true)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.engine.CreateCall(defaultProtocol, callVideo, callGroup); err != nil {
		return err
	}
	log.Info().Int64("peer", callPeer).Msg("calling")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case u := <-s.updates:
			s.report(u)
		case <-interrupt:
			log.Info().Msg("hanging up")
			go s.engine.Discard(false, 0, 0)
		case <-s.engine.Done():
			return nil
		}
	}
}
