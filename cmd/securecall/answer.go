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

	"github.com/jeremyhahn/go-securecall/pkg/call"
)

var (
	answerPeer    int64
	answerDecline bool
)

// answerCmd represents the answer command
var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Wait for and answer an incoming encrypted call",
	Long: `Wait for an incoming call from a peer, answer it and complete the key
exchange. The four-emoji verification sequence is printed once the call is
established.

Examples:
  # Answer the next call from peer 7
  securecall answer --peer 7

  # Ring but decline
  securecall answer --peer 7 --decline`,
	RunE: runAnswer,
}

func init() {
	answerCmd.Flags().Int64Var(&answerPeer, "peer", 0, "peer user identifier")
	answerCmd.Flags().BoolVar(&answerDecline, "decline", false, "decline instead of answering")

	if err := answerCmd.MarkFlagRequired("peer"); err != nil {
		panic(err)
	}
}

func runAnswer(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := newSession(ctx, log, answerPeer, false)
	if err != nil {
		return err
	}
	defer s.close()
	log.Info().Int64("peer", answerPeer).Msg("waiting for incoming call")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	answered := false
	for {
		select {
		case u := <-s.updates:
			s.report(u)
			if u.State.Type == call.StatePending && !answered {
				answered = true
				if answerDecline {
					go s.engine.Discard(false, 0, 0)
				} else {
					go func() {
						if err := s.engine.Accept(defaultProtocol); err != nil {
							log.Error().Err(err).Msg("accept failed")
						}
					}()
				}
			}
		case <-interrupt:
			log.Info().Msg("hanging up")
			go s.engine.Discard(false, 0, 0)
		case <-s.engine.Done():
			return nil
		}
	}
}
