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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-securecall/pkg/call"
	"github.com/jeremyhahn/go-securecall/pkg/dh"
	"github.com/jeremyhahn/go-securecall/pkg/transport"
	"github.com/jeremyhahn/go-securecall/pkg/transport/ws"
)

// defaultProtocol is the media protocol offered by the CLI.
var defaultProtocol = transport.CallProtocol{
	UDPP2P:          true,
	UDPReflector:    true,
	MinLayer:        65,
	MaxLayer:        92,
	LibraryVersions: []string{"4.0.0"},
}

// session wires one call engine to a WebSocket relay and prints its state
// transitions.
type session struct {
	log     zerolog.Logger
	client  *ws.Client
	updates chan call.Update

	mu     sync.Mutex
	engine *call.Engine
}

// newSession dials the relay and creates the engine. Server-pushed call
// updates are routed straight into the engine.
func newSession(ctx context.Context, log zerolog.Logger, peerID int64, outgoing bool) (*session, error) {
	s := &session{
		log:     log,
		updates: make(chan call.Update, 16),
	}

	cfg := &transport.Config{
		Protocol:  transport.ProtocolWebSocket,
		Address:   viper.GetString("relay"),
		CodecType: viper.GetString("codec"),
		Logger:    &transport.ZerologLogger{Log: log},
	}
	client, err := ws.Dial(ctx, cfg, transport.UpdateHandlerFunc(func(u *transport.CallUpdate) {
		s.mu.Lock()
		engine := s.engine
		s.mu.Unlock()
		if engine == nil {
			return
		}
		if err := engine.HandleUpdate(u); err != nil {
			log.Warn().Err(err).Msg("dropping server update")
		}
	}))
	if err != nil {
		return nil, err
	}
	s.client = client

	provider := dh.NewCachingProvider(func(ctx context.Context, version int32) (*dh.Config, error) {
		resp, err := s.rpc(ctx, &transport.Request{
			Method:    transport.MethodGetDhConfig,
			DhVersion: version,
		})
		if err != nil {
			return nil, err
		}
		payload := resp.DhConfig
		if payload == nil {
			return nil, transport.ErrInvalidMessage
		}
		if payload.NotModified {
			return nil, nil
		}
		return &dh.Config{G: payload.G, Prime: payload.Prime, Version: payload.Version}, nil
	})

	localID := viper.GetInt64("user")
	if localID == 0 {
		localID = time.Now().UnixNano()
	}
	engine, err := call.NewEngine(localID, peerID, outgoing, call.Deps{
		Channel:    client,
		DhProvider: provider,
		PrimeCache: dh.NewMemoryPrimeCache(),
		Updates:    call.UpdateSinkFunc(func(u call.Update) { s.updates <- u }),
		Logger:     log,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
	return s, nil
}

// rpc issues one request outside the engine and waits for its completion.
func (s *session) rpc(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	type outcome struct {
		resp *transport.Response
		err  error
	}
	done := make(chan outcome, 1)
	s.client.Send(transport.NewToken(), req, func(resp *transport.Response, err error) {
		done <- outcome{resp, err}
	})
	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// report prints one observable state transition.
func (s *session) report(u call.Update) {
	event := s.log.Info().Str("state", u.State.Type.String())
	switch u.State.Type {
	case call.StatePending:
		event.Bool("created", u.State.IsCreated).Bool("received", u.State.IsReceived)
	case call.StateReady:
		event.Str("emoji", strings.Join(u.State.EmojiFingerprint[:], " ")).
			Int("connections", len(u.State.Connections)).
			Bool("allow_p2p", u.State.AllowP2P)
	case call.StateDiscarded:
		event.Str("reason", u.State.DiscardReason.String()).
			Bool("need_rating", u.State.NeedRating).
			Bool("need_debug", u.State.NeedDebugInformation)
	case call.StateError:
		event.Int32("code", u.State.Error.Code).Str("message", u.State.Error.Message)
	}
	event.Msg("call state")

	if u.State.Type == call.StateReady {
		fmt.Printf("Verify with your peer: %s\n", strings.Join(u.State.EmojiFingerprint[:], "  "))
	}
}

func (s *session) close() {
	s.client.Close()
}
