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

package call

import (
	"context"

	"github.com/jeremyhahn/go-securecall/pkg/transport"
)

// StateType discriminates the externally observable call state.
type StateType uint8

const (
	// StatePending - the call is being established or is ringing.
	StatePending StateType = 1

	// StateExchangingKeys - both sides are completing the key exchange.
	StateExchangingKeys StateType = 2

	// StateReady - the key is derived and media endpoints are available.
	StateReady StateType = 3

	// StateHangingUp - a local discard is in flight.
	StateHangingUp StateType = 4

	// StateDiscarded - the call ended; follow-up flags may still be set.
	StateDiscarded StateType = 5

	// StateError - the call failed with a protocol error.
	StateError StateType = 6
)

// String returns the state type name used in logs.
func (t StateType) String() string {
	switch t {
	case StatePending:
		return "pending"
	case StateExchangingKeys:
		return "exchangingKeys"
	case StateReady:
		return "ready"
	case StateHangingUp:
		return "hangingUp"
	case StateDiscarded:
		return "discarded"
	case StateError:
		return "error"
	default:
		return "empty"
	}
}

// State is the externally observable call state, a tagged union over Type.
// Fields outside the active variant hold zero values.
type State struct {
	Type StateType

	// Pending.
	IsCreated  bool // server registered the offer
	IsReceived bool // callee device acknowledged ringing

	// Ready.
	Protocol         transport.CallProtocol
	Connections      []transport.CallConnection
	Config           string // opaque call library config blob
	Key              []byte
	EmojiFingerprint [4]string
	AllowP2P         bool
	CustomParameters string

	// Discarded.
	DiscardReason        transport.DiscardReason
	NeedRating           bool
	NeedDebugInformation bool
	NeedLog              bool

	// Error.
	Error *Error
}

// Update is the snapshot flushed to the engine owner after every pass that
// changed something observable.
type Update struct {
	// CallID is the local engine handle, stable for the engine's lifetime.
	CallID int64

	// RemoteID is the server-assigned call id, zero until registered.
	RemoteID int64

	PeerID      int64
	IsOutgoing  bool
	IsVideo     bool
	GroupCallID string

	State State
}

// UpdateSink receives flushed call snapshots. Invoked on the engine
// goroutine; implementations must not call back into the engine
// synchronously.
type UpdateSink interface {
	OnCallUpdate(update Update)
}

// UpdateSinkFunc adapts a function to the UpdateSink interface.
type UpdateSinkFunc func(update Update)

func (f UpdateSinkFunc) OnCallUpdate(update Update) {
	f(update)
}

// NotificationSink manages the ringing notification for incoming calls.
type NotificationSink interface {
	// AddIncomingCallNotification announces an incoming call from peerID.
	AddIncomingCallNotification(callID int64, peerID int64, isVideo bool)

	// RemoveIncomingCallNotification withdraws the announcement.
	RemoveIncomingCallNotification(callID int64)
}

// SignalingSink receives in-call signaling payloads from the peer.
type SignalingSink interface {
	OnSignalingData(data []byte)
}

// ServerUpdateSink folds opaque server update batches returned by discard
// and rating requests into the hosting process.
type ServerUpdateSink interface {
	OnServerUpdates(updates []byte)
}

// LogUploader stores a call log file and returns a server file reference.
type LogUploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Option names understood by the engine.
const (
	// OptionReceiveTimeoutMs bounds the wait for the offer to reach the
	// callee.
	OptionReceiveTimeoutMs = "call_receive_timeout_ms"

	// OptionRingTimeoutMs bounds how long an acknowledged offer may ring.
	OptionRingTimeoutMs = "call_ring_timeout_ms"

	// OptionExchangeTimeoutMs bounds the key-exchange phase.
	OptionExchangeTimeoutMs = "call_exchange_timeout_ms"
)

// Default option values, used when the injected Options has no override.
const (
	DefaultReceiveTimeoutMs  = 20000
	DefaultRingTimeoutMs     = 90000
	DefaultExchangeTimeoutMs = 30000
)

// Options supplies engine tuning values from the hosting process.
type Options interface {
	// GetOption returns the named option or def when unset.
	GetOption(name string, def int64) int64
}

// StaticOptions is a fixed Options map, convenient for tests and CLIs.
type StaticOptions map[string]int64

func (o StaticOptions) GetOption(name string, def int64) int64 {
	if v, ok := o[name]; ok {
		return v
	}
	return def
}
