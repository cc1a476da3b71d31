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

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallUpdateValidate(t *testing.T) {
	tests := []struct {
		name    string
		update  CallUpdate
		wantErr error
	}{
		{
			name:   "empty",
			update: CallUpdate{Kind: UpdateKindEmpty},
		},
		{
			name:   "waiting",
			update: CallUpdate{Kind: UpdateKindWaiting, ID: 1},
		},
		{
			name:    "waiting without id",
			update:  CallUpdate{Kind: UpdateKindWaiting},
			wantErr: ErrInvalidMessage,
		},
		{
			name:   "requested",
			update: CallUpdate{Kind: UpdateKindRequested, ID: 1, GAHash: []byte{1}},
		},
		{
			name:    "requested without commitment",
			update:  CallUpdate{Kind: UpdateKindRequested, ID: 1},
			wantErr: ErrInvalidMessage,
		},
		{
			name:   "accepted",
			update: CallUpdate{Kind: UpdateKindAccepted, ID: 1, GB: []byte{1}},
		},
		{
			name:    "accepted without value",
			update:  CallUpdate{Kind: UpdateKindAccepted, ID: 1},
			wantErr: ErrInvalidMessage,
		},
		{
			name:   "ready",
			update: CallUpdate{Kind: UpdateKindReady, ID: 1, GAOrB: []byte{1}},
		},
		{
			name:    "ready without value",
			update:  CallUpdate{Kind: UpdateKindReady, ID: 1},
			wantErr: ErrInvalidMessage,
		},
		{
			name:   "discarded",
			update: CallUpdate{Kind: UpdateKindDiscarded, ID: 1, Reason: DiscardReasonHungUp},
		},
		{
			name:    "unknown kind",
			update:  CallUpdate{Kind: UpdateKind(42), ID: 1},
			wantErr: ErrProtocolViolation,
		},
		{
			name:    "zero kind",
			update:  CallUpdate{ID: 1},
			wantErr: ErrProtocolViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "requestCall", MethodRequestCall.String())
	assert.Equal(t, "discardCall", MethodDiscardCall.String())
	assert.Equal(t, "unknown", Method(99).String())
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Protocol: ProtocolWebSocket, Address: "ws://localhost:1/x"}
	require.NoError(t, cfg.Validate())

	require.ErrorIs(t, (&Config{Protocol: "tcp", Address: "x"}).Validate(), ErrInvalidProtocol)
	require.ErrorIs(t, (&Config{Protocol: ProtocolMemory}).Validate(), ErrInvalidAddress)
	require.ErrorIs(t,
		(&Config{Protocol: ProtocolMemory, Address: "m", CodecType: "xml"}).Validate(),
		ErrCodecNotSupported)
	require.ErrorIs(t,
		(&Config{Protocol: ProtocolMemory, Address: "m", MaxMessageSize: -1}).Validate(),
		ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{Protocol: ProtocolWebSocket, Address: "ws://localhost:1/x"}).Defaults()
	assert.Equal(t, "json", cfg.CodecType)
	assert.NotZero(t, cfg.DialTimeout)
	assert.NotZero(t, cfg.PingInterval)
	assert.NotZero(t, cfg.MaxMessageSize)
	assert.NotNil(t, cfg.Logger)
}
