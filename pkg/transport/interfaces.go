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

// Package transport provides the RPC channel between a call engine and the
// signaling relay.
//
// The transport layer carries call negotiation by providing:
//   - A Channel interface with exactly-one-completion request semantics
//     and an explicit cancellation primitive
//   - Typed request/response messages plus the CallUpdate tagged union for
//     server-initiated peer events
//   - Pluggable codec support (JSON, CBOR, MessagePack, YAML, BSON, TOML)
//   - Prometheus counters for request traffic
//
// The relay has no cryptographic role. It forwards negotiation messages
// between the two participants and supplies relay endpoint candidates; it
// never sees the derived call key.
package transport

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger interface for transport layer logging.
// Implementations can be provided by callers to capture transport events.
type Logger interface {
	// Info logs informational messages.
	Info(format string, args ...interface{})
	// Debug logs debug messages (verbose output).
	Debug(format string, args ...interface{})
	// Error logs error messages.
	Error(format string, args ...interface{})
}

// NopLogger is a no-op logger that discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(format string, args ...interface{})  {}
func (NopLogger) Debug(format string, args ...interface{}) {}
func (NopLogger) Error(format string, args ...interface{}) {}

// ZerologLogger adapts a zerolog.Logger to the transport Logger interface.
type ZerologLogger struct {
	Log zerolog.Logger
}

func (l *ZerologLogger) Info(format string, args ...interface{}) {
	l.Log.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *ZerologLogger) Debug(format string, args ...interface{}) {
	l.Log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *ZerologLogger) Error(format string, args ...interface{}) {
	l.Log.Error().Msg(fmt.Sprintf(format, args...))
}

// Protocol represents supported channel implementations.
type Protocol string

const (
	// ProtocolWebSocket uses a WebSocket connection to the relay.
	ProtocolWebSocket Protocol = "ws"

	// ProtocolMemory uses in-process communication for testing.
	ProtocolMemory Protocol = "memory"
)

// Token identifies one in-flight request on a Channel.
type Token = uuid.UUID

// NewToken allocates a fresh request token.
func NewToken() Token {
	return uuid.New()
}

// ResultFunc receives the single completion of a request: a response or an
// error, never both and never more than once.
type ResultFunc func(resp *Response, err error)

// Channel is the opaque RPC channel a call engine issues requests on.
//
// Send never blocks on the network: it enqueues the request and returns,
// and done is invoked later from a transport goroutine. Implementations
// guarantee exactly one invocation of done per Send, including after Cancel
// (ErrCancelled) and Close (ErrChannelClosed). The token is supplied by the
// caller so it can index its own correlation state before the completion
// can possibly fire.
type Channel interface {
	// Send issues a request correlated by the caller-supplied token.
	Send(token Token, req *Request, done ResultFunc)

	// Cancel aborts the request with the given token if still in flight.
	// The request's ResultFunc receives ErrCancelled.
	Cancel(token Token)

	// Close tears down the channel and fails all in-flight requests with
	// ErrChannelClosed.
	Close() error
}

// UpdateHandler receives server-initiated call updates pushed outside the
// request/response correlation.
type UpdateHandler interface {
	OnCallUpdate(update *CallUpdate)
}

// UpdateHandlerFunc adapts a function to the UpdateHandler interface.
type UpdateHandlerFunc func(update *CallUpdate)

func (f UpdateHandlerFunc) OnCallUpdate(update *CallUpdate) {
	f(update)
}

// Config holds transport layer configuration.
type Config struct {
	// Protocol specifies the channel implementation to use.
	Protocol Protocol

	// Address is the relay address. Format depends on protocol:
	//   - WebSocket: "wss://host:port/path"
	//   - Memory: arbitrary identifier (e.g., "call-123")
	Address string

	// CodecType specifies message serialization format.
	// Supported: "json", "msgpack", "cbor", "yaml", "bson", "toml"
	// Default: "json"
	CodecType string

	// DialTimeout is the connection establishment timeout.
	// Default: 10 seconds
	DialTimeout time.Duration

	// WriteTimeout bounds a single message write.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// PingInterval is the keepalive ping period for stream channels.
	// Default: 30 seconds
	PingInterval time.Duration

	// MaxMessageSize is the maximum message size in bytes, applied to
	// both inbound and outbound frames.
	// Default: 1MB
	MaxMessageSize int64

	// Logger for transport layer events.
	// If nil, a NopLogger is used.
	Logger Logger
}

// Defaults fills unset fields with their default values and returns the
// config for chaining.
func (c *Config) Defaults() *Config {
	if c.CodecType == "" {
		c.CodecType = "json"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 1 << 20
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	return c
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Protocol {
	case ProtocolWebSocket, ProtocolMemory:
	default:
		return ErrInvalidProtocol
	}
	if c.Address == "" {
		return ErrInvalidAddress
	}
	switch c.CodecType {
	case "", "json", "msgpack", "cbor", "yaml", "bson", "toml":
	default:
		return ErrCodecNotSupported
	}
	if c.DialTimeout < 0 || c.WriteTimeout < 0 || c.PingInterval < 0 || c.MaxMessageSize < 0 {
		return ErrInvalidConfig
	}
	return nil
}
