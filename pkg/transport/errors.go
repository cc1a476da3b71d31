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
	"errors"
	"fmt"
)

// Connection and channel errors.
var (
	// ErrChannelClosed indicates the channel was closed while requests were
	// in flight.
	ErrChannelClosed = errors.New("transport: channel closed")

	// ErrNotConnected indicates the channel is not connected.
	ErrNotConnected = errors.New("transport: not connected")
)

// Request correlation errors.
var (
	// ErrCancelled indicates the request was cancelled by the caller before
	// a response arrived.
	ErrCancelled = errors.New("transport: request cancelled")

	// ErrDuplicateToken indicates a request token is already in flight.
	ErrDuplicateToken = errors.New("transport: duplicate request token")

	// ErrUnknownToken indicates a response arrived for no known request.
	ErrUnknownToken = errors.New("transport: response for unknown token")

	// ErrRequestTimeout indicates the relay did not answer in time.
	ErrRequestTimeout = errors.New("transport: request timeout")
)

// Message and protocol errors.
var (
	// ErrInvalidMessage indicates the message is missing required fields.
	ErrInvalidMessage = errors.New("transport: invalid message")

	// ErrMessageTooLarge indicates the message exceeds maximum size.
	ErrMessageTooLarge = errors.New("transport: message too large")

	// ErrProtocolViolation indicates the relay sent a structurally malformed
	// frame or an unknown update kind.
	ErrProtocolViolation = errors.New("transport: protocol violation")

	// ErrServerError indicates the relay rejected the request.
	ErrServerError = errors.New("transport: server error")
)

// Configuration and validation errors.
var (
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("transport: invalid configuration")

	// ErrInvalidProtocol indicates an unsupported or invalid protocol.
	ErrInvalidProtocol = errors.New("transport: invalid protocol")

	// ErrInvalidAddress indicates the address format is invalid.
	ErrInvalidAddress = errors.New("transport: invalid address")
)

// Codec errors.
var (
	// ErrCodecNotSupported indicates the codec is not supported.
	ErrCodecNotSupported = errors.New("transport: codec not supported")

	// ErrEncodingFailed indicates message encoding failed.
	ErrEncodingFailed = errors.New("transport: message encoding failed")

	// ErrDecodingFailed indicates message decoding failed.
	ErrDecodingFailed = errors.New("transport: message decoding failed")
)

// ConnectionError wraps connection errors with additional context.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (address=%s): %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(address string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{
		Address: address,
		Err:     err,
	}
}

// RequestError wraps the failure of one signaling request with the method
// that failed and the server-assigned error code, when known.
type RequestError struct {
	Method  Method
	Code    int32
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("request error (method=%s, code=%d): %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("request error (method=%s): %v", e.Method, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a RequestError wrapping a local failure.
func NewRequestError(method Method, err error) error {
	if err == nil {
		return nil
	}
	return &RequestError{
		Method: method,
		Err:    err,
	}
}

// NewServerError creates a RequestError for a relay-side rejection.
func NewServerError(method Method, code int32, message string) error {
	return &RequestError{
		Method:  method,
		Code:    code,
		Message: message,
		Err:     ErrServerError,
	}
}
