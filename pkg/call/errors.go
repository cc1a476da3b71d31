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

// Package call implements the negotiation engine for end-to-end encrypted
// calls: a per-call state machine that drives the authenticated key exchange
// against a signaling relay, times out stalled phases and reports every
// observable state change to its owner.
package call

import "fmt"

// Error is a call-level failure carrying the protocol (code, message) pair.
// Codes follow server conventions: 4xx for caller mistakes, 5xx for internal
// failures, 4005000 for timeouts.
type Error struct {
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("call: [%d] %s", e.Code, e.Message)
}

// NewError creates a call Error with the given code and message.
func NewError(code int32, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Canonical failures.
var (
	// ErrAborted resolves every pending continuation when the engine stops.
	ErrAborted = NewError(500, "Request aborted")

	// ErrTimeout ends a call whose ring or key-exchange phase stalled.
	ErrTimeout = NewError(4005000, "Call timeout expired")

	// ErrFingerprintMismatch ends a call whose derived key fingerprint does
	// not match the one announced by the server.
	ErrFingerprintMismatch = NewError(400, "Key fingerprints mismatch")

	// ErrCallFinished rejects events for a call that no longer exists.
	ErrCallFinished = NewError(400, "Call is finished")

	// ErrCallNotActive rejects in-call operations outside the Ready phase.
	ErrCallNotActive = NewError(400, "Call is not active")

	// ErrUnexpectedAccept rejects answering a call that is not awaiting an
	// answer.
	ErrUnexpectedAccept = NewError(400, "Unexpected acceptCall")

	// ErrUnexpectedRating rejects a rating the server did not ask for.
	ErrUnexpectedRating = NewError(400, "Unexpected sendCallRating")

	// ErrUnexpectedDebug rejects debug information the server did not ask
	// for.
	ErrUnexpectedDebug = NewError(400, "Unexpected sendCallDebug")

	// ErrUnexpectedLog rejects a log upload the server did not ask for.
	ErrUnexpectedLog = NewError(400, "Unexpected sendCallLog")

	// ErrNoDhConfig ends a call whose key-exchange parameters could not be
	// loaded.
	ErrNoDhConfig = NewError(500, "Can't load DH config")
)

// wrapError coerces any failure into a call Error, preserving an existing
// (code, message) pair.
func wrapError(err error) *Error {
	if err == nil {
		return nil
	}
	if callErr, ok := err.(*Error); ok {
		return callErr
	}
	return NewError(500, err.Error())
}
