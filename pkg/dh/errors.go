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

// Package dh implements the authenticated Diffie-Hellman handshake used to
// negotiate the shared call key, including domain-parameter validation, the
// commitment hash exchanged before the public value, key fingerprinting and
// the four-emoji verification sequence shown to both participants.
package dh

import "errors"

// Domain-parameter validation errors.
var (
	// ErrPrimeSize indicates the prime is not a 2048-bit number.
	ErrPrimeSize = errors.New("dh: p is not a 2048-bit number")

	// ErrBadPrimeMod indicates the prime fails the quadratic-residue
	// condition for the configured generator.
	ErrBadPrimeMod = errors.New("dh: bad prime mod 4g")

	// ErrNotSafePrime indicates p or (p-1)/2 is not prime.
	ErrNotSafePrime = errors.New("dh: p or (p - 1) / 2 is not a prime number")

	// ErrNoConfig indicates the handshake was used before SetConfig.
	ErrNoConfig = errors.New("dh: domain parameters not configured")
)

// Handshake validation errors.
var (
	// ErrKeyHashMismatch indicates the peer's revealed public value does not
	// match the commitment hash it sent earlier.
	ErrKeyHashMismatch = errors.New("dh: g_a_hash mismatch")

	// ErrKeyOutOfRange indicates a public value outside the safe range.
	ErrKeyOutOfRange = errors.New("dh: g^a or g^b is not between 2^{2048-64} and p - 2^{2048-64}")

	// ErrNoPeerKey indicates GenKey was called before the peer value arrived.
	ErrNoPeerKey = errors.New("dh: peer public value not set")
)
