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

package dh

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// keyLength is the length of the derived shared key in bytes.
const keyLength = primeBits / 8

// Handshake performs one side of the call key exchange. The offering side
// publishes a SHA-256 commitment of its public value before revealing it, so
// the responder cannot choose its own value adaptively.
//
// A Handshake is owned by a single call engine and is not safe for
// concurrent use.
type Handshake struct {
	hasConfig bool
	g         *big.Int
	prime     *big.Int
	primeRaw  []byte
	gInt      int32

	b  *big.Int // local ephemeral secret
	gB *big.Int // g^b mod p

	hasPeerHash bool
	peerHashOK  bool
	peerHash    []byte

	hasPeer bool
	gA      *big.Int
}

// SetConfig installs the domain parameters and generates the local ephemeral
// secret. Must be called exactly once before any other handshake step.
func (h *Handshake) SetConfig(cfg *Config) error {
	h.prime = new(big.Int).SetBytes(cfg.Prime)
	h.primeRaw = append([]byte(nil), cfg.Prime...)
	h.gInt = cfg.G
	h.g = big.NewInt(int64(cfg.G))

	limit := new(big.Int).Lsh(big.NewInt(1), primeBits)
	b, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return err
	}
	h.b = b
	h.gB = new(big.Int).Exp(h.g, h.b, h.prime)
	h.hasConfig = true
	return nil
}

// GB returns the local public value g^b mod p.
func (h *Handshake) GB() []byte {
	return h.gB.Bytes()
}

// GBHash returns the SHA-256 commitment of the local public value.
func (h *Handshake) GBHash() []byte {
	sum := sha256.Sum256(h.GB())
	return sum[:]
}

// SetPeerHash records the commitment hash received from the peer before its
// public value is revealed.
func (h *Handshake) SetPeerHash(hash []byte) {
	h.hasPeerHash = true
	h.peerHashOK = false
	h.peerHash = append([]byte(nil), hash...)
}

// SetPeerKey records the peer's revealed public value. If a commitment hash
// was set earlier it is verified here and the verdict reported by RunChecks.
func (h *Handshake) SetPeerKey(gA []byte) {
	h.hasPeer = true
	if h.hasPeerHash {
		sum := sha256.Sum256(gA)
		h.peerHashOK = bytes.Equal(sum[:], h.peerHash)
	}
	h.gA = new(big.Int).SetBytes(gA)
}

// PeerKey returns the peer's public value.
func (h *Handshake) PeerKey() []byte {
	return h.gA.Bytes()
}

// RunChecks validates the exchange before key derivation: the commitment
// must match the revealed value, the domain parameters must pass CheckConfig
// and both public values must lie inside the safe range
// [2^{2048-64}, p - 2^{2048-64}].
func (h *Handshake) RunChecks(cache PrimeCache) error {
	if !h.hasConfig {
		return ErrNoConfig
	}
	if !h.hasPeer {
		return ErrNoPeerKey
	}
	if h.hasPeerHash && !h.peerHashOK {
		return ErrKeyHashMismatch
	}
	if err := checkPrime(h.primeRaw, h.prime, h.gInt, cache); err != nil {
		return err
	}

	left := new(big.Int).Lsh(big.NewInt(1), primeBits-64)
	right := new(big.Int).Sub(h.prime, left)
	for _, v := range []*big.Int{h.gA, h.gB} {
		if v.Cmp(left) < 0 || v.Cmp(right) > 0 {
			return ErrKeyOutOfRange
		}
	}
	return nil
}

// GenKey derives the 256-byte shared key g^ab mod p and its 64-bit
// fingerprint. Callers must run RunChecks first and call GenKey at most once
// per handshake.
func (h *Handshake) GenKey() (int64, []byte) {
	gAB := new(big.Int).Exp(h.gA, h.b, h.prime)
	key := make([]byte, keyLength)
	gAB.FillBytes(key)
	return KeyFingerprint(key), key
}

// KeyFingerprint computes the 64-bit fingerprint of a shared key: the last
// eight bytes of SHA-1(key), read little-endian.
func KeyFingerprint(key []byte) int64 {
	sum := sha1.Sum(key)
	return int64(binary.LittleEndian.Uint64(sum[12:20]))
}

// Zeroize clears the local secret and derived material from memory.
func (h *Handshake) Zeroize() {
	if h.b != nil {
		h.b.SetInt64(0)
	}
	if h.gB != nil {
		h.gB.SetInt64(0)
	}
}
