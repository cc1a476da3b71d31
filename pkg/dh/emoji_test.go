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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmojiTable(t *testing.T) {
	require.Len(t, emojiTable, 333)
	for i, emoji := range emojiTable {
		assert.NotEmpty(t, emoji, "entry %d", i)
	}
}

func TestEmojiFingerprintDeterminism(t *testing.T) {
	key := make([]byte, 256)
	gA := make([]byte, 256)
	for i := range key {
		key[i] = byte(i)
		gA[i] = byte(255 - i)
	}

	first := EmojiFingerprint(key, gA)
	second := EmojiFingerprint(key, gA)
	require.Equal(t, first, second)

	inTable := func(emoji string) bool {
		for _, e := range emojiTable {
			if e == emoji {
				return true
			}
		}
		return false
	}
	for i, emoji := range first {
		require.NotEmpty(t, emoji)
		assert.True(t, inTable(emoji), "emoji %d not from the fixed table", i)
	}
}

func TestEmojiFingerprintBitSensitivity(t *testing.T) {
	key := make([]byte, 256)
	gA := make([]byte, 256)
	base := EmojiFingerprint(key, gA)

	flippedKey := append([]byte(nil), key...)
	flippedKey[100] ^= 0x01
	assert.NotEqual(t, base, EmojiFingerprint(flippedKey, gA))

	flippedGA := append([]byte(nil), gA...)
	flippedGA[0] ^= 0x80
	assert.NotEqual(t, base, EmojiFingerprint(key, flippedGA))
}
