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
	"crypto/sha256"
	"encoding/binary"
)

// emojiTable is the fixed table the four fingerprint emoji are drawn from.
// The table contents and order are part of the protocol: both participants
// must render identical sequences for the same key, so entries are never
// reordered, removed or appended.
var emojiTable = []string{
	"\U0001f609", "\U0001f60d", "\U0001f61b", "\U0001f62d", "\U0001f631", "\U0001f621", "\U0001f60e",
	"\U0001f634", "\U0001f635", "\U0001f608", "\U0001f62c", "\U0001f607", "\U0001f60f", "\U0001f46e",
	"\U0001f477", "\U0001f482", "\U0001f476", "\U0001f468", "\U0001f469", "\U0001f474", "\U0001f475",
	"\U0001f63b", "\U0001f63d", "\U0001f640", "\U0001f47a", "\U0001f648", "\U0001f649", "\U0001f64a",
	"\U0001f480", "\U0001f47d", "\U0001f4a9", "\U0001f525", "\U0001f4a5", "\U0001f4a4", "\U0001f442",
	"\U0001f440", "\U0001f443", "\U0001f445", "\U0001f444", "\U0001f44d", "\U0001f44e", "\U0001f44c",
	"\U0001f44a", "\u270c", "\u270b", "\U0001f450", "\U0001f446", "\U0001f447", "\U0001f449",
	"\U0001f448", "\U0001f64f", "\U0001f44f", "\U0001f4aa", "\U0001f6b6", "\U0001f3c3", "\U0001f483",
	"\U0001f46b", "\U0001f46a", "\U0001f46c", "\U0001f46d", "\U0001f485", "\U0001f3a9", "\U0001f451",
	"\U0001f452", "\U0001f45f", "\U0001f45e", "\U0001f460", "\U0001f455", "\U0001f457", "\U0001f456",
	"\U0001f459", "\U0001f45c", "\U0001f453", "\U0001f380", "\U0001f484", "\U0001f49b", "\U0001f499",
	"\U0001f49c", "\U0001f49a", "\U0001f48d", "\U0001f48e", "\U0001f436", "\U0001f43a", "\U0001f431",
	"\U0001f42d", "\U0001f439", "\U0001f430", "\U0001f438", "\U0001f42f", "\U0001f428", "\U0001f43b",
	"\U0001f437", "\U0001f42e", "\U0001f417", "\U0001f434", "\U0001f411", "\U0001f418", "\U0001f43c",
	"\U0001f427", "\U0001f425", "\U0001f414", "\U0001f40d", "\U0001f422", "\U0001f41b", "\U0001f41d",
	"\U0001f41c", "\U0001f41e", "\U0001f40c", "\U0001f419", "\U0001f41a", "\U0001f41f", "\U0001f42c",
	"\U0001f40b", "\U0001f410", "\U0001f40a", "\U0001f42b", "\U0001f340", "\U0001f339", "\U0001f33b",
	"\U0001f341", "\U0001f33e", "\U0001f344", "\U0001f335", "\U0001f334", "\U0001f333", "\U0001f31e",
	"\U0001f31a", "\U0001f319", "\U0001f30e", "\U0001f30b", "\u26a1", "\u2614", "\u2744",
	"\u26c4", "\U0001f300", "\U0001f308", "\U0001f30a", "\U0001f393", "\U0001f386", "\U0001f383",
	"\U0001f47b", "\U0001f385", "\U0001f384", "\U0001f381", "\U0001f388", "\U0001f52e", "\U0001f3a5",
	"\U0001f4f7", "\U0001f4bf", "\U0001f4bb", "\u260e", "\U0001f4e1", "\U0001f4fa", "\U0001f4fb",
	"\U0001f509", "\U0001f514", "\u23f3", "\u23f0", "\u231a", "\U0001f512", "\U0001f511",
	"\U0001f50e", "\U0001f4a1", "\U0001f526", "\U0001f50c", "\U0001f50b", "\U0001f6bf", "\U0001f6bd",
	"\U0001f527", "\U0001f528", "\U0001f6aa", "\U0001f6ac", "\U0001f4a3", "\U0001f52b", "\U0001f52a",
	"\U0001f48a", "\U0001f489", "\U0001f4b0", "\U0001f4b5", "\U0001f4b3", "\u2709", "\U0001f4eb",
	"\U0001f4e6", "\U0001f4c5", "\U0001f4c1", "\u2702", "\U0001f4cc", "\U0001f4ce", "\u2712",
	"\u270f", "\U0001f4d0", "\U0001f4da", "\U0001f52c", "\U0001f52d", "\U0001f3a8", "\U0001f3ac",
	"\U0001f3a4", "\U0001f3a7", "\U0001f3b5", "\U0001f3b9", "\U0001f3bb", "\U0001f3ba", "\U0001f3b8",
	"\U0001f47e", "\U0001f3ae", "\U0001f0cf", "\U0001f3b2", "\U0001f3af", "\U0001f3c8", "\U0001f3c0",
	"\u26bd", "\u26be", "\U0001f3be", "\U0001f3b1", "\U0001f3c9", "\U0001f3b3", "\U0001f3c1",
	"\U0001f3c7", "\U0001f3c6", "\U0001f3ca", "\U0001f3c4", "\u2615", "\U0001f37c", "\U0001f37a",
	"\U0001f377", "\U0001f374", "\U0001f355", "\U0001f354", "\U0001f35f", "\U0001f357", "\U0001f371",
	"\U0001f35a", "\U0001f35c", "\U0001f361", "\U0001f373", "\U0001f35e", "\U0001f369", "\U0001f366",
	"\U0001f382", "\U0001f370", "\U0001f36a", "\U0001f36b", "\U0001f36d", "\U0001f36f", "\U0001f34e",
	"\U0001f34f", "\U0001f34a", "\U0001f34b", "\U0001f352", "\U0001f347", "\U0001f349", "\U0001f353",
	"\U0001f351", "\U0001f34c", "\U0001f350", "\U0001f34d", "\U0001f346", "\U0001f345", "\U0001f33d",
	"\U0001f3e1", "\U0001f3e5", "\U0001f3e6", "\u26ea", "\U0001f3f0", "\u26fa", "\U0001f3ed",
	"\U0001f5fb", "\U0001f5fd", "\U0001f3a0", "\U0001f3a1", "\u26f2", "\U0001f3a2", "\U0001f6a2",
	"\U0001f6a4", "\u2693", "\U0001f680", "\u2708", "\U0001f681", "\U0001f682", "\U0001f68b",
	"\U0001f68e", "\U0001f68c", "\U0001f699", "\U0001f697", "\U0001f695", "\U0001f69b", "\U0001f6a8",
	"\U0001f694", "\U0001f692", "\U0001f691", "\U0001f6b2", "\U0001f6a0", "\U0001f69c", "\U0001f6a6",
	"\u26a0", "\U0001f6a7", "\u26fd", "\U0001f3b0", "\U0001f5ff", "\U0001f3aa", "\U0001f3ad",
	"\U0001f1ef\U0001f1f5", "\U0001f1f0\U0001f1f7", "\U0001f1e9\U0001f1ea", "\U0001f1e8\U0001f1f3", "\U0001f1fa\U0001f1f8", "\U0001f1eb\U0001f1f7", "\U0001f1ea\U0001f1f8",
	"\U0001f1ee\U0001f1f9", "\U0001f1f7\U0001f1fa", "\U0001f1ec\U0001f1e7", "\u0031\u20e3", "\u0032\u20e3", "\u0033\u20e3", "\u0034\u20e3",
	"\u0035\u20e3", "\u0036\u20e3", "\u0037\u20e3", "\u0038\u20e3", "\u0039\u20e3", "\u0030\u20e3", "\U0001f51f",
	"\u2757", "\u2753", "\u2665", "\u2666", "\U0001f4af", "\U0001f517", "\U0001f531",
	"\U0001f534", "\U0001f535", "\U0001f536", "\U0001f537",
}

// EmojiFingerprint derives the four-emoji verification sequence from the
// shared key and the offering side's public value. SHA-256(key || gA) is
// split into four big-endian 64-bit integers, each selecting one table
// entry. The result is deterministic and identical on both sides.
func EmojiFingerprint(key, gA []byte) [4]string {
	input := make([]byte, 0, len(key)+len(gA))
	input = append(input, key...)
	input = append(input, gA...)
	sum := sha256.Sum256(input)

	var result [4]string
	for i := 0; i < 4; i++ {
		num := binary.BigEndian.Uint64(sum[8*i : 8*i+8])
		result[i] = emojiTable[(num&0x7FFFFFFFFFFFFFFF)%uint64(len(emojiTable))]
	}
	return result
}
