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

import "github.com/jeremyhahn/go-securecall/pkg/transport"

// pendingRequests correlates in-flight request tokens with their
// continuations. It is owned by the engine goroutine and needs no locking.
// Each continuation resolves exactly once: a completion, cancellation or
// abort removes the token before invoking it, so late duplicates find
// nothing to run.
type pendingRequests struct {
	conts map[transport.Token]transport.ResultFunc
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{conts: make(map[transport.Token]transport.ResultFunc)}
}

// register stores a continuation under a fresh token and returns the token.
func (p *pendingRequests) register(cont transport.ResultFunc) transport.Token {
	token := transport.NewToken()
	p.conts[token] = cont
	return token
}

// extract removes and returns the continuation for token, if present.
func (p *pendingRequests) extract(token transport.Token) (transport.ResultFunc, bool) {
	cont, ok := p.conts[token]
	if ok {
		delete(p.conts, token)
	}
	return cont, ok
}

// drop removes a continuation without running it, for cancelled requests.
func (p *pendingRequests) drop(token transport.Token) {
	delete(p.conts, token)
}

// abortAll resolves every outstanding continuation with err and empties the
// registry.
func (p *pendingRequests) abortAll(err error) {
	conts := p.conts
	p.conts = make(map[transport.Token]transport.ResultFunc)
	for _, cont := range conts {
		cont(nil, err)
	}
}

// size returns the number of in-flight requests.
func (p *pendingRequests) size() int {
	return len(p.conts)
}
