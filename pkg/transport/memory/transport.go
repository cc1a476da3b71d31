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

// Package memory provides an in-process channel implementation for testing
// call engines without network I/O.
//
// A Responder function plays the relay: each request is handed to it on its
// own goroutine and its return value becomes the request's completion. Tests
// script relay behavior by returning canned responses, blocking on gates to
// exercise cancellation, or returning errors.
package memory

import (
	"sync"

	"github.com/jeremyhahn/go-securecall/pkg/transport"
)

// Responder computes the relay's answer to one request. It runs on a
// dedicated goroutine per request and may block.
type Responder func(req *transport.Request) (*transport.Response, error)

// Channel is an in-process transport.Channel backed by a Responder.
type Channel struct {
	logger transport.Logger

	mu        sync.Mutex
	responder Responder
	inflight  map[transport.Token]transport.ResultFunc
	sent      []*transport.Request
	cancelled []transport.Token
	closed    bool
}

// compile-time interface check
var _ transport.Channel = (*Channel)(nil)

// NewChannel creates a channel that answers every request with resp.
func NewChannel(logger transport.Logger) *Channel {
	if logger == nil {
		logger = transport.NopLogger{}
	}
	return &Channel{
		logger:   logger,
		inflight: make(map[transport.Token]transport.ResultFunc),
	}
}

// SetResponder installs the scripted relay. Requests sent while no responder
// is installed fail with ErrNotConnected.
func (c *Channel) SetResponder(responder Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responder = responder
}

// Send hands the request to the responder on a new goroutine. The completion
// races fairly with Cancel and Close: whichever resolves the token first
// wins and the others are dropped.
func (c *Channel) Send(token transport.Token, req *transport.Request, done transport.ResultFunc) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		go done(nil, transport.ErrChannelClosed)
		return
	}
	if _, dup := c.inflight[token]; dup {
		c.mu.Unlock()
		go done(nil, transport.ErrDuplicateToken)
		return
	}
	responder := c.responder
	c.inflight[token] = done
	c.sent = append(c.sent, req)
	c.mu.Unlock()

	transport.RequestsSent.WithLabelValues(req.Method.String()).Inc()
	c.logger.Debug("memory: send %s token=%s", req.Method, token)

	go func() {
		var resp *transport.Response
		err := transport.ErrNotConnected
		if responder != nil {
			resp, err = responder(req)
		}

		c.mu.Lock()
		_, live := c.inflight[token]
		if live {
			delete(c.inflight, token)
		}
		c.mu.Unlock()

		if !live {
			// Resolved by Cancel or Close already.
			return
		}
		if err != nil {
			transport.RequestFailures.WithLabelValues(req.Method.String()).Inc()
		}
		done(resp, err)
	}()
}

// Cancel resolves an in-flight token with ErrCancelled. The responder result
// for that token, if it ever arrives, is dropped.
func (c *Channel) Cancel(token transport.Token) {
	c.mu.Lock()
	done, live := c.inflight[token]
	if live {
		delete(c.inflight, token)
		c.cancelled = append(c.cancelled, token)
	}
	c.mu.Unlock()
	if live {
		transport.RequestsCancelled.Inc()
		c.logger.Debug("memory: cancelled token=%s", token)
		go done(nil, transport.ErrCancelled)
	}
}

// Close marks the channel closed and fails every in-flight request with
// ErrChannelClosed. Late responder results are dropped.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	inflight := c.inflight
	c.inflight = make(map[transport.Token]transport.ResultFunc)
	c.mu.Unlock()

	for _, done := range inflight {
		go done(nil, transport.ErrChannelClosed)
	}
	return nil
}

// Sent returns a copy of every request sent so far, in order.
func (c *Channel) Sent() []*transport.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*transport.Request, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentByMethod returns the requests sent with the given method.
func (c *Channel) SentByMethod(method transport.Method) []*transport.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*transport.Request
	for _, req := range c.sent {
		if req.Method == method {
			out = append(out, req)
		}
	}
	return out
}

// Cancelled returns the tokens cancelled so far.
func (c *Channel) Cancelled() []transport.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transport.Token, len(c.cancelled))
	copy(out, c.cancelled)
	return out
}
