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

package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-securecall/pkg/transport"
)

type completion struct {
	resp *transport.Response
	err  error
}

func sendAndWait(t *testing.T, c *Channel, req *transport.Request) completion {
	t.Helper()
	done := make(chan completion, 1)
	c.Send(transport.NewToken(), req, func(resp *transport.Response, err error) {
		done <- completion{resp, err}
	})
	select {
	case out := <-done:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
		return completion{}
	}
}

func TestChannelRespondsViaResponder(t *testing.T) {
	c := NewChannel(nil)
	c.SetResponder(func(req *transport.Request) (*transport.Response, error) {
		require.Equal(t, transport.MethodGetCallConfig, req.Method)
		return &transport.Response{Method: req.Method, Config: `{"codec":"opus"}`}, nil
	})

	out := sendAndWait(t, c, &transport.Request{Method: transport.MethodGetCallConfig})
	require.NoError(t, out.err)
	require.NotNil(t, out.resp)
	assert.Equal(t, `{"codec":"opus"}`, out.resp.Config)
	assert.Len(t, c.Sent(), 1)
}

func TestChannelWithoutResponderFails(t *testing.T) {
	c := NewChannel(nil)
	out := sendAndWait(t, c, &transport.Request{Method: transport.MethodGetCallConfig})
	require.ErrorIs(t, out.err, transport.ErrNotConnected)
}

func TestChannelCancelDropsLateResult(t *testing.T) {
	gate := make(chan struct{})
	c := NewChannel(nil)
	c.SetResponder(func(req *transport.Request) (*transport.Response, error) {
		<-gate
		return &transport.Response{Method: req.Method}, nil
	})

	invoked := make(chan completion, 2)
	token := transport.NewToken()
	c.Send(token, &transport.Request{Method: transport.MethodRequestCall},
		func(resp *transport.Response, err error) {
			invoked <- completion{resp, err}
		})

	c.Cancel(token)

	select {
	case out := <-invoked:
		require.ErrorIs(t, out.err, transport.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request not completed")
	}

	// The late responder result must not produce a second completion.
	close(gate)
	select {
	case <-invoked:
		t.Fatal("cancelled request completed twice")
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, []transport.Token{token}, c.Cancelled())
}

func TestChannelRejectsDuplicateToken(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	c := NewChannel(nil)
	c.SetResponder(func(req *transport.Request) (*transport.Response, error) {
		<-gate
		return &transport.Response{Method: req.Method}, nil
	})

	token := transport.NewToken()
	first := make(chan completion, 1)
	c.Send(token, &transport.Request{Method: transport.MethodRequestCall},
		func(resp *transport.Response, err error) {
			first <- completion{resp, err}
		})

	second := make(chan completion, 1)
	c.Send(token, &transport.Request{Method: transport.MethodRequestCall},
		func(resp *transport.Response, err error) {
			second <- completion{resp, err}
		})

	select {
	case out := <-second:
		require.ErrorIs(t, out.err, transport.ErrDuplicateToken)
	case <-time.After(2 * time.Second):
		t.Fatal("duplicate send not rejected")
	}

	// The original request stays in flight.
	select {
	case <-first:
		t.Fatal("original request resolved by the duplicate")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelCloseFailsInflight(t *testing.T) {
	gate := make(chan struct{})
	c := NewChannel(nil)
	c.SetResponder(func(req *transport.Request) (*transport.Response, error) {
		<-gate
		return &transport.Response{Method: req.Method}, nil
	})

	done := make(chan completion, 1)
	c.Send(transport.NewToken(), &transport.Request{Method: transport.MethodRequestCall},
		func(resp *transport.Response, err error) {
			done <- completion{resp, err}
		})

	require.NoError(t, c.Close())
	close(gate)

	select {
	case out := <-done:
		require.ErrorIs(t, out.err, transport.ErrChannelClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request not failed on close")
	}

	// New sends after close fail immediately.
	out := sendAndWait(t, c, &transport.Request{Method: transport.MethodGetCallConfig})
	require.ErrorIs(t, out.err, transport.ErrChannelClosed)
}

func TestSentByMethod(t *testing.T) {
	c := NewChannel(nil)
	c.SetResponder(func(req *transport.Request) (*transport.Response, error) {
		return &transport.Response{Method: req.Method}, nil
	})

	sendAndWait(t, c, &transport.Request{Method: transport.MethodGetCallConfig})
	sendAndWait(t, c, &transport.Request{Method: transport.MethodRequestCall, PeerID: 7})
	sendAndWait(t, c, &transport.Request{Method: transport.MethodRequestCall, PeerID: 8})

	reqs := c.SentByMethod(transport.MethodRequestCall)
	require.Len(t, reqs, 2)
	assert.EqualValues(t, 7, reqs[0].PeerID)
	assert.EqualValues(t, 8, reqs[1].PeerID)
}
