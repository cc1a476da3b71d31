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

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-securecall/pkg/transport"
)

// testRelay is a minimal in-test relay: one connection, scripted per-method
// handling, with the ability to push update frames.
type testRelay struct {
	t          *testing.T
	server     *httptest.Server
	serializer *transport.Serializer
	conns      chan *websocket.Conn
	handle     func(req *transport.Request) *transport.Envelope
}

func newTestRelay(t *testing.T, handle func(req *transport.Request) *transport.Envelope) *testRelay {
	t.Helper()
	serializer, err := transport.NewSerializer("json")
	require.NoError(t, err)

	r := &testRelay{
		t:          t,
		serializer: serializer,
		conns:      make(chan *websocket.Conn, 1),
		handle:     handle,
	}
	upgrader := websocket.Upgrader{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			envelope, err := serializer.UnmarshalEnvelope(data)
			if err != nil || envelope.Kind != transport.EnvelopeRequest {
				continue
			}
			reply := r.handle(envelope.Request)
			if reply == nil {
				continue
			}
			reply.Token = envelope.Token
			out, err := serializer.Marshal(reply)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *testRelay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

// push sends an unsolicited update frame on the accepted connection.
func (r *testRelay) push(update *transport.CallUpdate) {
	conn := <-r.conns
	data, err := r.serializer.Marshal(&transport.Envelope{
		Kind:   transport.EnvelopeUpdate,
		Update: update,
	})
	require.NoError(r.t, err)
	require.NoError(r.t, conn.WriteMessage(websocket.TextMessage, data))
	r.conns <- conn
}

func dialTest(t *testing.T, relay *testRelay, handler transport.UpdateHandler) *Client {
	t.Helper()
	client, err := Dial(context.Background(), &transport.Config{
		Protocol: transport.ProtocolWebSocket,
		Address:  relay.url(),
	}, handler)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientRequestResponse(t *testing.T) {
	relay := newTestRelay(t, func(req *transport.Request) *transport.Envelope {
		require.Equal(t, transport.MethodGetCallConfig, req.Method)
		return &transport.Envelope{
			Kind:     transport.EnvelopeResponse,
			Response: &transport.Response{Method: req.Method, Config: `{"codec":"opus"}`},
		}
	})
	client := dialTest(t, relay, nil)

	done := make(chan *transport.Response, 1)
	client.Send(transport.NewToken(), &transport.Request{Method: transport.MethodGetCallConfig},
		func(resp *transport.Response, err error) {
			require.NoError(t, err)
			done <- resp
		})

	select {
	case resp := <-done:
		assert.Equal(t, `{"codec":"opus"}`, resp.Config)
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
	}
}

func TestClientServerError(t *testing.T) {
	relay := newTestRelay(t, func(req *transport.Request) *transport.Envelope {
		return &transport.Envelope{
			Kind:  transport.EnvelopeError,
			Error: &transport.WireError{Code: 400, Message: "CALL_PEER_INVALID"},
		}
	})
	client := dialTest(t, relay, nil)

	done := make(chan error, 1)
	client.Send(transport.NewToken(), &transport.Request{Method: transport.MethodRequestCall, PeerID: 1},
		func(resp *transport.Response, err error) {
			done <- err
		})

	select {
	case err := <-done:
		require.Error(t, err)
		var reqErr *transport.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.EqualValues(t, 400, reqErr.Code)
		assert.Equal(t, "CALL_PEER_INVALID", reqErr.Message)
		require.ErrorIs(t, err, transport.ErrServerError)
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
	}
}

func TestClientPushedUpdates(t *testing.T) {
	relay := newTestRelay(t, func(req *transport.Request) *transport.Envelope { return nil })

	updates := make(chan *transport.CallUpdate, 1)
	dialTest(t, relay, transport.UpdateHandlerFunc(func(u *transport.CallUpdate) {
		updates <- u
	}))

	relay.push(&transport.CallUpdate{Kind: transport.UpdateKindDiscarded, ID: 9, Reason: transport.DiscardReasonMissed})

	select {
	case u := <-updates:
		assert.Equal(t, transport.UpdateKindDiscarded, u.Kind)
		assert.EqualValues(t, 9, u.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no pushed update")
	}
}

func TestClientCancel(t *testing.T) {
	relay := newTestRelay(t, func(req *transport.Request) *transport.Envelope {
		// Never answer; the client resolves the request locally.
		return nil
	})
	client := dialTest(t, relay, nil)

	done := make(chan error, 1)
	token := transport.NewToken()
	client.Send(token, &transport.Request{Method: transport.MethodRequestCall, PeerID: 1},
		func(resp *transport.Response, err error) {
			done <- err
		})
	client.Cancel(token)

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not complete the request")
	}
}

func TestDialRejectsNilConfig(t *testing.T) {
	client, err := Dial(context.Background(), nil, nil)
	require.ErrorIs(t, err, transport.ErrInvalidConfig)
	require.Nil(t, client)
}

func TestClientRejectsOversizeRequest(t *testing.T) {
	relay := newTestRelay(t, func(req *transport.Request) *transport.Envelope { return nil })
	client, err := Dial(context.Background(), &transport.Config{
		Protocol:       transport.ProtocolWebSocket,
		Address:        relay.url(),
		MaxMessageSize: 64,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	done := make(chan error, 1)
	client.Send(transport.NewToken(), &transport.Request{
		Method:        transport.MethodSendSignalingData,
		SignalingData: make([]byte, 1024),
	}, func(resp *transport.Response, err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrMessageTooLarge)
	case <-time.After(2 * time.Second):
		t.Fatal("oversize request not rejected")
	}
}

func TestClientCloseFailsInflight(t *testing.T) {
	relay := newTestRelay(t, func(req *transport.Request) *transport.Envelope { return nil })
	client := dialTest(t, relay, nil)

	done := make(chan error, 1)
	client.Send(transport.NewToken(), &transport.Request{Method: transport.MethodRequestCall, PeerID: 1},
		func(resp *transport.Response, err error) {
			done <- err
		})
	require.NoError(t, client.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrChannelClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("close did not fail the request")
	}

	// Send after close fails immediately.
	after := make(chan error, 1)
	client.Send(transport.NewToken(), &transport.Request{Method: transport.MethodGetCallConfig},
		func(resp *transport.Response, err error) {
			after <- err
		})
	select {
	case err := <-after:
		require.ErrorIs(t, err, transport.ErrChannelClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("post-close send did not fail")
	}
}
