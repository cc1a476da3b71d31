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

// Package ws implements the transport.Channel interface over a WebSocket
// connection to the signaling relay.
//
// Each request is framed as an Envelope and correlated by token. The read
// loop dispatches correlated responses back to their callers and forwards
// server-initiated call updates to the registered UpdateHandler.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeremyhahn/go-securecall/pkg/transport"
)

// Client is a WebSocket-backed transport.Channel.
type Client struct {
	conn       *websocket.Conn
	serializer *transport.Serializer
	logger     transport.Logger
	handler    transport.UpdateHandler
	cfg        *transport.Config

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[transport.Token]transport.ResultFunc
	methods map[transport.Token]transport.Method
	closed  bool

	done chan struct{}
}

// compile-time interface check
var _ transport.Channel = (*Client)(nil)

// Dial connects to the relay at cfg.Address and starts the read and ping
// loops. The handler receives server-initiated call updates; it may be nil.
func Dial(ctx context.Context, cfg *transport.Config, handler transport.UpdateHandler) (*Client, error) {
	if cfg == nil {
		return nil, transport.ErrInvalidConfig
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	serializer, err := transport.NewSerializer(cfg.CodecType)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, cfg.Address, nil)
	if err != nil {
		return nil, transport.NewConnectionError(cfg.Address, err)
	}
	conn.SetReadLimit(cfg.MaxMessageSize)

	c := &Client{
		conn:       conn,
		serializer: serializer,
		logger:     cfg.Logger,
		handler:    handler,
		cfg:        cfg,
		pending:    make(map[transport.Token]transport.ResultFunc),
		methods:    make(map[transport.Token]transport.Method),
		done:       make(chan struct{}),
	}

	go c.readLoop()
	go c.pingLoop()

	c.logger.Info("ws: connected to %s", cfg.Address)
	return c, nil
}

// Send frames the request and registers its completion under token.
func (c *Client) Send(token transport.Token, req *transport.Request, done transport.ResultFunc) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		go done(nil, transport.ErrChannelClosed)
		return
	}
	c.pending[token] = done
	c.methods[token] = req.Method
	c.mu.Unlock()

	data, err := c.serializer.MarshalRequest(token, req)
	if err != nil {
		c.fail(token, transport.NewRequestError(req.Method, err))
		return
	}
	if int64(len(data)) > c.cfg.MaxMessageSize {
		c.fail(token, transport.NewRequestError(req.Method, transport.ErrMessageTooLarge))
		return
	}

	transport.RequestsSent.WithLabelValues(req.Method.String()).Inc()
	c.logger.Debug("ws: send %s token=%s", req.Method, token)

	if err := c.write(websocket.TextMessage, data); err != nil {
		c.fail(token, transport.NewRequestError(req.Method, err))
	}
}

// Cancel resolves an in-flight token with ErrCancelled and tells the relay
// to stop working on it. A late response for the token is dropped.
func (c *Client) Cancel(token transport.Token) {
	done, _ := c.extract(token)
	if done == nil {
		return
	}
	transport.RequestsCancelled.Inc()
	done(nil, transport.ErrCancelled)

	if data, err := c.serializer.MarshalCancel(token); err == nil {
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.logger.Debug("ws: cancel write failed: %v", err)
		}
	}
}

// Close shuts the connection down and fails all in-flight requests.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[transport.Token]transport.ResultFunc)
	c.methods = make(map[transport.Token]transport.Method)
	c.mu.Unlock()

	close(c.done)
	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()
	err := c.conn.Close()

	for _, done := range pending {
		done(nil, transport.ErrChannelClosed)
	}
	return err
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// extract removes and returns the completion for a token, if in flight.
func (c *Client) extract(token transport.Token) (transport.ResultFunc, transport.Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	done, ok := c.pending[token]
	if !ok {
		return nil, 0
	}
	method := c.methods[token]
	delete(c.pending, token)
	delete(c.methods, token)
	return done, method
}

func (c *Client) fail(token transport.Token, err error) {
	done, method := c.extract(token)
	if done == nil {
		return
	}
	transport.RequestFailures.WithLabelValues(method.String()).Inc()
	done(nil, err)
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Error("ws: read failed: %v", err)
			}
			return
		}

		envelope, err := c.serializer.UnmarshalEnvelope(data)
		if err != nil {
			c.logger.Error("ws: dropping malformed frame: %v", err)
			continue
		}
		c.dispatch(envelope)
	}
}

func (c *Client) dispatch(envelope *transport.Envelope) {
	switch envelope.Kind {
	case transport.EnvelopeResponse:
		token, err := uuid.Parse(envelope.Token)
		if err != nil || envelope.Response == nil {
			c.logger.Error("ws: dropping malformed response frame")
			return
		}
		done, _ := c.extract(token)
		if done == nil {
			c.logger.Debug("ws: %v: %s", transport.ErrUnknownToken, envelope.Token)
			return
		}
		done(envelope.Response, nil)

	case transport.EnvelopeError:
		token, err := uuid.Parse(envelope.Token)
		if err != nil || envelope.Error == nil {
			c.logger.Error("ws: dropping malformed error frame")
			return
		}
		done, method := c.extract(token)
		if done == nil {
			return
		}
		transport.RequestFailures.WithLabelValues(method.String()).Inc()
		done(nil, transport.NewServerError(method, envelope.Error.Code, envelope.Error.Message))

	case transport.EnvelopeUpdate:
		if envelope.Update == nil {
			c.logger.Error("ws: dropping update frame without payload")
			return
		}
		transport.UpdatesReceived.WithLabelValues(envelope.Update.Kind.String()).Inc()
		if c.handler != nil {
			c.handler.OnCallUpdate(envelope.Update)
		}

	default:
		c.logger.Debug("ws: ignoring frame kind %d", envelope.Kind)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ws: ping failed: %v", err)
				return
			}
		}
	}
}
