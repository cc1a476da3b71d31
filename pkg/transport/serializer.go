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

package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// EnvelopeKind identifies the frame type on stream channels.
type EnvelopeKind uint8

const (
	EnvelopeRequest  EnvelopeKind = 1 // Client request, Token set
	EnvelopeResponse EnvelopeKind = 2 // Correlated success, Token echoed
	EnvelopeError    EnvelopeKind = 3 // Correlated failure, Token echoed
	EnvelopeUpdate   EnvelopeKind = 4 // Server-initiated call update
	EnvelopeCancel   EnvelopeKind = 5 // Client abandons an in-flight token
)

// Envelope frames one message on a stream channel. Requests, responses and
// errors are correlated by Token; updates carry no token.
type Envelope struct {
	Kind      EnvelopeKind `json:"kind" msgpack:"kind" cbor:"1,keyasint" yaml:"kind" bson:"kind"`
	Token     string       `json:"token,omitempty" msgpack:"token,omitempty" cbor:"2,keyasint,omitempty" yaml:"token,omitempty" bson:"token,omitempty"`
	Request   *Request     `json:"request,omitempty" msgpack:"request,omitempty" cbor:"3,keyasint,omitempty" yaml:"request,omitempty" bson:"request,omitempty"`
	Response  *Response    `json:"response,omitempty" msgpack:"response,omitempty" cbor:"4,keyasint,omitempty" yaml:"response,omitempty" bson:"response,omitempty"`
	Error     *WireError   `json:"error,omitempty" msgpack:"error,omitempty" cbor:"5,keyasint,omitempty" yaml:"error,omitempty" bson:"error,omitempty"`
	Update    *CallUpdate  `json:"update,omitempty" msgpack:"update,omitempty" cbor:"6,keyasint,omitempty" yaml:"update,omitempty" bson:"update,omitempty"`
	Timestamp int64        `json:"timestamp" msgpack:"timestamp" cbor:"7,keyasint" yaml:"timestamp" bson:"timestamp"`
}

// WireError is a relay-side rejection carried in an error envelope.
type WireError struct {
	Code    int32  `json:"code" msgpack:"code" cbor:"1,keyasint" yaml:"code" bson:"code"`
	Message string `json:"message" msgpack:"message" cbor:"2,keyasint" yaml:"message" bson:"message"`
}

// SerializerError represents serialization errors
type SerializerError struct {
	Operation string
	CodecType string
	Err       error
}

func (e *SerializerError) Error() string {
	return fmt.Sprintf("serializer: %s failed for codec %s: %v", e.Operation, e.CodecType, e.Err)
}

func (e *SerializerError) Unwrap() error {
	return e.Err
}

// Serializer provides message serialization using multiple codec types
type Serializer struct {
	codecType string
}

// NewSerializer creates a new serializer with the specified codec type.
// Supported types: json, msgpack, cbor, yaml, bson, toml
func NewSerializer(codecType string) (*Serializer, error) {
	switch codecType {
	case "json", "msgpack", "cbor", "yaml", "bson", "toml":
		return &Serializer{
			codecType: codecType,
		}, nil
	default:
		return nil, &SerializerError{
			Operation: "create",
			CodecType: codecType,
			Err:       ErrCodecNotSupported,
		}
	}
}

// Marshal serializes a message to bytes
func (s *Serializer) Marshal(msg any) ([]byte, error) {
	var data []byte
	var err error

	switch s.codecType {
	case "json":
		data, err = json.Marshal(msg)
	case "msgpack":
		data, err = msgpack.Marshal(msg)
	case "cbor":
		data, err = cbor.Marshal(msg)
	case "yaml":
		data, err = yaml.Marshal(msg)
	case "bson":
		data, err = bson.Marshal(msg)
	case "toml":
		buf := new(bytes.Buffer)
		err = toml.NewEncoder(buf).Encode(msg)
		data = buf.Bytes()
	default:
		return nil, &SerializerError{
			Operation: "marshal",
			CodecType: s.codecType,
			Err:       ErrCodecNotSupported,
		}
	}

	if err != nil {
		return nil, &SerializerError{
			Operation: "marshal",
			CodecType: s.codecType,
			Err:       fmt.Errorf("%w: %v", ErrEncodingFailed, err),
		}
	}
	return data, nil
}

// Unmarshal deserializes bytes into a message
func (s *Serializer) Unmarshal(data []byte, msg any) error {
	var err error

	switch s.codecType {
	case "json":
		err = json.Unmarshal(data, msg)
	case "msgpack":
		err = msgpack.Unmarshal(data, msg)
	case "cbor":
		err = cbor.Unmarshal(data, msg)
	case "yaml":
		err = yaml.Unmarshal(data, msg)
	case "bson":
		err = bson.Unmarshal(data, msg)
	case "toml":
		err = toml.Unmarshal(data, msg)
	default:
		return &SerializerError{
			Operation: "unmarshal",
			CodecType: s.codecType,
			Err:       ErrCodecNotSupported,
		}
	}

	if err != nil {
		return &SerializerError{
			Operation: "unmarshal",
			CodecType: s.codecType,
			Err:       fmt.Errorf("%w: %v", ErrDecodingFailed, err),
		}
	}
	return nil
}

// MarshalRequest frames a request envelope for a stream channel.
func (s *Serializer) MarshalRequest(token Token, req *Request) ([]byte, error) {
	return s.Marshal(&Envelope{
		Kind:      EnvelopeRequest,
		Token:     token.String(),
		Request:   req,
		Timestamp: time.Now().UnixMilli(),
	})
}

// MarshalCancel frames a cancel envelope for an abandoned token.
func (s *Serializer) MarshalCancel(token Token) ([]byte, error) {
	return s.Marshal(&Envelope{
		Kind:      EnvelopeCancel,
		Token:     token.String(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// UnmarshalEnvelope decodes one inbound frame.
func (s *Serializer) UnmarshalEnvelope(data []byte) (*Envelope, error) {
	envelope := new(Envelope)
	if err := s.Unmarshal(data, envelope); err != nil {
		return nil, err
	}
	switch envelope.Kind {
	case EnvelopeRequest, EnvelopeResponse, EnvelopeError, EnvelopeUpdate, EnvelopeCancel:
		return envelope, nil
	default:
		return nil, ErrProtocolViolation
	}
}
