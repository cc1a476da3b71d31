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

// Method identifies call signaling requests.
type Method uint8

const (
	MethodGetDhConfig       Method = 1  // Fetch DH domain parameters
	MethodGetCallConfig     Method = 2  // Fetch the call library config blob
	MethodRequestCall       Method = 3  // Offer a call with a key commitment
	MethodReceivedCall      Method = 4  // Acknowledge an incoming call
	MethodAcceptCall        Method = 5  // Answer with the responder public value
	MethodConfirmCall       Method = 6  // Reveal the offer value and fingerprint
	MethodDiscardCall       Method = 7  // Terminate the call
	MethodSetRating         Method = 8  // Post-call quality rating
	MethodSaveDebug         Method = 9  // Post-call debug information
	MethodSendSignalingData Method = 10 // In-call signaling payload
	MethodSaveLog           Method = 11 // Post-call log file reference
)

// String returns the wire name of the method, used in logs and metrics.
func (m Method) String() string {
	switch m {
	case MethodGetDhConfig:
		return "getDhConfig"
	case MethodGetCallConfig:
		return "getCallConfig"
	case MethodRequestCall:
		return "requestCall"
	case MethodReceivedCall:
		return "receivedCall"
	case MethodAcceptCall:
		return "acceptCall"
	case MethodConfirmCall:
		return "confirmCall"
	case MethodDiscardCall:
		return "discardCall"
	case MethodSetRating:
		return "setCallRating"
	case MethodSaveDebug:
		return "saveCallDebug"
	case MethodSendSignalingData:
		return "sendSignalingData"
	case MethodSaveLog:
		return "saveCallLog"
	default:
		return "unknown"
	}
}

// CallProtocol describes the media protocol both sides negotiate: which
// transports the client supports and the library layer range it speaks.
type CallProtocol struct {
	UDPP2P          bool     `json:"udp_p2p" msgpack:"udp_p2p" cbor:"1,keyasint" yaml:"udp_p2p" bson:"udp_p2p"`
	UDPReflector    bool     `json:"udp_reflector" msgpack:"udp_reflector" cbor:"2,keyasint" yaml:"udp_reflector" bson:"udp_reflector"`
	MinLayer        int32    `json:"min_layer" msgpack:"min_layer" cbor:"3,keyasint" yaml:"min_layer" bson:"min_layer"`
	MaxLayer        int32    `json:"max_layer" msgpack:"max_layer" cbor:"4,keyasint" yaml:"max_layer" bson:"max_layer"`
	LibraryVersions []string `json:"library_versions,omitempty" msgpack:"library_versions,omitempty" cbor:"5,keyasint,omitempty" yaml:"library_versions,omitempty" bson:"library_versions,omitempty"`
}

// ConnectionKind discriminates server-provided media endpoints.
type ConnectionKind uint8

const (
	// ConnectionRelay is a plain UDP reflector addressed by a peer tag.
	ConnectionRelay ConnectionKind = 1

	// ConnectionWebRTC is a WebRTC TURN/STUN server with credentials.
	ConnectionWebRTC ConnectionKind = 2
)

// CallConnection is one media endpoint candidate supplied by the server.
type CallConnection struct {
	Kind     ConnectionKind `json:"kind" msgpack:"kind" cbor:"1,keyasint" yaml:"kind" bson:"kind"`
	ID       int64          `json:"id" msgpack:"id" cbor:"2,keyasint" yaml:"id" bson:"id"`
	IP       string         `json:"ip,omitempty" msgpack:"ip,omitempty" cbor:"3,keyasint,omitempty" yaml:"ip,omitempty" bson:"ip,omitempty"`
	IPv6     string         `json:"ipv6,omitempty" msgpack:"ipv6,omitempty" cbor:"4,keyasint,omitempty" yaml:"ipv6,omitempty" bson:"ipv6,omitempty"`
	Port     int32          `json:"port" msgpack:"port" cbor:"5,keyasint" yaml:"port" bson:"port"`
	PeerTag  []byte         `json:"peer_tag,omitempty" msgpack:"peer_tag,omitempty" cbor:"6,keyasint,omitempty" yaml:"peer_tag,omitempty" bson:"peer_tag,omitempty"`
	Username string         `json:"username,omitempty" msgpack:"username,omitempty" cbor:"7,keyasint,omitempty" yaml:"username,omitempty" bson:"username,omitempty"`
	Password string         `json:"password,omitempty" msgpack:"password,omitempty" cbor:"8,keyasint,omitempty" yaml:"password,omitempty" bson:"password,omitempty"`
	IsTURN   bool           `json:"is_turn,omitempty" msgpack:"is_turn,omitempty" cbor:"9,keyasint,omitempty" yaml:"is_turn,omitempty" bson:"is_turn,omitempty"`
	IsSTUN   bool           `json:"is_stun,omitempty" msgpack:"is_stun,omitempty" cbor:"10,keyasint,omitempty" yaml:"is_stun,omitempty" bson:"is_stun,omitempty"`
}

// DiscardReason records why a call ended.
type DiscardReason uint8

const (
	DiscardReasonEmpty        DiscardReason = 0
	DiscardReasonMissed       DiscardReason = 1
	DiscardReasonDeclined     DiscardReason = 2
	DiscardReasonDisconnected DiscardReason = 3
	DiscardReasonHungUp       DiscardReason = 4
)

// String returns the wire name of the discard reason.
func (r DiscardReason) String() string {
	switch r {
	case DiscardReasonMissed:
		return "missed"
	case DiscardReasonDeclined:
		return "declined"
	case DiscardReasonDisconnected:
		return "disconnected"
	case DiscardReasonHungUp:
		return "hangup"
	default:
		return "empty"
	}
}

// Request carries one signaling call to the relay. Method selects which of
// the optional fields are meaningful; unused fields are omitted on the wire.
type Request struct {
	Method Method `json:"method" msgpack:"method" cbor:"1,keyasint" yaml:"method" bson:"method"`

	// Call addressing.
	PeerID     int64 `json:"peer_id,omitempty" msgpack:"peer_id,omitempty" cbor:"2,keyasint,omitempty" yaml:"peer_id,omitempty" bson:"peer_id,omitempty"`
	CallID     int64 `json:"call_id,omitempty" msgpack:"call_id,omitempty" cbor:"3,keyasint,omitempty" yaml:"call_id,omitempty" bson:"call_id,omitempty"`
	AccessHash int64 `json:"access_hash,omitempty" msgpack:"access_hash,omitempty" cbor:"4,keyasint,omitempty" yaml:"access_hash,omitempty" bson:"access_hash,omitempty"`
	RandomID   int32 `json:"random_id,omitempty" msgpack:"random_id,omitempty" cbor:"5,keyasint,omitempty" yaml:"random_id,omitempty" bson:"random_id,omitempty"`

	// Key exchange material.
	DhVersion      int32  `json:"dh_version,omitempty" msgpack:"dh_version,omitempty" cbor:"6,keyasint,omitempty" yaml:"dh_version,omitempty" bson:"dh_version,omitempty"`
	GAHash         []byte `json:"g_a_hash,omitempty" msgpack:"g_a_hash,omitempty" cbor:"7,keyasint,omitempty" yaml:"g_a_hash,omitempty" bson:"g_a_hash,omitempty"`
	GA             []byte `json:"g_a,omitempty" msgpack:"g_a,omitempty" cbor:"8,keyasint,omitempty" yaml:"g_a,omitempty" bson:"g_a,omitempty"`
	GB             []byte `json:"g_b,omitempty" msgpack:"g_b,omitempty" cbor:"9,keyasint,omitempty" yaml:"g_b,omitempty" bson:"g_b,omitempty"`
	KeyFingerprint int64  `json:"key_fingerprint,omitempty" msgpack:"key_fingerprint,omitempty" cbor:"10,keyasint,omitempty" yaml:"key_fingerprint,omitempty" bson:"key_fingerprint,omitempty"`

	// Negotiation parameters.
	Protocol *CallProtocol `json:"protocol,omitempty" msgpack:"protocol,omitempty" cbor:"11,keyasint,omitempty" yaml:"protocol,omitempty" bson:"protocol,omitempty"`
	IsVideo  bool          `json:"is_video,omitempty" msgpack:"is_video,omitempty" cbor:"12,keyasint,omitempty" yaml:"is_video,omitempty" bson:"is_video,omitempty"`

	// Discard parameters.
	Reason       DiscardReason `json:"reason,omitempty" msgpack:"reason,omitempty" cbor:"13,keyasint,omitempty" yaml:"reason,omitempty" bson:"reason,omitempty"`
	Duration     int32         `json:"duration,omitempty" msgpack:"duration,omitempty" cbor:"14,keyasint,omitempty" yaml:"duration,omitempty" bson:"duration,omitempty"`
	ConnectionID int64         `json:"connection_id,omitempty" msgpack:"connection_id,omitempty" cbor:"15,keyasint,omitempty" yaml:"connection_id,omitempty" bson:"connection_id,omitempty"`

	// Post-call follow-ups.
	Rating  int32  `json:"rating,omitempty" msgpack:"rating,omitempty" cbor:"16,keyasint,omitempty" yaml:"rating,omitempty" bson:"rating,omitempty"`
	Comment string `json:"comment,omitempty" msgpack:"comment,omitempty" cbor:"17,keyasint,omitempty" yaml:"comment,omitempty" bson:"comment,omitempty"`
	Debug   string `json:"debug,omitempty" msgpack:"debug,omitempty" cbor:"18,keyasint,omitempty" yaml:"debug,omitempty" bson:"debug,omitempty"`
	LogFile string `json:"log_file,omitempty" msgpack:"log_file,omitempty" cbor:"19,keyasint,omitempty" yaml:"log_file,omitempty" bson:"log_file,omitempty"`

	// In-call signaling payload.
	SignalingData []byte `json:"signaling_data,omitempty" msgpack:"signaling_data,omitempty" cbor:"20,keyasint,omitempty" yaml:"signaling_data,omitempty" bson:"signaling_data,omitempty"`

	// Conference call the offer proposes to associate with.
	GroupCallID string `json:"group_call_id,omitempty" msgpack:"group_call_id,omitempty" cbor:"21,keyasint,omitempty" yaml:"group_call_id,omitempty" bson:"group_call_id,omitempty"`
}

// DhConfigPayload carries DH domain parameters in a GetDhConfig response. A
// nil Prime with NotModified set means the client's cached version is still
// current.
type DhConfigPayload struct {
	G           int32  `json:"g,omitempty" msgpack:"g,omitempty" cbor:"1,keyasint,omitempty" yaml:"g,omitempty" bson:"g,omitempty"`
	Prime       []byte `json:"p,omitempty" msgpack:"p,omitempty" cbor:"2,keyasint,omitempty" yaml:"p,omitempty" bson:"p,omitempty"`
	Version     int32  `json:"version" msgpack:"version" cbor:"3,keyasint" yaml:"version" bson:"version"`
	NotModified bool   `json:"not_modified,omitempty" msgpack:"not_modified,omitempty" cbor:"4,keyasint,omitempty" yaml:"not_modified,omitempty" bson:"not_modified,omitempty"`
}

// Response is the single completion of a Request. Method echoes the request;
// the remaining fields are populated per method.
type Response struct {
	Method Method `json:"method" msgpack:"method" cbor:"1,keyasint" yaml:"method" bson:"method"`

	// Update is the call object returned by requestCall, acceptCall and
	// confirmCall, and optionally by discardCall.
	Update *CallUpdate `json:"update,omitempty" msgpack:"update,omitempty" cbor:"2,keyasint,omitempty" yaml:"update,omitempty" bson:"update,omitempty"`

	// DhConfig is set for getDhConfig.
	DhConfig *DhConfigPayload `json:"dh_config,omitempty" msgpack:"dh_config,omitempty" cbor:"3,keyasint,omitempty" yaml:"dh_config,omitempty" bson:"dh_config,omitempty"`

	// Config is the opaque call library config blob for getCallConfig.
	Config string `json:"config,omitempty" msgpack:"config,omitempty" cbor:"4,keyasint,omitempty" yaml:"config,omitempty" bson:"config,omitempty"`

	// Updates is an opaque server update batch folded into the hosting
	// process (discardCall, setCallRating).
	Updates []byte `json:"updates,omitempty" msgpack:"updates,omitempty" cbor:"5,keyasint,omitempty" yaml:"updates,omitempty" bson:"updates,omitempty"`

	// Ack is the server verdict for saveCallDebug: false asks the client to
	// upload the full call log.
	Ack bool `json:"ack,omitempty" msgpack:"ack,omitempty" cbor:"6,keyasint,omitempty" yaml:"ack,omitempty" bson:"ack,omitempty"`
}

// UpdateKind discriminates the CallUpdate union.
type UpdateKind uint8

const (
	UpdateKindEmpty     UpdateKind = 1 // Call no longer exists server-side
	UpdateKindWaiting   UpdateKind = 2 // Offer registered, peer not yet answered
	UpdateKindRequested UpdateKind = 3 // Incoming offer with key commitment
	UpdateKindAccepted  UpdateKind = 4 // Responder public value available
	UpdateKindReady     UpdateKind = 5 // Key exchange complete, endpoints attached
	UpdateKindDiscarded UpdateKind = 6 // Call terminated
)

// String returns the wire name of the update kind.
func (k UpdateKind) String() string {
	switch k {
	case UpdateKindEmpty:
		return "empty"
	case UpdateKindWaiting:
		return "waiting"
	case UpdateKindRequested:
		return "requested"
	case UpdateKindAccepted:
		return "accepted"
	case UpdateKindReady:
		return "ready"
	case UpdateKindDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// CallUpdate is the tagged union of per-call events, delivered both as RPC
// results and as server-initiated pushes. Kind selects the populated fields.
type CallUpdate struct {
	Kind UpdateKind `json:"kind" msgpack:"kind" cbor:"1,keyasint" yaml:"kind" bson:"kind"`

	// Identity, present on all kinds except Empty.
	ID            int64 `json:"id,omitempty" msgpack:"id,omitempty" cbor:"2,keyasint,omitempty" yaml:"id,omitempty" bson:"id,omitempty"`
	AccessHash    int64 `json:"access_hash,omitempty" msgpack:"access_hash,omitempty" cbor:"3,keyasint,omitempty" yaml:"access_hash,omitempty" bson:"access_hash,omitempty"`
	AdminID       int64 `json:"admin_id,omitempty" msgpack:"admin_id,omitempty" cbor:"4,keyasint,omitempty" yaml:"admin_id,omitempty" bson:"admin_id,omitempty"`
	ParticipantID int64 `json:"participant_id,omitempty" msgpack:"participant_id,omitempty" cbor:"5,keyasint,omitempty" yaml:"participant_id,omitempty" bson:"participant_id,omitempty"`
	IsVideo       bool  `json:"is_video,omitempty" msgpack:"is_video,omitempty" cbor:"6,keyasint,omitempty" yaml:"is_video,omitempty" bson:"is_video,omitempty"`

	// Waiting: non-zero once the callee device acknowledged ringing.
	ReceiveDate int64 `json:"receive_date,omitempty" msgpack:"receive_date,omitempty" cbor:"7,keyasint,omitempty" yaml:"receive_date,omitempty" bson:"receive_date,omitempty"`

	// Requested: the offerer's key commitment.
	GAHash []byte `json:"g_a_hash,omitempty" msgpack:"g_a_hash,omitempty" cbor:"8,keyasint,omitempty" yaml:"g_a_hash,omitempty" bson:"g_a_hash,omitempty"`

	// Accepted: the responder's public value.
	GB []byte `json:"g_b,omitempty" msgpack:"g_b,omitempty" cbor:"9,keyasint,omitempty" yaml:"g_b,omitempty" bson:"g_b,omitempty"`

	// Ready: the peer's revealed public value, key fingerprint, negotiated
	// protocol and media endpoints.
	GAOrB            []byte           `json:"g_a_or_b,omitempty" msgpack:"g_a_or_b,omitempty" cbor:"10,keyasint,omitempty" yaml:"g_a_or_b,omitempty" bson:"g_a_or_b,omitempty"`
	KeyFingerprint   int64            `json:"key_fingerprint,omitempty" msgpack:"key_fingerprint,omitempty" cbor:"11,keyasint,omitempty" yaml:"key_fingerprint,omitempty" bson:"key_fingerprint,omitempty"`
	Protocol         *CallProtocol    `json:"protocol,omitempty" msgpack:"protocol,omitempty" cbor:"12,keyasint,omitempty" yaml:"protocol,omitempty" bson:"protocol,omitempty"`
	Connections      []CallConnection `json:"connections,omitempty" msgpack:"connections,omitempty" cbor:"13,keyasint,omitempty" yaml:"connections,omitempty" bson:"connections,omitempty"`
	AllowP2P         bool             `json:"allow_p2p,omitempty" msgpack:"allow_p2p,omitempty" cbor:"14,keyasint,omitempty" yaml:"allow_p2p,omitempty" bson:"allow_p2p,omitempty"`
	CustomParameters string           `json:"custom_parameters,omitempty" msgpack:"custom_parameters,omitempty" cbor:"15,keyasint,omitempty" yaml:"custom_parameters,omitempty" bson:"custom_parameters,omitempty"`
	StartDate        int64            `json:"start_date,omitempty" msgpack:"start_date,omitempty" cbor:"16,keyasint,omitempty" yaml:"start_date,omitempty" bson:"start_date,omitempty"`

	// Discarded: termination details and requested follow-ups.
	Reason     DiscardReason `json:"reason,omitempty" msgpack:"reason,omitempty" cbor:"17,keyasint,omitempty" yaml:"reason,omitempty" bson:"reason,omitempty"`
	Duration   int32         `json:"duration,omitempty" msgpack:"duration,omitempty" cbor:"18,keyasint,omitempty" yaml:"duration,omitempty" bson:"duration,omitempty"`
	NeedRating bool          `json:"need_rating,omitempty" msgpack:"need_rating,omitempty" cbor:"19,keyasint,omitempty" yaml:"need_rating,omitempty" bson:"need_rating,omitempty"`
	NeedDebug  bool          `json:"need_debug,omitempty" msgpack:"need_debug,omitempty" cbor:"20,keyasint,omitempty" yaml:"need_debug,omitempty" bson:"need_debug,omitempty"`
	NeedLog    bool          `json:"need_log,omitempty" msgpack:"need_log,omitempty" cbor:"21,keyasint,omitempty" yaml:"need_log,omitempty" bson:"need_log,omitempty"`

	// Conference call the peers agreed to migrate to, mutable after Ready.
	GroupCallID string `json:"group_call_id,omitempty" msgpack:"group_call_id,omitempty" cbor:"22,keyasint,omitempty" yaml:"group_call_id,omitempty" bson:"group_call_id,omitempty"`
}

// Validate rejects structurally malformed updates before they reach the call
// engine. An unknown kind is a protocol violation, not a fatal call error.
func (u *CallUpdate) Validate() error {
	switch u.Kind {
	case UpdateKindEmpty:
		return nil
	case UpdateKindWaiting, UpdateKindDiscarded:
	case UpdateKindRequested:
		if len(u.GAHash) == 0 {
			return ErrInvalidMessage
		}
	case UpdateKindAccepted:
		if len(u.GB) == 0 {
			return ErrInvalidMessage
		}
	case UpdateKindReady:
		if len(u.GAOrB) == 0 {
			return ErrInvalidMessage
		}
	default:
		return ErrProtocolViolation
	}
	if u.ID == 0 {
		return ErrInvalidMessage
	}
	return nil
}
