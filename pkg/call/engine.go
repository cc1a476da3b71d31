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

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeremyhahn/go-securecall/pkg/dh"
	"github.com/jeremyhahn/go-securecall/pkg/transport"
)

// engineState is the internal negotiation phase. Send* states hold work the
// control loop still has to start; Wait* states hold an in-flight request.
type engineState uint8

const (
	stateEmpty engineState = iota
	stateSendRequest
	stateWaitRequestResult
	stateSendAccept
	stateWaitAcceptResult
	stateSendConfirm
	stateWaitConfirmResult
	stateReady
	stateSendDiscard
	stateWaitDiscardResult
	stateDiscarded
)

// Deps are the engine's injected collaborators. Channel, DhProvider and
// Updates are required; the rest are optional.
type Deps struct {
	Channel    transport.Channel
	DhProvider dh.Provider
	PrimeCache dh.PrimeCache
	Options    Options
	Updates    UpdateSink

	Notifications NotificationSink
	Signaling     SignalingSink
	ServerUpdates ServerUpdateSink
	Logs          LogUploader
	Logger        zerolog.Logger
}

// Engine negotiates one end-to-end encrypted call. All state is owned by a
// single goroutine fed through a mailbox; public methods post commands into
// it and never touch state directly, so the engine needs no locks.
//
// The engine lives until the call is discarded and every server-requested
// follow-up (rating, debug information, log upload) has been delivered.
type Engine struct {
	deps Deps
	log  zerolog.Logger

	mailbox chan func()
	stopped chan struct{}

	localID    int64
	peerID     int64
	isOutgoing bool
	isVideo    bool
	randomID   int32

	state     engineState
	callState State
	dirty     bool

	callID        int64
	accessHash    int64
	adminID       int64
	participantID int64
	groupCallID   string

	protocol   transport.CallProtocol
	isAccepted bool
	notified   bool

	discardReason transport.DiscardReason
	duration      int32
	connectionID  int64

	handshake      dh.Handshake
	dhConfig       *dh.Config
	dhLoading      bool
	handshakeReady bool
	keyDone        bool
	key            []byte
	keyFingerprint int64

	config    string
	hasConfig bool

	pending       *pendingRequests
	offerToken    transport.Token
	hasOfferToken bool

	timer    *time.Timer
	timerGen uint64
}

// NewEngine creates an engine for one call and starts its goroutine. The
// localID is the owner's handle for this call, echoed in every snapshot.
// Outgoing engines are driven by CreateCall; incoming engines by the first
// Requested update handed to HandleUpdate.
func NewEngine(localID, peerID int64, isOutgoing bool, deps Deps) (*Engine, error) {
	if deps.Channel == nil || deps.DhProvider == nil || deps.Updates == nil {
		return nil, NewError(500, "Channel, DhProvider and Updates are required")
	}
	if deps.Options == nil {
		deps.Options = StaticOptions(nil)
	}

	e := &Engine{
		deps:       deps,
		localID:    localID,
		peerID:     peerID,
		isOutgoing: isOutgoing,
		mailbox:    make(chan func(), 64),
		stopped:    make(chan struct{}),
		pending:    newPendingRequests(),
	}
	e.log = deps.Logger.With().
		Int64("call_id", localID).
		Int64("peer_id", peerID).
		Bool("outgoing", isOutgoing).
		Logger()

	go e.run()
	e.post(e.requestCallConfig)
	return e, nil
}

// Done is closed when the engine goroutine has stopped.
func (e *Engine) Done() <-chan struct{} {
	return e.stopped
}

// CreateCall starts an outgoing call offer to the peer. Valid exactly once,
// before any other event. A non-empty groupCallID proposes associating the
// call with that conference from the start.
func (e *Engine) CreateCall(protocol transport.CallProtocol, isVideo bool, groupCallID string) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		if e.state != stateEmpty {
			result <- NewError(400, "Call is already created")
			return
		}
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			result <- NewError(500, err.Error())
			return
		}
		e.randomID = int32(binary.LittleEndian.Uint32(buf[:]) >> 1)
		e.protocol = protocol
		e.isVideo = isVideo
		e.groupCallID = groupCallID
		e.state = stateSendRequest
		e.callState.Type = StatePending
		e.dirty = true
		result <- nil
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// Accept answers an incoming call that is ringing.
func (e *Engine) Accept(protocol transport.CallProtocol) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		if e.state != stateSendAccept {
			result <- ErrUnexpectedAccept
			return
		}
		e.isAccepted = true
		e.protocol = protocol
		result <- nil
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// Discard ends the call from the local side. The reason reported to the
// server depends on the phase and on isDisconnected: an unanswered outgoing
// offer is Missed, an unanswered incoming one Declined, a broken established
// call Disconnected and a deliberate local end HungUp. Duration and
// connectionID are only meaningful for calls that reached Ready.
func (e *Engine) Discard(isDisconnected bool, duration int32, connectionID int64) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		defer func() { result <- nil }()
		switch e.state {
		case stateSendDiscard, stateWaitDiscardResult, stateDiscarded:
			return
		}
		switch e.callState.Type {
		case StatePending, 0:
			if e.isOutgoing {
				e.discardReason = transport.DiscardReasonMissed
			} else {
				e.discardReason = transport.DiscardReasonDeclined
			}
		case StateExchangingKeys:
			if isDisconnected {
				e.discardReason = transport.DiscardReasonDisconnected
			} else {
				e.discardReason = transport.DiscardReasonHungUp
			}
		case StateReady:
			if isDisconnected {
				e.discardReason = transport.DiscardReasonDisconnected
			} else {
				e.discardReason = transport.DiscardReasonHungUp
			}
			e.duration = duration
			e.connectionID = connectionID
		default:
			return
		}
		e.cancelTimeout()
		e.cancelOffer()
		e.state = stateSendDiscard
		e.callState.Type = StateHangingUp
		e.dirty = true
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// HandleUpdate feeds a server event for this call into the engine. Updates
// that do not match the current phase are dropped; structurally malformed
// events fail the call with a protocol error.
func (e *Engine) HandleUpdate(u *transport.CallUpdate) error {
	if !e.post(func() { e.applyUpdate(u) }) {
		return ErrCallFinished
	}
	return nil
}

// SendSignalingData ships an in-call signaling payload to the peer. Only
// valid while the call is Ready.
func (e *Engine) SendSignalingData(data []byte) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		if e.callState.Type != StateReady {
			result <- ErrCallNotActive
			return
		}
		e.send(&transport.Request{
			Method:        transport.MethodSendSignalingData,
			CallID:        e.callID,
			AccessHash:    e.accessHash,
			SignalingData: data,
		}, func(resp *transport.Response, err error) {
			result <- errOrNil(err)
		})
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// ReceiveSignalingData delivers a signaling payload from the peer to the
// owner's SignalingSink. Payloads outside the Ready phase are dropped.
func (e *Engine) ReceiveSignalingData(data []byte) error {
	ok := e.post(func() {
		if e.callState.Type != StateReady {
			e.log.Debug().Msg("dropping signaling data outside ready state")
			return
		}
		if e.deps.Signaling != nil {
			e.deps.Signaling.OnSignalingData(data)
		}
	})
	if !ok {
		return ErrCallFinished
	}
	return nil
}

// Rate submits the post-call quality rating the server asked for. For
// ratings below five the problem tags are deduplicated and folded into the
// comment.
func (e *Engine) Rate(rating int32, comment string, tags []string) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		if !e.callState.NeedRating {
			result <- ErrUnexpectedRating
			return
		}
		e.send(&transport.Request{
			Method:     transport.MethodSetRating,
			CallID:     e.callID,
			AccessHash: e.accessHash,
			Rating:     rating,
			Comment:    foldRatingComment(rating, comment, tags),
		}, func(resp *transport.Response, err error) {
			if err != nil {
				result <- wrapError(err)
				return
			}
			if e.callState.NeedRating {
				e.callState.NeedRating = false
				e.dirty = true
			}
			if resp != nil && len(resp.Updates) > 0 && e.deps.ServerUpdates != nil {
				e.deps.ServerUpdates.OnServerUpdates(resp.Updates)
			}
			result <- nil
		})
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// SendDebugInformation submits the post-call debug blob the server asked
// for. A negative server verdict upgrades the request to a full log upload.
func (e *Engine) SendDebugInformation(debug string) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		if !e.callState.NeedDebugInformation {
			result <- ErrUnexpectedDebug
			return
		}
		e.send(&transport.Request{
			Method:     transport.MethodSaveDebug,
			CallID:     e.callID,
			AccessHash: e.accessHash,
			Debug:      debug,
		}, func(resp *transport.Response, err error) {
			if err != nil {
				result <- wrapError(err)
				return
			}
			e.callState.NeedDebugInformation = false
			e.dirty = true
			if resp != nil && !resp.Ack && !e.callState.NeedLog {
				e.callState.NeedLog = true
			}
			result <- nil
		})
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// SendLog uploads the call log file the server asked for and submits its
// reference.
func (e *Engine) SendLog(path string) error {
	result := make(chan error, 1)
	ok := e.post(func() {
		if !e.callState.NeedLog {
			result <- ErrUnexpectedLog
			return
		}
		if e.deps.Logs == nil {
			result <- NewError(500, "Log uploader is not configured")
			return
		}
		go func() {
			fileRef, err := e.deps.Logs.Upload(context.Background(), path)
			if !e.post(func() {
				if err != nil {
					result <- wrapError(err)
					return
				}
				e.send(&transport.Request{
					Method:     transport.MethodSaveLog,
					CallID:     e.callID,
					AccessHash: e.accessHash,
					LogFile:    fileRef,
				}, func(resp *transport.Response, sendErr error) {
					if sendErr != nil {
						result <- wrapError(sendErr)
						return
					}
					e.callState.NeedLog = false
					e.dirty = true
					result <- nil
				})
			}) {
				result <- ErrAborted
			}
		}()
	})
	if !ok {
		return ErrCallFinished
	}
	return <-result
}

// run is the engine goroutine: one mailbox message per pass, then the
// control loop and a single flush.
func (e *Engine) run() {
	for fn := range e.mailbox {
		fn()
		e.pass()
		if e.state == stateDiscarded && !e.hasFollowUps() {
			e.shutdown()
			return
		}
	}
}

// pass runs the control loop until the phase settles, then flushes.
func (e *Engine) pass() {
	for i := 0; i < 4; i++ {
		prev := e.state
		e.loop()
		if e.state == prev {
			break
		}
	}
	e.flush()
}

func (e *Engine) loop() {
	switch e.state {
	case stateSendRequest:
		e.trySendRequest()
	case stateSendAccept:
		e.trySendAccept()
	case stateSendConfirm:
		e.trySendConfirm()
	case stateSendDiscard:
		e.trySendDiscard()
	}
}

func (e *Engine) hasFollowUps() bool {
	return e.callState.Type == StateDiscarded &&
		(e.callState.NeedRating || e.callState.NeedDebugInformation || e.callState.NeedLog)
}

// post enqueues fn on the mailbox unless the engine has stopped.
func (e *Engine) post(fn func()) bool {
	select {
	case <-e.stopped:
		return false
	default:
	}
	select {
	case e.mailbox <- fn:
		return true
	case <-e.stopped:
		return false
	}
}

func (e *Engine) shutdown() {
	e.cancelTimeout()
	e.removeNotification()
	close(e.stopped)
	e.pending.abortAll(ErrAborted)
	e.handshake.Zeroize()
	e.log.Info().Str("state", e.callState.Type.String()).Msg("closing call")
}

// send registers a continuation and issues the request. The completion
// re-enters the mailbox, so continuations always run on the engine
// goroutine and each resolves at most once.
func (e *Engine) send(req *transport.Request, cont transport.ResultFunc) transport.Token {
	token := e.pending.register(cont)
	e.deps.Channel.Send(token, req, func(resp *transport.Response, err error) {
		e.post(func() {
			if c, ok := e.pending.extract(token); ok {
				c(resp, err)
			}
		})
	})
	return token
}

func (e *Engine) cancelOffer() {
	if !e.hasOfferToken {
		return
	}
	e.hasOfferToken = false
	e.pending.drop(e.offerToken)
	e.deps.Channel.Cancel(e.offerToken)
}

func (e *Engine) startTimeout(option string, def int64) {
	ms := e.deps.Options.GetOption(option, def)
	e.cancelTimeout()
	gen := e.timerGen
	e.timer = time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		e.post(func() {
			if gen != e.timerGen {
				return
			}
			e.timer = nil
			e.log.Debug().Str("timeout", option).Msg("call phase timed out")
			e.onError(ErrTimeout)
		})
	})
}

func (e *Engine) cancelTimeout() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// requestCallConfig fetches the opaque call library config blob. The Ready
// state is not reported to the owner until it has arrived.
func (e *Engine) requestCallConfig() {
	e.send(&transport.Request{Method: transport.MethodGetCallConfig},
		func(resp *transport.Response, err error) {
			if err != nil {
				e.onError(err)
				return
			}
			e.config = resp.Config
			e.hasConfig = true
		})
}

// loadDhConfig returns true when DH parameters are available, kicking off an
// asynchronous fetch otherwise. The control loop re-enters once the fetch
// completes.
func (e *Engine) loadDhConfig() bool {
	if e.dhConfig != nil {
		return true
	}
	if e.dhLoading {
		return false
	}
	if cached := e.deps.DhProvider.Cached(); cached != nil {
		e.dhConfig = cached
		return true
	}
	e.dhLoading = true
	go func() {
		cfg, err := e.deps.DhProvider.Fetch(context.Background())
		e.post(func() {
			e.dhLoading = false
			if err != nil {
				e.log.Error().Err(err).Msg("dh config fetch failed")
				e.onError(ErrNoDhConfig)
				return
			}
			if err := dh.CheckConfig(cfg, e.deps.PrimeCache); err != nil {
				e.onError(NewError(400, err.Error()))
				return
			}
			e.dhConfig = cfg
		})
	}()
	return false
}

func (e *Engine) initHandshake() bool {
	if e.handshakeReady {
		return true
	}
	if err := e.handshake.SetConfig(e.dhConfig); err != nil {
		e.onError(NewError(500, err.Error()))
		return false
	}
	e.handshakeReady = true
	return true
}

func (e *Engine) trySendRequest() {
	if !e.loadDhConfig() {
		return
	}
	if !e.initHandshake() {
		return
	}
	e.state = stateWaitRequestResult
	e.startTimeout(OptionReceiveTimeoutMs, DefaultReceiveTimeoutMs)
	e.offerToken = e.send(&transport.Request{
		Method:      transport.MethodRequestCall,
		PeerID:      e.peerID,
		RandomID:    e.randomID,
		DhVersion:   e.dhConfig.Version,
		GAHash:      e.handshake.GBHash(),
		Protocol:    &e.protocol,
		IsVideo:     e.isVideo,
		GroupCallID: e.groupCallID,
	}, func(resp *transport.Response, err error) {
		e.hasOfferToken = false
		if err != nil {
			e.onError(err)
			return
		}
		if resp.Update == nil {
			e.onError(NewError(500, "Empty requestCall response"))
			return
		}
		e.applyUpdate(resp.Update)
	})
	e.hasOfferToken = true
}

func (e *Engine) trySendAccept() {
	if !e.isAccepted {
		return
	}
	if !e.loadDhConfig() {
		return
	}
	if !e.initHandshake() {
		return
	}
	e.state = stateWaitAcceptResult
	e.send(&transport.Request{
		Method:     transport.MethodAcceptCall,
		CallID:     e.callID,
		AccessHash: e.accessHash,
		DhVersion:  e.dhConfig.Version,
		GB:         e.handshake.GB(),
		Protocol:   &e.protocol,
	}, func(resp *transport.Response, err error) {
		if err != nil {
			e.onError(err)
			return
		}
		if resp.Update != nil {
			e.applyUpdate(resp.Update)
		}
	})
}

func (e *Engine) trySendConfirm() {
	e.state = stateWaitConfirmResult
	e.send(&transport.Request{
		Method:         transport.MethodConfirmCall,
		CallID:         e.callID,
		AccessHash:     e.accessHash,
		GA:             e.handshake.GB(),
		KeyFingerprint: e.keyFingerprint,
	}, func(resp *transport.Response, err error) {
		if err != nil {
			e.onError(err)
			return
		}
		if resp.Update == nil {
			e.onError(NewError(500, "Empty confirmCall response"))
			return
		}
		e.applyUpdate(resp.Update)
	})
}

func (e *Engine) trySendDiscard() {
	if e.callID == 0 {
		// Never registered server-side, nothing to tell the relay.
		e.state = stateDiscarded
		e.finalizeDiscard()
		return
	}
	e.state = stateWaitDiscardResult
	e.send(&transport.Request{
		Method:       transport.MethodDiscardCall,
		CallID:       e.callID,
		AccessHash:   e.accessHash,
		Reason:       e.discardReason,
		Duration:     e.duration,
		ConnectionID: e.connectionID,
		IsVideo:      e.isVideo,
	}, func(resp *transport.Response, err error) {
		if err != nil {
			e.onError(err)
			return
		}
		if resp.Update != nil {
			e.applyUpdate(resp.Update)
		}
		if len(resp.Updates) > 0 && e.deps.ServerUpdates != nil {
			e.deps.ServerUpdates.OnServerUpdates(resp.Updates)
		}
		if e.state == stateWaitDiscardResult {
			e.state = stateDiscarded
			e.finalizeDiscard()
		}
	})
}

// finalizeDiscard settles the observable state for a locally ended call when
// no Discarded update did it first.
func (e *Engine) finalizeDiscard() {
	if e.callState.Type == StateError {
		return
	}
	if e.callState.Type != StateDiscarded {
		e.callState.Type = StateDiscarded
		e.callState.DiscardReason = e.discardReason
		e.dirty = true
	}
	e.removeNotification()
}

func (e *Engine) sendReceivedAck() {
	e.send(&transport.Request{
		Method:     transport.MethodReceivedCall,
		CallID:     e.callID,
		AccessHash: e.accessHash,
	}, func(resp *transport.Response, err error) {
		if err != nil {
			e.onError(err)
		}
	})
}

// applyUpdate folds one server event into the engine, whether it arrived as
// a push or as an RPC result. Events that do not match the current phase are
// dropped, which makes redelivery harmless; structurally malformed events
// fail the call through the error path.
func (e *Engine) applyUpdate(u *transport.CallUpdate) {
	if verr := u.Validate(); verr != nil {
		e.log.Debug().Str("kind", u.Kind.String()).Err(verr).Msg("malformed call update")
		e.onError(NewError(400, verr.Error()))
		return
	}
	e.log.Debug().Str("kind", u.Kind.String()).Msg("call update")
	var err *Error
	switch u.Kind {
	case transport.UpdateKindEmpty:
		err = ErrCallFinished
	case transport.UpdateKindWaiting:
		err = e.applyWaiting(u)
	case transport.UpdateKindRequested:
		err = e.applyRequested(u)
	case transport.UpdateKindAccepted:
		err = e.applyAccepted(u)
	case transport.UpdateKindReady:
		err = e.applyReady(u)
	case transport.UpdateKindDiscarded:
		err = e.applyDiscarded(u)
	}
	if err != nil {
		e.onError(err)
	}
}

func (e *Engine) captureIdentity(u *transport.CallUpdate) {
	if u.ID != 0 {
		e.callID = u.ID
	}
	if u.AccessHash != 0 {
		e.accessHash = u.AccessHash
	}
	if u.AdminID != 0 {
		e.adminID = u.AdminID
	}
	if u.ParticipantID != 0 {
		e.participantID = u.ParticipantID
	}
	if u.GroupCallID != "" && u.GroupCallID != e.groupCallID {
		e.groupCallID = u.GroupCallID
		e.dirty = true
	}
}

func (e *Engine) applyWaiting(u *transport.CallUpdate) *Error {
	if e.state != stateWaitRequestResult && e.state != stateWaitAcceptResult {
		e.log.Debug().Msg("dropping waiting update")
		return nil
	}
	e.captureIdentity(u)
	if !e.callState.IsCreated {
		e.callState.IsCreated = true
		e.dirty = true
	}
	if e.state == stateWaitAcceptResult {
		e.enterExchangingKeys()
		return nil
	}
	if u.ReceiveDate != 0 && !e.callState.IsReceived {
		e.callState.IsReceived = true
		e.dirty = true
		e.startTimeout(OptionRingTimeoutMs, DefaultRingTimeoutMs)
	}
	return nil
}

func (e *Engine) applyRequested(u *transport.CallUpdate) *Error {
	if e.state != stateEmpty {
		e.log.Debug().Msg("dropping requested update")
		return nil
	}
	e.captureIdentity(u)
	e.isVideo = u.IsVideo
	e.handshake.SetPeerHash(u.GAHash)
	e.state = stateSendAccept
	e.callState.Type = StatePending
	e.callState.IsCreated = true
	e.callState.IsReceived = true
	e.dirty = true
	e.addNotification()
	e.sendReceivedAck()
	return nil
}

func (e *Engine) applyAccepted(u *transport.CallUpdate) *Error {
	if e.state != stateWaitRequestResult {
		e.log.Debug().Msg("dropping accepted update")
		return nil
	}
	e.captureIdentity(u)
	e.handshake.SetPeerKey(u.GB)
	if err := e.handshake.RunChecks(e.deps.PrimeCache); err != nil {
		return NewError(400, err.Error())
	}
	e.deriveKey()
	e.state = stateSendConfirm
	e.enterExchangingKeys()
	return nil
}

func (e *Engine) applyReady(u *transport.CallUpdate) *Error {
	if e.state == stateReady {
		// Only the conference-call association may change after Ready.
		e.captureIdentity(u)
		return nil
	}
	if e.state != stateWaitAcceptResult && e.state != stateWaitConfirmResult {
		e.log.Debug().Msg("dropping ready update")
		return nil
	}
	e.captureIdentity(u)
	if e.state == stateWaitAcceptResult {
		// Responder path: the offerer's value is revealed only now.
		e.handshake.SetPeerKey(u.GAOrB)
		if err := e.handshake.RunChecks(e.deps.PrimeCache); err != nil {
			return NewError(400, err.Error())
		}
		e.deriveKey()
	}
	if e.keyFingerprint != u.KeyFingerprint {
		return ErrFingerprintMismatch
	}

	// The emoji sequence hashes the key with the offerer's public value,
	// which is our own value on the offering side and the peer's otherwise.
	offererValue := u.GAOrB
	if e.isOutgoing {
		offererValue = e.handshake.GB()
	}
	e.callState.Key = e.key
	e.callState.EmojiFingerprint = dh.EmojiFingerprint(e.key, offererValue)
	if u.Protocol != nil {
		e.callState.Protocol = *u.Protocol
	}
	e.callState.Connections = u.Connections
	e.callState.AllowP2P = u.AllowP2P
	e.callState.CustomParameters = u.CustomParameters

	e.state = stateReady
	e.callState.Type = StateReady
	e.dirty = true
	e.cancelTimeout()
	e.removeNotification()
	return nil
}

func (e *Engine) applyDiscarded(u *transport.CallUpdate) *Error {
	e.captureIdentity(u)
	e.cancelTimeout()
	e.cancelOffer()
	e.state = stateDiscarded
	if u.Reason != transport.DiscardReasonEmpty ||
		e.callState.DiscardReason == transport.DiscardReasonEmpty {
		e.callState.DiscardReason = u.Reason
	}
	if e.callState.Type != StateError {
		e.callState.Type = StateDiscarded
		e.callState.NeedRating = u.NeedRating
		e.callState.NeedDebugInformation = u.NeedDebug
		e.callState.NeedLog = u.NeedLog
		e.dirty = true
	}
	e.removeNotification()
	return nil
}

func (e *Engine) deriveKey() {
	if e.keyDone {
		return
	}
	e.keyDone = true
	e.keyFingerprint, e.key = e.handshake.GenKey()
}

func (e *Engine) enterExchangingKeys() {
	if e.callState.Type != StateExchangingKeys {
		e.callState.Type = StateExchangingKeys
		e.dirty = true
	}
	e.startTimeout(OptionExchangeTimeoutMs, DefaultExchangeTimeoutMs)
}

// onError routes any failure into the discard path: the server learns the
// call ended (Missed before it was established, Disconnected after) and the
// owner sees the Error state.
func (e *Engine) onError(err error) {
	callErr := wrapError(err)
	e.log.Debug().Int32("code", callErr.Code).Str("message", callErr.Message).Msg("call failed")
	e.cancelTimeout()
	e.cancelOffer()

	if e.state == stateWaitDiscardResult || e.state == stateDiscarded {
		e.state = stateDiscarded
	} else {
		if e.callState.Type == StatePending || e.callState.Type == 0 {
			e.discardReason = transport.DiscardReasonMissed
		} else {
			e.discardReason = transport.DiscardReasonDisconnected
		}
		e.state = stateSendDiscard
	}
	e.callState.Type = StateError
	e.callState.Error = callErr
	e.dirty = true
	e.removeNotification()
}

// flush reports the coalesced state to the owner once per pass. A Ready
// state waits for the call config blob; the dirty flag survives the gate so
// the snapshot goes out as soon as the blob lands.
func (e *Engine) flush() {
	if !e.dirty {
		return
	}
	if e.callState.Type == StateReady && !e.hasConfig {
		return
	}
	e.dirty = false
	if e.callState.Type == StateReady {
		e.callState.Config = e.config
	}

	state := e.callState
	state.Key = append([]byte(nil), e.callState.Key...)
	state.Connections = append([]transport.CallConnection(nil), e.callState.Connections...)

	e.deps.Updates.OnCallUpdate(Update{
		CallID:      e.localID,
		RemoteID:    e.callID,
		PeerID:      e.peerID,
		IsOutgoing:  e.isOutgoing,
		IsVideo:     e.isVideo,
		GroupCallID: e.groupCallID,
		State:       state,
	})
}

func (e *Engine) addNotification() {
	if e.deps.Notifications == nil || e.notified {
		return
	}
	e.notified = true
	e.deps.Notifications.AddIncomingCallNotification(e.localID, e.peerID, e.isVideo)
}

func (e *Engine) removeNotification() {
	if e.deps.Notifications == nil || !e.notified {
		return
	}
	e.notified = false
	e.deps.Notifications.RemoveIncomingCallNotification(e.localID)
}

func errOrNil(err error) error {
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// foldRatingComment merges problem tags into the free-form comment for poor
// ratings, deduplicating while preserving order.
func foldRatingComment(rating int32, comment string, tags []string) string {
	if rating >= 5 {
		return comment
	}
	seen := make(map[string]bool)
	parts := make([]string, 0, len(tags)+1)
	if comment != "" {
		parts = append(parts, comment)
	}
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}
