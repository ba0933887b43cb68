// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package session implements the receive-process-send orchestrator: the
// single place that owns one EDHOC handshake and at most one OSCORE
// context, routes inbound CoAP requests, and drains a completed handshake
// into a fresh OSCORE context.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/edhocd/gateway/internal/coap"
	"github.com/edhocd/gateway/internal/db"
	"github.com/edhocd/gateway/internal/edhoc"
	"github.com/edhocd/gateway/internal/identity"
	"github.com/edhocd/gateway/internal/oscore"
)

// Role selects which EDHOC party this orchestrator plays.
type Role int

const (
	RoleResponder Role = iota
	RoleInitiator
)

// Orchestrator drives one peer relationship: the EDHOC handshake state
// machine, the OSCORE context it bootstraps, and CoAP request routing. Not
// safe for concurrent calls — the transport's single receive loop is the
// only caller.
type Orchestrator struct {
	role Role
	id   identity.Party
	log  *slog.Logger
	audit *db.DB

	responder *edhoc.Responder
	initiator *edhoc.Initiator
	oscoreCtx *oscore.Context

	iteration int
}

// NewResponder constructs an orchestrator that waits for an incoming EDHOC
// handshake.
func NewResponder(id identity.Party, log *slog.Logger, audit *db.DB) *Orchestrator {
	return &Orchestrator{
		role:      RoleResponder,
		id:        id,
		log:       log,
		audit:     audit,
		responder: edhoc.NewResponder(id),
	}
}

// NewInitiator constructs an orchestrator that drives the EDHOC initiator
// role once StartHandshake is called.
func NewInitiator(id identity.Party, log *slog.Logger, audit *db.DB) *Orchestrator {
	return &Orchestrator{
		role:      RoleInitiator,
		id:        id,
		log:       log,
		audit:     audit,
		initiator: edhoc.NewInitiator(id),
	}
}

// StartHandshake builds the first outbound datagram for the initiator role:
// an EDHOC message 1 wrapped in a CoAP POST to /.well-known/edhoc. Only
// meaningful for RoleInitiator.
func (o *Orchestrator) StartHandshake(cu []byte, messageID uint16, token []byte) ([]byte, error) {
	if o.role != RoleInitiator {
		return nil, fmt.Errorf("session: StartHandshake is only valid for the initiator role")
	}
	out := o.initiator.StartHandshake(cu)
	if out.Kind != edhoc.OutcomeOK {
		return nil, fmt.Errorf("session: EDHOC message 1 generation failed: %+v", out)
	}
	// Two Uri-Path segments (".well-known", "edhoc") share option number 11;
	// CoAP repeats the option rather than encoding a single joined value.
	req := coap.Message{
		Type:      coap.TypeConfirmable,
		Code:      coap.CodePOST,
		MessageID: messageID,
		Token:     token,
		Options: []coap.Option{
			{Number: coap.OptionURIPath, Value: []byte(".well-known")},
			{Number: coap.OptionURIPath, Value: []byte("edhoc")},
		},
		Payload: out.Payload,
	}
	return req.Marshal()
}

// HandleResponse processes a datagram addressed to the initiator role as a
// reply to whatever it last sent: an EDHOC message 2 while
// InitiatorWaitingForMsg2, an application ack while InitiatorWaitingForAck,
// or an OSCORE-protected application response once InitiatorComplete. On
// completing the handshake it derives the OSCORE context and synthesises
// the first application request, alternating `/hello`/`/echo` by parity of
// an internal counter; every InitiatorComplete call after that continues
// the same alternating exchange via HandleApplicationResponse.
func (o *Orchestrator) HandleResponse(raw []byte, nextMessageID uint16, nextToken []byte) ([]byte, error) {
	if o.role != RoleInitiator {
		return nil, fmt.Errorf("session: HandleResponse is only valid for the initiator role")
	}
	outer, err := coap.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("session: undecodable response: %w", err)
	}

	switch o.initiator.State() {
	case edhoc.InitiatorWaitingForMsg2:
		out := o.initiator.HandleMessage2(outer.Payload)
		if out.Kind != edhoc.OutcomeOK {
			o.recordHandshake(outcomeLabel(out.Kind))
			return nil, fmt.Errorf("session: EDHOC message 2 processing failed: %+v", out)
		}
		req := coap.Message{
			Type:      coap.TypeConfirmable,
			Code:      coap.CodePOST,
			MessageID: nextMessageID,
			Token:     nextToken,
			Options: []coap.Option{
				{Number: coap.OptionURIPath, Value: []byte(".well-known")},
				{Number: coap.OptionURIPath, Value: []byte("edhoc")},
			},
			Payload: out.Payload,
		}
		return req.Marshal()

	case edhoc.InitiatorWaitingForAck:
		out := o.initiator.HandleAck(outer.Payload)
		if out.Kind != edhoc.OutcomeOK {
			o.recordHandshake(outcomeLabel(out.Kind))
			return nil, fmt.Errorf("session: EDHOC ack processing failed: %+v", out)
		}
		ms, salt, ok := o.initiator.TakeParams()
		if !ok {
			return nil, fmt.Errorf("session: handshake completed but no master parameters available")
		}
		ctx, err := oscore.DeriveContext(ms, salt, o.id.Kid, o.id.PeerKid)
		if err != nil {
			o.recordHandshake("own_error")
			return nil, fmt.Errorf("session: derive OSCORE context: %w", err)
		}
		o.oscoreCtx = ctx
		o.recordHandshake("complete")
		return o.nextApplicationRequest(nextMessageID, nextToken)

	case edhoc.InitiatorComplete:
		return o.HandleApplicationResponse(raw, nextMessageID, nextToken)

	default:
		return nil, fmt.Errorf("session: unexpected response in initiator state %d", o.initiator.State())
	}
}

// HandleApplicationResponse decrypts an OSCORE-protected application
// response and returns the next request in the alternating /hello, /echo
// sequence. Only meaningful once the handshake has completed and an OSCORE
// context exists; this is what drives every iteration after the first.
func (o *Orchestrator) HandleApplicationResponse(raw []byte, nextMessageID uint16, nextToken []byte) ([]byte, error) {
	if o.role != RoleInitiator {
		return nil, fmt.Errorf("session: HandleApplicationResponse is only valid for the initiator role")
	}
	if o.oscoreCtx == nil {
		return nil, fmt.Errorf("session: HandleApplicationResponse called before an OSCORE context exists")
	}
	outer, err := coap.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("session: undecodable application response: %w", err)
	}
	oscoreVal, hasOscore := outer.Option(coap.OptionOSCORE)
	if !hasOscore {
		return nil, fmt.Errorf("session: application response missing OSCORE option")
	}
	piv, _, err := oscore.DecodeOption(oscoreVal)
	if err != nil {
		return nil, fmt.Errorf("session: malformed OSCORE option: %w", err)
	}
	if _, err := oscore.Unprotect(o.oscoreCtx, outer.Payload, piv); err != nil {
		if err == oscore.ErrReplayDetected {
			o.recordReplay(piv)
		}
		return nil, fmt.Errorf("session: undecryptable application response: %w", err)
	}
	return o.nextApplicationRequest(nextMessageID, nextToken)
}

// nextApplicationRequest builds the alternating /hello, /echo request,
// OSCORE-protected.
func (o *Orchestrator) nextApplicationRequest(messageID uint16, token []byte) ([]byte, error) {
	o.iteration++
	path := "hello"
	var payload []byte
	if o.iteration%2 == 1 {
		path = "echo"
		payload = []byte(fmt.Sprintf("Iteration %d", o.iteration))
	}

	inner := coap.Message{
		Type:      coap.TypeConfirmable,
		Code:      coap.CodeGET,
		MessageID: messageID,
		Token:     token,
		Options:   []coap.Option{{Number: coap.OptionURIPath, Value: []byte(path)}},
		Payload:   payload,
	}
	plaintext := innerPlaintext(inner)
	ciphertext, piv, err := oscore.Protect(o.oscoreCtx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("session: protect first application request: %w", err)
	}
	optVal, err := oscore.EncodeOption(piv, o.id.Kid)
	if err != nil {
		return nil, err
	}
	outer := coap.Message{
		Type:      coap.TypeConfirmable,
		Code:      coap.CodePOST,
		MessageID: messageID,
		Token:     token,
		Options:   []coap.Option{{Number: coap.OptionOSCORE, Value: optVal}},
		Payload:   ciphertext,
	}
	return outer.Marshal()
}

func outcomeLabel(kind edhoc.OutcomeKind) string {
	switch kind {
	case edhoc.OutcomePeerError:
		return "peer_error"
	default:
		return "own_error"
	}
}

// HandleDatagram parses an inbound datagram, optionally unprotects it,
// routes it, optionally bootstraps OSCORE, optionally protects the
// response, and serializes it. Returns nil if the datagram should be
// dropped silently.
func (o *Orchestrator) HandleDatagram(raw []byte) []byte {
	outer, err := coap.Parse(raw)
	if err != nil {
		o.log.Debug("dropping undecodable datagram", "error", err)
		return nil
	}

	oscoreVal, hasOscore := outer.Option(coap.OptionOSCORE)
	inner := outer
	isOscore := false

	if hasOscore {
		if o.oscoreCtx == nil {
			o.log.Debug("dropping OSCORE message with no context established")
			return nil
		}
		piv, _, err := oscore.DecodeOption(oscoreVal)
		if err != nil {
			o.log.Debug("dropping malformed OSCORE option", "error", err)
			return nil
		}
		plaintext, err := oscore.Unprotect(o.oscoreCtx, outer.Payload, piv)
		if err != nil {
			if err == oscore.ErrReplayDetected {
				o.recordReplay(piv)
			}
			o.log.Debug("dropping undecryptable OSCORE message", "error", err)
			return nil
		}
		parsedInner, err := parseOscorePlaintext(plaintext, outer)
		if err != nil {
			o.log.Debug("dropping malformed OSCORE plaintext", "error", err)
			return nil
		}
		inner = parsedInner
		isOscore = true
	}

	resp, justCompleted := o.route(inner)

	if isOscore || justCompleted && o.oscoreCtx != nil {
		ciphertext, piv, err := oscore.Protect(o.oscoreCtx, innerPlaintext(resp))
		if err != nil {
			o.log.Debug("dropping response: OSCORE protect failed", "error", err)
			return nil
		}
		optVal, err := oscore.EncodeOption(piv, nil)
		if err != nil {
			return nil
		}
		outerResp := coap.Message{
			Type:      coap.TypeAcknowledgement,
			Code:      coap.CodeChanged,
			MessageID: outer.MessageID,
			Token:     outer.Token,
			Options:   []coap.Option{{Number: coap.OptionOSCORE, Value: optVal}},
			Payload:   ciphertext,
		}
		out, err := outerResp.Marshal()
		if err != nil {
			return nil
		}
		return out
	}

	out, err := resp.Marshal()
	if err != nil {
		return nil
	}
	return out
}

// route dispatches a request by URI path, draining a completed handshake
// into an OSCORE context when the dispatched operation finishes one.
func (o *Orchestrator) route(req coap.Message) (resp coap.Message, justCompleted bool) {
	switch uriPath(req) {
	case ".well-known/core":
		return reply(req, coap.CodeContent, contentFormatLinkFormat, []byte(linkFormatListing)), false
	case ".well-known/edhoc":
		return o.handleEdhoc(req)
	case "hello":
		return reply(req, coap.CodeContent, contentFormatTextPlain, []byte("Hello, world!")), false
	case "echo":
		return reply(req, coap.CodeContent, contentFormatOctetStream, req.Payload), false
	default:
		return reply(req, coap.CodeNotFound, contentFormatTextPlain, []byte("Not found")), false
	}
}

func (o *Orchestrator) handleEdhoc(req coap.Message) (coap.Message, bool) {
	if o.role != RoleResponder {
		return reply(req, coap.CodeBadRequest, contentFormatTextPlain, []byte("not a responder")), false
	}

	var out edhoc.Outcome
	switch o.responder.State() {
	case edhoc.ResponderWaitingForMsg1:
		out = o.responder.HandleMessage1(req.Payload)
	case edhoc.ResponderWaitingForMsg3:
		out = o.responder.HandleMessage3(req.Payload)
	default:
		out = o.responder.HandleMessage1(req.Payload)
	}

	switch out.Kind {
	case edhoc.OutcomePeerError:
		o.recordHandshake("peer_error")
		return reply(req, coap.CodeBadRequest, contentFormatTextPlain, []byte(out.Peer)), false
	case edhoc.OutcomeOwnError:
		o.recordHandshake("own_error")
		return reply(req, coap.CodeChanged, contentFormatOctetStream, out.Payload), false
	}

	resp := reply(req, coap.CodeChanged, contentFormatOctetStream, out.Payload)

	if ms, salt, ok := o.responder.TakeParams(); ok {
		ctx, err := oscore.DeriveContext(ms, salt, o.id.Kid, o.id.PeerKid)
		if err == nil {
			o.oscoreCtx = ctx
			o.recordHandshake("complete")
		} else {
			o.recordHandshake("own_error")
		}
		return resp, true
	}
	return resp, false
}

func (o *Orchestrator) recordHandshake(outcome string) {
	if o.audit == nil || o.log == nil {
		return
	}
	peerKid := o.id.PeerKid
	if err := o.audit.RecordHandshake(peerKid, outcome, currentTime()); err != nil {
		o.log.Warn("audit log write failed", "error", err)
	}
}

func (o *Orchestrator) recordReplay(piv []byte) {
	if o.audit == nil {
		return
	}
	var seq uint64
	for _, b := range piv {
		seq = seq<<8 | uint64(b)
	}
	_ = o.audit.RecordReplayRejection(seq, currentTime())
}

// currentTime is indirected so tests can run deterministically if needed;
// production always wants wall-clock time for the audit trail.
var currentTime = time.Now

// parseOscorePlaintext reconstructs the inner CoAP message from an
// unprotected OSCORE plaintext: code byte, class-E options, 0xFF, payload —
// carrying forward the outer message's id/token/type since those live
// outside OSCORE's protection scope.
func parseOscorePlaintext(plaintext []byte, outer coap.Message) (coap.Message, error) {
	if len(plaintext) == 0 {
		return coap.Message{}, fmt.Errorf("session: empty OSCORE plaintext")
	}
	code := plaintext[0]
	rest := plaintext[1:]

	synthetic := append([]byte{(1 << 6) | byte(outer.Type)<<4 | byte(len(outer.Token))}, code, byte(outer.MessageID>>8), byte(outer.MessageID))
	synthetic = append(synthetic, outer.Token...)
	synthetic = append(synthetic, rest...)
	return coap.Parse(synthetic)
}

// innerPlaintext serializes a response's class-E options and payload for
// OSCORE protection: code byte || options || 0xFF || payload.
func innerPlaintext(resp coap.Message) []byte {
	inner := coap.Message{Type: resp.Type, Code: resp.Code, MessageID: resp.MessageID, Token: nil, Options: resp.Options, Payload: resp.Payload}
	encoded, err := inner.Marshal()
	if err != nil {
		return nil
	}
	// Marshal() includes a 4-byte header and token this plaintext doesn't
	// carry; strip down to code + options + payload marker.
	return append([]byte{resp.Code}, encoded[4:]...)
}
