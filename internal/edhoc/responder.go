// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Responder implements V's half of the handshake: it receives message 1,
// emits message 2, receives message 3, and emits an
// empty ack. Modeled as a typestate — msg3Pending is non-nil iff state ==
// WaitingForMsg3, and it is consumed (set to nil) on every transition out of
// that state so message 3 can never be processed twice against the same
// ephemeral material.
package edhoc

import (
	"crypto/rand"
	"fmt"

	"github.com/edhocd/gateway/internal/cose"
	"github.com/edhocd/gateway/internal/crypto"
	"github.com/edhocd/gateway/internal/identity"
)

// ResponderState names the position of a Responder in its handshake state
// machine.
type ResponderState int

const (
	ResponderWaitingForMsg1 ResponderState = iota
	ResponderWaitingForMsg3
	ResponderComplete
)

// msg3Pending holds everything needed to process message 3, computed eagerly
// while building message 2 so HandleMessage3 does no further Diffie-Hellman
// work. Zeroized on every exit from ResponderWaitingForMsg3.
type msg3Pending struct {
	ephPriv      [32]byte
	sharedSecret [32]byte
	th3          [32]byte
	k3           [16]byte
	iv3          [13]byte
}

func (p *msg3Pending) zero() {
	crypto.Zeroize(p.ephPriv[:])
	crypto.Zeroize(p.sharedSecret[:])
	crypto.Zeroize(p.k3[:])
	crypto.Zeroize(p.iv3[:])
}

// responderResult holds the master parameters produced by a completed
// handshake until TakeParams consumes them exactly once.
type responderResult struct {
	masterSecret [32]byte
	masterSalt   [8]byte
}

// Responder runs one EDHOC handshake as V. Not safe for concurrent use; the
// session orchestrator owns a single Responder and reuses it after each
// completed handshake.
type Responder struct {
	identity identity.Party

	state   ResponderState
	pending *msg3Pending
	result  *responderResult
}

// NewResponder creates a Responder ready to receive message 1.
func NewResponder(id identity.Party) *Responder {
	return &Responder{identity: id, state: ResponderWaitingForMsg1}
}

// State reports the responder's current position.
func (r *Responder) State() ResponderState { return r.state }

// HandleMessage1 processes U's first flight and returns message 2 (or an
// error outcome) to transmit. Only valid in ResponderWaitingForMsg1.
func (r *Responder) HandleMessage1(raw []byte) Outcome {
	if r.state != ResponderWaitingForMsg1 {
		return ownError(fmt.Errorf("%w: message 1 received in state %d", ErrProtocolViolation, r.state))
	}

	msg1, msg1Raw, err := DecodeMessage1(raw)
	if err != nil {
		return ownError(err)
	}

	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return ownError(fmt.Errorf("%w: ephemeral key generation: %v", ErrProtocolViolation, err))
	}
	ephPub, err := crypto.BasePoint(ephPriv)
	if err != nil {
		return ownError(err)
	}

	sharedSecret, err := crypto.ECDH(ephPriv, msg1.GX)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		return ownError(fmt.Errorf("%w: G_X: %v", ErrBadLength, err))
	}

	cv := make([]byte, 1)
	if _, err := rand.Read(cv); err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(fmt.Errorf("%w: connection identifier generation: %v", ErrProtocolViolation, err))
	}

	th2, err := TH2(msg1Raw, cv, ephPub)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}

	k2, iv2, err := deriveMessageKeys(sharedSecret, th2, 2)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}

	sigPayload, err := cose.SigStructure(nil, r.identity.PublicKey[:], th2[:])
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}
	sig := crypto.Sign(r.identity.PrivateKey, sigPayload)

	plaintext, err := encodeIdentityPayload(r.identity.Kid, sig[:])
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}

	aad, err := cose.EncStructure(nil, th2[:])
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}
	ciphertext2, err := crypto.SealCCM(k2, iv2, aad, plaintext)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}

	msg2, err := Message2{GY: ephPub, CV: cv, Ciphertext2: ciphertext2}.Encode()
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}

	th3, err := TH3(th2, ciphertext2)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}
	k3, iv3, err := deriveMessageKeys(sharedSecret, th3, 3)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		crypto.Zeroize(sharedSecret[:])
		return ownError(err)
	}

	r.pending = &msg3Pending{
		ephPriv:      ephPriv,
		sharedSecret: sharedSecret,
		th3:          th3,
		k3:           k3,
		iv3:          iv3,
	}
	r.state = ResponderWaitingForMsg3
	return ok(msg2)
}

// HandleMessage3 processes U's final flight. On success it transitions to
// ResponderComplete and returns an empty ack payload; TakeParams then yields
// the derived master parameters exactly once. On any error the responder
// resets to ResponderWaitingForMsg1 so a fresh handshake can begin: a failed
// or rejected message 3 never leaves the responder stuck.
func (r *Responder) HandleMessage3(raw []byte) Outcome {
	if r.state != ResponderWaitingForMsg3 || r.pending == nil {
		return ownError(fmt.Errorf("%w: message 3 received in state %d", ErrProtocolViolation, r.state))
	}
	pending := r.pending

	if code, msg, isErr := DecodeErrorMessage(raw); isErr {
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return peerError(fmt.Sprintf("code=%d msg=%s", code, msg))
	}

	msg3, err := DecodeMessage3(raw)
	if err != nil {
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(err)
	}

	aad, err := cose.EncStructure(nil, pending.th3[:])
	if err != nil {
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(err)
	}
	plaintext, err := crypto.OpenCCM(pending.k3, pending.iv3, aad, msg3.Ciphertext3)
	if err != nil {
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(fmt.Errorf("%w: CIPHERTEXT_3", crypto.ErrAuthFailure))
	}

	kid, sig, err := decodeIdentityPayload(plaintext)
	if err != nil {
		crypto.Zeroize(plaintext)
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(err)
	}
	if !kidEqual(kid, r.identity.PeerKid) {
		crypto.Zeroize(plaintext)
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(fmt.Errorf("%w: %x", ErrUnknownKid, kid))
	}

	sigPayload, err := cose.SigStructure(nil, r.identity.PeerPublicKey[:], pending.th3[:])
	if err != nil {
		crypto.Zeroize(plaintext)
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(err)
	}
	if !crypto.Verify(r.identity.PeerPublicKey, sigPayload, sig) {
		crypto.Zeroize(plaintext)
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(ErrSignatureInvalid)
	}
	crypto.Zeroize(plaintext)

	th4, err := TH4(pending.th3, msg3.Ciphertext3)
	if err != nil {
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(err)
	}
	ms, salt, err := deriveMasterParams(pending.sharedSecret, th4)
	if err != nil {
		pending.zero()
		r.pending = nil
		r.state = ResponderWaitingForMsg1
		return ownError(err)
	}

	pending.zero()
	r.pending = nil
	r.result = &responderResult{masterSecret: ms, masterSalt: salt}
	r.state = ResponderComplete
	return ok([]byte{})
}

// TakeParams returns the master parameters from a completed handshake
// exactly once, then resets the responder to ResponderWaitingForMsg1 so the
// same Responder value can serve a fresh correlation token.
func (r *Responder) TakeParams() (masterSecret [32]byte, masterSalt [8]byte, ok bool) {
	if r.state != ResponderComplete || r.result == nil {
		return masterSecret, masterSalt, false
	}
	masterSecret, masterSalt = r.result.masterSecret, r.result.masterSalt
	crypto.Zeroize(r.result.masterSecret[:])
	crypto.Zeroize(r.result.masterSalt[:])
	r.result = nil
	r.state = ResponderWaitingForMsg1
	return masterSecret, masterSalt, true
}

func kidEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
