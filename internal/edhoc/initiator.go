// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Initiator implements U's half of the handshake: it emits message 1,
// receives message 2, emits message 3, and then
// waits on an application-layer ack before declaring the handshake
// complete. Unlike Responder, an Initiator is one-shot — it is constructed
// fresh for each handshake attempt, so TakeParams does not reset it back to
// InitiatorInit (there is nothing useful to restart in place; the caller
// constructs a new Initiator instead).
package edhoc

import (
	"crypto/rand"
	"fmt"

	"github.com/edhocd/gateway/internal/cose"
	"github.com/edhocd/gateway/internal/crypto"
	"github.com/edhocd/gateway/internal/identity"
)

// InitiatorState names the position of an Initiator in its handshake state
// machine.
type InitiatorState int

const (
	InitiatorInit InitiatorState = iota
	InitiatorWaitingForMsg2
	InitiatorWaitingForAck
	InitiatorComplete
)

// msg2Pending holds what's needed to process message 2 and build message 3.
// Zeroized on every exit from InitiatorWaitingForMsg2.
type msg2Pending struct {
	ephPriv [32]byte
	cu      []byte
	msg1Raw []byte
}

func (p *msg2Pending) zero() {
	crypto.Zeroize(p.ephPriv[:])
}

// ackPending holds the derived master parameters while the initiator waits
// for an application-layer acknowledgement that the handshake landed.
type ackPending struct {
	masterSecret [32]byte
	masterSalt   [8]byte
}

type initiatorResult struct {
	masterSecret [32]byte
	masterSalt   [8]byte
}

// Initiator runs one EDHOC handshake as U.
type Initiator struct {
	identity identity.Party

	state      InitiatorState
	msg2Pend   *msg2Pending
	ackPend    *ackPending
	result     *initiatorResult
}

// NewInitiator creates an Initiator in InitiatorInit, ready for
// StartHandshake.
func NewInitiator(id identity.Party) *Initiator {
	return &Initiator{identity: id, state: InitiatorInit}
}

// State reports the initiator's current position.
func (i *Initiator) State() InitiatorState { return i.state }

// StartHandshake generates U's ephemeral key and returns message 1 to
// transmit. Only valid in InitiatorInit.
func (i *Initiator) StartHandshake(cu []byte) Outcome {
	if i.state != InitiatorInit {
		return ownError(fmt.Errorf("%w: StartHandshake called in state %d", ErrProtocolViolation, i.state))
	}
	if len(cu) < 1 || len(cu) > 8 {
		return ownError(fmt.Errorf("%w: C_U must be 1-8 bytes, got %d", ErrBadLength, len(cu)))
	}

	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return ownError(fmt.Errorf("%w: ephemeral key generation: %v", ErrProtocolViolation, err))
	}
	ephPub, err := crypto.BasePoint(ephPriv)
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		return ownError(err)
	}

	msg1, err := Message1{GX: ephPub, CU: cu}.Encode()
	if err != nil {
		crypto.Zeroize(ephPriv[:])
		return ownError(err)
	}

	i.msg2Pend = &msg2Pending{ephPriv: ephPriv, cu: cu, msg1Raw: msg1}
	i.state = InitiatorWaitingForMsg2
	return ok(msg1)
}

// HandleMessage2 processes V's response, verifies V's signature, and
// returns message 3 to transmit. Only valid in InitiatorWaitingForMsg2.
func (i *Initiator) HandleMessage2(raw []byte) Outcome {
	if i.state != InitiatorWaitingForMsg2 || i.msg2Pend == nil {
		return ownError(fmt.Errorf("%w: message 2 received in state %d", ErrProtocolViolation, i.state))
	}
	pending := i.msg2Pend

	if code, msg, isErr := DecodeErrorMessage(raw); isErr {
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return peerError(fmt.Sprintf("code=%d msg=%s", code, msg))
	}

	msg2, err := DecodeMessage2(raw)
	if err != nil {
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	sharedSecret, err := crypto.ECDH(pending.ephPriv, msg2.GY)
	if err != nil {
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(fmt.Errorf("%w: G_Y: %v", ErrBadLength, err))
	}

	th2, err := TH2(pending.msg1Raw, msg2.CV, msg2.GY)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	k2, iv2, err := deriveMessageKeys(sharedSecret, th2, 2)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	aad2, err := cose.EncStructure(nil, th2[:])
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	plaintext2, err := crypto.OpenCCM(k2, iv2, aad2, msg2.Ciphertext2)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(fmt.Errorf("%w: CIPHERTEXT_2", crypto.ErrAuthFailure))
	}

	kidV, sigV, err := decodeIdentityPayload(plaintext2)
	if err != nil {
		crypto.Zeroize(plaintext2)
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	if !kidEqual(kidV, i.identity.PeerKid) {
		crypto.Zeroize(plaintext2)
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(fmt.Errorf("%w: %x", ErrUnknownKid, kidV))
	}

	sigPayload, err := cose.SigStructure(nil, i.identity.PeerPublicKey[:], th2[:])
	if err != nil {
		crypto.Zeroize(plaintext2)
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	if !crypto.Verify(i.identity.PeerPublicKey, sigPayload, sigV) {
		crypto.Zeroize(plaintext2)
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(ErrSignatureInvalid)
	}
	crypto.Zeroize(plaintext2)

	th3, err := TH3(th2, msg2.Ciphertext2)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	k3, iv3, err := deriveMessageKeys(sharedSecret, th3, 3)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	sigPayload3, err := cose.SigStructure(nil, i.identity.PublicKey[:], th3[:])
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	sigU := crypto.Sign(i.identity.PrivateKey, sigPayload3)

	plaintext3, err := encodeIdentityPayload(i.identity.Kid, sigU[:])
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	aad3, err := cose.EncStructure(nil, th3[:])
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	ciphertext3, err := crypto.SealCCM(k3, iv3, aad3, plaintext3)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	msg3, err := Message3{Ciphertext3: ciphertext3}.Encode()
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	th4, err := TH4(th3, ciphertext3)
	if err != nil {
		crypto.Zeroize(sharedSecret[:])
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}
	ms, salt, err := deriveMasterParams(sharedSecret, th4)
	crypto.Zeroize(sharedSecret[:])
	if err != nil {
		pending.zero()
		i.msg2Pend = nil
		i.state = InitiatorInit
		return ownError(err)
	}

	pending.zero()
	i.msg2Pend = nil
	i.ackPend = &ackPending{masterSecret: ms, masterSalt: salt}
	i.state = InitiatorWaitingForAck
	return ok(msg3)
}

// HandleAck processes the peer's acknowledgement that message 3 was
// accepted (an empty application-layer response), completing the handshake.
// Only valid in InitiatorWaitingForAck.
func (i *Initiator) HandleAck(raw []byte) Outcome {
	if i.state != InitiatorWaitingForAck || i.ackPend == nil {
		return ownError(fmt.Errorf("%w: ack received in state %d", ErrProtocolViolation, i.state))
	}
	if code, msg, isErr := DecodeErrorMessage(raw); isErr {
		crypto.Zeroize(i.ackPend.masterSecret[:])
		crypto.Zeroize(i.ackPend.masterSalt[:])
		i.ackPend = nil
		i.state = InitiatorInit
		return peerError(fmt.Sprintf("code=%d msg=%s", code, msg))
	}

	i.result = &initiatorResult{masterSecret: i.ackPend.masterSecret, masterSalt: i.ackPend.masterSalt}
	i.ackPend = nil
	i.state = InitiatorComplete
	return ok(nil)
}

// TakeParams returns the master parameters from a completed handshake.
// Unlike Responder.TakeParams, it does not reset the initiator: an
// Initiator is single-use, so repeated calls keep returning the same
// parameters until the caller discards the Initiator value entirely.
func (i *Initiator) TakeParams() (masterSecret [32]byte, masterSalt [8]byte, ok bool) {
	if i.state != InitiatorComplete || i.result == nil {
		return masterSecret, masterSalt, false
	}
	return i.result.masterSecret, i.result.masterSalt, true
}
