// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package edhoc

import (
	"errors"
	"fmt"

	"github.com/edhocd/gateway/internal/cbor"
)

// Error kinds the handshake itself can raise. AeadAuthFailure/ReplayDetected/
// SequenceExhausted belong to the OSCORE engine (internal/oscore) and are
// not redeclared here.
var (
	ErrCBORDecode        = errors.New("edhoc: CBOR decode failure")
	ErrBadLength         = errors.New("edhoc: field has wrong length")
	ErrUnknownSuite      = errors.New("edhoc: unknown method or suite")
	ErrUnknownKid        = errors.New("edhoc: unknown peer key-id")
	ErrSignatureInvalid  = errors.New("edhoc: signature verification failed")
	ErrProtocolViolation = errors.New("edhoc: message received in wrong state")
)

// errCode maps an error kind to the ERR_CODE carried in an EDHOC error
// message ([ERR_CODE, ERR_MSG]).
func errCode(err error) int64 {
	switch {
	case errors.Is(err, ErrCBORDecode):
		return 1
	case errors.Is(err, ErrBadLength):
		return 2
	case errors.Is(err, ErrUnknownSuite):
		return 3
	case errors.Is(err, ErrUnknownKid):
		return 4
	case errors.Is(err, ErrSignatureInvalid):
		return 5
	default:
		return 0
	}
}

// OutcomeKind tags the tri-state every fallible EDHOC step returns: success,
// an error this side raises, or an error the peer raised.
type OutcomeKind int

const (
	// OutcomeOK carries the next protocol payload to transmit.
	OutcomeOK OutcomeKind = iota
	// OutcomeOwnError carries a pre-built EDHOC error message ready to
	// transmit in place of the next outgoing message.
	OutcomeOwnError
	// OutcomePeerError means the peer sent us an EDHOC error message; the
	// handshake is log-and-abort, there is nothing to transmit.
	OutcomePeerError
)

// Outcome is the result of every fallible EDHOC step.
type Outcome struct {
	Kind    OutcomeKind
	Payload []byte // OutcomeOK: bytes to transmit. OutcomeOwnError: bytes to transmit.
	Peer    string // OutcomePeerError: the peer's error message text.
}

func ok(payload []byte) Outcome {
	return Outcome{Kind: OutcomeOK, Payload: payload}
}

// ownError builds an EDHOC error message ([ERR_CODE, ERR_MSG]) from err and
// wraps it as an OutcomeOwnError ready for the orchestrator to transmit.
func ownError(err error) Outcome {
	msg := EncodeErrorMessage(errCode(err), err.Error())
	return Outcome{Kind: OutcomeOwnError, Payload: msg}
}

func peerError(msg string) Outcome {
	return Outcome{Kind: OutcomePeerError, Peer: msg}
}

// EncodeErrorMessage CBOR-encodes the EDHOC error sequence [ERR_CODE, ERR_MSG].
func EncodeErrorMessage(code int64, msg string) []byte {
	b, err := cbor.Marshal([]interface{}{code, msg})
	if err != nil {
		// Marshaling two primitive values cannot fail; a failure here is a
		// programming error, not a protocol error.
		panic(fmt.Sprintf("edhoc: failed to encode error message: %v", err))
	}
	return b
}

// DecodeErrorMessage decodes an EDHOC error sequence, returning ok=false if
// data is not shaped like [int, tstr].
func DecodeErrorMessage(data []byte) (code int64, msg string, ok bool) {
	var arr []interface{}
	if err := cbor.Unmarshal(data, &arr); err != nil || len(arr) != 2 {
		return 0, "", false
	}
	c, cOK := toInt64(arr[0])
	m, mOK := arr[1].(string)
	if !cOK || !mOK {
		return 0, "", false
	}
	return c, m, true
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
