// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Messages implements the three EDHOC message wire formats: CBOR sequences
// (no enclosing array), method 0 / suite 0 (AES-CCM-16-64-128 / SHA-256 /
// X25519 / EdDSA / Ed25519), corr 1 (CoAP token correlation — C_U is omitted
// from message 2, C_V is omitted from message 3).
package edhoc

import (
	"fmt"

	"github.com/edhocd/gateway/internal/cbor"
)

const (
	// Method is fixed to 0 (signatures both sides).
	Method = 0
	// Corr is fixed to 1 (CoAP-layer correlation by token).
	Corr = 1
	// MethodCorr = 4*method + corr.
	MethodCorr = 4*Method + Corr
	// Suite is fixed to 0 (AES-CCM-16-64-128/SHA-256/X25519/EdDSA/Ed25519).
	Suite = 0
)

// Message1 is U's first flight: METHOD_CORR, SUITE, G_X, C_U.
type Message1 struct {
	GX [32]byte
	CU []byte
}

// Encode serializes message 1 as a CBOR sequence.
func (m Message1) Encode() ([]byte, error) {
	return cbor.EncodeSeq(int64(MethodCorr), int64(Suite), m.GX[:], m.CU)
}

// DecodeMessage1 parses a message-1 CBOR sequence.
func DecodeMessage1(data []byte) (Message1, []byte, error) {
	dec := cbor.NewSeqDecoder(data)
	var methodCorr, suite int64
	if err := dec.Decode(&methodCorr); err != nil {
		return Message1{}, nil, fmt.Errorf("%w: method_corr: %v", ErrCBORDecode, err)
	}
	if err := dec.Decode(&suite); err != nil {
		return Message1{}, nil, fmt.Errorf("%w: suite: %v", ErrCBORDecode, err)
	}
	if methodCorr != MethodCorr || suite != Suite {
		return Message1{}, nil, fmt.Errorf("%w: method_corr=%d suite=%d", ErrUnknownSuite, methodCorr, suite)
	}
	var gx []byte
	if err := dec.Decode(&gx); err != nil {
		return Message1{}, nil, fmt.Errorf("%w: G_X: %v", ErrCBORDecode, err)
	}
	if len(gx) != 32 {
		return Message1{}, nil, fmt.Errorf("%w: G_X must be 32 bytes, got %d", ErrBadLength, len(gx))
	}
	var cu []byte
	if err := dec.Decode(&cu); err != nil {
		return Message1{}, nil, fmt.Errorf("%w: C_U: %v", ErrCBORDecode, err)
	}
	if len(cu) < 1 || len(cu) > 8 {
		return Message1{}, nil, fmt.Errorf("%w: C_U must be 1-8 bytes, got %d", ErrBadLength, len(cu))
	}

	var msg Message1
	copy(msg.GX[:], gx)
	msg.CU = cu

	// The orchestrator hands us the CoAP payload as exactly message 1's
	// bytes (no surrounding framing), so the transcript folds in data
	// itself rather than a re-encoded copy: the hash is computed over the
	// exact bytes on the wire, not a re-encoded form.
	return msg, data, nil
}

// Message2 is V's response: (C_U omitted, corr=1), G_Y, C_V, CIPHERTEXT_2.
type Message2 struct {
	GY          [32]byte
	CV          []byte
	Ciphertext2 []byte
}

// Encode serializes message 2 as a CBOR sequence.
func (m Message2) Encode() ([]byte, error) {
	return cbor.EncodeSeq(m.GY[:], m.CV, m.Ciphertext2)
}

// EncodeCVField and EncodeBstrField return the exact CBOR bstr bytes used to
// fold C_V / CIPHERTEXT_i into the transcript hash, computed over the exact
// bytes on the wire.
func EncodeCVField(cv []byte) ([]byte, error) { return cbor.EncodeSeq(cv) }
func EncodeBstrField(b []byte) ([]byte, error) { return cbor.EncodeSeq(b) }

// DecodeMessage2 parses a message-2 CBOR sequence.
func DecodeMessage2(data []byte) (Message2, error) {
	dec := cbor.NewSeqDecoder(data)
	var gy []byte
	if err := dec.Decode(&gy); err != nil {
		return Message2{}, fmt.Errorf("%w: G_Y: %v", ErrCBORDecode, err)
	}
	if len(gy) != 32 {
		return Message2{}, fmt.Errorf("%w: G_Y must be 32 bytes, got %d", ErrBadLength, len(gy))
	}
	var cv []byte
	if err := dec.Decode(&cv); err != nil {
		return Message2{}, fmt.Errorf("%w: C_V: %v", ErrCBORDecode, err)
	}
	if len(cv) < 1 || len(cv) > 8 {
		return Message2{}, fmt.Errorf("%w: C_V must be 1-8 bytes, got %d", ErrBadLength, len(cv))
	}
	var ct []byte
	if err := dec.Decode(&ct); err != nil {
		return Message2{}, fmt.Errorf("%w: CIPHERTEXT_2: %v", ErrCBORDecode, err)
	}

	var msg Message2
	copy(msg.GY[:], gy)
	msg.CV = cv
	msg.Ciphertext2 = ct
	return msg, nil
}

// Message3 is U's final flight: (C_V omitted, corr=1), CIPHERTEXT_3.
type Message3 struct {
	Ciphertext3 []byte
}

// Encode serializes message 3 as a CBOR sequence.
func (m Message3) Encode() ([]byte, error) {
	return cbor.EncodeSeq(m.Ciphertext3)
}

// DecodeMessage3 parses a message-3 CBOR sequence.
func DecodeMessage3(data []byte) (Message3, error) {
	dec := cbor.NewSeqDecoder(data)
	var ct []byte
	if err := dec.Decode(&ct); err != nil {
		return Message3{}, fmt.Errorf("%w: CIPHERTEXT_3: %v", ErrCBORDecode, err)
	}
	return Message3{Ciphertext3: ct}, nil
}

// identityPayload is the plaintext protected by CIPHERTEXT_2/3: [ID_CRED
// (kid), SIG]. Both messages share this shape.
type identityPayload struct {
	_   struct{} `cbor:",toarray"`
	Kid []byte
	Sig []byte
}

func encodeIdentityPayload(kid, sig []byte) ([]byte, error) {
	return cbor.Marshal(identityPayload{Kid: kid, Sig: sig})
}

func decodeIdentityPayload(data []byte) (kid, sig []byte, err error) {
	var p identityPayload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, nil, fmt.Errorf("%w: identity payload: %v", ErrCBORDecode, err)
	}
	return p.Kid, p.Sig, nil
}
