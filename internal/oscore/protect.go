// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package oscore

import "github.com/edhocd/gateway/internal/crypto"

// Protect encrypts and authenticates plaintext (the class-E CoAP options
// plus payload, already serialized by the caller) under ctx's sender key,
// returning the ciphertext and the
// Partial IV to place in the OSCORE option. The sender's sequence number
// advances by one on every successful call, even if the caller never
// transmits the result.
func Protect(ctx *Context, plaintext []byte) (ciphertext, piv []byte, err error) {
	if ctx.senderSeq > maxSequenceNumber {
		return nil, nil, ErrSequenceNumberExhausted
	}
	seq := ctx.senderSeq
	piv = encodePIV(seq)

	nonce := computeNonce(ctx.commonIV, ctx.senderID, seq)
	aad, err := buildAAD(ctx.senderID, piv)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = crypto.SealCCM(ctx.senderKey, nonce, aad, plaintext)
	if err != nil {
		return nil, nil, err
	}
	ctx.senderSeq++
	return ciphertext, piv, nil
}
