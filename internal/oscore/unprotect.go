// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package oscore

import "github.com/edhocd/gateway/internal/crypto"

// Unprotect authenticates and decrypts a received OSCORE-protected message,
// checking the Partial IV against the recipient's replay window before
// attempting the AEAD open and marking it seen only on success: a forged
// ciphertext must never advance the window.
func Unprotect(ctx *Context, ciphertext, piv []byte) ([]byte, error) {
	if len(piv) == 0 || len(piv) > 5 {
		return nil, ErrMalformedOption
	}
	seq := decodePIV(piv)

	if err := ctx.recipientWin.Check(seq); err != nil {
		return nil, err
	}

	nonce := computeNonce(ctx.commonIV, ctx.recipientID, seq)
	aad, err := buildAAD(ctx.recipientID, piv)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.OpenCCM(ctx.recipientKey, nonce, aad, ciphertext)
	if err != nil {
		return nil, ErrAeadAuthFailure
	}

	ctx.recipientWin.Accept(seq)
	return plaintext, nil
}
