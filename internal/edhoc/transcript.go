// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package edhoc

import (
	"github.com/edhocd/gateway/internal/crypto"
)

// TH2 = SHA256(msg_1 || C_V || G_Y) — C_V and G_Y fold in as the exact CBOR
// bstr bytes they occupy on the wire in message 2.
func TH2(msg1 []byte, cv []byte, gy [32]byte) ([32]byte, error) {
	cvField, err := EncodeBstrField(cv)
	if err != nil {
		return [32]byte{}, err
	}
	gyField, err := EncodeBstrField(gy[:])
	if err != nil {
		return [32]byte{}, err
	}
	buf := make([]byte, 0, len(msg1)+len(cvField)+len(gyField))
	buf = append(buf, msg1...)
	buf = append(buf, cvField...)
	buf = append(buf, gyField...)
	return crypto.SHA256(buf), nil
}

// TH3 = SHA256(TH_2 || CIPHERTEXT_2).
func TH3(th2 [32]byte, ciphertext2 []byte) ([32]byte, error) {
	return foldCiphertext(th2, ciphertext2)
}

// TH4 = SHA256(TH_3 || CIPHERTEXT_3).
func TH4(th3 [32]byte, ciphertext3 []byte) ([32]byte, error) {
	return foldCiphertext(th3, ciphertext3)
}

func foldCiphertext(th [32]byte, ciphertext []byte) ([32]byte, error) {
	field, err := EncodeBstrField(ciphertext)
	if err != nil {
		return [32]byte{}, err
	}
	buf := make([]byte, 0, 32+len(field))
	buf = append(buf, th[:]...)
	buf = append(buf, field...)
	return crypto.SHA256(buf), nil
}
