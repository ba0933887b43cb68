// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// derive.go holds the role-agnostic HKDF/transcript helpers both Initiator
// and Responder call — the two roles share nearly all of the key-schedule
// math, so it's factored into one place parameterised by the transcript
// hash and message number; which party's keys sign or verify is decided by
// the callers.
package edhoc

import (
	"fmt"

	"github.com/edhocd/gateway/internal/cbor"
	"github.com/edhocd/gateway/internal/crypto"
)

// prk extracts the single pseudorandom key both per-message keys and the
// final master secret/salt are expanded from.
func prk(sharedSecret [32]byte) [32]byte {
	return crypto.HKDFExtract(nil, sharedSecret[:])
}

// deriveMessageKeys derives K_i (16 bytes) and IV_i (13 bytes) for the
// message numbered msgNum (2 or 3), bound to transcript hash th, with
// info = [alg_id, th, "K_i"|"IV_i", out_len].
func deriveMessageKeys(sharedSecret [32]byte, th [32]byte, msgNum int) ([16]byte, [13]byte, error) {
	p := prk(sharedSecret)

	kInfo, err := infoStruct(th, fmt.Sprintf("K_%d", msgNum), 16)
	if err != nil {
		return [16]byte{}, [13]byte{}, err
	}
	kBytes, err := crypto.HKDFExpand(p, kInfo, 16)
	if err != nil {
		return [16]byte{}, [13]byte{}, err
	}

	ivInfo, err := infoStruct(th, fmt.Sprintf("IV_%d", msgNum), 13)
	if err != nil {
		return [16]byte{}, [13]byte{}, err
	}
	ivBytes, err := crypto.HKDFExpand(p, ivInfo, 13)
	if err != nil {
		return [16]byte{}, [13]byte{}, err
	}

	var k [16]byte
	var iv [13]byte
	copy(k[:], kBytes)
	copy(iv[:], ivBytes)
	return k, iv, nil
}

// deriveMasterParams derives the final master_secret (32 bytes) and
// master_salt (8 bytes) bound to TH_4.
func deriveMasterParams(sharedSecret [32]byte, th4 [32]byte) (ms [32]byte, salt [8]byte, err error) {
	p := prk(sharedSecret)

	msInfo, err := infoStruct(th4, "master_secret", 32)
	if err != nil {
		return ms, salt, err
	}
	msBytes, err := crypto.HKDFExpand(p, msInfo, 32)
	if err != nil {
		return ms, salt, err
	}

	saltInfo, err := infoStruct(th4, "master_salt", 8)
	if err != nil {
		return ms, salt, err
	}
	saltBytes, err := crypto.HKDFExpand(p, saltInfo, 8)
	if err != nil {
		return ms, salt, err
	}

	copy(ms[:], msBytes)
	copy(salt[:], saltBytes)
	return ms, salt, nil
}

// infoStruct CBOR-encodes [alg_id, transcript_hash, label, out_len].
func infoStruct(th [32]byte, label string, outLen int) ([]byte, error) {
	return cbor.Marshal([]interface{}{int64(Suite), th[:], label, int64(outLen)})
}
