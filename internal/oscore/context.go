// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package oscore

import (
	"fmt"

	"github.com/edhocd/gateway/internal/cbor"
	"github.com/edhocd/gateway/internal/crypto"
)

// algAEAD is the COSE algorithm identifier for AES-CCM-16-64-128, matching
// EDHOC's fixed suite 0.
const algAEAD = 10

// nonceLen is the AEAD nonce size; keyLen is the AEAD key size.
const (
	nonceLen = 13
	keyLen   = 16
)

// maxSequenceNumber bounds the sender Partial IV to 5 octets (RFC 8613
// §3.2.2).
const maxSequenceNumber = (uint64(1) << 40) - 1

// Context holds one OSCORE security context derived from an EDHOC
// handshake's master parameters. Not safe for concurrent use — the session
// orchestrator serializes access per peer.
type Context struct {
	senderKey     [keyLen]byte
	recipientKey  [keyLen]byte
	commonIV      [nonceLen]byte
	senderID      []byte
	recipientID   []byte
	senderSeq     uint64
	recipientWin  ReplayWindow
}

// DeriveContext derives sender/recipient keys and the common IV from EDHOC's
// master_secret/master_salt, per RFC 8613 §3.2 HKDF-Expand with
// info = [id, id_context, alg_aead, type, L].
func DeriveContext(masterSecret [32]byte, masterSalt [8]byte, senderID, recipientID []byte) (*Context, error) {
	prk := crypto.HKDFExtract(masterSalt[:], masterSecret[:])

	senderKey, err := deriveParam(prk, senderID, "Key", keyLen)
	if err != nil {
		return nil, fmt.Errorf("oscore: derive sender key: %w", err)
	}
	recipientKey, err := deriveParam(prk, recipientID, "Key", keyLen)
	if err != nil {
		return nil, fmt.Errorf("oscore: derive recipient key: %w", err)
	}
	commonIV, err := deriveParam(prk, []byte{}, "IV", nonceLen)
	if err != nil {
		return nil, fmt.Errorf("oscore: derive common IV: %w", err)
	}

	ctx := &Context{
		senderID:    append([]byte(nil), senderID...),
		recipientID: append([]byte(nil), recipientID...),
	}
	copy(ctx.senderKey[:], senderKey)
	copy(ctx.recipientKey[:], recipientKey)
	copy(ctx.commonIV[:], commonIV)
	return ctx, nil
}

func deriveParam(prk [32]byte, id []byte, typ string, outLen int) ([]byte, error) {
	info, err := cbor.Marshal([]interface{}{id, nil, int64(algAEAD), typ, int64(outLen)})
	if err != nil {
		return nil, err
	}
	return crypto.HKDFExpand(prk, info, outLen)
}

// Zeroize destroys the derived key material, leaving sequence-number and
// replay-window bookkeeping intact.
func (c *Context) Zeroize() {
	crypto.Zeroize(c.senderKey[:])
	crypto.Zeroize(c.recipientKey[:])
	crypto.Zeroize(c.commonIV[:])
}

// SenderSequence reports the next Partial IV this context will send. For
// introspection only — never used in a protocol decision.
func (c *Context) SenderSequence() uint64 { return c.senderSeq }

// RecipientHighest reports the highest Partial IV accepted from the peer so
// far, or 0 if none has been accepted yet.
func (c *Context) RecipientHighest() uint64 { return c.recipientWin.highest }
