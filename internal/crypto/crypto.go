// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package crypto provides the opaque, stateless primitives the EDHOC and
// OSCORE layers are built on: Ed25519 sign/verify, X25519 ECDH, HKDF, a
// hand-rolled AES-CCM-16-64-128 AEAD, and SHA-256. Every function here is
// pure — no hidden state, no persisted key material.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeyLen is the size in bytes of a static or ephemeral X25519/Ed25519 key.
	KeyLen = 32
	// SigLen is the size in bytes of an Ed25519 signature.
	SigLen = ed25519.SignatureSize
)

var ErrAuthFailure = errors.New("crypto: authentication failed")

// Sign produces an Ed25519 signature over msg using the 32-byte seed priv.
func Sign(priv [KeyLen]byte, msg []byte) [SigLen]byte {
	key := ed25519.NewKeyFromSeed(priv[:])
	var sig [SigLen]byte
	copy(sig[:], ed25519.Sign(key, msg))
	return sig
}

// Verify reports whether sig is a valid Ed25519 signature over msg for pub.
func Verify(pub [KeyLen]byte, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// ECDH performs an X25519 scalar multiplication, returning the raw shared
// point. Rejects low-order points per RFC 7748 §6.1 via curve25519.X25519.
func ECDH(priv, pub [KeyLen]byte) ([KeyLen]byte, error) {
	var out [KeyLen]byte
	secret, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}

// BasePoint computes the X25519 public key for a private scalar.
func BasePoint(priv [KeyLen]byte) ([KeyLen]byte, error) {
	var out [KeyLen]byte
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return out, err
	}
	copy(out[:], pub)
	return out, nil
}

// HKDFExtract is the RFC 5869 extract step, fixed to SHA-256.
func HKDFExtract(salt, ikm []byte) [32]byte {
	var out [32]byte
	copy(out[:], hkdf.Extract(sha256.New, ikm, salt))
	return out
}

// HKDFExpand is the RFC 5869 expand step, fixed to SHA-256.
func HKDFExpand(prk [32]byte, info []byte, outLen int) ([]byte, error) {
	r := hkdf.Expand(sha256.New, prk[:], info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SHA256 hashes b.
func SHA256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Zeroize overwrites b in place. Called on every struct holding ephemeral
// key material before the owning object is released.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
