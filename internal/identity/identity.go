// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package identity holds the pre-shared, per-endpoint authentication
// material EDHOC needs: a static Ed25519 signing key, a short key-id, and
// the one peer this endpoint is configured to talk to. There is no
// certificate chain and no PKI — both sides know each other's key-id and
// public key a priori.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

const (
	keyLen    = 32
	minKidLen = 1
	maxKidLen = 8
)

// Party is one endpoint's static authentication identity plus its peer's.
type Party struct {
	PrivateKey [keyLen]byte // Ed25519 seed
	PublicKey  [keyLen]byte
	Kid        []byte

	PeerPublicKey [keyLen]byte
	PeerKid       []byte
}

// PublicKeyOf derives the Ed25519 public key matching a 32-byte seed.
func PublicKeyOf(seed [keyLen]byte) [keyLen]byte {
	full := ed25519.NewKeyFromSeed(seed[:])
	var pub [keyLen]byte
	copy(pub[:], full.Public().(ed25519.PublicKey))
	return pub
}

// FromHex builds a Party from hex-encoded configuration fields (as loaded
// from viper by cmd/config.go) and validates key and key-id lengths.
func FromHex(privHex, pubHex, kidHex, peerPubHex, peerKidHex string) (Party, error) {
	priv, err := decodeFixed("private key", privHex, keyLen)
	if err != nil {
		return Party{}, err
	}
	pub, err := decodeFixed("public key", pubHex, keyLen)
	if err != nil {
		return Party{}, err
	}
	kid, err := decodeKid("kid", kidHex)
	if err != nil {
		return Party{}, err
	}
	peerPub, err := decodeFixed("peer public key", peerPubHex, keyLen)
	if err != nil {
		return Party{}, err
	}
	peerKid, err := decodeKid("peer kid", peerKidHex)
	if err != nil {
		return Party{}, err
	}

	var p Party
	copy(p.PrivateKey[:], priv)
	copy(p.PublicKey[:], pub)
	p.Kid = kid
	copy(p.PeerPublicKey[:], peerPub)
	p.PeerKid = peerKid

	if want := PublicKeyOf(p.PrivateKey); want != p.PublicKey {
		return Party{}, fmt.Errorf("identity: configured public key does not match private key")
	}
	return p, nil
}

func decodeFixed(field, s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: %s is not valid hex: %w", field, err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("identity: %s must be %d bytes, got %d", field, n, len(b))
	}
	return b, nil
}

func decodeKid(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: %s is not valid hex: %w", field, err)
	}
	if len(b) < minKidLen || len(b) > maxKidLen {
		return nil, fmt.Errorf("identity: %s must be 1-8 bytes, got %d", field, len(b))
	}
	return b, nil
}
