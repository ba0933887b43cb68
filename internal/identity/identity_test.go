// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package identity

import (
	"encoding/hex"
	"testing"
)

func TestFromHexValid(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	pub := PublicKeyOf(seed)

	var peerSeed [32]byte
	for i := range peerSeed {
		peerSeed[i] = byte(0xFF - i)
	}
	peerPub := PublicKeyOf(peerSeed)

	p, err := FromHex(
		hex.EncodeToString(seed[:]),
		hex.EncodeToString(pub[:]),
		"01",
		hex.EncodeToString(peerPub[:]),
		"02",
	)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if p.PublicKey != pub {
		t.Fatalf("public key mismatch: got %x want %x", p.PublicKey, pub)
	}
}

func TestFromHexRejectsMismatchedKeyPair(t *testing.T) {
	var seed [32]byte
	var wrongPub [32]byte
	wrongPub[0] = 0x01

	_, err := FromHex(
		hex.EncodeToString(seed[:]),
		hex.EncodeToString(wrongPub[:]),
		"01",
		hex.EncodeToString(wrongPub[:]),
		"02",
	)
	if err == nil {
		t.Fatal("expected error for mismatched key pair")
	}
}

func TestFromHexRejectsBadKidLength(t *testing.T) {
	var seed [32]byte
	pub := PublicKeyOf(seed)
	_, err := FromHex(
		hex.EncodeToString(seed[:]),
		hex.EncodeToString(pub[:]),
		"",
		hex.EncodeToString(pub[:]),
		"02",
	)
	if err == nil {
		t.Fatal("expected error for empty kid")
	}
}
