// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

const (
	testPrivHex    = "0101010101010101010101010101010101010101010101010101010101010101"
	testKidHex     = "01"
	testPeerPubHex = "0202020202020202020202020202020202020202020202020202020202020202"
	testPeerKid    = "02"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
}

func TestLoadGatewayConfigRequiresTransportAddress(t *testing.T) {
	resetViper(t)
	viper.Set("identity.private_key", testPrivHex)

	if _, err := loadGatewayConfig(); err == nil {
		t.Fatal("expected an error when transport.address is unset")
	}
}

func TestLoadGatewayConfigRejectsUnknownKeys(t *testing.T) {
	resetViper(t)
	viper.Set("transport.address", ":5683")
	viper.Set("bogus_top_level_key", "oops")

	if _, err := loadGatewayConfig(); err == nil {
		t.Fatal("expected an error for an unrecognized configuration key")
	}
}

func TestLoadGatewayConfigDecodesNestedSections(t *testing.T) {
	resetViper(t)
	viper.Set("transport.address", ":5683")
	viper.Set("admin.address", "localhost:8080")
	viper.Set("audit.db_type", "sqlite")
	viper.Set("audit.dsn", "file::memory:")
	viper.Set("log.level", "debug")

	cfg, err := loadGatewayConfig()
	if err != nil {
		t.Fatalf("loadGatewayConfig: %v", err)
	}
	if cfg.Transport.Address != ":5683" {
		t.Errorf("transport.address = %q, want :5683", cfg.Transport.Address)
	}
	if cfg.Admin.Address != "localhost:8080" {
		t.Errorf("admin.address = %q, want localhost:8080", cfg.Admin.Address)
	}
	if !cfg.Audit.enabled() {
		t.Error("audit.enabled() = false, want true once dsn is set")
	}
}

func TestGatewayConfigPartyRejectsMismatchedKeyPair(t *testing.T) {
	resetViper(t)
	cfg := GatewayConfig{
		Identity: IdentityConfig{
			PrivateKey: testPrivHex,
			PublicKey:  testPeerPubHex, // deliberately wrong: doesn't match PrivateKey
			Kid:        testKidHex,
		},
		Peer: PeerConfig{
			PublicKey: testPeerPubHex,
			Kid:       testPeerKid,
		},
	}
	if _, err := cfg.party(); err == nil {
		t.Fatal("expected an error when the configured public key does not match the private key")
	}
}
