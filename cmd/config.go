// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"

	"github.com/edhocd/gateway/internal/identity"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// IdentityConfig holds this endpoint's static EDHOC authentication material.
type IdentityConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	PublicKey  string `mapstructure:"public_key"`
	Kid        string `mapstructure:"kid"`
}

// PeerConfig holds the one peer this endpoint is configured to talk to.
type PeerConfig struct {
	PublicKey string `mapstructure:"public_key"`
	Kid       string `mapstructure:"kid"`
}

// TransportConfig holds the local UDP listen address.
type TransportConfig struct {
	Address string `mapstructure:"address"`
}

func (t *TransportConfig) validate() error {
	if t.Address == "" {
		return fmt.Errorf("transport.address is required")
	}
	return nil
}

// AdminConfig holds the optional admin HTTP listener address. An empty
// address disables the admin surface entirely.
type AdminConfig struct {
	Address string `mapstructure:"address"`
}

// AuditConfig selects the optional audit database.
type AuditConfig struct {
	DBType string `mapstructure:"db_type"`
	DSN    string `mapstructure:"dsn"`
}

func (a *AuditConfig) enabled() bool {
	return a.DSN != ""
}

// LogConfig selects the logger's verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GatewayConfig is the full configuration surface shared by the responder
// and initiator subcommands.
type GatewayConfig struct {
	Identity  IdentityConfig  `mapstructure:"identity"`
	Peer      PeerConfig      `mapstructure:"peer"`
	Transport TransportConfig `mapstructure:"transport"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
}

// loadGatewayConfig decodes the merged viper configuration (flags, config
// file, environment) into a GatewayConfig, rejecting unrecognized keys so a
// mistyped field in the configuration file fails loudly instead of being
// silently ignored.
func loadGatewayConfig() (*GatewayConfig, error) {
	var cfg GatewayConfig
	decode := func(dc *mapstructure.DecoderConfig) { dc.ErrorUnused = true }
	if err := viper.Unmarshal(&cfg, decode); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Transport.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// party builds this endpoint's identity.Party from the configured hex
// fields, validating key lengths and that the public key matches the
// private key.
func (c *GatewayConfig) party() (identity.Party, error) {
	return identity.FromHex(
		c.Identity.PrivateKey, c.Identity.PublicKey, c.Identity.Kid,
		c.Peer.PublicKey, c.Peer.Kid,
	)
}
