// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/edhocd/gateway/internal/db"
	"github.com/edhocd/gateway/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

// Inbound datagrams are throttled in the UDP transport, independently of any
// per-peer protocol state, since an attacker can send message 1 before any
// state exists. The limit applies to every datagram, not only to message 1.
const (
	responderMsg1RatePerSecond = 50
	responderMsg1Burst         = 10
)

var responderCmd = &cobra.Command{
	Use:   "responder [udp_addr]",
	Short: "Wait for an EDHOC handshake and serve OSCORE-protected resources",
	Args:  cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return responderCmdLoadConfig(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadGatewayConfig()
		if err != nil {
			return err
		}
		party, err := cfg.party()
		if err != nil {
			return err
		}

		var audit *db.DB
		if cfg.Audit.enabled() {
			audit, err = db.Open(cfg.Audit.DBType, cfg.Audit.DSN)
			if err != nil {
				return fmt.Errorf("open audit database: %w", err)
			}
		}

		orch := session.NewResponder(party, slog.Default(), audit)
		limiter := rate.NewLimiter(rate.Limit(responderMsg1RatePerSecond), responderMsg1Burst)
		return serve(cfg.Transport.Address, cfg.Admin.Address, orch, limiter)
	},
}

func init() {
	rootCmd.AddCommand(responderCmd)
	responderCmd.Flags().String("config", "", "Pathname of the configuration file")
}

func responderCmdLoadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if len(args) > 0 {
		viper.Set("transport.address", args[0])
	}

	configFilePath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if configFilePath != "" {
		slog.Debug("loading responder configuration file", "path", configFilePath)
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("configuration file read failed: %w", err)
		}
	}
	return rootCmdLoadConfig()
}
