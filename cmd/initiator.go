// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/edhocd/gateway/internal/db"
	"github.com/edhocd/gateway/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var peerAddress string

var initiatorCmd = &cobra.Command{
	Use:   "initiator udp_addr peer_udp_addr",
	Short: "Drive an EDHOC handshake against a peer and exchange OSCORE-protected requests",
	Args:  cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initiatorCmdLoadConfig(cmd, args)
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

		peer, err := net.ResolveUDPAddr("udp", peerAddress)
		if err != nil {
			return fmt.Errorf("resolve peer address %q: %w", peerAddress, err)
		}
		laddr, err := net.ResolveUDPAddr("udp", cfg.Transport.Address)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", cfg.Transport.Address, err)
		}
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return fmt.Errorf("listen %q: %w", cfg.Transport.Address, err)
		}
		defer func() { _ = conn.Close() }()

		orch := session.NewInitiator(party, slog.Default(), audit)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("initiating handshake", "local", cfg.Transport.Address, "peer", peerAddress)
		return runInitiator(ctx, conn, peer, orch)
	},
}

func init() {
	rootCmd.AddCommand(initiatorCmd)
	initiatorCmd.Flags().String("config", "", "Pathname of the configuration file")
}

func initiatorCmdLoadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	viper.Set("transport.address", args[0])
	peerAddress = args[1]

	configFilePath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if configFilePath != "" {
		slog.Debug("loading initiator configuration file", "path", configFilePath)
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("configuration file read failed: %w", err)
		}
	}
	return rootCmdLoadConfig()
}

// runInitiator sends message 1, then alternately reads the peer's reply and
// feeds it to the orchestrator until ctx is cancelled. HandleResponse drives
// both the EDHOC handshake and, once it completes, the unbounded
// OSCORE-protected /hello, /echo exchange that follows — this loop keeps
// calling it unconditionally for as long as the connection is open. Each
// outbound datagram carries the next message id and a one-byte token. A
// datagram is taken as a reply when its source address is the peer's; the
// token of the reply is not checked.
func runInitiator(ctx context.Context, conn *net.UDPConn, peer *net.UDPAddr, orch *session.Orchestrator) error {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var seq uint16

	msg1, err := orch.StartHandshake([]byte{0x01}, seq, []byte{byte(seq)})
	if err != nil {
		return fmt.Errorf("start handshake: %w", err)
	}
	if _, err := conn.WriteToUDP(msg1, peer); err != nil {
		return fmt.Errorf("send message 1: %w", err)
	}

	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("udp read: %w", err)
		}
		if from.String() != peer.String() {
			slog.Debug("dropping datagram from unexpected peer", "from", from)
			continue
		}

		seq++
		resp, err := orch.HandleResponse(append([]byte(nil), buf[:n]...), seq, []byte{byte(seq)})
		if err != nil {
			return fmt.Errorf("handling reply from peer: %w", err)
		}
		if _, err := conn.WriteToUDP(resp, peer); err != nil {
			return fmt.Errorf("send next request: %w", err)
		}
	}
}
