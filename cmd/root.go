// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var (
	debug    bool
	logLevel slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "edhocd",
	Short: "EDHOC/OSCORE gateway for constrained-device sessions",
	Long: `edhocd runs one side of an EDHOC handshake over CoAP/UDP and
bootstraps the OSCORE security context that follows it. It can act as the
responder, waiting for a peer to initiate, or as the initiator.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug contents")
}

// rootCmdLoadConfig applies the flags and configuration shared by every
// subcommand. Called after the subcommand has bound its own flags into
// viper and read its configuration file, so viper already has the final
// merged view.
func rootCmdLoadConfig() error {
	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	return nil
}
