// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var printIdentityCmd = &cobra.Command{
	Use:   "print-identity",
	Short: "Print this endpoint's configured public key and key-id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		configFilePath, err := cmd.Flags().GetString("config")
		if err != nil {
			return fmt.Errorf("failed to get config flag: %w", err)
		}
		if configFilePath != "" {
			viper.SetConfigFile(configFilePath)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("configuration file read failed: %w", err)
			}
		}

		cfg, err := loadGatewayConfig()
		if err != nil {
			return err
		}
		party, err := cfg.party()
		if err != nil {
			return err
		}

		fmt.Printf("public_key = %s\n", hex.EncodeToString(party.PublicKey[:]))
		fmt.Printf("kid        = %s\n", hex.EncodeToString(party.Kid))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(printIdentityCmd)
	printIdentityCmd.Flags().String("config", "", "Pathname of the configuration file")
}
