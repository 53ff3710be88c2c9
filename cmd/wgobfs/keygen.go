package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"wgobfs/internal/conf"
)

func newKeygenCommand() *cobra.Command {
	var passphrase string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Derive and print the obfuscation key for a passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := conf.DeriveKey(passphrase)
			fmt.Println(hex.EncodeToString(key))
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "obfuscation passphrase (required)")
	cmd.MarkFlagRequired("passphrase")
	return cmd
}
