package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cheerhou/DevoLight/internal/infra/config"
)

func newEncryptCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a secret for use as an enc: config value",
		Long:  "encrypt prints an enc: value that Load decrypts when DEVOLIGHT_CONFIG_KEY holds the same passphrase.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				passphrase = os.Getenv("DEVOLIGHT_CONFIG_KEY")
			}
			if passphrase == "" {
				return errors.New("a passphrase is required (--passphrase or DEVOLIGHT_CONFIG_KEY)")
			}
			enc, err := config.EncryptValue(args[0], passphrase)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
			return err
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase")
	return cmd
}
