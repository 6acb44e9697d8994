package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geocatalog/internal/secret"
	"github.com/geocatalog/pkg/config"
	apperrors "github.com/geocatalog/pkg/errors"
)

func newEncryptCmd(opts *globalOptions) *cobra.Command {
	var key string

	encryptCmd := &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a store connection parameter",
		Long: `Encrypt a value for a store connection parameter with the catalog secret key.

The output carries the crypt1: prefix and can be pasted into a store record.
The key defaults to catalog.secret_key, which the ` + config.EnvPrefix + `_CATALOG_SECRET_KEY
environment variable overrides.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				cfg, err := config.LoadUnvalidated(opts.configPath)
				if err != nil {
					return apperrors.Wrap(apperrors.CodeConfigError, "failed to load configuration", err)
				}
				key = cfg.Catalog.SecretKey
			}
			box, err := secret.NewBox(key)
			if err != nil {
				return err
			}
			encrypted, err := box.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encrypted)
			return nil
		},
	}
	encryptCmd.Flags().StringVarP(&key, "key", "k", "", "Secret key passphrase")
	return encryptCmd
}
