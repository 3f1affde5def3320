package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/camo/internal/credential"
	"github.com/franz/camo/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the Contentful management token in the system keyring",
	Long: `Store a Contentful management token in the system keyring.

Commands fall back to the stored token when neither --access-token nor
CONTENTFUL_MIGRATION_ACCESS_TOKEN is set. Without --token the token is read
from an interactive prompt.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored Contentful management token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credential.Delete(credential.AccessTokenKey); err != nil {
			return fmt.Errorf("failed to remove the access token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Removed the stored access token."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().String("token", "", "management token to store (prompted for when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	token = strings.TrimSpace(token)

	if token == "" {
		var err error
		token, err = ui.Secret("Contentful management token")
		if err != nil {
			return err
		}
	}
	if token == "" {
		return fail(exitAccessToken, "The Contentful access token is missing.", errors.New("nothing to store"))
	}

	if err := credential.Set(credential.AccessTokenKey, token); err != nil {
		return fmt.Errorf("failed to store the access token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Stored the access token in the system keyring."))
	return nil
}
