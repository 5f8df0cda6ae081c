package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/infrastructure/identity"
)

var tokenIssuer *identity.JWTProvider

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for the HTTP API",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *runtime) error {
		user, _ := cmd.Flags().GetString("user")
		rawRoles, _ := cmd.Flags().GetStringSlice("grant")
		roles, err := version.ParseRoles(rawRoles)
		if err != nil {
			return errs.Wrap(err, "parse --grant")
		}

		token, err := tokenIssuer.IssueToken(user, roles)
		if err != nil {
			return errs.Wrap(err, "issue token")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return errs.Wrap(err, "write token")
	}, fx.Populate(&tokenIssuer)),
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().String("user", "", "User id carried by the token")
	tokenIssueCmd.Flags().StringSlice("grant", []string{string(version.RoleDeveloper)}, "Roles carried by the token")
	_ = tokenIssueCmd.MarkFlagRequired("user")
}
