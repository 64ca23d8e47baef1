package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nfrund/storefront/internal/app"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/spf13/cobra"
)

var promoteRole string

var promoteCmd = &cobra.Command{
	Use:   "promote <user-id|email>",
	Short: "Set the role of an account (admin by default)",
	Long: `Promote sets the role stored in the account's profile. The account can be
given by id or by e-mail address. A missing profile is created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := domain.ParseRole(promoteRole)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveAccount(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if err := setRole(cmd.Context(), a, id, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s now has role %s\n", id, role)
			return nil
		})
	},
}

func resolveAccount(ctx context.Context, a *app.App, ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	accounts, err := a.Accounts()
	if err != nil {
		return "", err
	}
	id, err := accounts.LookupEmail(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("no account registered for %s", ref)
	}
	return id, err
}

func setRole(ctx context.Context, a *app.App, id string, role domain.Role) error {
	profiles, err := a.Profiles()
	if err != nil {
		return err
	}
	err = profiles.UpdateRole(ctx, id, role)
	if errors.Is(err, domain.ErrNotFound) {
		return profiles.Create(ctx, &domain.Profile{ID: id, Role: role})
	}
	return err
}

func init() {
	promoteCmd.Flags().StringVar(&promoteRole, "role", domain.RoleAdmin.String(), "role to assign (user or admin)")
	rootCmd.AddCommand(promoteCmd)
}
