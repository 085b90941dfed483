package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizboard-client/internal/auth"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			identity, err := s.client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if identity.UserID == "" {
				// Some backend versions omit the user id from the login
				// response; the token claims carry it regardless.
				identity, err = auth.IdentityFromToken(identity.Token, identity.Username)
				if err != nil {
					return fmt.Errorf("login response missing user id: %w", err)
				}
			}
			if err := s.sessions.Save(ctx, identity); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", identity.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack()
			if err != nil {
				return err
			}
			if err := s.client.Signup(cmd.Context(), username, email, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created, you can now login")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack()
			if err != nil {
				return err
			}
			if err := s.sessions.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
