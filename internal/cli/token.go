package cli

import (
	"fmt"

	"mathduel-service/internal/auth"
	"mathduel-service/internal/config"

	"github.com/spf13/cobra"
)

// NewTokenCmd signs a player token with the configured secret, for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var userID, email, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a player token for connecting to /ws",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			verifier, err := newVerifier(cfg)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(userID, email, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "player id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "player email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newVerifier(cfg config.Config) (*auth.Verifier, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret not configured")
	}
	return auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, 0)), nil
}
