package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	jwtmw "market_sync/internal/platform/jwt"
)

var (
	tokenSubject string
	tokenTTL     string
	tokenScopes  []string
)

// tokenCmd issues a bearer token for the read API.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a JWT for the read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Server.JWTSecret == "" {
			return errors.New("server.jwt_secret (JWT_SECRET) is required")
		}
		if tokenTTL != "" {
			cfg.Server.TokenExpiry = tokenTTL
		}
		token, err := jwtmw.NewGenerator(cfg.Server.JWTSecret, cfg.Server.GetTokenExpiry(), tokenScopes...).GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "market-sync-cli", "token subject")
	tokenCmd.Flags().StringVar(&tokenTTL, "ttl", "", "token lifetime such as 1h; defaults to server.token_expiry")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", []string{jwtmw.ScopeRead}, "scopes granted to the token")
}
