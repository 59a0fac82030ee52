package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtmw "market_sync/internal/platform/jwt"
)

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--config", "testdata-missing.toml", "--subject", "batch", "--ttl", "2h"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	claims := &jwtmw.ServiceClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "batch", claims.Subject)
	assert.Equal(t, jwtmw.Issuer, claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{jwtmw.Audience}, claims.Audience)
	assert.Equal(t, []string{jwtmw.ScopeRead}, claims.Scopes)
	assert.InDelta(t, 2*3600, claims.ExpiresAt.Sub(claims.IssuedAt.Time).Seconds(), 1)
}
