package jwtmw

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextSubject is the gin context key holding the calling service.
const ContextSubject = "subject"

// AuthRequired returns a middleware that admits only service tokens signed with
// secret for Audience, carrying scope. When allowedSubjects is not empty the
// calling service must be one of them.
func AuthRequired(secret, scope string, allowedSubjects ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedSubjects))
	for _, s := range allowedSubjects {
		allowed[s] = struct{}{}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
			return
		}

		claims := &ServiceClaims{}
		token, err := parser.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if _, ok := allowed[claims.Subject]; len(allowed) > 0 && !ok {
			slog.Warn("rejected token from unknown service", "subject", claims.Subject, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "service not allowed"})
			return
		}
		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope"})
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}
