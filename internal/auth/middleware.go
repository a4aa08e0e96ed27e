package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// bearer returns the token from an "Authorization: Bearer" header.
func bearer(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	return strings.TrimSpace(authz[len("bearer "):]), true
}

// RequireRole enforces bearer access tokens whose role is one of roles.
func RequireRole(tokens *Tokens, roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequestHasRole reports whether r carries a valid access token holding one of roles.
// Browsers cannot set headers on a websocket upgrade, so a "token" query parameter
// is accepted as well.
func RequestHasRole(tokens *Tokens, r *http.Request, roles ...Role) bool {
	tokenStr, ok := bearer(r)
	if !ok {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return false
	}
	claims, err := tokens.Parse(tokenStr)
	return err == nil && slices.Contains(roles, claims.Role)
}

// ClaimsFrom returns the claims RequireRole stored on c.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
