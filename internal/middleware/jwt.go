package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tooldir/internal/pkg/errcode"
	"github.com/xxxsen/tooldir/internal/pkg/jwt"
	"github.com/xxxsen/tooldir/internal/pkg/response"
)

const (
	ContextUserIDKey    = "user_id"
	ContextUserEmailKey = "user_email"
)

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		claims, msg := parseBearer(header, secret)
		if claims == nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, msg)
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth attaches the session when a valid token is present and
// lets anonymous requests through. A malformed or expired token is still
// rejected so clients notice a stale session.
func OptionalJWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		claims, msg := parseBearer(header, secret)
		if claims == nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, msg)
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

func parseBearer(header string, secret []byte) (*jwt.Claims, string) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, "invalid authorization"
	}
	claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
	if err != nil {
		return nil, "invalid token"
	}
	return claims, ""
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextUserIDKey, claims.UserID)
	if claims.Email != "" {
		c.Set(ContextUserEmailKey, claims.Email)
	}
}
