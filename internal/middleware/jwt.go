package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/eduprep/mocktest-backend/internal/response"
	"github.com/eduprep/mocktest-backend/internal/service"
	"github.com/gin-gonic/gin"
)

var errMissingToken = errors.New("missing bearer token")

// ContextKeyClaims is the Gin context key for JWT claims.
const ContextKeyClaims = "claims"

// RequireStudentJWT validates a student JWT from the Authorization header.
func RequireStudentJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != service.TokenTypeStudent {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireStudentWSAuth validates a student JWT from the query param ?token=...
// Used for WebSocket upgrade requests, which cannot set headers.
func RequireStudentWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != service.TokenTypeStudent {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" || tokenStr == header {
		return nil, errMissingToken
	}
	return authService.ValidateToken(tokenStr)
}

// GetClaims retrieves validated claims from the Gin context, or nil.
func GetClaims(c *gin.Context) *service.Claims {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, ok := v.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}
