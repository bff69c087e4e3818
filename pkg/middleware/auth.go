package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/live-poll/pkg/jwt"
	"github.com/weiawesome/live-poll/pkg/log"
	"github.com/weiawesome/live-poll/pkg/response"
)

const (
	PresenterKey  = "presenter"
	NameKey       = "presenter_name"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	TokenQueryKey = "token"
)

// TokenValidator is the subset of *jwt.Manager the middleware needs.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// PresenterAuth marks requests carrying a valid presenter token. Requests
// without a token pass through as ordinary participants; a token that is
// present but invalid is rejected. Browsers cannot set headers on a
// WebSocket handshake, so the token may also arrive as ?token=.
func PresenterAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := v.ValidateToken(token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Warn().Err(err).Msg("presenter token rejected")
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.Unauthorized(c, "token has expired")
				return
			}
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(PresenterKey, true)
		c.Set(NameKey, claims.Name)
		c.Next()
	}
}

// IsPresenter reports whether PresenterAuth verified the request.
func IsPresenter(c *gin.Context) bool {
	return c.GetBool(PresenterKey)
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader(AuthHeaderKey); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimPrefix(h, BearerPrefix)
	}
	return c.Query(TokenQueryKey)
}
