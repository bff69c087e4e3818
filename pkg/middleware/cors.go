package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/live-poll/pkg/log"
	"github.com/weiawesome/live-poll/pkg/response"
)

// OriginPolicy is a static allow-list of browser origins. Requests
// without an Origin header (curl, server-to-server) are always allowed.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from a static list plus an optional
// extra origin (typically the deployed frontend URL). The extra origin is
// accepted both with and without a trailing slash.
func NewOriginPolicy(static []string, extra string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(static)+2)}
	for _, o := range static {
		if o = strings.TrimSpace(o); o != "" {
			p.allowed[o] = struct{}{}
		}
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		p.allowed[extra] = struct{}{}
		p.allowed[strings.TrimSuffix(extra, "/")] = struct{}{}
	}
	return p
}

// Allowed reports whether origin may talk to the service.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// Origins returns the allow-list, for startup logging.
func (p *OriginPolicy) Origins() []string {
	out := make([]string, 0, len(p.allowed))
	for o := range p.allowed {
		out = append(out, o)
	}
	return out
}

// CheckOrigin adapts the policy to websocket.Upgrader.CheckOrigin.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.Allowed(origin) {
		return true
	}
	l := log.Ctx(r.Context())
	l.Warn().Str(log.FieldOrigin, origin).Msg("websocket origin not allowed")
	return false
}

// CORS returns a Gin middleware that answers preflight requests and sets
// credentialed CORS headers for allowed origins.
func (p *OriginPolicy) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !p.Allowed(origin) {
			l := log.Ctx(c.Request.Context())
			l.Warn().Str(log.FieldOrigin, origin).Msg("CORS origin not allowed")
			response.Forbidden(c, "origin not allowed")
			return
		}

		if origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
