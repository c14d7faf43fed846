package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/huddle/internal/auth"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	identityKey     = "identity"
	sessionTokenKey = "token"
)

// tokenFrom looks for a bearer token in the Authorization header, then the
// token query parameter, then the cookie session. Browsers cannot set headers
// on a websocket upgrade, hence the fallbacks.
func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if token, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// AuthMiddleware rejects the request before any handler runs unless it carries
// a valid token.
func AuthMiddleware(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := v.Verify(c.Request.Context(), tokenFrom(c))
		if err != nil {
			log.Info().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthorized")
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.Identity{}
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation, domain.KindInvalidOperation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(statusFor(kind), gin.H{"error": domain.PublicMessage(err), "code": kind})
}
