package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
)

// Identity is resolved by the gateway in front of this service, which
// forwards the caller as headers.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// ActorRequired places the forwarded caller on the request context.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorcontext.Actor{
			ID:   strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Role: strings.TrimSpace(c.GetHeader(HeaderUserRole)),
		}
		if !actor.Valid() {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actorcontext.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
