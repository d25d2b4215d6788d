package server

import (
	"crypto/subtle"
	"strings"

	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"github.com/gin-gonic/gin"
)

// APIKeyRequired guards /api with the configured bearer key. An empty key
// disables the check.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	want := []byte(strings.TrimSpace(s.cfg.HTTP.APIKey))
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(obsctx.WithActor(c.Request.Context(), obsctx.Actor{Type: obsctx.ActorAPIKey}))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
