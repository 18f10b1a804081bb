package common

import (
	"github.com/gin-gonic/gin"

	"drydock/internal/admission"
	"drydock/internal/domain/deploy"
)

// clientIdentity is the rate-limit key: the authenticated actor when
// present, the client address otherwise.
func clientIdentity(c *gin.Context) string {
	if value, ok := c.Get(principalKey); ok {
		if principal, ok := value.(deploy.Principal); ok && principal.ActorID != "" {
			return principal.ActorID
		}
	}
	return c.ClientIP()
}

// RateLimitRead applies the read limit. Runs after auth so the actor id
// is available.
func RateLimitRead(controller *admission.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := controller.CheckRead(c.Request.Context(), clientIdentity(c)); err != nil {
			WriteError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMutate applies the mutate limit.
func RateLimitMutate(controller *admission.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := controller.CheckMutate(c.Request.Context(), clientIdentity(c)); err != nil {
			WriteError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
