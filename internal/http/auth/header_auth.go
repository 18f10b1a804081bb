// Package auth adapts the upstream auth provider's pre-verified headers
// into a Principal. Tokens are never parsed here; the gateway in front
// of the control plane does the verification.
package auth

import (
	"encoding/json"
	"strings"

	"drydock/internal/domain/deploy"

	"github.com/gin-gonic/gin"
)

type HeaderAuthenticator struct{}

func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

func (h *HeaderAuthenticator) Authenticate(c *gin.Context) (deploy.Principal, error) {
	principal := deploy.Principal{
		ActorID: strings.TrimSpace(c.GetHeader("X-Actor-Id")),
		Role:    strings.TrimSpace(c.GetHeader("X-Actor-Role")),
		Email:   strings.TrimSpace(c.GetHeader("X-Actor-Email")),
	}
	if raw := strings.TrimSpace(c.GetHeader("X-Verified-Claims")); raw != "" {
		claims := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &claims); err == nil {
			principal.Claims = claims
		}
	}
	return principal, nil
}
