package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func contextWithHeaders(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/v1/deployments", nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestHeaderAuthenticator(t *testing.T) {
	c := contextWithHeaders(map[string]string{
		"X-Actor-Id":        " alice ",
		"X-Actor-Role":      "operator",
		"X-Actor-Email":     "alice@example.com",
		"X-Verified-Claims": `{"iss":"https://issuer","sub":"repo:acme/checkout"}`,
	})

	principal, err := NewHeaderAuthenticator().Authenticate(c)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.ActorID != "alice" || principal.Role != "operator" || principal.Email != "alice@example.com" {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if principal.Claims["iss"] != "https://issuer" {
		t.Fatalf("claims not parsed, got %+v", principal.Claims)
	}
}

func TestHeaderAuthenticatorMalformedClaims(t *testing.T) {
	c := contextWithHeaders(map[string]string{
		"X-Actor-Id":        "bob",
		"X-Verified-Claims": "{not json",
	})

	principal, err := NewHeaderAuthenticator().Authenticate(c)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.Claims != nil {
		t.Fatalf("malformed claims must be dropped, got %+v", principal.Claims)
	}
}

func TestHeaderAuthenticatorAnonymous(t *testing.T) {
	principal, err := NewHeaderAuthenticator().Authenticate(contextWithHeaders(nil))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.ActorID != "" {
		t.Fatalf("expected empty principal, got %+v", principal)
	}
}
