package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"drydock/internal/domain/deploy"
	"drydock/internal/http/auth"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestWriteErrorGovernance(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		WriteError(c, deploy.ErrConcurrencyLimitReached("group-a", 2))
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "CONCURRENCY_LIMIT_REACHED" || body.ErrorCode != body.Code {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if body.FailureCause != string(deploy.CausePolicyChange) {
		t.Fatalf("expected policy cause, got %q", body.FailureCause)
	}
}

func TestWriteErrorSentinels(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", deploy.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"already exists", deploy.ErrAlreadyExists, http.StatusConflict, "CONFLICT"},
		{"invalid argument", deploy.ErrInvalidArgument, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/boom", func(c *gin.Context) { WriteError(c, tt.err) })
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if body := decodeError(t, rec); body.Code != tt.wantCode {
				t.Fatalf("expected %s, got %+v", tt.wantCode, body)
			}
		})
	}
}

func TestWriteErrorNeverLeaksInternalDetail(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		WriteError(c, errors.New("pq: connection to 10.0.3.7:5432 refused"))
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))

	body := decodeError(t, rec)
	if body.Message != "internal error" {
		t.Fatalf("internal detail leaked: %+v", body)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": RequestID(c)})
	})

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatal("expected a generated request id header")
		}
	})
	t.Run("honors caller id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("X-Request-ID", "req-abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "req-abc" {
			t.Fatalf("expected req-abc, got %q", got)
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	router := gin.New()
	authenticator := auth.NewHeaderAuthenticator()
	authorizer := auth.NewAuthorizer()
	router.GET("/guarded",
		AuthMiddleware(authenticator, authorizer, deploy.PermDeployWrite),
		func(c *gin.Context) {
			principal, ok := PrincipalFromContext(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{"actor": principal.ActorID})
		})

	t.Run("permitted role passes with a principal", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/guarded", nil)
		req.Header.Set("X-Actor-Id", "alice")
		req.Header.Set("X-Actor-Role", deploy.RoleOperator)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
	})
	t.Run("forbidden role is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/guarded", nil)
		req.Header.Set("X-Actor-Id", "eve")
		req.Header.Set("X-Actor-Role", deploy.RoleViewer)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if body := decodeError(t, rec); body.Code != "ROLE_FORBIDDEN" {
			t.Fatalf("unexpected envelope %+v", body)
		}
	})
	t.Run("anonymous is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/guarded", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}
