package common

import (
	"errors"
	"net/http"
	"strings"

	"drydock/internal/domain/deploy"
	"drydock/internal/http/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey = "principal"
	requestIDKey = "request_id"

	// HeaderIdempotencyKey carries the caller-supplied dedup token.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplay marks a response served from the idempotency cache.
	HeaderReplay = "X-Idempotent-Replay"
)

// ErrorResponse is the envelope for every rejected request. ErrorCode
// mirrors Code for older dashboard clients.
type ErrorResponse struct {
	Code         string         `json:"code"`
	ErrorCode    string         `json:"error_code"`
	FailureCause string         `json:"failure_cause"`
	Message      string         `json:"message"`
	RequestID    string         `json:"request_id"`
	OperatorHint string         `json:"operator_hint,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

type Authenticator interface {
	Authenticate(*gin.Context) (deploy.Principal, error)
}

type Authorizer interface {
	Require(principal deploy.Principal, permission string) error
}

// RequestIDMiddleware honors X-Request-ID when present, generates one
// otherwise, and echoes it in the response header.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func AuthMiddleware(authenticator Authenticator, authorizer Authorizer, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticator == nil || authorizer == nil {
			WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "auth misconfigured")
			return
		}
		principal, err := authenticator.Authenticate(c)
		if err != nil {
			WriteErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication failed")
			return
		}
		if err := authorizer.Require(principal, permission); err != nil {
			WriteError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func PrincipalFromContext(c *gin.Context) (deploy.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "principal missing")
		return deploy.Principal{}, false
	}
	principal, ok := value.(deploy.Principal)
	if !ok {
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "principal invalid")
		return deploy.Principal{}, false
	}
	return principal, true
}

func RequestID(c *gin.Context) string {
	if value, ok := c.Get(requestIDKey); ok {
		if requestID, ok := value.(string); ok {
			return requestID
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Request-ID"))
}

// IdempotencyKey returns the raw header value; guardrail validation
// decides whether blank is acceptable.
func IdempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
}

// WriteError maps a classified or sentinel error to the envelope. The
// governance taxonomy carries its own status, cause, and hint; bare
// sentinels get a generic mapping and anything else is INTERNAL.
func WriteError(c *gin.Context, err error) {
	if ge, ok := deploy.AsGovernance(err); ok {
		cause := ge.Cause
		if cause == "" {
			cause = deploy.CauseUnknown
		}
		c.AbortWithStatusJSON(ge.Status, ErrorResponse{
			Code:         ge.Code,
			ErrorCode:    ge.Code,
			FailureCause: string(cause),
			Message:      ge.Message,
			RequestID:    RequestID(c),
			OperatorHint: ge.OperatorHint,
			Details:      ge.Details,
		})
		return
	}
	switch {
	case errors.Is(err, deploy.ErrNotFound):
		WriteErrorCode(c, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, deploy.ErrAlreadyExists):
		WriteErrorCode(c, http.StatusConflict, "CONFLICT", "conflict")
	case errors.Is(err, deploy.ErrInvalidArgument):
		WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid argument")
	default:
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func WriteErrorCode(c *gin.Context, status int, code, message string) {
	cause := deploy.CauseUnknown
	if status >= 400 && status < 500 {
		cause = deploy.CauseUserError
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:         code,
		ErrorCode:    code,
		FailureCause: string(cause),
		Message:      message,
		RequestID:    RequestID(c),
	})
}

func ParseUUIDParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", name+" is required")
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a UUID")
		return "", false
	}
	return value, true
}

var _ Authorizer = (*auth.Authorizer)(nil)
