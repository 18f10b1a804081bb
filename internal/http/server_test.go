package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
	"drydock/internal/infra/idemcache"
	"drydock/internal/infra/ratelimit"
	"drydock/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPublishers struct{}

func (stubPublishers) List(context.Context) ([]builds.Publisher, error) { return nil, nil }
func (stubPublishers) Get(context.Context, string) (builds.Publisher, error) {
	return builds.Publisher{}, deploy.ErrNotFound
}
func (stubPublishers) Create(context.Context, builds.Publisher) error { return nil }
func (stubPublishers) Delete(context.Context, string) error           { return deploy.ErrNotFound }

type stubGroups map[string]deploy.DeliveryGroup

func (s stubGroups) Get(_ context.Context, id string) (deploy.DeliveryGroup, error) {
	g, ok := s[id]
	if !ok {
		return deploy.DeliveryGroup{}, deploy.ErrNotFound
	}
	return g, nil
}

func (s stubGroups) GroupForService(_ context.Context, service string) (deploy.DeliveryGroup, error) {
	for _, g := range s {
		if g.HasService(service) {
			return g, nil
		}
	}
	return deploy.DeliveryGroup{}, deploy.ErrNotFound
}

func (s stubGroups) ServiceExists(_ context.Context, service string) (bool, error) {
	_, err := s.GroupForService(context.Background(), service)
	return err == nil, nil
}

type stubAudit struct{}

func (stubAudit) Append(context.Context, deploy.AuditEvent) error { return nil }

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	runtime := config.NewRuntime(cfg)
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	controller := admission.NewController(store, runtime, time.Now)
	groups := stubGroups{"group-a": {
		ID:         "group-a",
		Services:   []string{"checkout"},
		Guardrails: deploy.Guardrails{DailyDeployQuota: 7, DailyRollbackQuota: 2},
	}}
	admin := usecase.NewAdminService(runtime, stubPublishers{}, groups, stubAudit{}, controller)
	return NewServer(cfg, ServerDeps{
		Admin:     admin,
		Admission: controller,
		Cache:     idemcache.NewMemoryStore(time.Now),
	})
}

func adminRequest(method, path, body, idemKey string) *nethttp.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "root")
	req.Header.Set("X-Actor-Role", deploy.RoleAdmin)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	return req
}

// A replayed mutation must be answered from the idempotency cache
// without consuming rate-limit budget, so a retry of an already
// admitted request can never be rejected with 429.
func TestMutationReplayNotRateLimited(t *testing.T) {
	srv := newTestServer(t, config.Config{ReadRateLimit: 100, MutateRateLimit: 1})
	handler := srv.Handler()

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, adminRequest("PUT", "/v1/admin/mutations", `{"enabled":true}`, "key-1"))
	if first.Code != nethttp.StatusOK {
		t.Fatalf("first attempt: status %d body %s", first.Code, first.Body.String())
	}

	// The only mutate token for this client is now spent.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, adminRequest("PUT", "/v1/admin/mutations", `{"enabled":true}`, "key-1"))
	if second.Code != nethttp.StatusOK {
		t.Fatalf("replay: status %d body %s", second.Code, second.Body.String())
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replay marker, headers %v", second.Header())
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body differs: %s vs %s", second.Body.String(), first.Body.String())
	}

	// A fresh key is a new mutation and is judged by the limiter.
	third := httptest.NewRecorder()
	handler.ServeHTTP(third, adminRequest("PUT", "/v1/admin/mutations", `{"enabled":false}`, "key-2"))
	if third.Code != nethttp.StatusTooManyRequests {
		t.Fatalf("new mutation past the limit: status %d body %s", third.Code, third.Body.String())
	}
}

func TestQuotaUsageEndpoint(t *testing.T) {
	srv := newTestServer(t, config.Config{ReadRateLimit: 100, MutateRateLimit: 10})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, adminRequest("GET", "/v1/admin/quota-usage?group=group-a&quota=deploy", "", ""))
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Usage usecase.QuotaUsageView `json:"quota_usage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Usage.GroupID != "group-a" || body.Usage.Limit != 7 || body.Usage.Remaining != 7 {
		t.Fatalf("unexpected usage %+v", body.Usage)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, adminRequest("GET", "/v1/admin/quota-usage?group=group-z", "", ""))
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("unknown group: status %d body %s", rec.Code, rec.Body.String())
	}
}
