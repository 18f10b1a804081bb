package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
)

// AdminService owns the operator-mutable policy: live rate limits, the
// mutation kill switch, UI exposure, and CI publisher configuration.
// Every mutation is admin-only and emits an audit event with before and
// after values; audit write failures are logged, never surfaced.
type AdminService struct {
	runtime    *config.Runtime
	publishers PublisherRepository
	groups     GroupRepository
	audit      AuditSink
	admission  *admission.Controller

	Clock func() time.Time
}

func NewAdminService(runtime *config.Runtime, publishers PublisherRepository, groups GroupRepository, audit AuditSink, adm *admission.Controller) *AdminService {
	return &AdminService{
		runtime:    runtime,
		publishers: publishers,
		groups:     groups,
		audit:      audit,
		admission:  adm,
		Clock:      time.Now,
	}
}

type PublisherView struct {
	Name            string   `json:"name"`
	Provider        string   `json:"provider"`
	Issuers         []string `json:"issuers,omitempty"`
	Audiences       []string `json:"audiences,omitempty"`
	AuthorizedParty []string `json:"authorized_party,omitempty"`
	Subjects        []string `json:"subjects,omitempty"`
	SubjectPrefixes []string `json:"subject_prefixes,omitempty"`
	Emails          []string `json:"emails,omitempty"`
}

type MutationSwitch struct {
	Enabled bool `json:"enabled"`
}

func requireAdmin(principal deploy.Principal) error {
	if principal.Role != deploy.RoleAdmin {
		return deploy.ErrRoleForbidden(principal.Role)
	}
	return nil
}

func (s *AdminService) RateLimits(principal deploy.Principal) (config.RateLimits, error) {
	if err := requireAdmin(principal); err != nil {
		return config.RateLimits{}, err
	}
	return s.runtime.Limits(), nil
}

// SetRateLimits changes the live limits; the next admitted request is
// already judged against the new values.
func (s *AdminService) SetRateLimits(ctx context.Context, principal deploy.Principal, requestID string, limits config.RateLimits) (config.RateLimits, error) {
	if err := requireAdmin(principal); err != nil {
		return config.RateLimits{}, err
	}
	if limits.ReadPerMinute < 0 || limits.MutatePerMinute < 0 {
		return config.RateLimits{}, deploy.ErrInvalidRequest("rate limits must not be negative")
	}
	before := s.runtime.Limits()
	s.runtime.SetLimits(limits)
	s.record(ctx, principal, requestID, "rate_limits.update",
		map[string]any{"read_per_minute": before.ReadPerMinute, "mutate_per_minute": before.MutatePerMinute},
		map[string]any{"read_per_minute": limits.ReadPerMinute, "mutate_per_minute": limits.MutatePerMinute})
	return limits, nil
}

type QuotaUsageView struct {
	GroupID   string `json:"group_id"`
	Quota     string `json:"quota"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
}

// QuotaUsage answers the remaining-quota preview for one delivery
// group. The limit comes from the group's guardrails, the same values
// the admission checks consume against.
func (s *AdminService) QuotaUsage(ctx context.Context, principal deploy.Principal, groupID, quota string) (QuotaUsageView, error) {
	if err := requireAdmin(principal); err != nil {
		return QuotaUsageView{}, err
	}
	if groupID == "" {
		return QuotaUsageView{}, deploy.ErrInvalidRequest("delivery group id is required")
	}
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return QuotaUsageView{}, deploy.ErrRecordNotFound()
		}
		return QuotaUsageView{}, err
	}
	var limit int
	switch quota {
	case admission.QuotaDeploy, admission.QuotaBuildRegister:
		limit = group.Guardrails.EffectiveDeployQuota()
	case admission.QuotaRollback:
		limit = group.Guardrails.EffectiveRollbackQuota()
	default:
		return QuotaUsageView{}, deploy.ErrInvalidRequest("unknown quota " + quota)
	}
	usage, err := s.admission.DailyUsage(ctx, group.ID, quota, limit)
	if err != nil {
		return QuotaUsageView{}, err
	}
	return QuotaUsageView{
		GroupID:   group.ID,
		Quota:     quota,
		Used:      usage.Used,
		Remaining: usage.Remaining,
		Limit:     usage.Limit,
	}, nil
}

func (s *AdminService) UIExposure(principal deploy.Principal) (config.UIExposure, error) {
	if err := requireAdmin(principal); err != nil {
		return config.UIExposure{}, err
	}
	return s.runtime.UIExposure(), nil
}

func (s *AdminService) SetUIExposure(ctx context.Context, principal deploy.Principal, requestID string, policy config.UIExposure) (config.UIExposure, error) {
	if err := requireAdmin(principal); err != nil {
		return config.UIExposure{}, err
	}
	before := s.runtime.UIExposure()
	s.runtime.SetUIExposure(policy)
	s.record(ctx, principal, requestID, "ui_exposure.update",
		map[string]any{"show_execution_url": before.ShowExecutionURL, "show_failure_detail": before.ShowFailureDetail},
		map[string]any{"show_execution_url": policy.ShowExecutionURL, "show_failure_detail": policy.ShowFailureDetail})
	return policy, nil
}

func (s *AdminService) Mutations(principal deploy.Principal) (MutationSwitch, error) {
	if err := requireAdmin(principal); err != nil {
		return MutationSwitch{}, err
	}
	return MutationSwitch{Enabled: s.runtime.MutationsEnabled()}, nil
}

// SetMutations flips the global kill switch.
func (s *AdminService) SetMutations(ctx context.Context, principal deploy.Principal, requestID string, enabled bool) (MutationSwitch, error) {
	if err := requireAdmin(principal); err != nil {
		return MutationSwitch{}, err
	}
	before := s.runtime.MutationsEnabled()
	s.runtime.SetMutationsEnabled(enabled)
	s.record(ctx, principal, requestID, "mutations.update",
		map[string]any{"enabled": before},
		map[string]any{"enabled": enabled})
	return MutationSwitch{Enabled: enabled}, nil
}

func (s *AdminService) ListPublishers(ctx context.Context, principal deploy.Principal) ([]PublisherView, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	list, err := s.publishers.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PublisherView, 0, len(list))
	for _, p := range list {
		views = append(views, publisherView(p))
	}
	return views, nil
}

// CreatePublisher registers a CI publisher rule set. Names are unique; a
// duplicate is a conflict, not an update.
func (s *AdminService) CreatePublisher(ctx context.Context, principal deploy.Principal, requestID string, view PublisherView) (PublisherView, error) {
	if err := requireAdmin(principal); err != nil {
		return PublisherView{}, err
	}
	if view.Name == "" {
		return PublisherView{}, deploy.ErrInvalidRequest("publisher name is required")
	}
	p := builds.Publisher{
		Name:            view.Name,
		Provider:        view.Provider,
		Issuers:         view.Issuers,
		Audiences:       view.Audiences,
		AuthorizedParty: view.AuthorizedParty,
		Subjects:        view.Subjects,
		SubjectPrefixes: view.SubjectPrefixes,
		Emails:          view.Emails,
	}
	if err := s.publishers.Create(ctx, p); err != nil {
		if errors.Is(err, deploy.ErrAlreadyExists) {
			return PublisherView{}, deploy.ErrInvalidRequest("a publisher with that name already exists")
		}
		return PublisherView{}, err
	}
	s.record(ctx, principal, requestID, "ci_publisher.create", nil,
		map[string]any{"name": p.Name, "provider": p.Provider})
	return view, nil
}

func (s *AdminService) DeletePublisher(ctx context.Context, principal deploy.Principal, requestID, name string) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}
	before, err := s.publishers.Get(ctx, name)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.ErrRecordNotFound()
		}
		return err
	}
	if err := s.publishers.Delete(ctx, name); err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.ErrRecordNotFound()
		}
		return err
	}
	s.record(ctx, principal, requestID, "ci_publisher.delete",
		map[string]any{"name": before.Name, "provider": before.Provider}, nil)
	return nil
}

func (s *AdminService) record(ctx context.Context, principal deploy.Principal, requestID, action string, before, after map[string]any) {
	event := deploy.AuditEvent{
		Action:    action,
		ActorID:   principal.ActorID,
		ActorRole: principal.Role,
		RequestID: requestID,
		Before:    before,
		After:     after,
		CreatedAt: s.Clock().UTC(),
	}
	if err := s.audit.Append(ctx, event); err != nil {
		log.Printf("audit write for %s failed: %v", action, err)
	}
}

func publisherView(p builds.Publisher) PublisherView {
	return PublisherView{
		Name:            p.Name,
		Provider:        p.Provider,
		Issuers:         p.Issuers,
		Audiences:       p.Audiences,
		AuthorizedParty: p.AuthorizedParty,
		Subjects:        p.Subjects,
		SubjectPrefixes: p.SubjectPrefixes,
		Emails:          p.Emails,
	}
}
