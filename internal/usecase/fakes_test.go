package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
)

type fakeDeployments struct {
	records map[string]deploy.Record
}

func newFakeDeployments() *fakeDeployments {
	return &fakeDeployments{records: map[string]deploy.Record{}}
}

func (f *fakeDeployments) Create(_ context.Context, rec deploy.Record) error {
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeDeployments) Get(_ context.Context, id string) (deploy.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return deploy.Record{}, deploy.ErrNotFound
	}
	return rec, nil
}

func (f *fakeDeployments) Update(_ context.Context, rec deploy.Record) error {
	if _, ok := f.records[rec.ID]; !ok {
		return deploy.ErrNotFound
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeDeployments) List(_ context.Context, service, state string, limit int) ([]deploy.Record, error) {
	out := f.sorted(false)
	filtered := out[:0]
	for _, rec := range out {
		if service != "" && rec.Service != service {
			continue
		}
		if state != "" && string(rec.State) != state {
			continue
		}
		filtered = append(filtered, rec)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (f *fakeDeployments) ListByServiceEnv(_ context.Context, service, environment string) ([]deploy.Record, error) {
	var out []deploy.Record
	for _, rec := range f.sorted(true) {
		if rec.Service == service && rec.Environment == environment {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeDeployments) CountActiveForGroup(_ context.Context, groupID string) (int, error) {
	count := 0
	for _, rec := range f.records {
		if rec.GroupID != groupID {
			continue
		}
		if rec.State == deploy.StateActive || rec.State == deploy.StateInProgress {
			count++
		}
	}
	return count, nil
}

func (f *fakeDeployments) LatestSuccessID(_ context.Context, service, environment string) (string, error) {
	id := ""
	var latest time.Time
	for _, rec := range f.records {
		if rec.Service != service || rec.Environment != environment || rec.State != deploy.StateSucceeded {
			continue
		}
		if id == "" || rec.CreatedAt.After(latest) {
			id = rec.ID
			latest = rec.CreatedAt
		}
	}
	return id, nil
}

func (f *fakeDeployments) sorted(oldestFirst bool) []deploy.Record {
	out := make([]deploy.Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if oldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type fakeGroups struct {
	groups map[string]deploy.DeliveryGroup
}

func newFakeGroups(groups ...deploy.DeliveryGroup) *fakeGroups {
	f := &fakeGroups{groups: map[string]deploy.DeliveryGroup{}}
	for _, g := range groups {
		f.groups[g.ID] = g
	}
	return f
}

func (f *fakeGroups) Get(_ context.Context, id string) (deploy.DeliveryGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return deploy.DeliveryGroup{}, deploy.ErrNotFound
	}
	return g, nil
}

func (f *fakeGroups) GroupForService(_ context.Context, service string) (deploy.DeliveryGroup, error) {
	for _, g := range f.groups {
		if g.HasService(service) {
			return g, nil
		}
	}
	return deploy.DeliveryGroup{}, deploy.ErrNotFound
}

func (f *fakeGroups) ServiceExists(_ context.Context, service string) (bool, error) {
	for _, g := range f.groups {
		if g.HasService(service) {
			return true, nil
		}
	}
	return false, nil
}

type fakeRecipes struct {
	recipes map[string]deploy.Recipe
}

func newFakeRecipes(recipes ...deploy.Recipe) *fakeRecipes {
	f := &fakeRecipes{recipes: map[string]deploy.Recipe{}}
	for _, r := range recipes {
		f.recipes[r.ID] = r
	}
	return f
}

func (f *fakeRecipes) Get(_ context.Context, id string) (deploy.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return deploy.Recipe{}, deploy.ErrNotFound
	}
	return r, nil
}

type fakeBuilds struct {
	registrations map[string]builds.Registration
}

func newFakeBuilds() *fakeBuilds {
	return &fakeBuilds{registrations: map[string]builds.Registration{}}
}

func buildKey(service, version string) string {
	return service + "@" + version
}

func registrationFor(service, version string) builds.Registration {
	return builds.Registration{
		ID:          "reg-" + buildKey(service, version),
		Service:     service,
		Version:     version,
		ArtifactRef: "s3://builds-bucket/" + service + "/" + version + ".zip",
		SHA256:      "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
		SizeBytes:   2048,
		ContentType: "application/zip",
	}
}

func (f *fakeBuilds) Create(_ context.Context, reg builds.Registration) (bool, error) {
	key := buildKey(reg.Service, reg.Version)
	if _, ok := f.registrations[key]; ok {
		return false, nil
	}
	f.registrations[key] = reg
	return true, nil
}

func (f *fakeBuilds) Get(_ context.Context, service, version string) (builds.Registration, error) {
	reg, ok := f.registrations[buildKey(service, version)]
	if !ok {
		return builds.Registration{}, deploy.ErrNotFound
	}
	return reg, nil
}

func (f *fakeBuilds) Exists(_ context.Context, service, version string) (bool, error) {
	_, ok := f.registrations[buildKey(service, version)]
	return ok, nil
}

type fakeCapabilities struct {
	grants map[string]builds.UploadCapability
}

func newFakeCapabilities() *fakeCapabilities {
	return &fakeCapabilities{grants: map[string]builds.UploadCapability{}}
}

func (f *fakeCapabilities) Create(_ context.Context, grant builds.UploadCapability) error {
	f.grants[grant.Token] = grant
	return nil
}

func (f *fakeCapabilities) Get(_ context.Context, token string) (builds.UploadCapability, error) {
	grant, ok := f.grants[token]
	if !ok {
		return builds.UploadCapability{}, deploy.ErrNotFound
	}
	return grant, nil
}

func (f *fakeCapabilities) Consume(_ context.Context, token string, at time.Time) error {
	grant, ok := f.grants[token]
	if !ok {
		return deploy.ErrNotFound
	}
	grant.ConsumedAt = &at
	f.grants[token] = grant
	return nil
}

type fakePublishers struct {
	publishers map[string]builds.Publisher
}

func newFakePublishers(publishers ...builds.Publisher) *fakePublishers {
	f := &fakePublishers{publishers: map[string]builds.Publisher{}}
	for _, p := range publishers {
		f.publishers[p.Name] = p
	}
	return f
}

func (f *fakePublishers) List(_ context.Context) ([]builds.Publisher, error) {
	out := make([]builds.Publisher, 0, len(f.publishers))
	for _, p := range f.publishers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakePublishers) Get(_ context.Context, name string) (builds.Publisher, error) {
	p, ok := f.publishers[name]
	if !ok {
		return builds.Publisher{}, deploy.ErrNotFound
	}
	return p, nil
}

func (f *fakePublishers) Create(_ context.Context, p builds.Publisher) error {
	if _, ok := f.publishers[p.Name]; ok {
		return deploy.ErrAlreadyExists
	}
	f.publishers[p.Name] = p
	return nil
}

func (f *fakePublishers) Delete(_ context.Context, name string) error {
	if _, ok := f.publishers[name]; !ok {
		return deploy.ErrNotFound
	}
	delete(f.publishers, name)
	return nil
}

type triggerCall struct {
	intent EngineIntent
	key    string
}

type fakeEngine struct {
	deploys    []triggerCall
	rollbacks  []triggerCall
	executions map[string]EngineStatus
	nextID     int
	failWith   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{executions: map[string]EngineStatus{}}
}

func (f *fakeEngine) TriggerDeploy(_ context.Context, intent EngineIntent, key string) (EngineExecution, error) {
	if f.failWith != nil {
		return EngineExecution{}, f.failWith
	}
	f.deploys = append(f.deploys, triggerCall{intent: intent, key: key})
	f.nextID++
	id := fmt.Sprintf("exec-%d", f.nextID)
	return EngineExecution{ID: id, URL: "https://engine.internal.example.com/runs/" + id}, nil
}

func (f *fakeEngine) TriggerRollback(_ context.Context, intent EngineIntent, key string) (EngineExecution, error) {
	if f.failWith != nil {
		return EngineExecution{}, f.failWith
	}
	f.rollbacks = append(f.rollbacks, triggerCall{intent: intent, key: key})
	f.nextID++
	id := fmt.Sprintf("rb-exec-%d", f.nextID)
	return EngineExecution{ID: id, URL: "https://engine.internal.example.com/runs/" + id}, nil
}

func (f *fakeEngine) GetExecution(_ context.Context, executionID string) (EngineStatus, error) {
	status, ok := f.executions[executionID]
	if !ok {
		return EngineStatus{}, deploy.ErrEngineUnavailable("execution not known")
	}
	return status, nil
}

type fakeArtifacts struct {
	probe ArtifactProbe
	err   error
}

func (f *fakeArtifacts) Exists(_ context.Context, _ string) (ArtifactProbe, error) {
	return f.probe, f.err
}

type fakeAudit struct {
	events []deploy.AuditEvent
	err    error
}

func (f *fakeAudit) Append(_ context.Context, event deploy.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
