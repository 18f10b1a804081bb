package deploy

import "testing"

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateSucceeded, StateFailed, StateCanceled, StateRolledBack}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	for _, s := range []State{StatePending, StateActive, StateInProgress} {
		if s.Terminal() {
			t.Fatalf("expected %s non-terminal", s)
		}
	}
}

func TestDeriveOutcome(t *testing.T) {
	rec := Record{ID: "d-1", State: StateSucceeded}
	tests := []struct {
		name            string
		rec             Record
		latestSuccessID string
		want            Outcome
		wantOK          bool
	}{
		{"latest success", rec, "d-1", OutcomeSucceeded, true},
		{"superseded by later success", rec, "d-2", OutcomeSuperseded, true},
		{"no known latest", rec, "", OutcomeSucceeded, true},
		{"failed", Record{State: StateFailed}, "", OutcomeFailed, true},
		{"canceled", Record{State: StateCanceled}, "", OutcomeCanceled, true},
		{"rolled back", Record{State: StateRolledBack}, "", OutcomeRolledBack, true},
		{"in flight has no outcome", Record{State: StateInProgress}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeriveOutcome(tt.rec, tt.latestSuccessID)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("DeriveOutcome = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDeliveryGroupOwnerMatch(t *testing.T) {
	group := DeliveryGroup{Owners: "Alice@Example.com, bob@example.com"}

	if !group.Owned() {
		t.Fatal("group with owner list must report Owned")
	}
	tests := []struct {
		email string
		want  bool
	}{
		{"alice@example.com", true},
		{"ALICE@EXAMPLE.COM", true},
		{"  bob@example.com  ", true},
		{"mallory@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := group.IsOwner(tt.email); got != tt.want {
			t.Fatalf("IsOwner(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}

	for _, owners := range []string{"", " , ,"} {
		open := DeliveryGroup{Owners: owners}
		if open.Owned() {
			t.Fatalf("Owners=%q must not report Owned", owners)
		}
	}
}

func TestGuardrailsDefaultToOne(t *testing.T) {
	g := Guardrails{MaxConcurrentDeployments: 0, DailyDeployQuota: -3, DailyRollbackQuota: 5}
	if g.EffectiveMaxConcurrent() != 1 {
		t.Fatalf("expected max concurrent 1, got %d", g.EffectiveMaxConcurrent())
	}
	if g.EffectiveDeployQuota() != 1 {
		t.Fatalf("expected deploy quota 1, got %d", g.EffectiveDeployQuota())
	}
	if g.EffectiveRollbackQuota() != 5 {
		t.Fatalf("expected rollback quota 5, got %d", g.EffectiveRollbackQuota())
	}
}

func TestPromotionRank(t *testing.T) {
	two := 7
	group := DeliveryGroup{
		Environments: []Environment{
			{Name: "dev"},
			{Name: "staging"},
			{Name: "prod", PromotionOrder: &two},
		},
	}
	if got := group.PromotionRank("dev"); got != 0 {
		t.Fatalf("expected positional rank 0, got %d", got)
	}
	if got := group.PromotionRank("staging"); got != 1 {
		t.Fatalf("expected positional rank 1, got %d", got)
	}
	if got := group.PromotionRank("prod"); got != 7 {
		t.Fatalf("expected explicit rank 7, got %d", got)
	}
	if got := group.PromotionRank("qa"); got != -1 {
		t.Fatalf("expected -1 for unknown environment, got %d", got)
	}
}

func TestMapEngineState(t *testing.T) {
	tests := []struct {
		raw    string
		want   State
		wantOK bool
	}{
		{"queued", StatePending, true},
		{"RUNNING", StateInProgress, true},
		{"succeeded", StateSucceeded, true},
		{"cancelled", StateCanceled, true},
		{"rolled_back", StateRolledBack, true},
		{"transmogrified", "", false},
	}
	for _, tt := range tests {
		got, ok := MapEngineState(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("MapEngineState(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
