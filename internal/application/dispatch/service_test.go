package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/vocmd/internal/domain"
)

var lockDef = domain.CommandDefinition{ID: "lock_screen", Name: "Lock Screen", Category: domain.CategorySystem, Handler: "system.lock"}

type stubParser struct {
	known map[string]domain.CommandDefinition
}

func (p stubParser) Parse(text string) (domain.ParsedCommand, bool) {
	def, ok := p.known[text]
	if !ok {
		return domain.ParsedCommand{}, false
	}
	return domain.ParsedCommand{Definition: def, Parameters: map[string]interface{}{}, Confidence: 0.9, RawText: text}, true
}

func (p stubParser) Hints(string) []string { return []string{"Try: lock the screen"} }

func (p stubParser) List() []domain.CommandDefinition { return nil }

func (p stubParser) Lookup(id string) (domain.CommandDefinition, bool) {
	for _, def := range p.known {
		if def.ID == id {
			return def, true
		}
	}
	return domain.CommandDefinition{}, false
}

type stubPolicy struct {
	verdict  domain.Verdict
	approved map[string]bool
	requests map[string]domain.PermissionRequest
	err      error
}

func (p *stubPolicy) Evaluate(cmd domain.ParsedCommand, _ domain.CommandContext) domain.Verdict {
	if p.approved[cmd.Definition.ID] {
		return domain.Verdict{Decision: domain.DecisionAllow, Risk: domain.RiskHigh}
	}
	return p.verdict
}

func (p *stubPolicy) ApprovePermission(id, _ string) (domain.PermissionRequest, error) {
	if p.err != nil {
		return domain.PermissionRequest{}, p.err
	}
	req, ok := p.requests[id]
	if !ok {
		return domain.PermissionRequest{}, domain.ErrPermissionNotFound
	}
	if p.approved == nil {
		p.approved = map[string]bool{}
	}
	p.approved[req.Action] = true
	delete(p.requests, id)
	return req, nil
}

func (p *stubPolicy) DenyPermission(id string) (domain.PermissionRequest, error) {
	req, ok := p.requests[id]
	if !ok {
		return domain.PermissionRequest{}, domain.ErrPermissionNotFound
	}
	delete(p.requests, id)
	return req, nil
}

func (p *stubPolicy) PendingPermissions() []domain.PermissionRequest {
	var out []domain.PermissionRequest
	for _, r := range p.requests {
		out = append(out, r)
	}
	return out
}

type stubHandlers struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context) (domain.CommandResult, error)
}

func (h *stubHandlers) Invoke(ctx context.Context, key string, _ map[string]interface{}, _ domain.CommandContext) (domain.CommandResult, error) {
	h.mu.Lock()
	h.calls = append(h.calls, key)
	h.mu.Unlock()
	if h.fn != nil {
		return h.fn(ctx)
	}
	return domain.CommandResult{Success: true, Message: "ok"}, nil
}

type outcomeCall struct {
	command string
	success bool
}

type stubModes struct {
	unavailable   map[string]bool
	outcomes      []outcomeCall
	interruptions []domain.Outcome
}

func (m *stubModes) IsCommandAvailableFor(_ string, command string, _ domain.ContextType) bool {
	return !m.unavailable[command]
}

func (m *stubModes) RecordOutcome(_ string, _ domain.ContextType, command string, success bool) error {
	m.outcomes = append(m.outcomes, outcomeCall{command, success})
	return nil
}

func (m *stubModes) RecordInterruption(_ string, _ domain.ContextType, _ string, outcome domain.Outcome) error {
	m.interruptions = append(m.interruptions, outcome)
	return nil
}

type stubInvalidator struct{ contexts []domain.ContextType }

func (s *stubInvalidator) Invalidate(ct domain.ContextType) { s.contexts = append(s.contexts, ct) }

type stubRepo struct{ saved []domain.HistoryRecord }

func (r *stubRepo) Save(rec domain.HistoryRecord) error { r.saved = append(r.saved, rec); return nil }
func (r *stubRepo) Records(int, string) ([]domain.HistoryRecord, error) { return r.saved, nil }
func (r *stubRepo) Clear() error                                        { return nil }
func (r *stubRepo) ExportJSON(string) error                             { return nil }

type stubPrompter struct{ answer bool }

func (p stubPrompter) Confirm(domain.PermissionRequest) (bool, error) { return p.answer, nil }
func (p stubPrompter) Enabled() bool                                  { return true }

type fixture struct {
	svc      *Service
	policy   *stubPolicy
	handlers *stubHandlers
	modes    *stubModes
	inval    *stubInvalidator
	repo     *stubRepo
}

func newFixture() *fixture {
	parser := stubParser{known: map[string]domain.CommandDefinition{"lock the screen": lockDef}}
	f := &fixture{
		policy:   &stubPolicy{verdict: domain.Verdict{Decision: domain.DecisionAllow, Risk: domain.RiskLow}},
		handlers: &stubHandlers{},
		modes:    &stubModes{unavailable: map[string]bool{}},
		inval:    &stubInvalidator{},
		repo:     &stubRepo{},
	}
	f.svc = &Service{
		Parser:      parser,
		Hints:       parser,
		Catalog:     parser,
		Policy:      f.policy,
		Handlers:    f.handlers,
		Modes:       f.modes,
		Suggestions: f.inval,
		History:     f.repo,
	}
	return f
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture()
	res := f.svc.Execute(context.Background(), "lock the screen", domain.CommandContext{UserID: "u1", SessionID: "s1"})

	if !res.Success || res.Outcome != domain.OutcomeExecuted || res.CommandID != "lock_screen" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if diff := cmp.Diff([]string{"system.lock"}, f.handlers.calls); diff != "" {
		t.Fatalf("handler calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]outcomeCall{{"lock_screen", true}}, f.modes.outcomes, cmp.AllowUnexported(outcomeCall{})); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if len(f.inval.contexts) != 1 || f.inval.contexts[0] != domain.ContextUnknown {
		t.Fatalf("expected suggestion invalidation for unknown, got %v", f.inval.contexts)
	}
	if len(f.repo.saved) != 1 || f.repo.saved[0].SessionID != "s1" || f.repo.saved[0].Outcome != domain.OutcomeExecuted {
		t.Fatalf("history not persisted: %+v", f.repo.saved)
	}
}

func TestExecuteNonExecutingOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		setup       func(*fixture)
		outcome     domain.Outcome
		interrupted bool
	}{
		{name: "not understood", text: "make me a sandwich", outcome: domain.OutcomeNotUnderstood},
		{
			name:    "unavailable in context",
			text:    "lock the screen",
			setup:   func(f *fixture) { f.modes.unavailable["lock_screen"] = true },
			outcome: domain.OutcomeUnavailable,
		},
		{
			name:        "blocked",
			text:        "lock the screen",
			interrupted: true,
			setup: func(f *fixture) {
				f.policy.verdict = domain.Verdict{Decision: domain.DecisionBlock, Risk: domain.RiskCritical, Reason: "nope"}
			},
			outcome: domain.OutcomeBlocked,
		},
		{
			name:        "pending confirmation",
			text:        "lock the screen",
			interrupted: true,
			setup: func(f *fixture) {
				f.policy.verdict = domain.Verdict{
					Decision:   domain.DecisionRequireConfirmation,
					Risk:       domain.RiskHigh,
					Reason:     "sensitive",
					Permission: &domain.PermissionRequest{ID: "p1"},
				}
			},
			outcome: domain.OutcomePendingConfirmation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			res := f.svc.Execute(context.Background(), tt.text, domain.CommandContext{})
			if res.Success || res.Outcome != tt.outcome {
				t.Fatalf("expected %s failure, got %+v", tt.outcome, res)
			}
			if len(f.handlers.calls) != 0 {
				t.Fatalf("handler must not run, got %v", f.handlers.calls)
			}
			if len(f.modes.outcomes) != 0 {
				t.Fatalf("success rate must not be fed, got %v", f.modes.outcomes)
			}
			var wantInterruptions []domain.Outcome
			if tt.interrupted {
				wantInterruptions = []domain.Outcome{tt.outcome}
			}
			if diff := cmp.Diff(wantInterruptions, f.modes.interruptions); diff != "" {
				t.Fatalf("interruptions mismatch (-want +got):\n%s", diff)
			}
			if len(f.repo.saved) != 1 || f.repo.saved[0].Outcome != tt.outcome {
				t.Fatalf("expected one history record, got %+v", f.repo.saved)
			}
		})
	}
}

func TestNotUnderstoodCarriesHints(t *testing.T) {
	f := newFixture()
	res := f.svc.Execute(context.Background(), "xyzzy", domain.CommandContext{})
	if len(res.Hints) == 0 || !strings.Contains(res.Message, "xyzzy") {
		t.Fatalf("expected hints and echoed input, got %+v", res)
	}
}

func TestPendingResultCarriesPermission(t *testing.T) {
	f := newFixture()
	f.policy.verdict = domain.Verdict{
		Decision:   domain.DecisionRequireConfirmation,
		Risk:       domain.RiskHigh,
		Reason:     "sensitive",
		Permission: &domain.PermissionRequest{ID: "p1"},
	}
	res := f.svc.Execute(context.Background(), "lock the screen", domain.CommandContext{})
	if res.PermissionID != "p1" || res.Risk != domain.RiskHigh {
		t.Fatalf("unexpected pending result: %+v", res)
	}
}

func TestHandlerFailures(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context) (domain.CommandResult, error)
		message string
	}{
		{
			name:    "error",
			fn:      func(context.Context) (domain.CommandResult, error) { return domain.CommandResult{}, errors.New("device busy") },
			message: "device busy",
		},
		{
			name:    "unsuccessful result",
			fn:      func(context.Context) (domain.CommandResult, error) { return domain.CommandResult{Message: "no display"}, nil },
			message: "no display",
		},
		{
			name: "timeout",
			fn: func(ctx context.Context) (domain.CommandResult, error) {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return domain.CommandResult{Success: true}, nil
			},
			message: domain.ErrHandlerTimeout.Error(),
		},
		{
			name:    "panic",
			fn:      func(context.Context) (domain.CommandResult, error) { panic("boom") },
			message: "handler panic: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.handlers.fn = tt.fn
			res := f.svc.Execute(context.Background(), "lock the screen", domain.CommandContext{Timeout: 20 * time.Millisecond})
			if res.Success || res.Outcome != domain.OutcomeHandlerFailed {
				t.Fatalf("expected handler failure, got %+v", res)
			}
			if !strings.Contains(res.Message, tt.message) {
				t.Fatalf("expected message containing %q, got %q", tt.message, res.Message)
			}
			if diff := cmp.Diff([]outcomeCall{{"lock_screen", false}}, f.modes.outcomes, cmp.AllowUnexported(outcomeCall{})); diff != "" {
				t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApproveRunsPendingCommand(t *testing.T) {
	f := newFixture()
	f.policy.verdict = domain.Verdict{Decision: domain.DecisionRequireConfirmation, Risk: domain.RiskHigh, Reason: "sensitive"}
	f.policy.requests = map[string]domain.PermissionRequest{
		"p1": {ID: "p1", Action: "lock_screen", CommandText: "lock the screen", SessionID: "s1"},
	}

	res := f.svc.Approve(context.Background(), "p1", "tester", domain.CommandContext{})
	if !res.Success || res.Outcome != domain.OutcomeExecuted || res.PermissionID != "p1" {
		t.Fatalf("unexpected approve result: %+v", res)
	}
	if len(f.handlers.calls) != 1 {
		t.Fatalf("expected handler to run once, got %v", f.handlers.calls)
	}
	if f.repo.saved[0].SessionID != "s1" {
		t.Fatalf("expected session carried from request, got %+v", f.repo.saved[0])
	}

	again := f.svc.Approve(context.Background(), "p1", "tester", domain.CommandContext{})
	if again.Success || !strings.Contains(again.Message, "No pending permission") {
		t.Fatalf("expected not-found failure, got %+v", again)
	}
}

func TestApproveExpired(t *testing.T) {
	f := newFixture()
	f.policy.err = domain.ErrPermissionExpired
	res := f.svc.Approve(context.Background(), "p9", "tester", domain.CommandContext{})
	if res.Success || !strings.Contains(res.Message, "expired") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.handlers.calls) != 0 {
		t.Fatalf("handler must not run")
	}
}

func TestDeny(t *testing.T) {
	f := newFixture()
	f.policy.requests = map[string]domain.PermissionRequest{"p1": {ID: "p1", Action: "lock_screen", CommandText: "lock the screen"}}
	res := f.svc.Deny("p1", domain.CommandContext{})
	if res.Success || res.Outcome != domain.OutcomeDenied || res.CommandID != "lock_screen" {
		t.Fatalf("unexpected deny result: %+v", res)
	}
	if len(f.svc.Pending()) != 0 {
		t.Fatalf("expected no pending requests")
	}
}

func TestPrompterApprovesInline(t *testing.T) {
	for _, answer := range []bool{true, false} {
		f := newFixture()
		f.svc.Prompter = stubPrompter{answer: answer}
		req := domain.PermissionRequest{ID: "p1", Action: "lock_screen", CommandText: "lock the screen"}
		f.policy.requests = map[string]domain.PermissionRequest{"p1": req}
		f.policy.verdict = domain.Verdict{Decision: domain.DecisionRequireConfirmation, Risk: domain.RiskHigh, Permission: &req}

		res := f.svc.Execute(context.Background(), "lock the screen", domain.CommandContext{})
		want := domain.OutcomeDenied
		if answer {
			want = domain.OutcomeExecuted
		}
		if res.Outcome != want {
			t.Fatalf("answer %v: expected %s, got %+v", answer, want, res)
		}
	}
}

func TestServiceUnavailable(t *testing.T) {
	svc := &Service{}
	res := svc.Execute(context.Background(), "lock the screen", domain.CommandContext{})
	if res.Success || res.Outcome != domain.OutcomeServiceUnavailable {
		t.Fatalf("unexpected result: %+v", res)
	}
	if st := svc.Status(); st.Ready || st.HistorySize != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	f := newFixture()
	f.svc.HistoryLimit = 3
	f.svc.History = nil
	for i := 0; i < 5; i++ {
		f.svc.Execute(context.Background(), "lock the screen", domain.CommandContext{UserID: "u1"})
	}
	f.svc.Execute(context.Background(), "gibberish", domain.CommandContext{UserID: "u1"})
	if got := len(f.svc.Recent(0)); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
	if diff := cmp.Diff([]string{"lock_screen", "lock_screen"}, f.svc.RecentCommands("u1", 5)); diff != "" {
		t.Fatalf("recent commands mismatch (-want +got):\n%s", diff)
	}
	stats := f.svc.Stats()
	if stats.Total != 3 || stats.ByOutcome[domain.OutcomeNotUnderstood] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if st := f.svc.Status(); st.LastOutcome != string(domain.OutcomeNotUnderstood) {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestConcurrentExecute(t *testing.T) {
	f := newFixture()
	f.svc.History = nil
	f.svc.Modes = nil
	f.svc.Suggestions = nil
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Execute(context.Background(), "lock the screen", domain.CommandContext{})
		}()
	}
	wg.Wait()
	if got := f.svc.Stats().Total; got != 20 {
		t.Fatalf("expected 20 records, got %d", got)
	}
}
