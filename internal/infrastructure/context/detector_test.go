package contextdetect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)}
}

func routeRule(id, prefix string, target domain.ContextType, confidence float64) domain.DetectionRule {
	return domain.DetectionRule{
		ID:         id,
		Priority:   100,
		Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpStartsWith, Value: prefix}},
		Target:     target,
		Confidence: confidence,
	}
}

func route(v string) domain.Signal { return domain.Signal{Kind: domain.SignalRoute, Value: v} }

func TestDetectorSwitchesOnHigherConfidenceRoute(t *testing.T) {
	clock := newClock()
	d := New(WithClock(clock.Now), WithRules([]domain.DetectionRule{
		routeRule("tasks", "/tasks", domain.ContextTasks, 0.9),
		routeRule("chat", "/chat", domain.ContextChat, 0.95),
	}))
	ch, cancel := d.Subscribe()
	defer cancel()

	d.Observe(route("/tasks"))
	<-ch
	before := len(d.History())

	info, changed := d.Observe(route("/chat/42"))
	if !changed || info.Type != domain.ContextChat || info.Confidence != 0.95 {
		t.Fatalf("expected switch to chat, got %+v changed=%v", info, changed)
	}
	history := d.History()
	if len(history) != before+1 {
		t.Fatalf("expected exactly one new transition, got %d", len(history)-before)
	}
	last := history[len(history)-1]
	if last.From != domain.ContextTasks || last.To != domain.ContextChat {
		t.Fatalf("unexpected transition %+v", last)
	}
	select {
	case change := <-ch:
		if change.Previous == nil || change.Previous.Type != domain.ContextTasks || change.Current.Type != domain.ContextChat {
			t.Fatalf("unexpected change event %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a context change event")
	}
}

func TestReplacementRule(t *testing.T) {
	tests := []struct {
		name        string
		current     domain.ContextType
		currentConf float64
		next        domain.ContextType
		nextConf    float64
		replaced    bool
	}{
		{"different type lower confidence", domain.ContextTasks, 0.9, domain.ContextChat, 0.3, true},
		{"same type higher confidence", domain.ContextTasks, 0.6, domain.ContextTasks, 0.9, true},
		{"same type equal confidence", domain.ContextTasks, 0.9, domain.ContextTasks, 0.9, false},
		{"same type lower confidence", domain.ContextTasks, 0.9, domain.ContextTasks, 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			d := New(WithClock(clock.Now), WithRules([]domain.DetectionRule{
				routeRule("a", "/a", tt.current, tt.currentConf),
				routeRule("b", "/b", tt.next, tt.nextConf),
			}))
			d.Observe(route("/a"))
			d.Observe(route("/b"))
			got, _ := d.CurrentContext()
			wantConf := tt.currentConf
			if tt.replaced {
				wantConf = tt.nextConf
			}
			if got.Confidence != wantConf {
				t.Fatalf("confidence = %v, want %v", got.Confidence, wantConf)
			}
			if tt.replaced && got.Type != tt.next {
				t.Fatalf("type = %s, want %s", got.Type, tt.next)
			}
		})
	}
}

func TestSameTypeDoesNotAppendTransition(t *testing.T) {
	d := New(WithRules([]domain.DetectionRule{
		routeRule("low", "/tasks", domain.ContextTasks, 0.5),
		{ID: "hi", Priority: 200, Target: domain.ContextTasks, Confidence: 0.9,
			Conditions: []domain.Condition{{Signal: domain.SignalActiveElement, Operator: domain.OpEquals, Value: "task-list"}}},
	}))
	d.Observe(route("/tasks"))
	d.Observe(domain.Signal{Kind: domain.SignalActiveElement, Value: "task-list"})
	if got := len(d.History()); got != 1 {
		t.Fatalf("expected only the initial transition, got %d", got)
	}
	info, _ := d.CurrentContext()
	if info.Confidence != 0.9 {
		t.Fatalf("expected confidence upgrade, got %v", info.Confidence)
	}
}

func TestPriorityOrdering(t *testing.T) {
	d := New(WithRules([]domain.DetectionRule{
		{ID: "low", Priority: 1, Target: domain.ContextMedia, Confidence: 0.99,
			Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpExists}}},
		routeRule("high", "/settings", domain.ContextSettings, 0.5),
	}))
	info, _ := d.Observe(route("/settings/audio"))
	if info.Type != domain.ContextSettings {
		t.Fatalf("expected highest priority rule to win, got %s", info.Type)
	}
}

func TestOperators(t *testing.T) {
	env := domain.Environment{Route: "/dev/projects/vocmd", ActiveElement: "Code Editor", URL: "https://go.dev", Hour: 21}
	tests := []struct {
		cond domain.Condition
		want bool
	}{
		{domain.Condition{Signal: domain.SignalRoute, Operator: domain.OpEquals, Value: "/DEV/projects/vocmd"}, true},
		{domain.Condition{Signal: domain.SignalActiveElement, Operator: domain.OpContains, Value: "editor"}, true},
		{domain.Condition{Signal: domain.SignalRoute, Operator: domain.OpStartsWith, Value: "/dev"}, true},
		{domain.Condition{Signal: domain.SignalURL, Operator: domain.OpRegex, Value: `^https://go\.dev$`}, true},
		{domain.Condition{Signal: domain.SignalActivity, Operator: domain.OpExists}, false},
		{domain.Condition{Signal: domain.SignalURL, Operator: domain.OpExists}, true},
		{domain.Condition{Signal: domain.SignalTimeOfDay, Operator: domain.OpGreaterThan, Value: "20"}, true},
		{domain.Condition{Signal: domain.SignalTimeOfDay, Operator: domain.OpLessThan, Value: "12"}, false},
		{domain.Condition{Signal: domain.SignalRoute, Operator: domain.OpGlob, Value: "/dev/**"}, true},
		{domain.Condition{Signal: domain.SignalRoute, Operator: domain.OpGlob, Value: "/media/*"}, false},
		{domain.Condition{Signal: domain.SignalActivity, Operator: domain.OpEquals, Value: ""}, false},
	}
	var m matcher
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s %s", tt.cond.Signal, tt.cond.Operator, tt.cond.Value), func(t *testing.T) {
			if got := m.match(tt.cond, env); got != tt.want {
				t.Fatalf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddRuleValidation(t *testing.T) {
	d := New()
	bad := []domain.DetectionRule{
		{ID: "", Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpExists}}},
		{ID: "none"},
		{ID: "re", Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpRegex, Value: "("}}},
		{ID: "num", Conditions: []domain.Condition{{Signal: domain.SignalTimeOfDay, Operator: domain.OpLessThan, Value: "noon"}}},
		{ID: "glob", Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpGlob, Value: "/a/[b"}}},
		{ID: "op", Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: "near"}}},
		{ID: "conf", Confidence: 1.5, Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpExists}}},
	}
	for _, rule := range bad {
		if err := d.AddRule(rule); err == nil {
			t.Errorf("expected error for rule %q", rule.ID)
		}
	}
}

func TestDisabledRuleIgnored(t *testing.T) {
	d := New(WithRules([]domain.DetectionRule{routeRule("tasks", "/tasks", domain.ContextTasks, 0.9)}))
	if !d.SetRuleEnabled("tasks", false) {
		t.Fatal("expected rule to exist")
	}
	if _, ok := d.CurrentContext(); ok {
		t.Fatal("no context expected before signals")
	}
	d.Observe(route("/tasks"))
	if _, ok := d.CurrentContext(); ok {
		t.Fatal("disabled rule must not produce a context")
	}
}

func TestManuallySetContext(t *testing.T) {
	d := New(WithRules([]domain.DetectionRule{routeRule("tasks", "/tasks", domain.ContextTasks, 0.9)}))
	d.Observe(route("/tasks"))
	info := d.ManuallySetContext(domain.ContextMedia, 0.2, map[string]interface{}{"by": "user"})
	if info.Source != domain.SourceManual {
		t.Fatalf("expected manual source, got %s", info.Source)
	}
	cur, _ := d.CurrentContext()
	if cur.Type != domain.ContextMedia || cur.Metadata["by"] != "user" {
		t.Fatalf("manual context not applied: %+v", cur)
	}
	last := d.History()[len(d.History())-1]
	if last.Reason != "manual" {
		t.Fatalf("unexpected transition reason %q", last.Reason)
	}
}

func TestValidateRederivesStaleContext(t *testing.T) {
	clock := newClock()
	d := New(WithClock(clock.Now), WithRules([]domain.DetectionRule{routeRule("tasks", "/tasks", domain.ContextTasks, 0.9)}))
	d.Observe(route("/tasks"))
	d.ManuallySetContext(domain.ContextChat, 0.5, nil)

	clock.Advance(10 * time.Second)
	if d.Validate() {
		t.Fatal("fresh context must not be re-derived")
	}
	clock.Advance(domain.DefaultStaleAfter)
	if !d.Validate() {
		t.Fatal("expected stale context to be re-derived from the route")
	}
	cur, _ := d.CurrentContext()
	if cur.Type != domain.ContextTasks {
		t.Fatalf("expected tasks after re-derivation, got %s", cur.Type)
	}

	clock.Advance(domain.DefaultStaleAfter + time.Second)
	if d.Validate() {
		t.Fatal("same-type re-derivation must not count as a change")
	}
}

func TestTransitionHistoryCapped(t *testing.T) {
	d := New(WithRules([]domain.DetectionRule{
		routeRule("a", "/a", domain.ContextTasks, 0.9),
		routeRule("b", "/b", domain.ContextChat, 0.9),
	}))
	for i := 0; i < domain.DefaultTransitionHistory+20; i++ {
		if i%2 == 0 {
			d.Observe(route("/a"))
		} else {
			d.Observe(route("/b"))
		}
	}
	if got := len(d.History()); got != domain.DefaultTransitionHistory {
		t.Fatalf("history length = %d, want %d", got, domain.DefaultTransitionHistory)
	}
}

func TestOnContextChangeDeliversInOrder(t *testing.T) {
	d := New(WithRules([]domain.DetectionRule{
		routeRule("a", "/a", domain.ContextTasks, 0.9),
		routeRule("b", "/b", domain.ContextChat, 0.9),
	}))
	got := make(chan domain.ContextType, 10)
	cancel := d.OnContextChange(func(c domain.ContextChange) { got <- c.Current.Type })
	defer cancel()

	d.Observe(route("/a"))
	d.Observe(route("/b"))
	d.Observe(route("/a"))

	want := []domain.ContextType{domain.ContextTasks, domain.ContextChat, domain.ContextTasks}
	for i, w := range want {
		select {
		case ct := <-got:
			if ct != w {
				t.Fatalf("event %d = %s, want %s", i, ct, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestStartStop(t *testing.T) {
	d := New(WithStaleness(5*time.Millisecond, time.Millisecond))
	d.Start(context.Background())
	d.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	d.Stop()
	d.Stop()
	d.Close()
}

func TestDefaultRulesValid(t *testing.T) {
	for _, rule := range DefaultRules() {
		if err := validateRule(rule); err != nil {
			t.Fatalf("default rule invalid: %v", err)
		}
	}
	d := New()
	info, _ := d.Observe(route("/dev/api"))
	if info.Type != domain.ContextDevelopment {
		t.Fatalf("expected development for /dev route, got %s", info.Type)
	}
}
