package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doeshing/vocmd/internal/application/dispatch"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/catalog"
	contextdetect "github.com/doeshing/vocmd/internal/infrastructure/context"
)

type stubDispatcher struct {
	mu       sync.Mutex
	executed []domain.CommandContext
	texts    []string
	approved []string
	result   domain.CommandResult
	pending  []domain.PermissionRequest
}

func (d *stubDispatcher) Execute(_ context.Context, text string, cctx domain.CommandContext) domain.CommandResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	d.executed = append(d.executed, cctx)
	return d.result
}

func (d *stubDispatcher) Approve(_ context.Context, id, approver string, _ domain.CommandContext) domain.CommandResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != "perm-1" {
		return domain.CommandResult{Outcome: domain.OutcomeDenied, PermissionID: id, Message: "No pending permission " + id + "."}
	}
	d.approved = append(d.approved, approver)
	return domain.CommandResult{Success: true, Outcome: domain.OutcomeExecuted, CommandID: "shutdown", PermissionID: id}
}

func (d *stubDispatcher) Deny(id string, _ domain.CommandContext) domain.CommandResult {
	return domain.CommandResult{Outcome: domain.OutcomeDenied, CommandID: "shutdown", PermissionID: id}
}

func (d *stubDispatcher) Pending() []domain.PermissionRequest { return d.pending }

func (d *stubDispatcher) RecentCommands(string, int) []string { return []string{"create_task"} }

func (d *stubDispatcher) Status() dispatch.Status { return dispatch.Status{Ready: true} }

type stubSuggester struct {
	gotUser     string
	gotContext  domain.ContextType
	gotRecent   []string
	gotActivity domain.ActivityLevel
}

func (s *stubSuggester) SuggestFor(userID string, ct domain.ContextType, recent []string, activity domain.ActivityLevel) []domain.SmartSuggestion {
	s.gotUser, s.gotContext, s.gotRecent, s.gotActivity = userID, ct, recent, activity
	return []domain.SmartSuggestion{{ID: "s1", Command: "list_tasks", Confidence: 0.9, Context: ct}}
}

type stubAudit struct{ entries []domain.AuditEntry }

func (a stubAudit) AuditEntries(limit int) ([]domain.AuditEntry, error) {
	if limit < len(a.entries) {
		return a.entries[:limit], nil
	}
	return a.entries, nil
}

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	if deps.Dispatcher == nil {
		deps.Dispatcher = &stubDispatcher{}
	}
	if deps.UserID == "" {
		deps.UserID = "local"
	}
	s, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestNewRequiresDispatcher(t *testing.T) {
	if _, err := New(Dependencies{}); err == nil {
		t.Fatal("expected error without dispatcher")
	}
}

func TestExecuteUsesDetectedContextAndDefaultUser(t *testing.T) {
	detector := contextdetect.New()
	detector.ManuallySetContext(domain.ContextMedia, 1, nil)
	disp := &stubDispatcher{result: domain.CommandResult{Success: true, Outcome: domain.OutcomeExecuted, CommandID: "play_media"}}
	s := newTestServer(t, Dependencies{Dispatcher: disp, Context: detector})

	rec := do(t, s, http.MethodPost, "/v1/execute", `{"text":"play some music","session_id":"s1","timeout_ms":1500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res domain.CommandResult
	decode(t, rec, &res)
	if res.CommandID != "play_media" || res.Outcome != domain.OutcomeExecuted {
		t.Fatalf("unexpected result %+v", res)
	}
	got := disp.executed[0]
	if got.Context != domain.ContextMedia || got.UserID != "local" || got.SessionID != "s1" || got.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected command context %+v", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestExecuteValidation(t *testing.T) {
	s := newTestServer(t, Dependencies{})
	cases := map[string]string{
		"missing text":    `{"context":"tasks"}`,
		"unknown context": `{"text":"hi","context":"kitchen"}`,
		"malformed":       `{"text":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/execute", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestServiceUnavailableMapsTo503(t *testing.T) {
	disp := &stubDispatcher{result: domain.CommandResult{Outcome: domain.OutcomeServiceUnavailable}}
	s := newTestServer(t, Dependencies{Dispatcher: disp})
	if rec := do(t, s, http.MethodPost, "/v1/execute", `{"text":"anything"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPermissionRoutes(t *testing.T) {
	disp := &stubDispatcher{pending: []domain.PermissionRequest{{ID: "perm-1", Action: "shutdown"}}}
	s := newTestServer(t, Dependencies{Dispatcher: disp})

	rec := do(t, s, http.MethodGet, "/v1/permissions", "")
	var listing struct {
		Permissions []domain.PermissionRequest `json:"permissions"`
	}
	decode(t, rec, &listing)
	if len(listing.Permissions) != 1 || listing.Permissions[0].ID != "perm-1" {
		t.Fatalf("unexpected listing %+v", listing)
	}

	rec = do(t, s, http.MethodPost, "/v1/permissions/perm-1/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d", rec.Code)
	}
	if disp.approved[0] != "local" {
		t.Fatalf("approver defaulted to %q", disp.approved[0])
	}

	rec = do(t, s, http.MethodPost, "/v1/permissions/perm-2/approve", `{"approver":"alice"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown permission status = %d, want 404", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/v1/permissions/perm-1/deny", "")
	var denied domain.CommandResult
	decode(t, rec, &denied)
	if rec.Code != http.StatusOK || denied.Outcome != domain.OutcomeDenied {
		t.Fatalf("deny: status %d, result %+v", rec.Code, denied)
	}
}

func TestSuggestionsPassesQuery(t *testing.T) {
	sugg := &stubSuggester{}
	s := newTestServer(t, Dependencies{Suggestions: sugg})

	rec := do(t, s, http.MethodGet, "/v1/suggestions?context=tasks&activity=high&user_id=u7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if sugg.gotUser != "u7" || sugg.gotContext != domain.ContextTasks || sugg.gotActivity != domain.ActivityHigh {
		t.Fatalf("unexpected request %+v", sugg)
	}
	if len(sugg.gotRecent) != 1 || sugg.gotRecent[0] != "create_task" {
		t.Fatalf("recent = %v", sugg.gotRecent)
	}

	if rec := do(t, s, http.MethodGet, "/v1/suggestions?activity=frantic", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad activity status = %d", rec.Code)
	}
}

func TestOptionalDependenciesReport503(t *testing.T) {
	s := newTestServer(t, Dependencies{})
	for _, path := range []string{"/v1/help", "/v1/suggestions", "/v1/context", "/v1/audit", "/v1/events"} {
		if rec := do(t, s, http.MethodGet, path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, rec.Code)
		}
	}
}

func TestContextAndSignals(t *testing.T) {
	detector := contextdetect.New()
	s := newTestServer(t, Dependencies{Context: detector})

	rec := do(t, s, http.MethodPost, "/v1/context", `{"context":"settings"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set context status = %d, body %s", rec.Code, rec.Body.String())
	}
	if info, _ := detector.CurrentContext(); info.Type != domain.ContextSettings || info.Source != domain.SourceManual {
		t.Fatalf("detector context = %+v", info)
	}

	if rec := do(t, s, http.MethodPost, "/v1/context", `{"context":"kitchen"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown context status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/v1/signals", `{"kind":"route","value":"/tasks/today"}`)
	var observed struct {
		Context domain.ContextInfo `json:"context"`
		Changed bool               `json:"changed"`
	}
	decode(t, rec, &observed)
	if observed.Context.Type != domain.ContextTasks || !observed.Changed {
		t.Fatalf("signal result %+v", observed)
	}

	if rec := do(t, s, http.MethodPost, "/v1/signals", `{"kind":"smell","value":"coffee"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown signal status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/v1/context/history", "")
	var history struct {
		Transitions []domain.ContextTransition `json:"transitions"`
	}
	decode(t, rec, &history)
	if len(history.Transitions) != 2 {
		t.Fatalf("transitions = %+v", history.Transitions)
	}
}

func TestHelpAndAudit(t *testing.T) {
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	audit := stubAudit{entries: []domain.AuditEntry{{Action: "a"}, {Action: "b"}, {Action: "c"}}}
	s := newTestServer(t, Dependencies{Help: cat, Audit: audit})

	rec := do(t, s, http.MethodGet, "/v1/help?category=media", "")
	var help struct {
		Sections []catalog.HelpSection `json:"sections"`
	}
	decode(t, rec, &help)
	if len(help.Sections) != 1 || help.Sections[0].Category != domain.CategoryMedia {
		t.Fatalf("help sections %+v", help.Sections)
	}
	if rec := do(t, s, http.MethodGet, "/v1/help?category=cooking", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown category status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/v1/audit?limit=2", "")
	var entries struct {
		Entries []domain.AuditEntry `json:"entries"`
	}
	decode(t, rec, &entries)
	if len(entries.Entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries.Entries))
	}
}

func TestEventsStreamsContextChanges(t *testing.T) {
	detector := contextdetect.New()
	defer detector.Close()
	s := newTestServer(t, Dependencies{Context: detector})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	name, data := readEvent(t, reader)
	if name != "context" || !strings.Contains(data, `"to":"unknown"`) {
		t.Fatalf("snapshot event %s %s", name, data)
	}

	detector.ManuallySetContext(domain.ContextChat, 1, nil)

	name, data = readEvent(t, reader)
	if name != "context" || !strings.Contains(data, `"to":"chat"`) || !strings.Contains(data, `"reason":"manual"`) {
		t.Fatalf("change event %s %s", name, data)
	}
}

func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}
