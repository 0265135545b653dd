// Package security implements the policy engine that mediates every command.
package security

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/logger"
	"github.com/doeshing/vocmd/internal/pkg/ring"
	"github.com/doeshing/vocmd/internal/ports"
)

// Settings are the global knobs the engine consults on every evaluation.
type Settings struct {
	Level                    domain.SafetyLevel
	ConfirmSensitiveCommands bool
	ConfirmSystemCommands    bool
	// EnabledCategories is empty when every category is enabled.
	EnabledCategories []domain.Category
	PermissionTTL     time.Duration
}

// SettingsFromConfig derives engine settings from the loaded configuration.
func SettingsFromConfig(cfg domain.Config) Settings {
	return Settings{
		Level:                    cfg.Safety.Level,
		ConfirmSensitiveCommands: cfg.Safety.ConfirmSensitiveCommands,
		ConfirmSystemCommands:    cfg.Safety.ConfirmSystemCommands,
		EnabledCategories:        append([]domain.Category(nil), cfg.Commands.EnabledCategories...),
		PermissionTTL:            cfg.PermissionTTLDuration(),
	}
}

func (s Settings) categoryEnabled(cat domain.Category) bool {
	if len(s.EnabledCategories) == 0 {
		return true
	}
	for _, enabled := range s.EnabledCategories {
		if enabled == cat {
			return true
		}
	}
	return false
}

func (s Settings) ttl() time.Duration {
	if s.PermissionTTL <= 0 {
		return domain.DefaultPermissionTTL
	}
	return s.PermissionTTL
}

// Guardrail is the policy engine. It implements ports.PolicyEngine.
type Guardrail struct {
	mu       sync.RWMutex
	rules    []compiledRule
	settings Settings

	// permMu serializes the check-then-act sequences on the permission store.
	permMu sync.Mutex
	store  ports.PermissionStore

	audit  *ring.Buffer[domain.AuditEntry]
	sink   ports.AuditSink
	logger ports.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes a Guardrail.
type Option func(*Guardrail)

// WithStore persists permission requests and grants outside the process.
func WithStore(store ports.PermissionStore) Option {
	return func(g *Guardrail) {
		if store != nil {
			g.store = store
		}
	}
}

// WithAuditSink mirrors every audit entry to durable storage.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(g *Guardrail) { g.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(g *Guardrail) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guardrail) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator overrides permission request ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(g *Guardrail) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// NewGuardrail compiles the rules and returns a ready engine.
func NewGuardrail(settings Settings, rules []domain.PolicyRule, opts ...Option) (*Guardrail, error) {
	g := &Guardrail{
		settings: settings,
		store:    NewMemoryStore(),
		audit:    ring.NewTrimming[domain.AuditEntry](domain.DefaultAuditCapacity, domain.DefaultAuditRetain),
		logger:   logger.Nop(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.ReplaceRules(rules); err != nil {
		return nil, err
	}
	return g, nil
}

// ReplaceRules swaps the whole rule set atomically.
func (g *Guardrail) ReplaceRules(rules []domain.PolicyRule) error {
	compiled := make([]compiledRule, 0, len(rules))
	seen := map[string]bool{}
	for _, rule := range rules {
		if seen[rule.ID] {
			return fmt.Errorf("duplicate policy rule %q", rule.ID)
		}
		seen[rule.ID] = true
		c, err := compileRule(rule)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}
	g.mu.Lock()
	g.rules = compiled
	g.mu.Unlock()
	return nil
}

// AddRule appends a rule; it is evaluated after all existing rules.
func (g *Guardrail) AddRule(rule domain.PolicyRule) error {
	c, err := compileRule(rule)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.rules {
		if existing.rule.ID == rule.ID {
			return fmt.Errorf("duplicate policy rule %q", rule.ID)
		}
	}
	g.rules = append(g.rules, c)
	return nil
}

// RemoveRule deletes the rule with id and reports whether it existed.
func (g *Guardrail) RemoveRule(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.rules {
		if existing.rule.ID == id {
			g.rules = append(g.rules[:i:i], g.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the rules in evaluation order.
func (g *Guardrail) Rules() []domain.PolicyRule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.PolicyRule, 0, len(g.rules))
	for _, c := range g.rules {
		out = append(out, c.rule)
	}
	return out
}

// UpdateSettings replaces the global settings.
func (g *Guardrail) UpdateSettings(s Settings) {
	g.mu.Lock()
	g.settings = s
	g.mu.Unlock()
}

// Settings returns the current settings.
func (g *Guardrail) Settings() Settings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings
}

// assessment accumulates a verdict; every method may only escalate.
type assessment struct {
	verdict domain.Verdict
}

func (a *assessment) escalate(decision domain.Decision, risk domain.RiskLevel, reason string) {
	if decision.Stricter(a.verdict.Decision) {
		a.verdict.Decision = decision
		a.verdict.Reason = reason
	}
	a.verdict.Risk = a.verdict.Risk.Raise(risk)
}

// Evaluate implements ports.PolicyEngine.
func (g *Guardrail) Evaluate(cmd domain.ParsedCommand, cctx domain.CommandContext) domain.Verdict {
	g.mu.RLock()
	rules := g.rules
	settings := g.settings
	g.mu.RUnlock()

	def := cmd.Definition
	a := &assessment{verdict: domain.Verdict{Decision: domain.DecisionAllow, Risk: domain.RiskLow}}

	if !settings.categoryEnabled(def.Category) {
		a.escalate(domain.DecisionBlock, domain.RiskMedium, fmt.Sprintf("%s commands are disabled", def.Category))
		return g.finish(cmd, cctx, a.verdict)
	}

	for _, rule := range rules {
		if !rule.matches(cmd.RawText) {
			continue
		}
		a.verdict.MatchedRules = append(a.verdict.MatchedRules, rule.rule.ID)
		switch rule.rule.Action {
		case domain.RuleBlock:
			a.escalate(domain.DecisionBlock, rule.rule.Severity, rule.rule.Description)
			return g.finish(cmd, cctx, a.verdict)
		case domain.RuleRequireConfirmation:
			a.escalate(domain.DecisionRequireConfirmation, rule.rule.Severity, rule.rule.Description)
		case domain.RuleWarn:
			a.verdict.Warnings = append(a.verdict.Warnings, rule.rule.Description)
		}
	}

	if def.Sensitive && settings.ConfirmSensitiveCommands {
		a.escalate(domain.DecisionRequireConfirmation, domain.RiskHigh, fmt.Sprintf("%s is a sensitive command", def.Name))
	}

	if def.Category == domain.CategorySystem && (settings.Level == domain.SafetyStrict || settings.ConfirmSystemCommands) {
		a.escalate(domain.DecisionRequireConfirmation, domain.RiskMedium, "system commands require confirmation")
	}

	if findings := scanParameters(cmd.Parameters); len(findings) > 0 {
		reason := "dangerous parameter value (" + strings.Join(findings, "; ") + ")"
		a.escalate(domain.DecisionRequireConfirmation, domain.RiskHigh, reason)
		// a dangerous parameter always leads the explanation
		a.verdict.Reason = reason
	}

	return g.finish(cmd, cctx, a.verdict)
}

// finish applies grants, opens permission requests and writes the audit entry.
func (g *Guardrail) finish(cmd domain.ParsedCommand, cctx domain.CommandContext, v domain.Verdict) domain.Verdict {
	if v.Decision == domain.DecisionRequireConfirmation {
		if grant, ok := g.validGrant(cmd); ok {
			v.Decision = domain.DecisionAllow
			v.Reason = fmt.Sprintf("approved by %s until %s", grant.Approver, grant.ExpiresAt.Format(domain.TimestampFormat))
		} else {
			req := g.openRequest(cmd, cctx, v)
			v.Permission = &req
		}
	}

	result := domain.AuditAllowed
	switch v.Decision {
	case domain.DecisionBlock:
		result = domain.AuditBlocked
		g.logger.Warn("command blocked", map[string]interface{}{"command": cmd.Definition.ID, "reason": v.Reason, "risk": v.Risk})
	case domain.DecisionRequireConfirmation:
		result = domain.AuditRequiresConfirmation
		g.logger.Warn("command requires confirmation", map[string]interface{}{"command": cmd.Definition.ID, "reason": v.Reason, "risk": v.Risk, "permission": v.Permission.ID})
	}
	g.record(domain.AuditEntry{
		CommandText: cmd.RawText,
		Action:      cmd.Definition.ID,
		Risk:        v.Risk,
		Result:      result,
		Reason:      v.Reason,
		SessionID:   cctx.SessionID,
	})
	return v
}

func grantKey(action, text string) string {
	normalized := strings.Join(strings.Fields(cases.Fold().String(text)), " ")
	return action + "|" + normalized
}

func (g *Guardrail) validGrant(cmd domain.ParsedCommand) (domain.PermissionGrant, bool) {
	key := grantKey(cmd.Definition.ID, cmd.RawText)
	grant, ok, err := g.store.Grant(key)
	if err != nil {
		g.logger.Error("load permission grant", err, map[string]interface{}{"key": key})
		return domain.PermissionGrant{}, false
	}
	if !ok {
		return domain.PermissionGrant{}, false
	}
	if !grant.Valid(g.now()) {
		if err := g.store.DeleteGrant(key); err != nil {
			g.logger.Error("delete expired grant", err, map[string]interface{}{"key": key})
		}
		return domain.PermissionGrant{}, false
	}
	return grant, true
}

// openRequest returns the open request for the same action, text and session,
// creating one when none is pending.
func (g *Guardrail) openRequest(cmd domain.ParsedCommand, cctx domain.CommandContext, v domain.Verdict) domain.PermissionRequest {
	g.permMu.Lock()
	defer g.permMu.Unlock()

	now := g.now()
	key := grantKey(cmd.Definition.ID, cmd.RawText)
	if existing, err := g.store.Requests(); err == nil {
		for _, req := range existing {
			if req.Expired(now) {
				continue
			}
			if grantKey(req.Action, req.CommandText) == key && req.SessionID == cctx.SessionID {
				return req
			}
		}
	}

	req := domain.PermissionRequest{
		ID:          g.newID(),
		CommandText: cmd.RawText,
		Action:      cmd.Definition.ID,
		Parameters:  cloneParams(cmd.Parameters),
		Risk:        v.Risk,
		Reason:      v.Reason,
		SessionID:   cctx.SessionID,
		UserID:      cctx.UserID,
		Context:     cctx.Context,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.Settings().ttl()),
	}
	if err := g.store.PutRequest(req); err != nil {
		g.logger.Error("store permission request", err, map[string]interface{}{"id": req.ID})
	}
	return req
}

// ApprovePermission converts an open request into a grant. Expired requests
// are purged and can never be approved.
func (g *Guardrail) ApprovePermission(id, approver string) (domain.PermissionRequest, error) {
	g.permMu.Lock()
	defer g.permMu.Unlock()

	req, err := g.takeRequest(id)
	if err != nil {
		return req, err
	}
	now := g.now()
	req.Approver = approver
	grant := domain.PermissionGrant{
		Key:       grantKey(req.Action, req.CommandText),
		Action:    req.Action,
		Approver:  approver,
		GrantedAt: now,
		ExpiresAt: now.Add(g.Settings().ttl()),
	}
	if err := g.store.PutGrant(grant); err != nil {
		return req, fmt.Errorf("store grant: %w", err)
	}
	g.logger.Info("permission approved", map[string]interface{}{"id": id, "action": req.Action, "approver": approver})
	g.record(domain.AuditEntry{
		CommandText: req.CommandText,
		Action:      req.Action,
		Risk:        req.Risk,
		Result:      domain.AuditApproved,
		Reason:      "approved by " + approver,
		SessionID:   req.SessionID,
	})
	return req, nil
}

// DenyPermission discards an open request.
func (g *Guardrail) DenyPermission(id string) (domain.PermissionRequest, error) {
	g.permMu.Lock()
	defer g.permMu.Unlock()

	req, err := g.takeRequest(id)
	if err != nil {
		return req, err
	}
	g.logger.Info("permission denied", map[string]interface{}{"id": id, "action": req.Action})
	g.record(domain.AuditEntry{
		CommandText: req.CommandText,
		Action:      req.Action,
		Risk:        req.Risk,
		Result:      domain.AuditDenied,
		Reason:      "denied",
		SessionID:   req.SessionID,
	})
	return req, nil
}

// takeRequest removes and returns an open request. Callers hold permMu.
func (g *Guardrail) takeRequest(id string) (domain.PermissionRequest, error) {
	req, ok, err := g.store.Request(id)
	if err != nil {
		return domain.PermissionRequest{}, fmt.Errorf("load permission request: %w", err)
	}
	if !ok {
		return domain.PermissionRequest{}, domain.ErrPermissionNotFound
	}
	if err := g.store.DeleteRequest(id); err != nil {
		return req, fmt.Errorf("delete permission request: %w", err)
	}
	if req.Expired(g.now()) {
		g.recordExpired(req)
		return req, domain.ErrPermissionExpired
	}
	return req, nil
}

func (g *Guardrail) recordExpired(req domain.PermissionRequest) {
	g.logger.Info("permission expired", map[string]interface{}{"id": req.ID, "action": req.Action})
	g.record(domain.AuditEntry{
		CommandText: req.CommandText,
		Action:      req.Action,
		Risk:        req.Risk,
		Result:      domain.AuditExpired,
		Reason:      "request expired before approval",
		SessionID:   req.SessionID,
	})
}

// PendingPermissions purges expired requests and returns the rest, oldest first.
func (g *Guardrail) PendingPermissions() []domain.PermissionRequest {
	g.SweepExpired()
	reqs, err := g.store.Requests()
	if err != nil {
		g.logger.Error("list permission requests", err, nil)
		return nil
	}
	return reqs
}

// SweepExpired removes every request past its TTL and returns how many were removed.
func (g *Guardrail) SweepExpired() int {
	g.permMu.Lock()
	defer g.permMu.Unlock()

	reqs, err := g.store.Requests()
	if err != nil {
		g.logger.Error("list permission requests", err, nil)
		return 0
	}
	now := g.now()
	removed := 0
	for _, req := range reqs {
		if !req.Expired(now) {
			continue
		}
		if err := g.store.DeleteRequest(req.ID); err != nil {
			g.logger.Error("delete expired permission", err, map[string]interface{}{"id": req.ID})
			continue
		}
		g.recordExpired(req)
		removed++
	}
	return removed
}

// Request returns an open request by id without consuming it.
func (g *Guardrail) Request(id string) (domain.PermissionRequest, error) {
	req, ok, err := g.store.Request(id)
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	if !ok {
		return domain.PermissionRequest{}, domain.ErrPermissionNotFound
	}
	if req.Expired(g.now()) {
		return req, domain.ErrPermissionExpired
	}
	return req, nil
}

// AuditLog returns the in-memory audit trail, oldest first.
func (g *Guardrail) AuditLog() []domain.AuditEntry {
	return g.audit.Snapshot()
}

func (g *Guardrail) record(entry domain.AuditEntry) {
	entry.Timestamp = g.now()
	g.audit.Append(entry)
	if g.sink == nil {
		return
	}
	if err := g.sink.AppendAudit(entry); err != nil {
		g.logger.Error("persist audit entry", err, map[string]interface{}{"action": entry.Action})
	}
}

func cloneParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
