// Package dispatch runs the text command pipeline: parse, availability,
// policy, handler, then bookkeeping.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/ring"
	"github.com/doeshing/vocmd/internal/ports"
)

// Service orchestrates one text command end-to-end. Parser, Policy and
// Handlers are required; the rest are optional.
type Service struct {
	Parser      ports.CommandParser
	Hints       ports.HintProvider
	Catalog     ports.CommandCatalog
	Policy      ports.PolicyEngine
	Handlers    ports.HandlerRegistry
	Modes       ports.ModeManager
	Suggestions ports.SuggestionInvalidator
	History     ports.HistoryRepository
	Prompter    ports.ConfirmationPrompter
	Logger      ports.Logger

	HandlerTimeout time.Duration
	HistoryLimit   int
	Now            func() time.Time

	once    sync.Once
	history *ring.Buffer[domain.HistoryRecord]
}

// Status summarizes the dispatcher for status endpoints.
type Status struct {
	Ready              bool   `json:"ready"`
	PendingPermissions int    `json:"pending_permissions"`
	HistorySize        int    `json:"history_size"`
	LastCommand        string `json:"last_command,omitempty"`
	LastOutcome        string `json:"last_outcome,omitempty"`
}

func (s *Service) init() {
	s.once.Do(func() {
		limit := s.HistoryLimit
		if limit <= 0 {
			limit = domain.DefaultHistoryEntries
		}
		s.history = ring.New[domain.HistoryRecord](limit)
		if s.Now == nil {
			s.Now = time.Now
		}
	})
}

func (s *Service) ready() bool {
	return s.Parser != nil && s.Policy != nil && s.Handlers != nil
}

// Execute runs text through the pipeline. It never returns a Go error:
// every failure is a CommandResult with Success false.
func (s *Service) Execute(ctx context.Context, text string, cctx domain.CommandContext) domain.CommandResult {
	s.init()
	if ctx == nil {
		ctx = context.Background()
	}
	cctx = normalizeContext(cctx)
	start := s.Now()

	if !s.ready() {
		res := domain.CommandResult{
			Outcome: domain.OutcomeServiceUnavailable,
			Message: "command service is not ready",
		}
		s.record(text, cctx, res, start)
		return res
	}

	parsed, ok := s.Parser.Parse(text)
	if !ok {
		res := domain.CommandResult{
			Outcome: domain.OutcomeNotUnderstood,
			Message: fmt.Sprintf("Sorry, I didn't understand %q.", strings.TrimSpace(text)),
		}
		if s.Hints != nil {
			res.Hints = s.Hints.Hints(text)
		}
		s.record(text, cctx, res, start)
		return res
	}

	def := parsed.Definition
	if s.Modes != nil && !s.Modes.IsCommandAvailableFor(cctx.UserID, def.ID, cctx.Context) {
		res := domain.CommandResult{
			Outcome:    domain.OutcomeUnavailable,
			CommandID:  def.ID,
			Confidence: parsed.Confidence,
			Message:    fmt.Sprintf("%s is not available in the %s context", def.Name, cctx.Context),
		}
		s.record(text, cctx, res, start)
		return res
	}

	verdict := s.Policy.Evaluate(parsed, cctx)
	switch verdict.Decision {
	case domain.DecisionBlock:
		res := domain.CommandResult{
			Outcome:    domain.OutcomeBlocked,
			CommandID:  def.ID,
			Confidence: parsed.Confidence,
			Risk:       verdict.Risk,
			Message:    "Blocked: " + verdict.Reason,
			Data:       verdictData(verdict),
		}
		s.interrupted(text, cctx, res, start)
		return res
	case domain.DecisionRequireConfirmation:
		if verdict.Permission != nil && s.Prompter != nil && s.Prompter.Enabled() {
			return s.confirmInteractively(ctx, *verdict.Permission, parsed, cctx, verdict, start)
		}
		res := pendingResult(parsed, verdict)
		s.interrupted(text, cctx, res, start)
		return res
	}

	res := s.invoke(ctx, parsed, cctx, verdict)
	s.finish(text, cctx, res, start)
	return res
}

// Approve approves a pending request and runs the command it was opened for.
func (s *Service) Approve(ctx context.Context, permissionID, approver string, cctx domain.CommandContext) domain.CommandResult {
	s.init()
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.ready() || s.Catalog == nil {
		return domain.CommandResult{Outcome: domain.OutcomeServiceUnavailable, Message: "command service is not ready"}
	}
	req, err := s.Policy.ApprovePermission(permissionID, approver)
	if err != nil {
		return permissionFailure(permissionID, err)
	}
	return s.runApproved(ctx, req, cctx)
}

func (s *Service) runApproved(ctx context.Context, req domain.PermissionRequest, cctx domain.CommandContext) domain.CommandResult {
	start := s.Now()
	if cctx.SessionID == "" {
		cctx.SessionID = req.SessionID
	}
	if cctx.UserID == "" {
		cctx.UserID = req.UserID
	}
	if cctx.Context == "" {
		cctx.Context = req.Context
	}
	cctx = normalizeContext(cctx)

	def, ok := s.Catalog.Lookup(req.Action)
	if !ok {
		res := domain.CommandResult{
			Outcome: domain.OutcomeServiceUnavailable,
			Message: fmt.Sprintf("%s: %s", domain.ErrUnknownCommand, req.Action),
		}
		s.record(req.CommandText, cctx, res, start)
		return res
	}
	parsed := domain.ParsedCommand{
		Definition: def,
		Parameters: req.Parameters,
		Confidence: 1,
		RawText:    req.CommandText,
	}
	// Rules may have changed since the request was opened; a block still wins.
	verdict := s.Policy.Evaluate(parsed, cctx)
	switch verdict.Decision {
	case domain.DecisionBlock:
		res := domain.CommandResult{
			Outcome:   domain.OutcomeBlocked,
			CommandID: def.ID,
			Risk:      verdict.Risk,
			Message:   "Blocked: " + verdict.Reason,
		}
		s.interrupted(req.CommandText, cctx, res, start)
		return res
	case domain.DecisionRequireConfirmation:
		res := pendingResult(parsed, verdict)
		s.interrupted(req.CommandText, cctx, res, start)
		return res
	}
	res := s.invoke(ctx, parsed, cctx, verdict)
	res.PermissionID = req.ID
	s.finish(req.CommandText, cctx, res, start)
	return res
}

// Deny rejects a pending request.
func (s *Service) Deny(permissionID string, cctx domain.CommandContext) domain.CommandResult {
	s.init()
	if s.Policy == nil {
		return domain.CommandResult{Outcome: domain.OutcomeServiceUnavailable, Message: "command service is not ready"}
	}
	req, err := s.Policy.DenyPermission(permissionID)
	if err != nil {
		return permissionFailure(permissionID, err)
	}
	if cctx.SessionID == "" {
		cctx.SessionID = req.SessionID
	}
	if cctx.UserID == "" {
		cctx.UserID = req.UserID
	}
	res := domain.CommandResult{
		Outcome:      domain.OutcomeDenied,
		CommandID:    req.Action,
		Risk:         req.Risk,
		PermissionID: req.ID,
		Message:      fmt.Sprintf("Denied %q", req.CommandText),
	}
	if cctx.Context == "" {
		cctx.Context = req.Context
	}
	s.interrupted(req.CommandText, normalizeContext(cctx), res, s.Now())
	return res
}

// Pending lists open permission requests.
func (s *Service) Pending() []domain.PermissionRequest {
	if s.Policy == nil {
		return nil
	}
	return s.Policy.PendingPermissions()
}

// Recent returns up to n history records from this process, newest first.
func (s *Service) Recent(n int) []domain.HistoryRecord {
	s.init()
	return s.history.Last(n)
}

// RecentCommands returns the ids of the user's last n understood commands,
// oldest first, for suggestion requests.
func (s *Service) RecentCommands(userID string, n int) []string {
	s.init()
	var ids []string
	for _, rec := range s.history.Last(s.history.Len()) {
		if len(ids) == n {
			break
		}
		if rec.CommandID != "" && (userID == "" || rec.UserID == userID) {
			ids = append(ids, rec.CommandID)
		}
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Stats summarizes this process's history.
func (s *Service) Stats() domain.CommandStats {
	s.init()
	return domain.SummarizeHistory(s.history.Snapshot())
}

// Status reports readiness and queue sizes.
func (s *Service) Status() Status {
	s.init()
	st := Status{
		Ready:       s.ready(),
		HistorySize: s.history.Len(),
	}
	if s.Policy != nil {
		st.PendingPermissions = len(s.Policy.PendingPermissions())
	}
	if last := s.history.Last(1); len(last) == 1 {
		st.LastCommand = last[0].CommandID
		st.LastOutcome = string(last[0].Outcome)
	}
	return st
}

func (s *Service) confirmInteractively(
	ctx context.Context,
	req domain.PermissionRequest,
	parsed domain.ParsedCommand,
	cctx domain.CommandContext,
	verdict domain.Verdict,
	start time.Time,
) domain.CommandResult {
	approved, err := s.Prompter.Confirm(req)
	if err != nil {
		s.logger().Warn("confirmation prompt failed", map[string]interface{}{"permission": req.ID, "error": err.Error()})
		res := pendingResult(parsed, verdict)
		s.interrupted(parsed.RawText, cctx, res, start)
		return res
	}
	if !approved {
		return s.Deny(req.ID, cctx)
	}
	return s.Approve(ctx, req.ID, "prompt", cctx)
}

// invoke calls the handler under a timeout. Panics and timeouts become
// handler failures.
func (s *Service) invoke(ctx context.Context, parsed domain.ParsedCommand, cctx domain.CommandContext, verdict domain.Verdict) domain.CommandResult {
	def := parsed.Definition
	timeout := cctx.Timeout
	if timeout <= 0 {
		timeout = s.HandlerTimeout
	}
	if timeout <= 0 {
		timeout = domain.DefaultHandlerTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res domain.CommandResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		res, err := s.Handlers.Invoke(hctx, def.Handler, parsed.Parameters, cctx)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-hctx.Done():
		out.err = domain.ErrHandlerTimeout
		if errors.Is(hctx.Err(), context.Canceled) {
			out.err = hctx.Err()
		}
	}

	res := out.res
	res.CommandID = def.ID
	res.Confidence = parsed.Confidence
	res.Risk = verdict.Risk
	if len(verdict.Warnings) > 0 {
		if res.Data == nil {
			res.Data = map[string]interface{}{}
		}
		res.Data["warnings"] = verdict.Warnings
	}
	switch {
	case out.err != nil:
		res.Success = false
		res.Outcome = domain.OutcomeHandlerFailed
		res.Message = fmt.Sprintf("%s failed: %v", def.Name, out.err)
		s.logger().Error("handler failed", out.err, map[string]interface{}{"command": def.ID, "handler": def.Handler})
	case !res.Success:
		res.Outcome = domain.OutcomeHandlerFailed
		if res.Message == "" {
			res.Message = def.Name + " failed"
		}
	default:
		res.Outcome = domain.OutcomeExecuted
		if res.Message == "" {
			res.Message = def.Name + " done"
		}
	}
	return res
}

// finish records a handler outcome and feeds it back to learning and the
// suggestion cache.
func (s *Service) finish(text string, cctx domain.CommandContext, res domain.CommandResult, start time.Time) {
	s.record(text, cctx, res, start)
	if s.Modes != nil {
		if err := s.Modes.RecordOutcome(cctx.UserID, cctx.Context, res.CommandID, res.Success); err != nil {
			s.logger().Warn("preference update failed", map[string]interface{}{"command": res.CommandID, "error": err.Error()})
		}
	}
	if s.Suggestions != nil {
		s.Suggestions.Invalidate(cctx.Context)
	}
}

// interrupted records a command that policy stopped and reports it to learning.
func (s *Service) interrupted(text string, cctx domain.CommandContext, res domain.CommandResult, start time.Time) {
	s.record(text, cctx, res, start)
	if s.Modes == nil {
		return
	}
	if err := s.Modes.RecordInterruption(cctx.UserID, cctx.Context, res.CommandID, res.Outcome); err != nil {
		s.logger().Warn("preference update failed", map[string]interface{}{"command": res.CommandID, "error": err.Error()})
	}
}

func (s *Service) record(text string, cctx domain.CommandContext, res domain.CommandResult, start time.Time) {
	now := s.Now()
	rec := domain.HistoryRecord{
		Timestamp:  now,
		Text:       text,
		CommandID:  res.CommandID,
		Context:    cctx.Context,
		SessionID:  cctx.SessionID,
		UserID:     cctx.UserID,
		Outcome:    res.Outcome,
		Success:    res.Success,
		Message:    res.Message,
		RiskLevel:  res.Risk,
		Confidence: res.Confidence,
		DurationMS: now.Sub(start).Milliseconds(),
	}
	s.history.Append(rec)
	if s.History != nil {
		if err := s.History.Save(rec); err != nil {
			s.logger().Warn("history save failed", map[string]interface{}{"error": err.Error()})
		}
	}
	s.logger().Debug("command finished", map[string]interface{}{
		"command": res.CommandID,
		"outcome": res.Outcome,
		"success": res.Success,
	})
}

func (s *Service) logger() ports.Logger {
	if s.Logger == nil {
		return nopLogger{}
	}
	return s.Logger
}

func pendingResult(parsed domain.ParsedCommand, verdict domain.Verdict) domain.CommandResult {
	res := domain.CommandResult{
		Outcome:    domain.OutcomePendingConfirmation,
		CommandID:  parsed.Definition.ID,
		Confidence: parsed.Confidence,
		Risk:       verdict.Risk,
		Message:    "Confirmation required: " + verdict.Reason,
		Data:       verdictData(verdict),
	}
	if verdict.Permission != nil {
		res.PermissionID = verdict.Permission.ID
		res.Data["expires_at"] = verdict.Permission.ExpiresAt
	}
	return res
}

func permissionFailure(id string, err error) domain.CommandResult {
	msg := fmt.Sprintf("permission %s: %v", id, err)
	switch {
	case errors.Is(err, domain.ErrPermissionExpired):
		msg = fmt.Sprintf("Permission %s has expired; run the command again to request a new one.", id)
	case errors.Is(err, domain.ErrPermissionNotFound):
		msg = fmt.Sprintf("No pending permission %s.", id)
	}
	return domain.CommandResult{Outcome: domain.OutcomeDenied, PermissionID: id, Message: msg}
}

func verdictData(v domain.Verdict) map[string]interface{} {
	data := map[string]interface{}{"reason": v.Reason}
	if len(v.Warnings) > 0 {
		data["warnings"] = v.Warnings
	}
	if len(v.MatchedRules) > 0 {
		data["rules"] = v.MatchedRules
	}
	return data
}

func normalizeContext(cctx domain.CommandContext) domain.CommandContext {
	if cctx.Context == "" {
		cctx.Context = domain.ContextUnknown
	}
	return cctx
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

var _ domain.CommandService = (*Service)(nil)
