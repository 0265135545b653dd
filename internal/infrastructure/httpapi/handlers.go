package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doeshing/vocmd/internal/domain"
)

const (
	defaultAuditLimit   = 50
	defaultRecentWindow = 3
)

type executeRequest struct {
	Text      string                 `json:"text" binding:"required"`
	Context   string                 `json:"context"`
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id"`
	TimeoutMS int                    `json:"timeout_ms"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type permissionRequest struct {
	Approver  string `json:"approver"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Context   string `json:"context"`
}

type contextRequest struct {
	Context    string                 `json:"context" binding:"required"`
	Confidence *float64               `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type signalRequest struct {
	Kind     string                 `json:"kind" binding:"required"`
	Value    string                 `json:"value"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ct, ok := s.contextParam(c, req.Context)
	if !ok {
		return
	}
	cctx := domain.CommandContext{
		Context:   ct,
		SessionID: req.SessionID,
		UserID:    s.userID(req.UserID),
		Metadata:  req.Metadata,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	}
	res := s.deps.Dispatcher.Execute(c.Request.Context(), req.Text, cctx)
	c.JSON(statusFor(res), res)
}

func (s *Server) approve(c *gin.Context) {
	var req permissionRequest
	if !bindOptional(c, &req) {
		return
	}
	ct, ok := s.optionalContext(c, req.Context)
	if !ok {
		return
	}
	approver := req.Approver
	if approver == "" {
		approver = s.userID(req.UserID)
	}
	cctx := domain.CommandContext{Context: ct, SessionID: req.SessionID, UserID: req.UserID}
	res := s.deps.Dispatcher.Approve(c.Request.Context(), c.Param("id"), approver, cctx)
	c.JSON(statusFor(res), res)
}

func (s *Server) deny(c *gin.Context) {
	var req permissionRequest
	if !bindOptional(c, &req) {
		return
	}
	ct, ok := s.optionalContext(c, req.Context)
	if !ok {
		return
	}
	res := s.deps.Dispatcher.Deny(c.Param("id"), domain.CommandContext{Context: ct, SessionID: req.SessionID, UserID: req.UserID})
	c.JSON(statusFor(res), res)
}

func (s *Server) pending(c *gin.Context) {
	pending := s.deps.Dispatcher.Pending()
	if pending == nil {
		pending = []domain.PermissionRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"permissions": pending})
}

func (s *Server) status(c *gin.Context) {
	body := gin.H{"dispatcher": s.deps.Dispatcher.Status()}
	if s.deps.Context != nil {
		if info, ok := s.deps.Context.CurrentContext(); ok {
			body["context"] = info
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) help(c *gin.Context) {
	if s.deps.Help == nil {
		unavailable(c, "help is not configured")
		return
	}
	var filter func(domain.Category) bool
	if raw := c.Query("category"); raw != "" {
		want := domain.Category(strings.ToLower(raw))
		if !want.Valid() {
			badRequest(c, "unknown category "+raw)
			return
		}
		filter = func(cat domain.Category) bool { return cat == want }
	}
	c.JSON(http.StatusOK, gin.H{"sections": s.deps.Help.Help(filter)})
}

func (s *Server) suggestions(c *gin.Context) {
	if s.deps.Suggestions == nil {
		unavailable(c, "suggestions are not configured")
		return
	}
	ct, ok := s.contextParam(c, c.Query("context"))
	if !ok {
		return
	}
	activity := domain.ActivityMedium
	switch level := domain.ActivityLevel(strings.ToLower(c.Query("activity"))); level {
	case "":
	case domain.ActivityLow, domain.ActivityMedium, domain.ActivityHigh:
		activity = level
	default:
		badRequest(c, "unknown activity level "+string(level))
		return
	}
	userID := s.userID(c.Query("user_id"))
	recent := s.deps.Dispatcher.RecentCommands(userID, queryInt(c, "recent", defaultRecentWindow))
	items := s.deps.Suggestions.SuggestFor(userID, ct, recent, activity)
	if items == nil {
		items = []domain.SmartSuggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"context": ct, "suggestions": items})
}

func (s *Server) currentContext(c *gin.Context) {
	if s.deps.Context == nil {
		unavailable(c, "context detection is not configured")
		return
	}
	info, ok := s.deps.Context.CurrentContext()
	if !ok {
		info = domain.ContextInfo{Type: domain.ContextUnknown}
	}
	body := gin.H{"context": info}
	if s.deps.Modes != nil {
		body["settings"] = s.deps.Modes.SettingsFor(info.Type)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) setContext(c *gin.Context) {
	if s.deps.Context == nil {
		unavailable(c, "context detection is not configured")
		return
	}
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ct := domain.ContextType(strings.ToLower(req.Context))
	if !ct.Valid() {
		badRequest(c, "unknown context "+req.Context)
		return
	}
	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	info := s.deps.Context.ManuallySetContext(ct, confidence, req.Metadata)
	c.JSON(http.StatusOK, gin.H{"context": info})
}

func (s *Server) contextHistory(c *gin.Context) {
	if s.deps.Context == nil {
		unavailable(c, "context detection is not configured")
		return
	}
	history := s.deps.Context.History()
	if history == nil {
		history = []domain.ContextTransition{}
	}
	c.JSON(http.StatusOK, gin.H{"transitions": history})
}

func (s *Server) signal(c *gin.Context) {
	if s.deps.Context == nil {
		unavailable(c, "context detection is not configured")
		return
	}
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	kind := domain.SignalKind(strings.ToLower(req.Kind))
	switch kind {
	case domain.SignalRoute, domain.SignalActiveElement, domain.SignalURL, domain.SignalTimeOfDay, domain.SignalActivity:
	default:
		badRequest(c, "unknown signal kind "+req.Kind)
		return
	}
	info, changed := s.deps.Context.Observe(domain.Signal{Kind: kind, Value: req.Value, Metadata: req.Metadata})
	c.JSON(http.StatusOK, gin.H{"context": info, "changed": changed})
}

func (s *Server) audit(c *gin.Context) {
	if s.deps.Audit == nil {
		unavailable(c, "audit log is not configured")
		return
	}
	entries, err := s.deps.Audit.AuditEntries(queryInt(c, "limit", defaultAuditLimit))
	if err != nil {
		s.deps.Logger.Error("read audit log", err, nil)
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", "failed to read audit log"))
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// contextParam resolves an optional context name, falling back to the
// detector's current context.
func (s *Server) contextParam(c *gin.Context, raw string) (domain.ContextType, bool) {
	ct, ok := s.optionalContext(c, raw)
	if !ok || ct != "" {
		return ct, ok
	}
	if s.deps.Context != nil {
		if info, found := s.deps.Context.CurrentContext(); found {
			return info.Type, true
		}
	}
	return domain.ContextUnknown, true
}

func (s *Server) optionalContext(c *gin.Context, raw string) (domain.ContextType, bool) {
	if raw == "" {
		return "", true
	}
	ct := domain.ContextType(strings.ToLower(raw))
	if !ct.Valid() {
		badRequest(c, "unknown context "+raw)
		return "", false
	}
	return ct, true
}

func (s *Server) userID(requested string) string {
	if requested != "" {
		return requested
	}
	return s.deps.UserID
}

func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// statusFor maps dispatcher outcomes to HTTP status codes. Command-level
// failures are still 200: the body carries the outcome.
func statusFor(res domain.CommandResult) int {
	switch {
	case res.Outcome == domain.OutcomeServiceUnavailable:
		return http.StatusServiceUnavailable
	case res.Outcome == domain.OutcomeDenied && res.CommandID == "":
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody("bad_request", message))
}

func unavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, errorBody("unavailable", message))
}
