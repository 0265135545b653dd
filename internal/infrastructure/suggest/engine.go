// Package suggest ranks the commands a user is likely to want next.
package suggest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cache"
	"github.com/doeshing/vocmd/internal/pkg/logger"
	"github.com/doeshing/vocmd/internal/pkg/ring"
	"github.com/doeshing/vocmd/internal/ports"
)

const (
	confidenceFrequent   = 0.9
	confidenceTimeBased  = 0.7
	confidencePreference = 0.8
	confidenceRelated    = 0.6
	confidenceNovel      = 0.5
	contextBoost         = 0.1
	maxRelated           = 3
	maxNovel             = 3
	minPreferenceUses    = 3
	preferenceRate       = 0.8
	noveltyUses          = 3
)

// ModeSource is the slice of the mode manager the engine reads.
type ModeSource interface {
	SuggestionsFor(ct domain.ContextType) []domain.ContextSuggestion
	IsCommandAvailableFor(userID, command string, ct domain.ContextType) bool
	Profile(userID string, ct domain.ContextType) domain.UserPreferenceProfile
}

type suggested struct {
	userID  string
	context domain.ContextType
	command string
	at      time.Time
}

// Engine implements the suggestion pipeline.
type Engine struct {
	catalog ports.CommandCatalog
	modes   ModeSource
	cache   ports.SuggestionCache
	group   singleflight.Group

	// recordMu makes the repeat-window check and the history append atomic.
	recordMu sync.Mutex
	history  *ring.Buffer[suggested]

	logger ports.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCache replaces the in-memory cache.
func WithCache(c ports.SuggestionCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator overrides suggestion ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates an engine. modes may be nil, which disables the
// contextual stage and the availability filter.
func NewEngine(catalog ports.CommandCatalog, modes ModeSource, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		modes:   modes,
		history: ring.New[suggested](domain.SuggestionHistoryCapacity),
		logger:  logger.Nop(),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.NewMemoryCache(e.now)
	}
	return e
}

// Suggest returns at most five suggestions sorted by confidence, never
// repeating a command suggested to the same user and context within the
// last hour. Identical requests within five minutes are served from cache.
func (e *Engine) Suggest(req domain.SuggestRequest) []domain.SmartSuggestion {
	if req.Time.IsZero() {
		req.Time = e.now()
	}
	if req.Context == "" {
		req.Context = domain.ContextUnknown
	}
	key := CacheKey(req)
	if items, ok := e.cache.Get(key); ok {
		return items
	}
	v, _, _ := e.group.Do(key, func() (interface{}, error) {
		if items, ok := e.cache.Get(key); ok {
			return items, nil
		}
		items := e.rank(req, e.candidates(req))
		e.cache.Set(key, items, domain.SuggestionCacheTTL)
		return items, nil
	})
	items := v.([]domain.SmartSuggestion)
	return append([]domain.SmartSuggestion(nil), items...)
}

// SuggestFor builds a request from the user's stored profile.
func (e *Engine) SuggestFor(userID string, ct domain.ContextType, recent []string, activity domain.ActivityLevel) []domain.SmartSuggestion {
	req := domain.SuggestRequest{
		UserID:         userID,
		Context:        ct,
		RecentCommands: recent,
		Time:           e.now(),
		Activity:       activity,
	}
	if e.modes != nil {
		req.Preferences = e.modes.Profile(userID, ct)
	}
	return e.Suggest(req)
}

// Invalidate drops cached lists for ct.
func (e *Engine) Invalidate(ct domain.ContextType) {
	e.cache.Invalidate(string(ct) + "|")
}

// CacheKey identifies requests that may share a cached result.
func CacheKey(req domain.SuggestRequest) string {
	recent := req.RecentCommands
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	activity := req.Activity
	if activity == "" {
		activity = domain.ActivityMedium
	}
	return strings.Join([]string{
		string(req.Context),
		req.UserID,
		TimeBucket(req.Time),
		string(activity),
		strings.Join(recent, ","),
	}, "|")
}

// TimeBucket coarsens a time to part-of-day and weekday/weekend.
func TimeBucket(t time.Time) string {
	part := "night"
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		part = "morning"
	case h >= 12 && h < 17:
		part = "afternoon"
	case h >= 17 && h < 22:
		part = "evening"
	}
	if isWeekend(t) {
		return "weekend-" + part
	}
	return "weekday-" + part
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func (e *Engine) candidates(req domain.SuggestRequest) []domain.SmartSuggestion {
	var out []domain.SmartSuggestion
	out = append(out, e.frequent(req)...)
	out = append(out, e.contextual(req)...)
	out = append(out, e.timeBased(req)...)
	out = append(out, e.preferred(req)...)
	out = append(out, e.related(req)...)
	out = append(out, e.novel(req)...)
	return out
}

func (e *Engine) build(command string, confidence float64, cat domain.SuggestionCategory, reason string, ct domain.ContextType) (domain.SmartSuggestion, bool) {
	def, ok := e.catalog.Lookup(command)
	if !ok {
		return domain.SmartSuggestion{}, false
	}
	return domain.SmartSuggestion{
		ID:          e.newID(),
		Command:     command,
		Description: def.Description,
		Confidence:  confidence,
		Reason:      reason,
		Context:     ct,
		Category:    cat,
		Metadata:    map[string]interface{}{"name": def.Name},
	}, true
}

func (e *Engine) frequent(req domain.SuggestRequest) []domain.SmartSuggestion {
	var out []domain.SmartSuggestion
	for _, cmd := range req.Preferences.FavoriteCommands {
		if s, ok := e.build(cmd, confidenceFrequent, domain.SuggestionFrequent, "one of your favorites here", req.Context); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) contextual(req domain.SuggestRequest) []domain.SmartSuggestion {
	if e.modes == nil {
		return nil
	}
	var out []domain.SmartSuggestion
	for _, cs := range e.modes.SuggestionsFor(req.Context) {
		s, ok := e.build(cs.Command, cs.Confidence, domain.SuggestionContextual, cs.Description, req.Context)
		if !ok {
			continue
		}
		s.Metadata["phrase"] = cs.Phrase
		out = append(out, s)
	}
	return out
}

// timeBased suggestions carry the context where the command naturally
// belongs, so they only earn the context boost when that matches.
func (e *Engine) timeBased(req domain.SuggestRequest) []domain.SmartSuggestion {
	var picks []string
	var reason string
	h := req.Time.Hour()
	switch {
	case h >= 5 && h < 11:
		picks, reason = []string{"list_tasks", "create_task", "open_browser"}, "good morning routine"
	case h >= 17 && h < 22:
		picks, reason = []string{"play_media", "complete_task"}, "evening wind-down"
	}
	if isWeekend(req.Time) {
		picks = append(picks, "play_media", "search_web")
		if reason == "" {
			reason = "weekend"
		}
	}
	var out []domain.SmartSuggestion
	for _, cmd := range picks {
		def, ok := e.catalog.Lookup(cmd)
		if !ok {
			continue
		}
		if s, ok := e.build(cmd, confidenceTimeBased, domain.SuggestionTimeBased, reason, naturalContext(def.Category)); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) preferred(req domain.SuggestRequest) []domain.SmartSuggestion {
	type use struct {
		cmd string
		p   domain.UsagePattern
	}
	var uses []use
	for cmd, p := range req.Preferences.Usage {
		if p.Count >= minPreferenceUses && p.SuccessRate > preferenceRate {
			uses = append(uses, use{cmd, p})
		}
	}
	sort.Slice(uses, func(i, j int) bool {
		if uses[i].p.Count != uses[j].p.Count {
			return uses[i].p.Count > uses[j].p.Count
		}
		return uses[i].cmd < uses[j].cmd
	})
	var out []domain.SmartSuggestion
	for _, u := range uses {
		reason := fmt.Sprintf("works for you %.0f%% of the time", u.p.SuccessRate*100)
		if s, ok := e.build(u.cmd, confidencePreference, domain.SuggestionPreference, reason, req.Context); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) related(req domain.SuggestRequest) []domain.SmartSuggestion {
	if len(req.RecentCommands) == 0 {
		return nil
	}
	last := req.RecentCommands[len(req.RecentCommands)-1]
	def, ok := e.catalog.Lookup(last)
	if !ok {
		return nil
	}
	var out []domain.SmartSuggestion
	for _, sib := range e.catalog.List() {
		if len(out) == maxRelated {
			break
		}
		if sib.ID == last || sib.Category != def.Category {
			continue
		}
		if s, ok := e.build(sib.ID, confidenceRelated, domain.SuggestionRelated, "related to "+def.Name, req.Context); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) novel(req domain.SuggestRequest) []domain.SmartSuggestion {
	var out []domain.SmartSuggestion
	for _, def := range e.catalog.List() {
		if len(out) == maxNovel {
			break
		}
		if req.Preferences.Usage[def.ID].Count >= noveltyUses {
			continue
		}
		if e.modes == nil || !e.modes.IsCommandAvailableFor(req.UserID, def.ID, req.Context) {
			continue
		}
		if naturalContext(def.Category) != req.Context {
			continue
		}
		if s, ok := e.build(def.ID, confidenceNovel, domain.SuggestionNewFeature, "try something new", req.Context); ok {
			out = append(out, s)
		}
	}
	return out
}

// rank de-duplicates, filters, boosts, sorts and truncates, then records
// what was suggested.
func (e *Engine) rank(req domain.SuggestRequest, candidates []domain.SmartSuggestion) []domain.SmartSuggestion {
	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	now := req.Time
	recent := map[string]bool{}
	for _, h := range e.history.Filter(func(s suggested) bool {
		return s.userID == req.UserID && s.context == req.Context && now.Sub(s.at) < domain.SuggestionRepeatWindow
	}) {
		recent[h.command] = true
	}

	seen := map[string]bool{}
	var kept []domain.SmartSuggestion
	for _, s := range candidates {
		if seen[s.Command] {
			continue
		}
		seen[s.Command] = true
		if req.Preferences.IsAvoided(s.Command) || recent[s.Command] {
			continue
		}
		if s.Context == req.Context {
			s.Confidence += contextBoost
			if s.Confidence > 1 {
				s.Confidence = 1
			}
		}
		expires := now.Add(domain.SuggestionCacheTTL)
		s.ExpiresAt = &expires
		kept = append(kept, s)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
	if len(kept) > domain.MaxSuggestions {
		kept = kept[:domain.MaxSuggestions]
	}
	for _, s := range kept {
		e.history.Append(suggested{userID: req.UserID, context: req.Context, command: s.Command, at: now})
	}
	e.logger.Debug("suggestions ranked", map[string]interface{}{
		"context": req.Context, "candidates": len(candidates), "returned": len(kept),
	})
	return kept
}

func naturalContext(cat domain.Category) domain.ContextType {
	switch cat {
	case domain.CategoryTasks:
		return domain.ContextTasks
	case domain.CategoryChat:
		return domain.ContextChat
	case domain.CategorySettings:
		return domain.ContextSettings
	case domain.CategoryBrowser, domain.CategoryWeb:
		return domain.ContextBrowser
	case domain.CategoryMedia:
		return domain.ContextMedia
	case domain.CategoryApplication, domain.CategoryFilesystem:
		return domain.ContextDevelopment
	default:
		return domain.ContextUnknown
	}
}
