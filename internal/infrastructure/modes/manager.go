// Package modes narrows command availability by context and learns per-user
// preferences from execution outcomes.
package modes

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/events"
	"github.com/doeshing/vocmd/internal/pkg/logger"
	"github.com/doeshing/vocmd/internal/ports"
)

const (
	emaAlpha         = 0.2
	minUsesToJudge   = 3
	favoriteRate     = 0.8
	avoidRate        = 0.3
	keepFavoriteRate = 0.5
)

// Manager implements ports.ModeManager.
type Manager struct {
	mu       sync.RWMutex
	settings map[domain.ContextType]domain.ContextualSettings
	curated  map[domain.ContextType][]domain.ContextSuggestion
	active   domain.ContextType
	profiles map[string]domain.UserPreferenceProfile

	store    ports.PreferenceStore
	catalog  ports.CommandCatalog
	learning bool
	changes  *events.Broker[domain.CommandsChanged]
	logger   ports.Logger
	now      func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithStore persists preference profiles.
func WithStore(store ports.PreferenceStore) Option {
	return func(m *Manager) { m.store = store }
}

// WithCatalog lets the manager expand "*" into concrete command IDs.
func WithCatalog(c ports.CommandCatalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithLearning toggles outcome learning.
func WithLearning(enabled bool) Option {
	return func(m *Manager) { m.learning = enabled }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a manager seeded with the built-in per-context settings.
// The unknown context starts active.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		settings: defaultSettings(),
		curated:  defaultSuggestions(),
		active:   domain.ContextUnknown,
		profiles: map[string]domain.UserPreferenceProfile{},
		learning: true,
		changes:  events.NewBroker[domain.CommandsChanged](events.DefaultBuffer),
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.changes.OnDrop = func(sub int) {
		m.logger.Warn("commands-changed event dropped for slow subscriber", map[string]interface{}{"subscriber": sub})
	}
	return m
}

// Activate makes ct the single active context.
func (m *Manager) Activate(ct domain.ContextType) domain.ContextualSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settingsLocked(ct)
	if m.active == ct {
		return s
	}
	m.active = ct
	s.Active = true
	m.publishLocked(ct, s, "activated")
	return s
}

// ActiveContext returns the active context.
func (m *Manager) ActiveContext() domain.ContextType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SettingsFor returns a copy of the settings of ct.
func (m *Manager) SettingsFor(ct domain.ContextType) domain.ContextualSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settingsLocked(ct)
}

func (m *Manager) settingsLocked(ct domain.ContextType) domain.ContextualSettings {
	s, ok := m.settings[ct]
	if !ok {
		s = m.settings[domain.ContextUnknown]
		s.Context = ct
	}
	s.EnabledCommands = append([]string(nil), s.EnabledCommands...)
	s.DisabledCommands = append([]string(nil), s.DisabledCommands...)
	s.Active = ct == m.active
	return s
}

// SuggestionsFor returns the curated hints for ct.
func (m *Manager) SuggestionsFor(ct domain.ContextType) []domain.ContextSuggestion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ContextSuggestion(nil), m.curated[ct]...)
}

// Override replaces the enabled and/or disabled sets of ct. A nil slice
// leaves that set unchanged.
func (m *Manager) Override(ct domain.ContextType, enabled, disabled []string) domain.ContextualSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settingsLocked(ct)
	if enabled != nil {
		s.EnabledCommands = append([]string(nil), enabled...)
	}
	if disabled != nil {
		s.DisabledCommands = append([]string(nil), disabled...)
	}
	stored := s
	stored.Active = false
	m.settings[ct] = stored
	m.publishLocked(ct, s, "override")
	return s
}

// IsCommandAvailable reports availability from the context settings alone.
func (m *Manager) IsCommandAvailable(command string, ct domain.ContextType) bool {
	return m.SettingsFor(ct).Allows(command)
}

// IsCommandAvailableFor merges the user's profile when adaptive behavior is on:
// favorites become available and avoided commands unavailable.
func (m *Manager) IsCommandAvailableFor(userID, command string, ct domain.ContextType) bool {
	allowed := m.IsCommandAvailable(command, ct)
	if userID == "" {
		return allowed
	}
	profile := m.Profile(userID, ct)
	if !profile.AdaptiveBehavior {
		return allowed
	}
	if profile.IsAvoided(command) {
		return false
	}
	return allowed || profile.IsFavorite(command)
}

// AvailableCommands lists the concrete command IDs usable by the user in ct.
func (m *Manager) AvailableCommands(userID string, ct domain.ContextType) []string {
	var candidates []string
	if m.catalog != nil {
		for _, def := range m.catalog.List() {
			candidates = append(candidates, def.ID)
		}
	} else {
		s := m.SettingsFor(ct)
		for _, id := range s.EnabledCommands {
			if id != domain.AllCommands {
				candidates = append(candidates, id)
			}
		}
		candidates = append(candidates, m.Profile(userID, ct).FavoriteCommands...)
	}
	var out []string
	for _, id := range candidates {
		if !containsString(out, id) && m.IsCommandAvailableFor(userID, id, ct) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Profile returns the user's profile for ct, loading it from the store on first use.
func (m *Manager) Profile(userID string, ct domain.ContextType) domain.UserPreferenceProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileLocked(userID, ct).Clone()
}

func (m *Manager) profileLocked(userID string, ct domain.ContextType) domain.UserPreferenceProfile {
	key := profileKey(userID, ct)
	if p, ok := m.profiles[key]; ok {
		return p
	}
	p := domain.NewUserPreferenceProfile(userID, ct)
	if m.store != nil {
		loaded, ok, err := m.store.Load(userID, ct)
		if err != nil {
			m.logger.Error("load preference profile", err, map[string]interface{}{"user": userID, "context": ct})
		} else if ok {
			p = loaded
			if p.Usage == nil {
				p.Usage = map[string]domain.UsagePattern{}
			}
		}
	}
	m.profiles[key] = p
	return p
}

// SetAdaptive toggles whether the user's profile influences availability.
func (m *Manager) SetAdaptive(userID string, ct domain.ContextType, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profileLocked(userID, ct)
	p.AdaptiveBehavior = enabled
	p.UpdatedAt = m.now()
	return m.saveLocked(p)
}

// RecordOutcome updates the usage pattern of command and re-judges the
// favorite and avoided lists.
func (m *Manager) RecordOutcome(userID string, ct domain.ContextType, command string, success bool) error {
	if !m.learning || userID == "" || command == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(userID, ct).Clone()
	now := m.now()
	usage := p.Usage[command]
	outcome := 0.0
	if success {
		outcome = 1
		usage.Successes++
	} else {
		usage.Failures++
	}
	usage.Count++
	if usage.Count == 1 {
		usage.SuccessRate = outcome
	} else {
		usage.SuccessRate = (1-emaAlpha)*usage.SuccessRate + emaAlpha*outcome
	}
	usage.LastUsed = now
	p.Usage[command] = usage

	changed := false
	switch {
	case usage.Count >= minUsesToJudge && usage.SuccessRate >= favoriteRate:
		changed = addTo(&p.FavoriteCommands, command) || changed
		changed = removeFrom(&p.AvoidedCommands, command) || changed
	case usage.Count >= minUsesToJudge && usage.SuccessRate < avoidRate:
		changed = addTo(&p.AvoidedCommands, command) || changed
		changed = removeFrom(&p.FavoriteCommands, command) || changed
	default:
		if usage.SuccessRate < keepFavoriteRate {
			changed = removeFrom(&p.FavoriteCommands, command) || changed
		} else {
			changed = removeFrom(&p.AvoidedCommands, command) || changed
		}
	}
	p.UpdatedAt = now
	if err := m.saveLocked(p); err != nil {
		return err
	}
	if changed && p.AdaptiveBehavior {
		m.logger.Debug("preferences changed", map[string]interface{}{
			"user": userID, "context": ct, "favorites": p.FavoriteCommands, "avoided": p.AvoidedCommands,
		})
		m.publishLocked(ct, m.settingsLocked(ct), "preferences")
	}
	return nil
}

// RecordInterruption counts a command that policy stopped before it ran:
// blocked, held for confirmation or denied. Success rate is untouched.
func (m *Manager) RecordInterruption(userID string, ct domain.ContextType, command string, outcome domain.Outcome) error {
	if !m.learning || userID == "" || command == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(userID, ct).Clone()
	usage := p.Usage[command]
	switch outcome {
	case domain.OutcomeBlocked:
		usage.Blocked++
	case domain.OutcomePendingConfirmation:
		usage.Confirmations++
	case domain.OutcomeDenied:
		usage.Denials++
	default:
		return nil
	}
	p.Usage[command] = usage
	p.UpdatedAt = m.now()
	return m.saveLocked(p)
}

func (m *Manager) saveLocked(p domain.UserPreferenceProfile) error {
	m.profiles[profileKey(p.UserID, p.Context)] = p
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(p.Clone()); err != nil {
		return fmt.Errorf("save preference profile: %w", err)
	}
	return nil
}

// OnCommandsChanged calls fn for every change of an allow-list until cancelled.
func (m *Manager) OnCommandsChanged(fn func(domain.CommandsChanged)) func() {
	return m.changes.Listen(fn)
}

// SubscribeCommandsChanged returns a channel of allow-list changes.
func (m *Manager) SubscribeCommandsChanged() (<-chan domain.CommandsChanged, func()) {
	return m.changes.Subscribe()
}

func (m *Manager) publishLocked(ct domain.ContextType, s domain.ContextualSettings, reason string) {
	enabled := append([]string(nil), s.EnabledCommands...)
	m.changes.Publish(domain.CommandsChanged{Context: ct, Enabled: enabled, Reason: reason})
}

func profileKey(userID string, ct domain.ContextType) string {
	return userID + "|" + string(ct)
}

func addTo(list *[]string, v string) bool {
	if containsString(*list, v) {
		return false
	}
	*list = append(*list, v)
	return true
}

func removeFrom(list *[]string, v string) bool {
	for i, item := range *list {
		if item == v {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
