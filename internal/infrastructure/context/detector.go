// Package contextdetect infers the user's current activity context from
// environment signals.
package contextdetect

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/events"
	"github.com/doeshing/vocmd/internal/pkg/logger"
	"github.com/doeshing/vocmd/internal/pkg/ring"
	"github.com/doeshing/vocmd/internal/ports"
)

// Detector holds the current context and the environment it was derived from.
type Detector struct {
	mu      sync.Mutex
	rules   []domain.DetectionRule
	env     domain.Environment
	hourSet bool
	current *domain.ContextInfo
	touched time.Time

	matcher matcher
	history *ring.Buffer[domain.ContextTransition]
	changes *events.Broker[domain.ContextChange]

	interval   time.Duration
	staleAfter time.Duration
	logger     ports.Logger
	now        func() time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Detector.
type Option func(*Detector)

// WithRules replaces the default rule set.
func WithRules(rules []domain.DetectionRule) Option {
	return func(d *Detector) { d.rules = append([]domain.DetectionRule(nil), rules...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithStaleness sets the validation tick interval and the staleness threshold.
func WithStaleness(interval, staleAfter time.Duration) Option {
	return func(d *Detector) {
		if interval > 0 {
			d.interval = interval
		}
		if staleAfter > 0 {
			d.staleAfter = staleAfter
		}
	}
}

// New creates a detector seeded with DefaultRules.
func New(opts ...Option) *Detector {
	d := &Detector{
		rules:      DefaultRules(),
		history:    ring.New[domain.ContextTransition](domain.DefaultTransitionHistory),
		changes:    events.NewBroker[domain.ContextChange](events.DefaultBuffer),
		interval:   domain.DefaultValidationInterval,
		staleAfter: domain.DefaultStaleAfter,
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.changes.OnDrop = func(sub int) {
		d.logger.Warn("context change dropped for slow subscriber", map[string]interface{}{"subscriber": sub})
	}
	return d
}

// AddRule validates and appends a rule.
func (d *Detector) AddRule(rule domain.DetectionRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = append(d.rules, rule)
	return nil
}

// SetRuleEnabled toggles a rule by id and reports whether it exists.
func (d *Detector) SetRuleEnabled(id string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rules {
		if d.rules[i].ID == id {
			d.rules[i].Disabled = !enabled
			return true
		}
	}
	return false
}

// Rules returns a copy of the rule set.
func (d *Detector) Rules() []domain.DetectionRule {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DetectionRule(nil), d.rules...)
}

// CurrentContext returns the current context, if any has been established.
func (d *Detector) CurrentContext() (domain.ContextInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return domain.ContextInfo{}, false
	}
	return *d.current, true
}

// Environment returns the latest signal values.
func (d *Detector) Environment() domain.Environment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.envLocked()
}

// History returns accepted transitions, oldest first.
func (d *Detector) History() []domain.ContextTransition {
	return d.history.Snapshot()
}

// OnContextChange calls fn, in order, for every accepted context change
// until the returned cancel func is called.
func (d *Detector) OnContextChange(fn func(domain.ContextChange)) func() {
	return d.changes.Listen(fn)
}

// Subscribe returns a channel of context changes.
func (d *Detector) Subscribe() (<-chan domain.ContextChange, func()) {
	return d.changes.Subscribe()
}

// Observe records a signal and re-evaluates the rules. It returns the
// current context and whether it changed type.
func (d *Detector) Observe(sig domain.Signal) (domain.ContextInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch sig.Kind {
	case domain.SignalRoute:
		d.env.Route = sig.Value
	case domain.SignalActiveElement:
		d.env.ActiveElement = sig.Value
	case domain.SignalURL:
		d.env.URL = sig.Value
	case domain.SignalActivity:
		d.env.Activity = sig.Value
	case domain.SignalTimeOfDay:
		if h, err := strconv.Atoi(sig.Value); err == nil && h >= 0 && h < 24 {
			d.env.Hour = h
			d.hourSet = true
		}
	}

	candidate, ok := d.evaluateLocked()
	if !ok {
		return d.currentLocked()
	}
	if sig.Metadata != nil {
		for k, v := range sig.Metadata {
			candidate.Metadata[k] = v
		}
	}
	changed := d.applyLocked(candidate, "signal:"+string(sig.Kind))
	info, _ := d.currentLocked()
	return info, changed
}

// ManuallySetContext forces the context regardless of confidence.
func (d *Detector) ManuallySetContext(ct domain.ContextType, confidence float64, metadata map[string]interface{}) domain.ContextInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := domain.ContextInfo{
		Type:       ct,
		Confidence: clamp(confidence),
		Metadata:   copyMetadata(metadata),
		Timestamp:  d.now(),
		Source:     domain.SourceManual,
	}
	d.replaceLocked(info, "manual")
	return info
}

// Validate re-derives the context when it has not been touched within the
// staleness threshold. It reports whether the context type changed.
func (d *Detector) Validate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil || d.now().Sub(d.touched) <= d.staleAfter {
		return false
	}
	candidate, ok := d.evaluateLocked()
	if !ok {
		return false
	}
	return d.applyLocked(candidate, "stale")
}

// Start runs the validation tick until ctx is cancelled or Stop is called.
func (d *Detector) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if d.Validate() {
					d.logger.Debug("stale context re-derived", nil)
				}
			}
		}
	}(d.done)
}

// Stop halts the validation tick and waits for it to exit.
func (d *Detector) Stop() {
	d.runMu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the tick and closes every subscription.
func (d *Detector) Close() {
	d.Stop()
	d.changes.Close()
}

func (d *Detector) envLocked() domain.Environment {
	env := d.env
	if !d.hourSet {
		env.Hour = d.now().Hour()
	}
	return env
}

func (d *Detector) currentLocked() (domain.ContextInfo, bool) {
	if d.current == nil {
		return domain.ContextInfo{}, false
	}
	return *d.current, false
}

// evaluateLocked returns the target of the highest-priority matching rule.
func (d *Detector) evaluateLocked() (domain.ContextInfo, bool) {
	env := d.envLocked()
	var matched []domain.DetectionRule
	for _, rule := range d.rules {
		if rule.Disabled {
			continue
		}
		if d.matcher.all(rule.Conditions, env) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return domain.ContextInfo{}, false
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })
	best := matched[0]
	return domain.ContextInfo{
		Type:       best.Target,
		Confidence: clamp(best.Confidence),
		Metadata:   map[string]interface{}{"rule": best.ID},
		Timestamp:  d.now(),
		Source:     sourceFor(best.Conditions[0].Signal),
	}, true
}

// applyLocked applies the replacement rule: a candidate replaces the current
// context iff its type differs or its confidence is strictly greater. A
// same-type candidate that does not replace still refreshes the touch time.
func (d *Detector) applyLocked(candidate domain.ContextInfo, reason string) bool {
	if d.current != nil && !candidate.Supersedes(*d.current) {
		if candidate.Type == d.current.Type {
			d.touched = d.now()
		}
		return false
	}
	return d.replaceLocked(candidate, reason)
}

// replaceLocked installs info as the current context. Transitions and
// events are only produced when the type changes.
func (d *Detector) replaceLocked(info domain.ContextInfo, reason string) bool {
	prev := d.current
	d.current = &info
	d.touched = d.now()

	from := domain.ContextUnknown
	if prev != nil {
		from = prev.Type
		if prev.Type == info.Type {
			return false
		}
	}
	transition := domain.ContextTransition{
		From:      from,
		To:        info.Type,
		Timestamp: info.Timestamp,
		Reason:    reason,
		Smooth:    prev != nil && info.Confidence >= prev.Confidence,
	}
	d.history.Append(transition)
	d.changes.Publish(domain.ContextChange{Previous: prev, Current: info, Transition: transition})
	d.logger.Debug("context changed", map[string]interface{}{
		"from": from, "to": info.Type, "confidence": info.Confidence, "reason": reason,
	})
	return true
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
