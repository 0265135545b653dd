// Package handlers binds catalog handler keys to actuators.
package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/ports"
)

// Handler performs the actuation behind one handler key.
type Handler interface {
	Handle(ctx context.Context, params map[string]interface{}, cctx domain.CommandContext) (domain.CommandResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params map[string]interface{}, cctx domain.CommandContext) (domain.CommandResult, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, params map[string]interface{}, cctx domain.CommandContext) (domain.CommandResult, error) {
	return f(ctx, params, cctx)
}

// Registry resolves handler keys. Keys without a binding go to the
// fallback, if one is set.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback func(key string) Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register binds key to h, replacing any previous binding.
func (r *Registry) Register(key string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
}

// SetFallback sets the handler factory for unbound keys. nil clears it.
func (r *Registry) SetFallback(fn func(key string) Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Keys lists bound handler keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bound reports whether key has an explicit binding.
func (r *Registry) Bound(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[key]
	return ok
}

// Invoke implements ports.HandlerRegistry.
func (r *Registry) Invoke(ctx context.Context, key string, params map[string]interface{}, cctx domain.CommandContext) (domain.CommandResult, error) {
	r.mu.RLock()
	h, ok := r.handlers[key]
	if !ok && r.fallback != nil {
		h = r.fallback(key)
	}
	r.mu.RUnlock()
	if h == nil {
		return domain.CommandResult{}, fmt.Errorf("%w: %s", domain.ErrHandlerNotFound, key)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Handle(ctx, params, cctx)
}

var _ ports.HandlerRegistry = (*Registry)(nil)
