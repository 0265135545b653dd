package httpapi

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/doeshing/vocmd/internal/domain"
)

type contextEvent struct {
	From       domain.ContextType `json:"from,omitempty"`
	To         domain.ContextType `json:"to"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason,omitempty"`
	Smooth     bool               `json:"smooth"`
}

type commandsEvent struct {
	Context domain.ContextType `json:"context"`
	Enabled []string           `json:"enabled"`
	Reason  string             `json:"reason"`
}

// events streams context and command-set changes as server-sent events.
// The first event is always the current context.
func (s *Server) events(c *gin.Context) {
	if s.deps.Context == nil {
		unavailable(c, "context detection is not configured")
		return
	}
	contexts, cancelContexts := s.deps.Context.Subscribe()
	defer cancelContexts()

	var commands <-chan domain.CommandsChanged
	if s.deps.Modes != nil {
		ch, cancel := s.deps.Modes.SubscribeCommandsChanged()
		defer cancel()
		commands = ch
	}

	current, ok := s.deps.Context.CurrentContext()
	if !ok {
		current = domain.ContextInfo{Type: domain.ContextUnknown}
	}
	c.SSEvent("context", contextEvent{To: current.Type, Confidence: current.Confidence, Reason: "snapshot"})
	c.Writer.Flush()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case change, open := <-contexts:
			if !open {
				return false
			}
			c.SSEvent("context", contextEvent{
				From:       change.Transition.From,
				To:         change.Current.Type,
				Confidence: change.Current.Confidence,
				Reason:     change.Transition.Reason,
				Smooth:     change.Transition.Smooth,
			})
			return true
		case update, open := <-commands:
			if !open {
				commands = nil
				return true
			}
			c.SSEvent("commands", commandsEvent{Context: update.Context, Enabled: update.Enabled, Reason: update.Reason})
			return true
		}
	})
}
