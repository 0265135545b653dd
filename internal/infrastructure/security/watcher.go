package security

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/doeshing/vocmd/internal/pkg/filesystem"
	"github.com/doeshing/vocmd/internal/ports"
)

// Watcher reloads the guardrail's rules whenever the rules file changes.
type Watcher struct {
	guardrail *Guardrail
	path      string
	logger    ports.Logger
	watcher   *fsnotify.Watcher
}

// NewWatcher watches the directory containing path. The file itself may not exist yet.
func NewWatcher(g *Guardrail, path string, logger ports.Logger) (*Watcher, error) {
	path = filesystem.ExpandPath(path)
	if path == "" {
		return nil, fmt.Errorf("rules file path is empty")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{guardrail: g, path: filepath.Clean(path), logger: logger, watcher: fw}, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("rules watcher", err, map[string]interface{}{"path": w.path})
		}
	}
}

func (w *Watcher) reload() {
	rules, err := LoadRules(w.path)
	if err != nil {
		w.logger.Error("reload rules", err, map[string]interface{}{"path": w.path})
		return
	}
	if err := w.guardrail.ReplaceRules(rules); err != nil {
		w.logger.Error("apply reloaded rules", err, map[string]interface{}{"path": w.path})
		return
	}
	w.logger.Info("policy rules reloaded", map[string]interface{}{"path": w.path, "rules": len(rules)})
}
