package app

import (
	"context"
	"fmt"

	"github.com/doeshing/vocmd/internal/application/dispatch"
	"github.com/doeshing/vocmd/internal/application/doctor"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cache"
	"github.com/doeshing/vocmd/internal/infrastructure/catalog"
	"github.com/doeshing/vocmd/internal/infrastructure/config"
	contextdetect "github.com/doeshing/vocmd/internal/infrastructure/context"
	"github.com/doeshing/vocmd/internal/infrastructure/handlers"
	"github.com/doeshing/vocmd/internal/infrastructure/history"
	"github.com/doeshing/vocmd/internal/infrastructure/modes"
	"github.com/doeshing/vocmd/internal/infrastructure/parser"
	"github.com/doeshing/vocmd/internal/infrastructure/prefstore"
	"github.com/doeshing/vocmd/internal/infrastructure/security"
	"github.com/doeshing/vocmd/internal/infrastructure/suggest"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
	"github.com/doeshing/vocmd/internal/pkg/logger"
	"github.com/doeshing/vocmd/internal/ports"
)

// Options controls container construction.
type Options struct {
	Verbose    bool
	ConfigPath string
	// InMemory skips every on-disk store. Used by tests and --ephemeral.
	InMemory bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Logger       ports.Logger

	Catalog     *catalog.Catalog
	Parser      *parser.Parser
	Guardrail   *security.Guardrail
	Modes       *modes.Manager
	Suggestions *suggest.Engine
	Detector    *contextdetect.Detector
	Collector   *contextdetect.BasicCollector
	Handlers    *handlers.Registry

	Dispatcher    *dispatch.Service
	DoctorService *doctor.Service

	HistoryStore ports.HistoryRepository
	AuditStore   ports.AuditRepository
	Preferences  ports.PreferenceStore
	SuggestCache *cache.FileCache

	closers []func() error
	cancels []func()
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewStd(opts.Verbose)
	c := &Container{Config: cfg, ConfigLoader: cfgLoader, Logger: log}

	c.Catalog, err = catalog.Load(cfg.Commands.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	c.Parser = parser.New(c.Catalog)

	guardOpts := []security.Option{security.WithLogger(log)}
	if !opts.InMemory {
		store, err := history.Open(historyPath(cfg), history.WithHistoryLimit(cfg.HistoryLimit()))
		if err != nil {
			log.Warn("history database unavailable, falling back to jsonl", map[string]interface{}{"error": err.Error()})
			c.HistoryStore = history.NewFileStore()
		} else {
			c.HistoryStore = store
			c.AuditStore = store
			c.closers = append(c.closers, store.Close)
			guardOpts = append(guardOpts, security.WithStore(store), security.WithAuditSink(store))
		}
	}

	rules, err := security.LoadRules(cfg.Safety.RulesFile)
	if err != nil {
		log.Warn("policy rules invalid, using defaults", map[string]interface{}{"file": cfg.Safety.RulesFile, "error": err.Error()})
		if rules, err = security.DefaultRules(); err != nil {
			return nil, err
		}
	}
	c.Guardrail, err = security.NewGuardrail(security.SettingsFromConfig(cfg), rules, guardOpts...)
	if err != nil {
		return nil, fmt.Errorf("build policy engine: %w", err)
	}

	modeOpts := []modes.Option{
		modes.WithCatalog(c.Catalog),
		modes.WithLearning(cfg.Learning.Enabled),
		modes.WithLogger(log),
	}
	if cfg.Learning.Enabled && !opts.InMemory {
		if prefs, err := prefstore.Open(preferencePath(cfg)); err != nil {
			log.Warn("preference store unavailable, profiles will not persist", map[string]interface{}{"error": err.Error()})
		} else {
			c.Preferences = prefs
			c.closers = append(c.closers, prefs.Close)
			modeOpts = append(modeOpts, modes.WithStore(prefs))
		}
	}
	c.Modes = modes.NewManager(modeOpts...)

	suggestOpts := []suggest.Option{suggest.WithLogger(log)}
	if !opts.InMemory {
		c.SuggestCache = cache.NewFileCache()
		suggestOpts = append(suggestOpts, suggest.WithCache(c.SuggestCache))
	}
	c.Suggestions = suggest.NewEngine(c.Catalog, c.Modes, suggestOpts...)

	c.Detector = contextdetect.New(
		contextdetect.WithLogger(log),
		contextdetect.WithStaleness(cfg.ValidationIntervalDuration(), cfg.StaleAfterDuration()),
	)
	c.Collector = contextdetect.NewBasicCollector()
	c.cancels = append(c.cancels, c.Detector.OnContextChange(func(change domain.ContextChange) {
		c.Modes.Activate(change.Current.Type)
		c.Suggestions.Invalidate(change.Current.Type)
	}))
	if cfg.Context.Default != "" && cfg.Context.Default != domain.ContextUnknown {
		c.Detector.ManuallySetContext(cfg.Context.Default, 1, map[string]interface{}{"source": "config"})
		c.Modes.Activate(cfg.Context.Default)
	}

	c.Handlers = handlers.FromConfig(cfg.Execution)

	c.Dispatcher = &dispatch.Service{
		Parser:         c.Parser,
		Hints:          c.Parser,
		Catalog:        c.Catalog,
		Policy:         c.Guardrail,
		Handlers:       c.Handlers,
		Modes:          c.Modes,
		Suggestions:    c.Suggestions,
		History:        c.HistoryStore,
		Logger:         log,
		HandlerTimeout: cfg.HandlerTimeoutDuration(),
		HistoryLimit:   cfg.HistoryLimit(),
	}

	c.DoctorService = &doctor.Service{
		ConfigProvider: cfgLoader,
		Catalog:        c.Catalog,
		Rules:          c.Guardrail,
		History:        c.HistoryStore,
		Preferences:    c.Preferences,
		Handlers:       c.Handlers,
		Collector:      c.Collector,
	}
	return c, nil
}

// DetectContext feeds the collected environment signals to the detector
// and activates the resulting context.
func (c *Container) DetectContext() domain.ContextInfo {
	for _, sig := range c.Collector.Collect() {
		c.Detector.Observe(sig)
	}
	info, ok := c.Detector.CurrentContext()
	if !ok {
		info = domain.ContextInfo{Type: domain.ContextUnknown}
	}
	c.Modes.Activate(info.Type)
	return info
}

// CommandContext builds the execution context for the configured user.
func (c *Container) CommandContext(ct domain.ContextType, sessionID string) domain.CommandContext {
	if ct == "" {
		ct = c.Modes.ActiveContext()
	}
	return domain.CommandContext{Context: ct, SessionID: sessionID, UserID: c.Config.User.ID}
}

// AuditEntries returns the newest audit entries, preferring the persistent
// log over the in-process one.
func (c *Container) AuditEntries(limit int) ([]domain.AuditEntry, error) {
	if c.AuditStore != nil {
		return c.AuditStore.AuditEntries(limit)
	}
	entries := c.Guardrail.AuditLog()
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// RulesWatcher returns a watcher for the configured rules file.
func (c *Container) RulesWatcher() (*security.Watcher, error) {
	return security.NewWatcher(c.Guardrail, c.Config.Safety.RulesFile, c.Logger)
}

// Close stops background work and releases stores.
func (c *Container) Close() error {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.Detector.Close()
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func historyPath(cfg domain.Config) string {
	if cfg.History.Database == "" {
		return history.DefaultPath()
	}
	return filesystem.ExpandPath(cfg.History.Database)
}

func preferencePath(cfg domain.Config) string {
	if cfg.Learning.Store == "" {
		return prefstore.DefaultPath()
	}
	return filesystem.ExpandPath(cfg.Learning.Store)
}
