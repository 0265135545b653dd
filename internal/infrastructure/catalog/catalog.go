package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/vocmd/assets"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
)

// Catalog is the registry of command definitions. It implements ports.CommandCatalog.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]domain.CommandDefinition
}

// File is the YAML schema root of a catalog file.
type File struct {
	Commands []domain.CommandDefinition `yaml:"commands"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{defs: map[string]domain.CommandDefinition{}}
}

// Load reads definitions from path, falling back to the embedded defaults
// when the path is empty or missing.
func Load(path string) (*Catalog, error) {
	data, err := readCatalog(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c := New()
	for _, def := range file.Commands {
		if err := c.Register(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func readCatalog(path string) ([]byte, error) {
	if path == "" {
		return assets.DefaultCatalogYAML, nil
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return assets.DefaultCatalogYAML, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return data, nil
}

// Register validates and adds a definition. IDs must be unique.
func (c *Catalog) Register(def domain.CommandDefinition) error {
	if err := validate(def); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[def.ID]; exists {
		return fmt.Errorf("command %q already registered", def.ID)
	}
	def.Patterns = append([]string(nil), def.Patterns...)
	def.Parameters = append([]domain.ParamSpec(nil), def.Parameters...)
	def.Examples = append([]string(nil), def.Examples...)
	c.defs[def.ID] = def
	c.order = append(c.order, def.ID)
	return nil
}

func validate(def domain.CommandDefinition) error {
	if strings.TrimSpace(def.ID) == "" {
		return errors.New("command id is required")
	}
	if def.Name == "" {
		return fmt.Errorf("command %q: name is required", def.ID)
	}
	if len(def.Patterns) == 0 {
		return fmt.Errorf("command %q: at least one pattern is required", def.ID)
	}
	if def.Handler == "" {
		return fmt.Errorf("command %q: handler is required", def.ID)
	}
	if !def.Category.Valid() {
		return fmt.Errorf("command %q: unknown category %q", def.ID, def.Category)
	}
	seen := map[string]bool{}
	for _, p := range def.Parameters {
		if p.Name == "" {
			return fmt.Errorf("command %q: parameter without name", def.ID)
		}
		if seen[p.Name] {
			return fmt.Errorf("command %q: duplicate parameter %q", def.ID, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return fmt.Errorf("command %q: parameter %q has unknown type %q", def.ID, p.Name, p.Type)
		}
	}
	return nil
}

// Lookup returns the definition registered under id.
func (c *Catalog) Lookup(id string) (domain.CommandDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	return def, ok
}

// List returns every definition in registration order.
func (c *Catalog) List() []domain.CommandDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CommandDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// ByCategory returns the definitions of one category in registration order.
func (c *Catalog) ByCategory(cat domain.Category) []domain.CommandDefinition {
	var out []domain.CommandDefinition
	for _, def := range c.List() {
		if def.Category == cat {
			out = append(out, def)
		}
	}
	return out
}

// Siblings returns other commands sharing the category of id.
func (c *Catalog) Siblings(id string) []domain.CommandDefinition {
	def, ok := c.Lookup(id)
	if !ok {
		return nil
	}
	var out []domain.CommandDefinition
	for _, other := range c.ByCategory(def.Category) {
		if other.ID != id {
			out = append(out, other)
		}
	}
	return out
}

// HelpSection groups commands of one category for display.
type HelpSection struct {
	Category domain.Category `json:"category"`
	Commands []HelpEntry     `json:"commands"`
}

// HelpEntry is a single command in the help listing.
type HelpEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	Sensitive   bool     `json:"sensitive,omitempty"`
}

// Help groups available commands by category. Only categories accepted by
// the filter are included; a nil filter includes everything.
func (c *Catalog) Help(filter func(domain.Category) bool) []HelpSection {
	var sections []HelpSection
	for _, cat := range domain.AllCategories() {
		if filter != nil && !filter(cat) {
			continue
		}
		defs := c.ByCategory(cat)
		if len(defs) == 0 {
			continue
		}
		section := HelpSection{Category: cat}
		for _, def := range defs {
			section.Commands = append(section.Commands, HelpEntry{
				ID:          def.ID,
				Name:        def.Name,
				Description: def.Description,
				Examples:    def.Examples,
				Sensitive:   def.Sensitive,
			})
		}
		sort.SliceStable(section.Commands, func(i, j int) bool {
			return section.Commands[i].Name < section.Commands[j].Name
		})
		sections = append(sections, section)
	}
	return sections
}
