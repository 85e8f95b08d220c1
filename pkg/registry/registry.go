package registry

import (
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Registry manages toolkit registration and lifecycle.
type Registry struct {
	mu sync.RWMutex

	// Registered toolkits by kind+name
	toolkits map[string]Toolkit

	// Factory functions by kind
	factories map[string]ToolkitFactory
}

// NewRegistry creates a new toolkit registry.
func NewRegistry() *Registry {
	return &Registry{
		toolkits:  make(map[string]Toolkit),
		factories: make(map[string]ToolkitFactory),
	}
}

// RegisterFactory registers a toolkit factory for a kind.
func (r *Registry) RegisterFactory(kind string, factory ToolkitFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Register adds a toolkit to the registry.
func (r *Registry) Register(toolkit Toolkit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := toolkitKey(toolkit.Kind(), toolkit.Name())
	if _, exists := r.toolkits[key]; exists {
		return fmt.Errorf("toolkit %s already registered", key)
	}

	r.toolkits[key] = toolkit
	return nil
}

// CreateAndRegister creates a toolkit from config and registers it.
func (r *Registry) CreateAndRegister(cfg ToolkitConfig) error {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown toolkit kind: %s", cfg.Kind)
	}

	toolkit, err := factory(cfg.Name, cfg.Config)
	if err != nil {
		return fmt.Errorf("creating toolkit %s/%s: %w", cfg.Kind, cfg.Name, err)
	}

	return r.Register(toolkit)
}

// Get retrieves a toolkit by kind and name.
func (r *Registry) Get(kind, name string) (Toolkit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	toolkit, ok := r.toolkits[toolkitKey(kind, name)]
	return toolkit, ok
}

// GetByKind retrieves all toolkits of a kind.
func (r *Registry) GetByKind(kind string) []Toolkit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Toolkit
	for _, toolkit := range r.toolkits {
		if toolkit.Kind() == kind {
			result = append(result, toolkit)
		}
	}
	return result
}

// All returns all registered toolkits.
func (r *Registry) All() []Toolkit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Toolkit, 0, len(r.toolkits))
	for _, toolkit := range r.toolkits {
		result = append(result, toolkit)
	}
	return result
}

// Tools returns the names of all tools provided by registered toolkits.
func (r *Registry) Tools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, toolkit := range r.toolkits {
		names = append(names, toolkit.Tools()...)
	}
	return names
}

// GetToolkitForTool returns toolkit info (kind, name, connection) for a tool.
// Returns found=false if the tool is not found in any registered toolkit.
func (r *Registry) GetToolkitForTool(toolName string) (kind, name, connection string, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, toolkit := range r.toolkits {
		for _, tool := range toolkit.Tools() {
			if tool == toolName {
				return toolkit.Kind(), toolkit.Name(), toolkit.Connection(), true
			}
		}
	}
	return "", "", "", false
}

// RegisterAllTools registers tools from all toolkits with the MCP server.
func (r *Registry) RegisterAllTools(s *mcp.Server) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, toolkit := range r.toolkits {
		toolkit.RegisterTools(s)
	}
}

// Close closes all registered toolkits.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, toolkit := range r.toolkits {
		if err := toolkit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing toolkit %s: %w", key, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing toolkits: %v", errs)
	}
	return nil
}

// toolkitKey builds the registry key for a toolkit.
func toolkitKey(kind, name string) string {
	return kind + "/" + name
}
