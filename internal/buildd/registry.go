package buildd

import (
	"fmt"
	"sync"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Registry stores template metadata in-memory, keyed by name. A template
// appears here once a build of it has started; its status tracks the most
// recent build.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*types.Template
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]*types.Template),
	}
}

// Get returns a template by name.
func (r *Registry) Get(name string) (*types.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	copied := *t
	return &copied, nil
}

// List returns all templates.
func (r *Registry) List() []types.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.Template, 0, len(r.templates))
	for _, t := range r.templates {
		result = append(result, *t)
	}
	return result
}

// Register adds or updates a template.
func (r *Registry) Register(t *types.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *t
	r.templates[t.Name] = &copied
}

// Delete removes a template by name.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[name]; !ok {
		return fmt.Errorf("template %q not found", name)
	}
	delete(r.templates, name)
	return nil
}
