package facility

import (
	"sync"

	"github.com/voltmesh/fex/core/model"
)

// Template is a locally configured, pre-approved price map used to evaluate
// incoming offers.
type Template struct {
	ID       string         `json:"id"`
	PriceMap model.PriceMap `json:"price_map"`
}

// TemplateRegistry holds the ordered collection of acceptable templates.
// Order is significant: evaluation is first-fit, so the registry is a policy
// lever rather than an optimization input. The registry is read-mostly and
// safe for concurrent evaluation.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates []Template
}

// NewTemplateRegistry creates a registry with the given templates in order.
func NewTemplateRegistry(templates ...Template) *TemplateRegistry {
	r := &TemplateRegistry{}
	r.templates = append(r.templates, templates...)
	return r
}

// Put appends the template, or replaces an existing template with the same ID
// in place, preserving evaluation order.
func (r *TemplateRegistry) Put(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.templates {
		if existing.ID == t.ID {
			r.templates[i] = t
			return
		}
	}
	r.templates = append(r.templates, t)
}

// Remove deletes the template with the given ID, if present.
func (r *TemplateRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.templates {
		if t.ID == id {
			r.templates = append(r.templates[:i], r.templates[i+1:]...)
			return
		}
	}
}

// List returns a snapshot of the templates in evaluation order.
func (r *TemplateRegistry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out
}
