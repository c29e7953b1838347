package connector

import (
	"fmt"
	"sync"
)

// Registry selects a connector implementation by target type. The target
// set is a fixed enumeration, so lookups fail loudly for unknown types
// rather than falling through to a default.
type Registry struct {
	mu         sync.RWMutex
	connectors map[TargetType]Connector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[TargetType]Connector)}
}

// Register adds a connector for its target type, replacing any previous
// registration.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.TargetType()] = c
}

// Get returns the connector for a target type.
func (r *Registry) Get(target TargetType) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[target]
	if !ok {
		return nil, fmt.Errorf("no connector registered for target type %q", target)
	}
	return c, nil
}

// TargetTypes returns the registered target types.
func (r *Registry) TargetTypes() []TargetType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]TargetType, 0, len(r.connectors))
	for t := range r.connectors {
		types = append(types, t)
	}
	return types
}
