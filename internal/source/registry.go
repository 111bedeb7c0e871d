// Package source holds the static catalogue of crawl targets.
package source

import (
	"errors"
	"fmt"
	"strings"

	"PolicyScanner/internal/domain"
)

// ErrDuplicateSource is returned when two definitions share a name.
var ErrDuplicateSource = errors.New("duplicate source name")

// Registry keeps source definitions in configuration order, indexed by name.
type Registry struct {
	ordered []domain.SourceDefinition
	byName  map[string]domain.SourceDefinition
}

// NewRegistry validates definitions and builds an immutable registry.
func NewRegistry(defs []domain.SourceDefinition) (*Registry, error) {
	reg := &Registry{
		ordered: make([]domain.SourceDefinition, 0, len(defs)),
		byName:  make(map[string]domain.SourceDefinition, len(defs)),
	}

	for i, def := range defs {
		def.Name = strings.TrimSpace(def.Name)
		def.URL = strings.TrimSpace(def.URL)
		if def.Name == "" {
			return nil, fmt.Errorf("source #%d: name is required", i)
		}
		if def.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", def.Name)
		}
		if strings.TrimSpace(def.ContainerSelector) == "" {
			return nil, fmt.Errorf("source %s: container selector is required", def.Name)
		}
		if _, ok := reg.byName[def.Name]; ok {
			return nil, fmt.Errorf("source %s: %w", def.Name, ErrDuplicateSource)
		}
		reg.byName[def.Name] = def
		reg.ordered = append(reg.ordered, def)
	}

	return reg, nil
}

// All returns a copy of the definitions in configuration order.
func (r *Registry) All() []domain.SourceDefinition {
	out := make([]domain.SourceDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Lookup returns a definition by name.
func (r *Registry) Lookup(name string) (domain.SourceDefinition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// Len reports the number of configured sources.
func (r *Registry) Len() int {
	return len(r.ordered)
}
