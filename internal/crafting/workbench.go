package crafting

import (
	"slices"

	"sandforge/internal/component"
	"sandforge/internal/ecs"

	"github.com/pkg/errors"
)

// WorkbenchKind names a recipe table. Classical and Second ship with the
// default assets; any other name loaded from assets is equally valid.
type WorkbenchKind string

const (
	Classical WorkbenchKind = "Classical"
	Second    WorkbenchKind = "Second"
)

// Workbench marks a placed workbench entity.
type Workbench struct {
	Kind WorkbenchKind
}

func (Workbench) Type() ecs.ComponentType { return component.CWorkbench }

// Registry maps workbench kinds to their recipe tables. It is filled once at
// startup and read-only afterwards.
type Registry struct {
	tables map[WorkbenchKind]*CraftsMap
	kinds  []WorkbenchKind
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[WorkbenchKind]*CraftsMap)}
}

// Register installs table under kind, replacing any earlier table.
func (r *Registry) Register(kind WorkbenchKind, table *CraftsMap) {
	if _, ok := r.tables[kind]; !ok {
		r.kinds = append(r.kinds, kind)
	}
	r.tables[kind] = table
}

// Table returns the recipe table for kind.
func (r *Registry) Table(kind WorkbenchKind) (*CraftsMap, error) {
	t, ok := r.tables[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownWorkbench, "%q", kind)
	}
	return t, nil
}

// Kinds lists the registered kinds in registration order.
func (r *Registry) Kinds() []WorkbenchKind { return slices.Clone(r.kinds) }
