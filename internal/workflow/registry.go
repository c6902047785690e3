package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"mediaflow/internal/request"
	"mediaflow/internal/services"
)

// Pipeline runs one activity against the staged input. The returned value is
// written to the job's result store under the activity name and must be JSON
// serializable.
type Pipeline func(ctx context.Context, env *TaskEnv, params request.Params) (any, error)

// Registration binds an activity name to its parameter variant and pipeline.
type Registration struct {
	Name string
	// NewParams returns the parameter variant pre-filled with defaults.
	NewParams func() request.Params
	Run       Pipeline
}

// Registry is the table of activities a Manager accepts. It is built once at
// startup and never modified afterwards.
type Registry struct {
	entries map[string]Registration
	names   []string
}

// NewRegistry validates and indexes registrations.
func NewRegistry(registrations ...Registration) (*Registry, error) {
	r := &Registry{entries: make(map[string]Registration, len(registrations))}
	for _, reg := range registrations {
		name := strings.TrimSpace(reg.Name)
		if name == "" {
			return nil, fmt.Errorf("registry: activity name is required")
		}
		if reg.Run == nil {
			return nil, fmt.Errorf("registry: activity %q has no pipeline", name)
		}
		if reg.NewParams == nil {
			return nil, fmt.Errorf("registry: activity %q has no parameter constructor", name)
		}
		if _, exists := r.entries[name]; exists {
			return nil, fmt.Errorf("registry: activity %q registered twice", name)
		}
		reg.Name = name
		r.entries[name] = reg
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Names returns the registered activity names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	if r == nil {
		return Registration{}, false
	}
	reg, ok := r.entries[name]
	return reg, ok
}

type plannedTask struct {
	registration Registration
	params       request.Params
}

// plan resolves a normalized request into one task per activity, decoding
// and validating each parameter variant.
func (r *Registry) plan(req request.Request) ([]plannedTask, error) {
	tasks := make([]plannedTask, 0, len(req.Activities))
	for _, name := range req.Activities {
		reg, ok := r.Lookup(name)
		if !ok {
			return nil, services.Invalid("activities", "unknown activity %q (known: %s)", name, strings.Join(r.Names(), ", "))
		}
		params := reg.NewParams()
		if err := request.Decode(name, req.Params[name], params); err != nil {
			return nil, err
		}
		tasks = append(tasks, plannedTask{registration: reg, params: params})
	}
	return tasks, nil
}
