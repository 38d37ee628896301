// Package registry holds the deployments and builds declared by a manifest.
//
// A Registry is filled once while the manifest is loaded and then sealed.
// After Seal it is read-only and safe for concurrent readers.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/artpar/convoy/internal/core/build"
	"github.com/artpar/convoy/internal/core/deployment"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when no entry has the requested name.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an entry with the same name already exists.
	ErrDuplicate = errors.New("already registered")

	// ErrSealed is returned when adding to a sealed registry.
	ErrSealed = errors.New("registry is sealed")
)

// =============================================================================
// Registry
// =============================================================================

// Registry maps names to declared deployments and builds.
type Registry struct {
	deployments map[string]deployment.Deployment
	builds      map[string]build.Build
	sealed      bool
}

// New returns an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		deployments: make(map[string]deployment.Deployment),
		builds:      make(map[string]build.Build),
	}
}

// AddBuild registers b under its name.
func (r *Registry) AddBuild(b build.Build) error {
	if r.sealed {
		return fmt.Errorf("add build %q: %w", b.Name, ErrSealed)
	}
	if _, exists := r.builds[b.Name]; exists {
		return fmt.Errorf("build %q: %w", b.Name, ErrDuplicate)
	}
	r.builds[b.Name] = b
	return nil
}

// AddDeployment registers d under its name.
func (r *Registry) AddDeployment(d deployment.Deployment) error {
	if r.sealed {
		return fmt.Errorf("add deployment %q: %w", d.Name, ErrSealed)
	}
	if _, exists := r.deployments[d.Name]; exists {
		return fmt.Errorf("deployment %q: %w", d.Name, ErrDuplicate)
	}
	r.deployments[d.Name] = d
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Deployment returns the deployment registered under name.
func (r *Registry) Deployment(name string) (deployment.Deployment, error) {
	d, ok := r.deployments[name]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment %q: %w", name, ErrNotFound)
	}
	return d, nil
}

// Build returns the build registered under name.
func (r *Registry) Build(name string) (build.Build, error) {
	b, ok := r.builds[name]
	if !ok {
		return build.Build{}, fmt.Errorf("build %q: %w", name, ErrNotFound)
	}
	return b, nil
}

// HasBuild reports whether a build named name is registered. It satisfies
// deployment.BuildLookup.
func (r *Registry) HasBuild(name string) bool {
	_, ok := r.builds[name]
	return ok
}

// Deployments returns every deployment ordered by name.
func (r *Registry) Deployments() []deployment.Deployment {
	names := sortedKeys(r.deployments)
	out := make([]deployment.Deployment, 0, len(names))
	for _, name := range names {
		out = append(out, r.deployments[name])
	}
	return out
}

// Builds returns every build ordered by name.
func (r *Registry) Builds() []build.Build {
	names := sortedKeys(r.builds)
	out := make([]build.Build, 0, len(names))
	for _, name := range names {
		out = append(out, r.builds[name])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
