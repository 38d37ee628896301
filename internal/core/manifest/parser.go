package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/artpar/convoy/internal/core/build"
	"github.com/artpar/convoy/internal/core/deployment"
	"github.com/artpar/convoy/internal/core/registry"
	"github.com/artpar/convoy/internal/core/validation"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}
	return &f, nil
}

// Load converts, fills defaults and validates every entry of f, then adds
// them all to reg and seals it. When any entry is invalid nothing is added
// and the returned error joins one *validation.ConfigError per entry.
func Load(reg *registry.Registry, f *File) error {
	if reg.Sealed() {
		return registry.ErrSealed
	}

	builds := make([]build.Build, 0, len(f.Builds))
	known := make(map[string]bool, len(f.Builds))
	var errs []error

	for _, spec := range f.Builds {
		b := build.Build{Name: spec.Name, Registry: spec.Registry, Version: spec.Version}
		b.FillDefaults()
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
		if known[b.Name] && b.Name != "" {
			errs = append(errs, validation.NewConfigError("build", b.Name, "Build name is declared more than once"))
		}
		known[b.Name] = true
		builds = append(builds, b)
	}

	hasBuild := func(name string) bool { return known[name] }
	seen := make(map[string]bool, len(f.Deployments))
	deployments := make([]deployment.Deployment, 0, len(f.Deployments))

	for _, spec := range f.Deployments {
		d, problems := convertDeployment(spec)
		deployment.FillDefaults(&d)
		if err := deployment.Validate(d, hasBuild); err != nil {
			var cfgErr *validation.ConfigError
			if errors.As(err, &cfgErr) {
				problems = append(problems, cfgErr.Problems...)
			} else {
				errs = append(errs, err)
			}
		}
		if seen[d.Name] && d.Name != "" {
			problems.Add("Deployment name is declared more than once")
		}
		seen[d.Name] = true
		if err := problems.Err("deployment", d.Name); err != nil {
			errs = append(errs, err)
		}
		deployments = append(deployments, d)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, b := range builds {
		if err := reg.AddBuild(b); err != nil {
			return err
		}
	}
	for _, d := range deployments {
		if err := reg.AddDeployment(d); err != nil {
			return err
		}
	}
	reg.Seal()
	return nil
}

// LoadBytes parses data and loads it into reg.
func LoadBytes(reg *registry.Registry, data []byte) error {
	f, err := Parse(data)
	if err != nil {
		return err
	}
	return Load(reg, f)
}

// =============================================================================
// Conversion
// =============================================================================

func convertDeployment(spec DeploymentSpec) (deployment.Deployment, validation.Problems) {
	var problems validation.Problems

	d := deployment.Deployment{
		Name:        spec.Name,
		MarathonURL: spec.MarathonURL,
		BuildName:   spec.BuildName,
		ImageName:   spec.ImageName,
		Command:     spec.Command,
		Arguments:   spec.Arguments,
		Modes:       make(map[deployment.Property]deployment.Mode),
	}

	env, err := convertEnvironment(spec.EnvironmentVariables)
	if err != nil {
		problems.Add("%s", err.Error())
	}
	d.EnvironmentVariables = env

	d.CPUs = applySetting(d.Modes, deployment.PropCPUs, spec.CPUs)
	d.Memory = applySetting(d.Modes, deployment.PropMemory, spec.Memory)
	d.Instances = applySetting(d.Modes, deployment.PropInstances, spec.Instances)
	d.MinimumHealthCapacity = applySetting(d.Modes, deployment.PropMinimumHealthCapacity, spec.MinimumHealthCapacity)

	return d, problems
}

func applySetting[T any](modes map[deployment.Property]deployment.Mode, p deployment.Property, s *Setting[T]) *T {
	if s == nil {
		return nil
	}
	if s.Tagged() {
		modes[p] = s.Mode
	}
	v := s.Value
	return &v
}

func convertEnvironment(node yaml.Node) (map[string]string, error) {
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping of names to values", deployment.PropEnvironmentVariables)
	}
	env := make(map[string]string, len(node.Content)/2)
	if err := node.Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: %v", deployment.PropEnvironmentVariables, err)
	}
	return env, nil
}
