package deployment

import (
	"maps"
	"slices"

	"github.com/artpar/convoy/internal/core/marathon"
)

// =============================================================================
// App Definition Builder
// =============================================================================

// BuildAppDefinition builds the body sent to Marathon for d.
//
// A property is included only if it is set and, on a warm deploy, not
// inherited. The container always runs image on a bridged Docker network.
// This is a pure function; d is not modified.
//
// Example:
//
//	def := BuildAppDefinition(d, "registry.local/web:abc123", DeployWarm)
//	// def.CPUs == nil when cpus is tagged inherit
func BuildAppDefinition(d Deployment, image string, mode DeployMode) marathon.AppDefinition {
	send := func(p Property) bool {
		if !d.IsSet(p) {
			return false
		}
		return mode != DeployWarm || d.Mode(p) != ModeInherit
	}

	def := marathon.AppDefinition{ID: d.Name}

	if send(PropCommand) {
		def.Cmd = d.Command
	}
	if send(PropArguments) {
		def.Args = slices.Clone(d.Arguments)
	}
	if send(PropCPUs) {
		def.CPUs = copyOf(d.CPUs)
	}
	if send(PropMemory) {
		def.Mem = copyOf(d.Memory)
	}
	if send(PropEnvironmentVariables) {
		def.Env = maps.Clone(d.EnvironmentVariables)
	}
	if send(PropInstances) {
		def.Instances = copyOf(d.Instances)
	}
	if send(PropMinimumHealthCapacity) {
		def.UpgradeStrategy = &marathon.UpgradeStrategy{
			MinimumHealthCapacity: *d.MinimumHealthCapacity,
		}
	}
	if image != "" {
		def.Container = marathon.NewDockerContainer(image)
	}

	return def
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}
