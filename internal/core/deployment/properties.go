package deployment

// =============================================================================
// Properties
// =============================================================================

// Property names a configurable field of a Deployment. The value matches the
// manifest key.
type Property string

const (
	PropName                  Property = "name"
	PropMarathonURL           Property = "marathon_url"
	PropBuildName             Property = "build_name"
	PropImageName             Property = "image_name"
	PropCommand               Property = "command"
	PropArguments             Property = "arguments"
	PropEnvironmentVariables  Property = "environment_variables"
	PropCPUs                  Property = "cpus"
	PropMemory                Property = "memory"
	PropInstances             Property = "instances"
	PropMinimumHealthCapacity Property = "minimum_health_capacity"
)

// LockedProperties can be neither inherited nor overridden; they are sent
// whenever they are set.
var LockedProperties = []Property{
	PropName,
	PropMarathonURL,
	PropBuildName,
	PropImageName,
	PropCommand,
	PropArguments,
	PropEnvironmentVariables,
}

// PropagatableProperties must carry a Mode whenever they are set.
var PropagatableProperties = []Property{
	PropCPUs,
	PropMemory,
	PropInstances,
	PropMinimumHealthCapacity,
}

// IsLocked reports whether p is a locked property.
func (p Property) IsLocked() bool {
	for _, locked := range LockedProperties {
		if p == locked {
			return true
		}
	}
	return false
}

// =============================================================================
// Propagation Modes
// =============================================================================

// Mode decides who is authoritative for a property on a warm deploy.
type Mode string

const (
	ModeUnset    Mode = ""
	ModeOverride Mode = "override"
	ModeInherit  Mode = "inherit"
)

// Valid reports whether m is override or inherit.
func (m Mode) Valid() bool {
	return m == ModeOverride || m == ModeInherit
}
