package deployment

import (
	"github.com/distribution/reference"

	"github.com/artpar/convoy/internal/core/validation"
)

// DefaultInstances is used when a deployment does not declare instances.
const DefaultInstances = 1

// =============================================================================
// Deployment
// =============================================================================

// Deployment is the declared configuration of one Marathon app.
//
// Optional numeric properties are pointers: nil means "not set" and the
// property is never sent to Marathon. Once validated a Deployment is treated
// as immutable; per-run state belongs to the reconciliation engine.
type Deployment struct {
	Name                  string            `json:"name" validate:"required,app_id"`
	MarathonURL           string            `json:"marathon_url" validate:"required,url"`
	BuildName             string            `json:"build_name,omitempty"`
	ImageName             string            `json:"image_name,omitempty"`
	Command               string            `json:"command,omitempty"`
	Arguments             []string          `json:"arguments,omitempty"`
	EnvironmentVariables  map[string]string `json:"environment_variables,omitempty"`
	CPUs                  *float64          `json:"cpus,omitempty" validate:"omitempty,gt=0"`
	Memory                *float64          `json:"memory,omitempty" validate:"omitempty,gt=0"`
	Instances             *int              `json:"instances,omitempty" validate:"omitempty,min=1"`
	MinimumHealthCapacity *float64          `json:"minimum_health_capacity,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Modes holds the propagation mode of each propagatable property.
	Modes map[Property]Mode `json:"modes,omitempty"`
}

// Mode returns the propagation mode declared for p.
func (d Deployment) Mode(p Property) Mode {
	return d.Modes[p]
}

// IsSet reports whether property p carries a value.
func (d Deployment) IsSet(p Property) bool {
	switch p {
	case PropName:
		return d.Name != ""
	case PropMarathonURL:
		return d.MarathonURL != ""
	case PropBuildName:
		return d.BuildName != ""
	case PropImageName:
		return d.ImageName != ""
	case PropCommand:
		return d.Command != ""
	case PropArguments:
		return d.Arguments != nil
	case PropEnvironmentVariables:
		return d.EnvironmentVariables != nil
	case PropCPUs:
		return d.CPUs != nil
	case PropMemory:
		return d.Memory != nil
	case PropInstances:
		return d.Instances != nil
	case PropMinimumHealthCapacity:
		return d.MinimumHealthCapacity != nil
	default:
		return false
	}
}

// Value returns the value of property p, or nil when it is not set.
// Pointer properties are dereferenced.
func (d Deployment) Value(p Property) any {
	if !d.IsSet(p) {
		return nil
	}
	switch p {
	case PropName:
		return d.Name
	case PropMarathonURL:
		return d.MarathonURL
	case PropBuildName:
		return d.BuildName
	case PropImageName:
		return d.ImageName
	case PropCommand:
		return d.Command
	case PropArguments:
		return d.Arguments
	case PropEnvironmentVariables:
		return d.EnvironmentVariables
	case PropCPUs:
		return *d.CPUs
	case PropMemory:
		return *d.Memory
	case PropInstances:
		return *d.Instances
	case PropMinimumHealthCapacity:
		return *d.MinimumHealthCapacity
	default:
		return nil
	}
}

// InheritedProperties returns the set properties whose mode is inherit, in
// declaration order.
func (d Deployment) InheritedProperties() []Property {
	var inherited []Property
	for _, p := range PropagatableProperties {
		if d.IsSet(p) && d.Mode(p) == ModeInherit {
			inherited = append(inherited, p)
		}
	}
	return inherited
}

// =============================================================================
// Defaults and Validation
// =============================================================================

// FillDefaults sets instances to DefaultInstances with mode inherit when the
// deployment leaves it unset.
func FillDefaults(d *Deployment) {
	if d.Instances != nil {
		return
	}
	instances := DefaultInstances
	d.Instances = &instances
	if d.Modes == nil {
		d.Modes = make(map[Property]Mode)
	}
	d.Modes[PropInstances] = ModeInherit
}

// BuildLookup reports whether a build with the given name exists.
type BuildLookup func(name string) bool

// Validate checks the deployment declaration and returns a
// *validation.ConfigError listing every problem found. hasBuild may be nil
// when no builds are declared.
//
// Rules:
//   - name and marathon_url are required
//   - exactly one of image_name or build_name is set
//   - build_name refers to a declared build
//   - image_name is a valid image reference
//   - every set propagatable property carries mode override or inherit
//   - numeric properties are within range
func Validate(d Deployment, hasBuild BuildLookup) error {
	problems := validation.StructProblems(d)

	switch {
	case d.BuildName == "" && d.ImageName == "":
		problems.Add("You must set one of image_name or build_name")
	case d.BuildName != "" && d.ImageName != "":
		problems.Add("You must set only one of image_name or build_name")
	}

	if d.BuildName != "" && (hasBuild == nil || !hasBuild(d.BuildName)) {
		problems.Add("Build name '%s' doesn't match a build in the manifest", d.BuildName)
	}

	if d.ImageName != "" {
		if _, err := reference.ParseNormalizedNamed(d.ImageName); err != nil {
			problems.Add("image_name '%s' is not a valid image reference: %v", d.ImageName, err)
		}
	}

	for _, p := range PropagatableProperties {
		if !d.IsSet(p) {
			continue
		}
		if mode := d.Mode(p); !mode.Valid() {
			problems.Add("Property '%s' of deployment '%s' specified behaviour as '%s', which is not one of override or inherit",
				p, d.Name, mode)
		}
	}

	return problems.Err("deployment", d.Name)
}
