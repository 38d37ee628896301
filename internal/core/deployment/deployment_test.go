package deployment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/convoy/internal/core/validation"
)

// =============================================================================
// Test Helpers
// =============================================================================

func ptr[T any](v T) *T {
	return &v
}

func validDeployment() Deployment {
	return Deployment{
		Name:        "web",
		MarathonURL: "http://x",
		ImageName:   "repo/web:1",
		CPUs:        ptr(0.5),
		Memory:      ptr(256.0),
		Modes: map[Property]Mode{
			PropCPUs:   ModeOverride,
			PropMemory: ModeOverride,
		},
	}
}

func noBuilds(string) bool { return false }

func buildsNamed(names ...string) BuildLookup {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

// =============================================================================
// Property Tests
// =============================================================================

func TestProperty_IsLocked(t *testing.T) {
	for _, p := range LockedProperties {
		assert.True(t, p.IsLocked(), p)
	}
	for _, p := range PropagatableProperties {
		assert.False(t, p.IsLocked(), p)
	}
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, ModeOverride.Valid())
	assert.True(t, ModeInherit.Valid())
	assert.False(t, ModeUnset.Valid())
	assert.False(t, Mode("replace").Valid())
}

func TestDeployment_IsSet(t *testing.T) {
	d := Deployment{Name: "web", CPUs: ptr(0.0)}

	assert.True(t, d.IsSet(PropName))
	assert.True(t, d.IsSet(PropCPUs))
	assert.False(t, d.IsSet(PropMemory))
	assert.False(t, d.IsSet(PropArguments))
	assert.False(t, d.IsSet(Property("bogus")))
}

func TestDeployment_InheritedProperties(t *testing.T) {
	d := validDeployment()
	d.Modes[PropMemory] = ModeInherit
	d.Modes[PropMinimumHealthCapacity] = ModeInherit // not set, ignored

	assert.Equal(t, []Property{PropMemory}, d.InheritedProperties())
}

// =============================================================================
// FillDefaults Tests
// =============================================================================

func TestFillDefaults_InstancesUnset(t *testing.T) {
	d := Deployment{Name: "web"}
	FillDefaults(&d)

	require.NotNil(t, d.Instances)
	assert.Equal(t, 1, *d.Instances)
	assert.Equal(t, ModeInherit, d.Mode(PropInstances))
}

func TestFillDefaults_InstancesSet(t *testing.T) {
	d := Deployment{
		Name:      "web",
		Instances: ptr(3),
		Modes:     map[Property]Mode{PropInstances: ModeOverride},
	}
	FillDefaults(&d)

	assert.Equal(t, 3, *d.Instances)
	assert.Equal(t, ModeOverride, d.Mode(PropInstances))
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_Valid(t *testing.T) {
	d := validDeployment()
	FillDefaults(&d)

	assert.NoError(t, Validate(d, noBuilds))
}

func TestValidate_ValidWithBuild(t *testing.T) {
	d := validDeployment()
	d.ImageName = ""
	d.BuildName = "web"

	assert.NoError(t, Validate(d, buildsNamed("web")))
}

func TestValidate_NeitherImageNorBuild(t *testing.T) {
	d := validDeployment()
	d.ImageName = ""

	err := Validate(d, noBuilds)

	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrConfigurationInvalid))
	assert.Contains(t, err.Error(), "You must set one of image_name or build_name")
}

func TestValidate_BothImageAndBuild(t *testing.T) {
	d := validDeployment()
	d.BuildName = "web"

	err := Validate(d, buildsNamed("web"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "You must set only one of image_name or build_name")
}

func TestValidate_UnknownBuild(t *testing.T) {
	d := validDeployment()
	d.ImageName = ""
	d.BuildName = "api"

	err := Validate(d, buildsNamed("web"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Build name 'api' doesn't match a build in the manifest")
}

func TestValidate_NilBuildLookup(t *testing.T) {
	d := validDeployment()
	d.ImageName = ""
	d.BuildName = "web"

	assert.Error(t, Validate(d, nil))
}

func TestValidate_MissingMarathonURL(t *testing.T) {
	d := validDeployment()
	d.MarathonURL = ""

	err := Validate(d, noBuilds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "You must specify marathon_url")
}

func TestValidate_InvalidImageName(t *testing.T) {
	d := validDeployment()
	d.ImageName = "Repo/Web:1"

	err := Validate(d, noBuilds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "image_name 'Repo/Web:1' is not a valid image reference")
}

func TestValidate_UntaggedPropertyNamesPropertyAndDeployment(t *testing.T) {
	for _, p := range PropagatableProperties {
		t.Run(string(p), func(t *testing.T) {
			d := Deployment{
				Name:                  "web",
				MarathonURL:           "http://x",
				ImageName:             "repo/web:1",
				CPUs:                  ptr(0.5),
				Memory:                ptr(256.0),
				Instances:             ptr(2),
				MinimumHealthCapacity: ptr(0.5),
				Modes: map[Property]Mode{
					PropCPUs:                  ModeOverride,
					PropMemory:                ModeOverride,
					PropInstances:             ModeOverride,
					PropMinimumHealthCapacity: ModeOverride,
				},
			}
			delete(d.Modes, p)

			err := Validate(d, noBuilds)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "Property '"+string(p)+"'")
			assert.Contains(t, err.Error(), "deployment 'web'")
		})
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	d := validDeployment()
	d.Modes[PropCPUs] = Mode("merge")

	err := Validate(d, noBuilds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "specified behaviour as 'merge'")
}

func TestValidate_Ranges(t *testing.T) {
	d := validDeployment()
	d.CPUs = ptr(-1.0)
	d.Instances = ptr(0)
	d.MinimumHealthCapacity = ptr(2.0)
	d.Modes[PropInstances] = ModeOverride
	d.Modes[PropMinimumHealthCapacity] = ModeOverride

	err := Validate(d, noBuilds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpus must be greater than 0")
	assert.Contains(t, err.Error(), "instances must be at least 1")
	assert.Contains(t, err.Error(), "minimum_health_capacity must be at most 1")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	err := Validate(Deployment{Name: "web"}, noBuilds)

	var cfgErr *validation.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "web", cfgErr.Name)
	assert.Len(t, cfgErr.Problems, 2)
}

func TestDeployment_Value(t *testing.T) {
	d := validDeployment()

	assert.Equal(t, "web", d.Value(PropName))
	assert.Equal(t, 0.5, d.Value(PropCPUs))
	assert.Equal(t, 256.0, d.Value(PropMemory))
	assert.Nil(t, d.Value(PropInstances))
	assert.Nil(t, d.Value(PropBuildName))
}
