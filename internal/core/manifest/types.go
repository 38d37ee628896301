package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/artpar/convoy/internal/core/deployment"
)

// File is the top level of a manifest.
type File struct {
	Builds      []BuildSpec      `yaml:"builds"`
	Deployments []DeploymentSpec `yaml:"deployments"`
}

// BuildSpec declares an image build.
type BuildSpec struct {
	Name     string `yaml:"name"`
	Registry string `yaml:"registry"`
	Version  string `yaml:"version"`
}

// DeploymentSpec declares one Marathon app as written in the manifest.
type DeploymentSpec struct {
	Name        string   `yaml:"name"`
	MarathonURL string   `yaml:"marathon_url"`
	BuildName   string   `yaml:"build_name"`
	ImageName   string   `yaml:"image_name"`
	Command     string   `yaml:"command"`
	Arguments   []string `yaml:"arguments"`

	// Kept as a node so that a non-mapping value is reported as a
	// configuration problem of the deployment rather than a YAML error.
	EnvironmentVariables yaml.Node `yaml:"environment_variables"`

	CPUs                  *Setting[float64] `yaml:"cpus"`
	Memory                *Setting[float64] `yaml:"memory"`
	Instances             *Setting[int]     `yaml:"instances"`
	MinimumHealthCapacity *Setting[float64] `yaml:"minimum_health_capacity"`
}

// =============================================================================
// Setting
// =============================================================================

// Setting is a propagatable value together with its mode.
//
// The tagged form is a mapping:
//
//	cpus: {value: 0.5, mode: override}
//
// A bare scalar is accepted by the parser but leaves Mode unset, which
// validation later rejects.
type Setting[T any] struct {
	Value T
	Mode  deployment.Mode
}

// Tagged reports whether the setting carried a mode.
func (s Setting[T]) Tagged() bool {
	return s.Mode != deployment.ModeUnset
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Setting[T]) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v T
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Setting[T]{Value: v}
		return nil

	case yaml.MappingNode:
		var value *T
		var mode string
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			switch key.Value {
			case "value":
				value = new(T)
				if err := val.Decode(value); err != nil {
					return err
				}
			case "mode":
				if err := val.Decode(&mode); err != nil {
					return err
				}
			default:
				return fmt.Errorf("line %d: field %s not found in setting", key.Line, key.Value)
			}
		}
		if value == nil {
			return fmt.Errorf("line %d: setting has a mode but no value", node.Line)
		}
		*s = Setting[T]{Value: *value, Mode: deployment.Mode(mode)}
		return nil

	default:
		return fmt.Errorf("line %d: setting must be a scalar or a mapping of value and mode", node.Line)
	}
}
