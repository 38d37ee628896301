// Package build describes container image builds referenced by deployments
// and derives their final image names.
//
// Building and pushing images happens outside this tool. A Build only knows
// how its image is named so that a deployment can point Marathon at it.
package build

import (
	"fmt"

	"github.com/distribution/reference"

	"github.com/artpar/convoy/internal/core/validation"
)

// VersionGitHead tags the image with the short hash of the current git HEAD.
const VersionGitHead = "git_head"

// Build is a named image produced outside convoy.
type Build struct {
	Name     string `json:"name" validate:"required"`
	Registry string `json:"registry,omitempty"`
	Version  string `json:"version,omitempty"`
}

// FillDefaults sets the version to VersionGitHead when none was declared.
func (b *Build) FillDefaults() {
	if b.Version == "" {
		b.Version = VersionGitHead
	}
}

// UsesGitHead reports whether the version is resolved from git at deploy time.
func (b Build) UsesGitHead() bool {
	return b.Version == VersionGitHead
}

// Repository returns the image repository without a tag.
//
// Example:
//
//	Build{Name: "web"}.Repository()                              // "web"
//	Build{Name: "web", Registry: "registry.local:5000"}.Repository() // "registry.local:5000/web"
func (b Build) Repository() string {
	if b.Registry == "" {
		return b.Name
	}
	return b.Registry + "/" + b.Name
}

// ImageName returns the fully qualified image name tagged with version.
func (b Build) ImageName(version string) (string, error) {
	named, err := reference.ParseNormalizedNamed(b.Repository())
	if err != nil {
		return "", fmt.Errorf("build '%s': invalid repository '%s': %w", b.Name, b.Repository(), err)
	}
	tagged, err := reference.WithTag(named, version)
	if err != nil {
		return "", fmt.Errorf("build '%s': invalid tag '%s': %w", b.Name, version, err)
	}
	return reference.FamiliarString(tagged), nil
}

// Validate checks the build declaration. It does not resolve git_head.
func (b Build) Validate() error {
	problems := validation.StructProblems(b)
	if b.Name == "" {
		return problems.Err("build", b.Name)
	}

	named, err := reference.ParseNormalizedNamed(b.Repository())
	if err != nil {
		problems.Add("'%s' is not a valid image repository: %v", b.Repository(), err)
	} else if b.Version != "" && !b.UsesGitHead() {
		if _, err := reference.WithTag(named, b.Version); err != nil {
			problems.Add("version '%s' is not a valid image tag", b.Version)
		}
	}
	return problems.Err("build", b.Name)
}
