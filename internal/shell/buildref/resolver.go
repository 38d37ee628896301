// Package buildref resolves the final image name of a build, asking git for
// the current HEAD when the build is versioned by git_head.
package buildref

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/artpar/convoy/internal/core/build"
)

// ErrVersionUnresolved is returned when the git_head version cannot be read.
var ErrVersionUnresolved = errors.New("cannot resolve git_head version")

// VersionFunc returns the version used for builds tagged git_head.
type VersionFunc func(ctx context.Context) (string, error)

// GitHead returns a VersionFunc running `git rev-parse --short HEAD` in dir.
// An empty dir uses the working directory.
func GitHead(dir string) VersionFunc {
	return func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, "git", "rev-parse", "--short", "HEAD")
		cmd.Dir = dir
		out, err := cmd.Output()
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
				return "", fmt.Errorf("git rev-parse: %s", strings.TrimSpace(string(exitErr.Stderr)))
			}
			return "", fmt.Errorf("git rev-parse: %w", err)
		}
		return strings.TrimSpace(string(out)), nil
	}
}

// Resolver turns builds into image names. The git_head version is looked up
// at most once per Resolver.
type Resolver struct {
	version VersionFunc

	once    sync.Once
	head    string
	headErr error
}

// NewResolver creates a Resolver. A nil version uses GitHead("").
func NewResolver(version VersionFunc) *Resolver {
	if version == nil {
		version = GitHead("")
	}
	return &Resolver{version: version}
}

// ImageName returns the final image name of b.
func (r *Resolver) ImageName(ctx context.Context, b build.Build) (string, error) {
	version := b.Version
	if version == "" || b.UsesGitHead() {
		head, err := r.gitHead(ctx)
		if err != nil {
			return "", fmt.Errorf("build '%s': %w: %w", b.Name, ErrVersionUnresolved, err)
		}
		version = head
	}
	return b.ImageName(version)
}

func (r *Resolver) gitHead(ctx context.Context) (string, error) {
	r.once.Do(func() {
		r.head, r.headErr = r.version(ctx)
		if r.headErr == nil && r.head == "" {
			r.headErr = fmt.Errorf("empty version")
		}
	})
	return r.head, r.headErr
}
