package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigurationInvalid is the root of every configuration failure.
// It is raised before any network call is made.
var ErrConfigurationInvalid = errors.New("configuration invalid")

// ConfigError lists every problem found on one configuration entity.
type ConfigError struct {
	Entity   string // "deployment" or "build"
	Name     string
	Problems []string
}

func (e *ConfigError) Error() string {
	subject := e.Entity
	if e.Name != "" {
		subject = fmt.Sprintf("%s '%s'", e.Entity, e.Name)
	}
	return fmt.Sprintf("%s is invalid: %s", subject, strings.Join(e.Problems, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigurationInvalid
}

// NewConfigError creates a ConfigError.
func NewConfigError(entity, name string, problems ...string) *ConfigError {
	return &ConfigError{
		Entity:   entity,
		Name:     name,
		Problems: problems,
	}
}

// Problems accumulates validation messages.
type Problems []string

// Add appends a formatted problem.
func (p *Problems) Add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Err returns nil when no problems were recorded, otherwise a *ConfigError.
func (p Problems) Err(entity, name string) error {
	if len(p) == 0 {
		return nil
	}
	return NewConfigError(entity, name, p...)
}
