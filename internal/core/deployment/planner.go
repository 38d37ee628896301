package deployment

import "github.com/artpar/convoy/internal/core/validation"

// =============================================================================
// Deploy Planning
// =============================================================================

// DeployMode distinguishes a first launch from an update.
type DeployMode string

const (
	// DeployCold launches an app Marathon does not know yet.
	DeployCold DeployMode = "cold"
	// DeployWarm updates an app that is already running.
	DeployWarm DeployMode = "warm"
)

// Plan is the outcome of deciding how to deploy.
type Plan struct {
	Mode DeployMode

	// Suppressed lists the inherited properties left out of a warm deploy
	// so that Marathon keeps its current values.
	Suppressed []Property
}

// PlanDeploy decides between a cold and a warm deploy.
//
// This is a pure function that encapsulates the branch taken after asking
// Marathon whether the app exists:
//
//   - running → warm deploy, inherited properties suppressed
//   - not running → cold deploy; cpus and memory must both be set because
//     Marathon has no existing values to fall back on
//
// Example:
//
//	plan, err := PlanDeploy(d, running)
//	if err != nil {
//	    return err // *validation.ConfigError
//	}
func PlanDeploy(d Deployment, running bool) (Plan, error) {
	if running {
		return Plan{
			Mode:       DeployWarm,
			Suppressed: d.InheritedProperties(),
		}, nil
	}

	if err := ValidateColdDeploy(d); err != nil {
		return Plan{}, err
	}
	return Plan{Mode: DeployCold}, nil
}

// ValidateColdDeploy lists the properties a first launch cannot do without.
func ValidateColdDeploy(d Deployment) error {
	var problems validation.Problems
	if d.CPUs == nil {
		problems.Add("You must specify the parameter '%s'", PropCPUs)
	}
	if d.Memory == nil {
		problems.Add("You must specify the parameter '%s'", PropMemory)
	}
	return problems.Err("deployment", d.Name)
}
