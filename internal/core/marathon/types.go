// Package marathon defines the wire types exchanged with the Marathon
// scheduler's v2 REST API.
//
// This package contains pure types with no I/O. The HTTP binding lives in
// internal/shell/marathon.
package marathon

import "strings"

// =============================================================================
// Container Constants
// =============================================================================

const (
	ContainerTypeDocker = "DOCKER"
	NetworkModeBridge   = "BRIDGE"
)

// EditableAppAttributes are the app keys Marathon accepts back on a PUT.
// A scale operation must resend the full representation restricted to these.
var EditableAppAttributes = []string{
	"cmd", "constraints", "container", "cpus", "env", "executor", "id",
	"instances", "mem", "ports", "uris",
}

// =============================================================================
// App Definition (request body)
// =============================================================================

// AppDefinition is the body of POST /v2/apps/ and PUT /v2/apps/{id}.
// Optional fields are pointers or nil-able collections so that an unset
// value never reaches the scheduler and its current value is kept. Args and
// Env are omitted only when nil; an empty collection clears the app's value.
type AppDefinition struct {
	ID              string            `json:"id"`
	Cmd             string            `json:"cmd,omitempty"`
	Args            []string          `json:"args,omitzero"`
	CPUs            *float64          `json:"cpus,omitempty"`
	Mem             *float64          `json:"mem,omitempty"`
	Env             map[string]string `json:"env,omitzero"`
	Instances       *int              `json:"instances,omitempty"`
	UpgradeStrategy *UpgradeStrategy  `json:"upgradeStrategy,omitempty"`
	Container       *Container        `json:"container,omitempty"`
}

// UpgradeStrategy controls how Marathon rolls out a new app version.
type UpgradeStrategy struct {
	MinimumHealthCapacity float64 `json:"minimumHealthCapacity"`
}

// Container describes the containerizer used to run the app's tasks.
type Container struct {
	Type   string        `json:"type"`
	Docker *DockerConfig `json:"docker,omitempty"`
}

// DockerConfig is the docker section of a container definition.
type DockerConfig struct {
	Image   string `json:"image"`
	Network string `json:"network,omitempty"`
}

// NewDockerContainer returns a bridged Docker container for image.
func NewDockerContainer(image string) *Container {
	return &Container{
		Type: ContainerTypeDocker,
		Docker: &DockerConfig{
			Image:   image,
			Network: NetworkModeBridge,
		},
	}
}

// =============================================================================
// App (response body)
// =============================================================================

// AppResponse is the body of GET /v2/apps/{id}.
type AppResponse struct {
	App App `json:"app"`
}

// AppsResponse is the body of GET /v2/apps.
type AppsResponse struct {
	Apps []App `json:"apps"`
}

// App is the scheduler's view of a running application.
type App struct {
	ID              string            `json:"id"`
	Cmd             string            `json:"cmd,omitempty"`
	Args            []string          `json:"args,omitempty"`
	CPUs            float64           `json:"cpus"`
	Mem             float64           `json:"mem"`
	Instances       int               `json:"instances"`
	Env             map[string]string `json:"env,omitempty"`
	Version         string            `json:"version,omitempty"`
	TasksRunning    int               `json:"tasksRunning"`
	TasksStaged     int               `json:"tasksStaged"`
	Container       *Container        `json:"container,omitempty"`
	UpgradeStrategy *UpgradeStrategy  `json:"upgradeStrategy,omitempty"`
	LastTaskFailure *TaskFailure      `json:"lastTaskFailure,omitempty"`
}

// TaskFailure is the most recent task failure Marathon recorded for an app.
type TaskFailure struct {
	AppID     string `json:"appId"`
	Host      string `json:"host"`
	Message   string `json:"message"`
	State     string `json:"state"`
	TaskID    string `json:"taskId"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DeploymentResult is returned by start and update calls. Only the version
// is needed to correlate later task failures with this rollout.
type DeploymentResult struct {
	DeploymentID string `json:"deploymentId,omitempty"`
	Version      string `json:"version"`
}

// =============================================================================
// Deployments
// =============================================================================

// Deployment is an in-flight rollout as listed by GET /v2/deployments.
type Deployment struct {
	ID           string   `json:"id"`
	Version      string   `json:"version"`
	AffectedApps []string `json:"affectedApps"`
	CurrentStep  int      `json:"currentStep"`
	TotalSteps   int      `json:"totalSteps"`
}

// Affects reports whether the deployment touches the named app.
// Marathon reports app ids with a leading slash.
func (d Deployment) Affects(name string) bool {
	want := AppPath(name)
	for _, app := range d.AffectedApps {
		if app == want {
			return true
		}
	}
	return false
}

// AppPath returns the absolute Marathon id for name.
//
// Example:
//
//	AppPath("web")  // returns "/web"
//	AppPath("/web") // returns "/web"
func AppPath(name string) string {
	return "/" + strings.TrimPrefix(name, "/")
}

// =============================================================================
// Tasks
// =============================================================================

// Task is a single running instance of an app.
type Task struct {
	ID        string `json:"id"`
	AppID     string `json:"appId"`
	Host      string `json:"host"`
	Ports     []int  `json:"ports,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
	StagedAt  string `json:"stagedAt,omitempty"`
	Version   string `json:"version,omitempty"`
}

// TasksResponse is the body of the task listing endpoints.
type TasksResponse struct {
	Tasks []Task `json:"tasks"`
}
