// Package reconcile drives deployments against Marathon.
// This is part of the Imperative Shell - it performs the I/O around the
// pure planning, payload and convergence logic in core/deployment.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/convoy/internal/core/build"
	"github.com/artpar/convoy/internal/core/deployment"
	"github.com/artpar/convoy/internal/core/marathon"
	"github.com/artpar/convoy/internal/core/validation"
	"github.com/artpar/convoy/internal/shell/logging"
	client "github.com/artpar/convoy/internal/shell/marathon"
)

// =============================================================================
// Collaborators
// =============================================================================

// Orchestrator is the subset of the Marathon client the engine needs.
type Orchestrator interface {
	Find(ctx context.Context, id string) *client.Response
	Start(ctx context.Context, id string, def marathon.AppDefinition) *client.Response
	Update(ctx context.Context, id string, def marathon.AppDefinition) *client.Response
	FindDeploymentAffecting(ctx context.Context, name string) (*marathon.Deployment, *client.Response)
}

// Connector returns the orchestrator for a Marathon URL.
type Connector func(marathonURL string) (Orchestrator, error)

// PoolConnector adapts a client pool to a Connector.
func PoolConnector(pool *client.Pool) Connector {
	return func(marathonURL string) (Orchestrator, error) {
		c, err := pool.Get(marathonURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// BuildSource looks up declared builds.
type BuildSource interface {
	Build(name string) (build.Build, error)
}

// ImageResolver turns a build into its final image name.
type ImageResolver interface {
	ImageName(ctx context.Context, b build.Build) (string, error)
}

// Recorder receives deploy metrics.
type Recorder interface {
	RecordDeploy(deployment, mode, outcome string, elapsed time.Duration)
	RecordPoll(deployment string)
}

// =============================================================================
// Engine
// =============================================================================

// Config holds polling parameters.
type Config struct {
	PollInterval time.Duration
	MaxRetries   int
}

// DefaultConfig returns a one second interval and ten retries.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		MaxRetries:   deployment.DefaultMaxRetries,
	}
}

// Engine reconciles deployments. It is safe for concurrent use; every call
// to Perform owns its own session state.
type Engine struct {
	connect  Connector
	builds   BuildSource
	images   ImageResolver
	config   Config
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleep replaces the wait between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithClock replaces the clock used to time deploys.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder sends metrics to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine. builds and images may be nil when no
// deployment refers to a build.
func NewEngine(connect Connector, builds BuildSource, images ImageResolver, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = deployment.DefaultMaxRetries
	}
	e := &Engine{
		connect:  connect,
		builds:   builds,
		images:   images,
		config:   cfg,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome describes a finished deploy.
type Outcome struct {
	Deployment   string
	RunID        string
	Mode         deployment.DeployMode
	Image        string
	Version      string
	State        deployment.PollState
	Polls        int
	TaskFailures int
	Elapsed      time.Duration
}

// run is the session state of one Perform call.
type run struct {
	d       deployment.Deployment
	orch    Orchestrator
	logger  *slog.Logger
	outcome *Outcome

	running    *marathon.App
	runningSet bool
}

// Perform deploys d and waits for Marathon to converge.
//
// The flow:
//  1. Resolve the image (image_name or the linked build)
//  2. Ask Marathon whether the app exists; warm deploy if it does
//  3. Validate a cold deploy before any call that changes state
//  4. Start or update, then poll until no deployment affects the app
//
// Fatal conditions are logged at FATAL and returned; the returned Outcome is
// always non-nil.
func (e *Engine) Perform(ctx context.Context, d deployment.Deployment) (*Outcome, error) {
	started := e.now()
	outcome := &Outcome{
		Deployment: d.Name,
		RunID:      uuid.NewString(),
		State:      deployment.PollInProgress,
	}
	logger := e.logger.With("deployment", d.Name, "run_id", outcome.RunID)

	err := e.perform(ctx, d, logger, outcome)

	outcome.Elapsed = e.now().Sub(started)
	e.recorder.RecordDeploy(d.Name, string(outcome.Mode), outcomeLabel(err), outcome.Elapsed)
	return outcome, err
}

func (e *Engine) perform(ctx context.Context, d deployment.Deployment, logger *slog.Logger, outcome *Outcome) error {
	orch, err := e.connect(d.MarathonURL)
	if err != nil {
		logging.Fatal(ctx, logger, "Cannot connect to Marathon", "marathon_url", d.MarathonURL, "error", err)
		return &DeployError{Deployment: d.Name, Body: err.Error(), Err: ErrUnreachable}
	}
	r := &run{d: d, orch: orch, logger: logger, outcome: outcome}

	image, err := e.resolveImage(ctx, d)
	if err != nil {
		logging.Fatal(ctx, logger, "Cannot resolve image", "error", err)
		return err
	}
	outcome.Image = image

	plan, err := deployment.PlanDeploy(d, r.isRunning(ctx))
	if err != nil {
		logging.Fatal(ctx, logger, "Deployment configuration is invalid", "error", err)
		return err
	}
	outcome.Mode = plan.Mode

	def := deployment.BuildAppDefinition(d, image, plan.Mode)
	resp := r.deploy(ctx, plan, def)
	logger.Debug("Entire deployment response", "status", resp.StatusCode, "body", string(resp.Body))

	if resp.Conflict() {
		logging.Fatal(ctx, logger, "Deployment did not start; another deployment is in progress",
			"status", resp.StatusCode, "body", resp.ErrorMessage())
		return &DeployError{Deployment: d.Name, StatusCode: resp.StatusCode, Body: resp.ErrorMessage(), Err: ErrConflict}
	}
	if !resp.Success() {
		logging.Fatal(ctx, logger, "Deployment was rejected by Marathon",
			"status", resp.StatusCode, "body", resp.ErrorMessage())
		return &DeployError{Deployment: d.Name, StatusCode: resp.StatusCode, Body: resp.ErrorMessage(), Err: ErrDeployRejected}
	}

	var result marathon.DeploymentResult
	if err := resp.Decode(&result); err != nil {
		logger.Warn("Cannot read deployment version; task failures will not be detected", "error", err)
	}
	outcome.Version = result.Version

	logger.Info("Polling for deployment state", "mode", plan.Mode, "version", result.Version)
	state, err := e.poll(ctx, r)
	outcome.State = state.State
	if err != nil {
		logging.Fatal(ctx, logger, "Polling aborted", "error", err, "polls", outcome.Polls)
		return fmt.Errorf("deployment '%s': poll: %w", d.Name, err)
	}

	return finish(ctx, logger, d.Name, state, resp)
}

// finish maps the terminal polling state to the result of Perform.
func finish(ctx context.Context, logger *slog.Logger, name string, state deployment.Convergence, last *client.Response) error {
	switch state.State {
	case deployment.PollComplete:
		logger.Info("App is running on Marathon; deployment complete", "retries", state.Retries)
		return nil
	case deployment.PollRetryExceeded:
		logging.Fatal(ctx, logger, "App failed to start on Marathon; cancelling deploy",
			"retries", state.Retries, "status", last.StatusCode, "body", string(last.Body))
		return &DeployError{Deployment: name, StatusCode: last.StatusCode, Err: ErrRetryExceeded}
	default:
		logging.Fatal(ctx, logger, "App is in unknown state on Marathon",
			"state", state.State, "status", last.StatusCode, "body", string(last.Body))
		return &DeployError{Deployment: name, StatusCode: last.StatusCode, Body: string(last.Body), Err: ErrUnknownState}
	}
}

func (e *Engine) resolveImage(ctx context.Context, d deployment.Deployment) (string, error) {
	if d.ImageName != "" {
		return d.ImageName, nil
	}
	if d.BuildName == "" {
		return "", nil
	}
	if e.builds == nil || e.images == nil {
		return "", fmt.Errorf("deployment '%s': no build source for build '%s'", d.Name, d.BuildName)
	}
	b, err := e.builds.Build(d.BuildName)
	if err != nil {
		return "", fmt.Errorf("deployment '%s': %w", d.Name, err)
	}
	return e.images.ImageName(ctx, b)
}

// poll runs the convergence state machine until it is terminal.
func (e *Engine) poll(ctx context.Context, r *run) (deployment.Convergence, error) {
	r.logger.Debug("Entering deploy state polling")
	c := deployment.NewConvergence(e.config.MaxRetries)
	for {
		inFlight := r.deploymentInFlight(ctx)
		r.outcome.Polls++
		e.recorder.RecordPoll(r.d.Name)

		if inFlight {
			if r.hasTaskFailures(ctx) {
				r.outcome.TaskFailures++
				r.logger.Warn("Task failures have occurred during the deploy attempt - this deploy may not succeed",
					"retries", c.Retries)
			} else {
				r.logger.Debug("Deploy still in progress with no task failures; sleeping and retrying",
					"retries", c.Retries)
			}
		}

		c = c.Observe(inFlight)
		if c.Terminal() {
			return c, nil
		}
		if err := e.sleep(ctx, e.config.PollInterval); err != nil {
			return c, err
		}
	}
}

// =============================================================================
// Session
// =============================================================================

// isRunning reports whether Marathon knows the app. The answer is fetched
// once per run.
func (r *run) isRunning(ctx context.Context) bool {
	if r.runningSet {
		return r.running != nil
	}
	r.runningSet = true

	resp := r.orch.Find(ctx, r.d.Name)
	if !resp.Success() {
		r.logger.Debug("App is not running in Marathon", "status", resp.StatusCode)
		return false
	}
	var app marathon.AppResponse
	if err := resp.Decode(&app); err != nil {
		r.logger.Warn("Cannot read running Marathon configuration", "error", err)
		app.App.ID = marathon.AppPath(r.d.Name)
	}
	r.running = &app.App
	r.logger.Debug("Retrieved running Marathon configuration", "version", app.App.Version, "instances", app.App.Instances)
	return true
}

func (r *run) deploy(ctx context.Context, plan deployment.Plan, def marathon.AppDefinition) *client.Response {
	if plan.Mode == deployment.DeployWarm {
		r.logger.Debug("App is running in Marathon; performing a warm deploy")
		for _, p := range plan.Suppressed {
			r.logger.Debug("Property is specified as inherit; not supplying to Marathon", "property", p)
		}
		return r.orch.Update(ctx, r.d.Name, def)
	}
	r.logger.Debug("App is not running in Marathon; performing a cold deploy")
	return r.orch.Start(ctx, r.d.Name, def)
}

// deploymentInFlight reports whether a Marathon deployment still affects the
// app. A failed listing counts as in flight.
func (r *run) deploymentInFlight(ctx context.Context) bool {
	found, resp := r.orch.FindDeploymentAffecting(ctx, r.d.Name)
	if !resp.Success() {
		r.logger.Warn("Cannot list Marathon deployments; assuming still in progress",
			"status", resp.StatusCode, "error", resp.ErrorMessage())
		return true
	}
	return found != nil
}

func (r *run) hasTaskFailures(ctx context.Context) bool {
	if r.outcome.Version == "" {
		return false
	}
	resp := r.orch.Find(ctx, r.d.Name)
	if !resp.Success() {
		return false
	}
	var app marathon.AppResponse
	if err := resp.Decode(&app); err != nil {
		return false
	}
	return deployment.TaskFailedForVersion(app.App.LastTaskFailure, r.outcome.Version)
}

// =============================================================================
// Batches
// =============================================================================

// PerformAll deploys ds. With parallelism of one or less they run in order
// and the first failure stops the batch. Otherwise up to parallelism run at
// once, every deployment is attempted and the failures are joined.
func (e *Engine) PerformAll(ctx context.Context, ds []deployment.Deployment, parallelism int) ([]*Outcome, error) {
	if parallelism <= 1 {
		outcomes := make([]*Outcome, 0, len(ds))
		for _, d := range ds {
			outcome, err := e.Perform(ctx, d)
			outcomes = append(outcomes, outcome)
			if err != nil {
				return outcomes, err
			}
		}
		return outcomes, nil
	}

	outcomes := make([]*Outcome, len(ds))
	errs := make([]error, len(ds))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, d := range ds {
		g.Go(func() error {
			outcomes[i], errs[i] = e.Perform(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, errors.Join(errs...)
}

// =============================================================================
// Helpers
// =============================================================================

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return string(deployment.PollComplete)
	case errors.Is(err, validation.ErrConfigurationInvalid):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDeployRejected):
		return "rejected"
	case errors.Is(err, ErrRetryExceeded):
		return string(deployment.PollRetryExceeded)
	case errors.Is(err, ErrUnknownState):
		return "unknown"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordDeploy(string, string, string, time.Duration) {}
func (nopRecorder) RecordPoll(string)                                  {}
