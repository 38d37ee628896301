// Package deployment provides the deployment record and the pure decisions
// of the reconciliation engine.
//
// All functions in this package are pure (no I/O, no side effects). The
// imperative shell (internal/shell/reconcile) queries Marathon, feeds the
// answers into these functions and executes what they return.
//
// # Concepts
//
//   - Deployment: a validated, immutable description of one Marathon app.
//   - Propagation mode: every propagatable property is either ModeOverride
//     (convoy is authoritative, always sent) or ModeInherit (Marathon is
//     authoritative once the app exists, omitted on warm deploys).
//   - Plan: cold deploy (app absent, full resources required) or warm deploy
//     (app running, inherited properties suppressed).
//   - Convergence: the polling state machine that waits for Marathon to
//     report no in-flight deployment affecting the app.
//
// # Usage
//
//	plan, err := deployment.PlanDeploy(d, running)
//	if err != nil {
//	    return err // cold deploy without cpus/memory
//	}
//	def := deployment.BuildAppDefinition(d, image, plan.Mode)
//
//	conv := deployment.NewConvergence(deployment.DefaultMaxRetries)
//	for !conv.Terminal() {
//	    conv = conv.Observe(inFlight)
//	}
package deployment
