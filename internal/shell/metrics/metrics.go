// Package metrics records deploy outcomes as Prometheus metrics and writes
// them to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects metrics for one convoy invocation on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	deploys  *prometheus.CounterVec
	polls    *prometheus.CounterVec
	duration *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with every metric registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_deploys_total",
			Help: "Deploys attempted, by deployment, deploy mode and outcome",
		}, []string{"deployment", "mode", "outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_poll_ticks_total",
			Help: "Convergence polls issued against Marathon",
		}, []string{"deployment"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "convoy_deploy_duration_seconds",
			Help: "Wall time of the last deploy of each deployment",
		}, []string{"deployment"}),
	}
	r.registry.MustRegister(r.deploys, r.polls, r.duration)
	return r
}

// RecordDeploy counts one finished deploy and stores its duration.
func (r *Recorder) RecordDeploy(deployment, mode, outcome string, elapsed time.Duration) {
	r.deploys.WithLabelValues(deployment, mode, outcome).Inc()
	r.duration.WithLabelValues(deployment).Set(elapsed.Seconds())
}

// RecordPoll counts one convergence poll.
func (r *Recorder) RecordPoll(deployment string) {
	r.polls.WithLabelValues(deployment).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
