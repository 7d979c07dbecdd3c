package launcher

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// Tracker holds the lifecycle state of the current instance and mirrors it
// into Prometheus metrics.
type Tracker struct {
	mu       sync.RWMutex
	state    domain.InstanceState
	exitCode int
	restarts int

	stateGauge prometheus.Gauge
	exitGauge  prometheus.Gauge
	restartCtr prometheus.Counter
	log        logrus.FieldLogger
}

// NewTracker registers the instance metrics with reg.
func NewTracker(reg prometheus.Registerer, log logrus.FieldLogger) *Tracker {
	t := &Tracker{
		state: domain.StateBuilt,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lighthouse",
			Name:      "instance_state",
			Help:      "Lifecycle state of the app instance: 0 built, 1 starting, 2 launched, 3 serving, 4 terminated.",
		}),
		exitGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lighthouse",
			Name:      "instance_last_exit_code",
			Help:      "Exit code of the last terminated app process.",
		}),
		restartCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "instance_restarts_total",
			Help:      "Number of times the app process was restarted.",
		}),
		log: log,
	}
	if reg != nil {
		reg.MustRegister(t.stateGauge, t.exitGauge, t.restartCtr)
	}
	return t
}

// Reset begins a fresh instance lifecycle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = domain.StateBuilt
	t.stateGauge.Set(float64(domain.StateBuilt.Ordinal()))
}

// Transition moves to next if the state machine allows it.
func (t *Tracker) Transition(next domain.InstanceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.state.Transition(next)
	if err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{"from": t.state, "to": s}).Debug("instance state")
	t.state = s
	t.stateGauge.Set(float64(s.Ordinal()))
	return nil
}

// Terminate records the exit code and moves to terminated.
func (t *Tracker) Terminate(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exitCode = code
	t.exitGauge.Set(float64(code))
	if t.state != domain.StateTerminated {
		t.state = domain.StateTerminated
		t.stateGauge.Set(float64(domain.StateTerminated.Ordinal()))
	}
}

// Restarted counts one restart.
func (t *Tracker) Restarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restarts++
	t.restartCtr.Inc()
}

// State returns the current lifecycle state.
func (t *Tracker) State() domain.InstanceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot reports state, last exit code and restart count.
func (t *Tracker) Snapshot() (domain.InstanceState, int, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.exitCode, t.restarts
}
