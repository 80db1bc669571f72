// Package metrics records what a deployment run did and optionally pushes it
// to a Prometheus Pushgateway once the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "crossrealm_deployer"

// Stages reported by the stage gauge, in run order.
var Stages = []string{"not_started", "deploying", "wiring", "verifying", "done", "aborted"}

// Recorder holds the metrics of one run in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	transactions  *prometheus.CounterVec
	gasUsed       *prometheus.CounterVec
	txDuration    *prometheus.HistogramVec
	verifications *prometheus.CounterVec
	stage         *prometheus.GaugeVec
	finished      prometheus.Gauge
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Mined transactions by kind and contract",
			},
			[]string{"kind", "contract"},
		),
		gasUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gas_used_total",
				Help:      "Gas used by mined transactions per contract",
			},
			[]string{"contract"},
		),
		txDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Time from sending a transaction until its receipt",
				Buckets:   []float64{1, 3, 5, 10, 20, 40, 80, 160},
			},
			[]string{"kind"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Explorer verification attempts by result",
			},
			[]string{"contract", "result"},
		),
		stage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage",
				Help:      "1 for the stage the run is in",
			},
			[]string{"stage"},
		),
		finished: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordTransaction counts one mined deployment or call.
func (r *Recorder) RecordTransaction(kind, contract string, gasUsed uint64, took time.Duration) {
	r.transactions.WithLabelValues(kind, contract).Inc()
	r.gasUsed.WithLabelValues(contract).Add(float64(gasUsed))
	r.txDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// RecordVerification counts one verification attempt; a non-nil err is a failure.
func (r *Recorder) RecordVerification(contract string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.verifications.WithLabelValues(contract, result).Inc()
}

// SetStage marks stage as current and every other stage as inactive.
func (r *Recorder) SetStage(stage string) {
	for _, s := range Stages {
		value := 0.0
		if s == stage {
			value = 1
		}
		r.stage.WithLabelValues(s).Set(value)
	}
	if stage == "done" || stage == "aborted" {
		r.finished.SetToCurrentTime()
	}
}

// Push sends the registry to a Pushgateway, grouped by run id.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}

	return nil
}
