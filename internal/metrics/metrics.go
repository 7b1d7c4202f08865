// Package metrics records per-run ingestion and analysis counters.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/wirechart/internal/analysis"
	"firestige.xyz/wirechart/internal/capture"
)

// Record outcomes.
const (
	OutcomeAccepted              = "accepted"
	OutcomeStructuralReject      = "structural_reject"
	OutcomeBenignSkip            = "benign_skip"
	OutcomeClassificationFailure = "classification_failure"
)

// Recorder owns the collectors of one run. Each Recorder has its own
// registry so runs never share state.
type Recorder struct {
	registry *prometheus.Registry

	// RecordsTotal counts decoder records by ingestion outcome
	RecordsTotal *prometheus.CounterVec
	// RejectsTotal counts rejected records by cause
	RejectsTotal *prometheus.CounterVec
	// SubmessagesTotal counts submessages by classified type
	SubmessagesTotal *prometheus.CounterVec
	// SubmessageBytesTotal sums submessage lengths by classified type
	SubmessageBytesTotal *prometheus.CounterVec
	// Topics is the number of topics in the statistics table
	Topics prometheus.Gauge
	// Edges is the number of writer to reader edges in the topology graph
	Edges prometheus.Gauge
	// StageSeconds is the wall time of each processing stage
	StageSeconds *prometheus.GaugeVec
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirechart_records_total",
				Help: "Total number of decoder records by ingestion outcome",
			},
			[]string{"outcome"},
		),
		RejectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirechart_rejects_total",
				Help: "Total number of rejected decoder records by cause",
			},
			[]string{"cause"},
		),
		SubmessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirechart_submessages_total",
				Help: "Total number of submessages by classified type",
			},
			[]string{"topic", "type"},
		),
		SubmessageBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirechart_submessage_bytes_total",
				Help: "Total submessage length in bytes by classified type",
			},
			[]string{"topic", "type"},
		),
		Topics: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wirechart_topics",
				Help: "Number of topics in the statistics table",
			},
		),
		Edges: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wirechart_topology_edges",
				Help: "Number of writer to reader edges in the topology graph",
			},
		),
		StageSeconds: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wirechart_stage_seconds",
				Help: "Wall time of each processing stage in seconds",
			},
			[]string{"stage"},
		),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveIngest adds the counts of an ingestion report.
func (r *Recorder) ObserveIngest(rep *capture.Report) {
	r.RecordsTotal.WithLabelValues(OutcomeAccepted).Add(float64(rep.Accepted))
	r.RecordsTotal.WithLabelValues(OutcomeStructuralReject).Add(float64(rep.StructuralRejectCount()))
	r.RecordsTotal.WithLabelValues(OutcomeBenignSkip).Add(float64(rep.BenignSkipCount()))
	r.RecordsTotal.WithLabelValues(OutcomeClassificationFailure).Add(float64(rep.ClassificationFailures))
	for cause, n := range rep.StructuralRejects {
		r.RejectsTotal.WithLabelValues(cause).Add(float64(n))
	}
	for cause, n := range rep.BenignSkips {
		r.RejectsTotal.WithLabelValues(cause).Add(float64(n))
	}
}

// ObserveResult adds the statistics table and graph size of an analysis.
// Back-filled zero rows are skipped.
func (r *Recorder) ObserveResult(res *analysis.Result) {
	topics := make(map[string]struct{})
	for _, row := range res.Statistics {
		topics[row.Topic] = struct{}{}
		if row.Count == 0 {
			continue
		}
		r.SubmessagesTotal.WithLabelValues(row.Topic, row.Type).Add(float64(row.Count))
		r.SubmessageBytesTotal.WithLabelValues(row.Topic, row.Type).Add(float64(row.Length))
	}
	r.Topics.Set(float64(len(topics)))
	if res.Graph != nil {
		r.Edges.Set(float64(len(res.Graph.Elements())))
	}
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, seconds float64) {
	r.StageSeconds.WithLabelValues(stage).Set(seconds)
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
