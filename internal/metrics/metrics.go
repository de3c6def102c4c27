package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cnclabs/transe/internal/models/transe"
)

// Recorder exports training progress as Prometheus metrics on its own
// registry. It implements transe.Observer.
type Recorder struct {
	registry *prometheus.Registry

	epoch        prometheus.Gauge
	epochLoss    prometheus.Gauge
	runningLoss  prometheus.Gauge
	epochSeconds prometheus.Histogram
	batches      prometheus.Counter
	pairs        prometheus.Counter
	updates      prometheus.Counter
}

// NewRecorder registers the training metrics
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.epoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transe_epoch",
		Help: "Index of the last finished epoch",
	})
	r.epochLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transe_epoch_loss",
		Help: "Running loss reported at the end of the last epoch",
	})
	r.runningLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transe_running_loss",
		Help: "Running loss after the last committed batch",
	})
	r.epochSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transe_epoch_duration_seconds",
		Help:    "Wall time per epoch",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
	r.batches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transe_batches_total",
		Help: "Committed batches",
	})
	r.pairs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transe_pairs_total",
		Help: "Positive/negative pairs scored",
	})
	r.updates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transe_updates_total",
		Help: "Pairs with a positive hinge loss that produced an update",
	})

	r.registry.MustRegister(r.epoch, r.epochLoss, r.runningLoss, r.epochSeconds, r.batches, r.pairs, r.updates)
	return r
}

// OnBatch implements transe.Observer
func (r *Recorder) OnBatch(s transe.BatchStats) {
	r.batches.Inc()
	r.pairs.Add(float64(s.Pairs))
	r.updates.Add(float64(s.Updates))
	r.runningLoss.Set(s.RunningLoss)
}

// OnEpoch implements transe.Observer
func (r *Recorder) OnEpoch(s transe.EpochStats) {
	r.epoch.Set(float64(s.Epoch))
	r.epochLoss.Set(s.Loss)
	r.epochSeconds.Observe(s.Duration.Seconds())
}

// WriteTextfile dumps the metrics in the text exposition format for the
// node_exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
