package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recorder"

// QueueStats is the part of the hand-off queue exported as gauges.
type QueueStats interface {
	Size() int
	Capacity() int
	Evicted() uint64
}

// NewCollectors exposes the accumulators as Prometheus metrics that are read
// at scrape time. Every series carries the run id as a constant label.
func NewCollectors(runID string, sources ...*BasicMetrics) []prometheus.Collector {
	var cs []prometheus.Collector
	for _, src := range sources {
		src := src
		labels := prometheus.Labels{"source": src.SourceName(), "run_id": runID}
		cs = append(cs,
			counterFunc("iterations_total", "Items that entered the stage.", labels, func() uint64 {
				return src.Snapshot().Iterations
			}),
			counterFunc("successes_total", "Items the stage completed.", labels, func() uint64 {
				return src.Snapshot().Successes
			}),
			counterFunc("failures_total", "Items the stage dropped or failed.", labels, func() uint64 {
				return src.Snapshot().Failures
			}),
			counterFunc("bytes_total", "Bytes persisted by the stage.", labels, func() uint64 {
				return src.Snapshot().Bytes
			}),
		)
	}
	return cs
}

func NewQueueCollectors(runID string, q QueueStats) []prometheus.Collector {
	labels := prometheus.Labels{"run_id": runID}
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_length",
			Help:        "Items buffered in the hand-off queue (advisory).",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_capacity",
			Help:        "Maximum number of items the hand-off queue holds.",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Capacity()) }),
		counterFunc("queue_evicted_total", "Items evicted by the drop-oldest policy.", labels, q.Evicted),
	}
}

// Register adds all collectors to reg, stopping at the first failure.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func counterFunc(name, help string, labels prometheus.Labels, value func() uint64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, func() float64 { return float64(value()) })
}
