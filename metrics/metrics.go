package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

type Metrics interface {
	SourceName() string
	Labels() []string
	Values() []string
}

// BasicMetrics is a shared accumulator for one pipeline stage. Counters are
// updated atomically so any number of goroutines may report into the same
// instance. Read the exported fields directly only once writers are done;
// use Snapshot otherwise.
type BasicMetrics struct {
	sourceName string
	Iterations uint64
	Successes  uint64
	Failures   uint64
	Bytes      uint64

	mu     sync.Mutex
	timing Timing
}

// Timing summarizes the durations recorded by closed spans.
type Timing struct {
	Count uint64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (t Timing) Mean() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Snapshot is a consistent-enough copy of the counters for reporting.
type Snapshot struct {
	Iterations uint64
	Successes  uint64
	Failures   uint64
	Bytes      uint64
	Timing     Timing
}

func NewBasic(sourceName string) *BasicMetrics {
	return &BasicMetrics{sourceName: sourceName}
}

func (metric *BasicMetrics) SourceName() string {
	return metric.sourceName
}

// Begin counts delta new iterations and starts timing them.
func (metric *BasicMetrics) Begin(delta uint64) Span {
	atomic.AddUint64(&metric.Iterations, delta)
	return Span{metric: metric, start: time.Now(), size: delta}
}

func (metric *BasicMetrics) EndWithSuccess(delta uint64) {
	atomic.AddUint64(&metric.Successes, delta)
}

func (metric *BasicMetrics) EndWithFailure(delta uint64) {
	atomic.AddUint64(&metric.Failures, delta)
}

func (metric *BasicMetrics) AddBytes(n uint64) {
	atomic.AddUint64(&metric.Bytes, n)
}

func (metric *BasicMetrics) observe(d time.Duration) {
	metric.mu.Lock()
	defer metric.mu.Unlock()
	t := &metric.timing
	if t.Count == 0 || d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
	t.Count++
	t.Total += d
}

func (metric *BasicMetrics) Timing() Timing {
	metric.mu.Lock()
	defer metric.mu.Unlock()
	return metric.timing
}

func (metric *BasicMetrics) Snapshot() Snapshot {
	return Snapshot{
		Iterations: atomic.LoadUint64(&metric.Iterations),
		Successes:  atomic.LoadUint64(&metric.Successes),
		Failures:   atomic.LoadUint64(&metric.Failures),
		Bytes:      atomic.LoadUint64(&metric.Bytes),
		Timing:     metric.Timing(),
	}
}

func (metric *BasicMetrics) Labels() []string {
	return []string{"iterations", "successes", "failures", "bytes", "avgt"}
}

func (metric *BasicMetrics) Values() []string {
	s := metric.Snapshot()
	return []string{
		fmt.Sprintf("%v", s.Iterations),
		fmt.Sprintf("%v", s.Successes),
		fmt.Sprintf("%v", s.Failures),
		humanize.IBytes(s.Bytes),
		fmt.Sprintf("%.2fms", float64(s.Timing.Mean())/float64(time.Millisecond)),
	}
}

// Span tracks a unit of work started with Begin. Ending it records the
// elapsed time and settles the iterations as successes or failures.
type Span struct {
	metric *BasicMetrics
	start  time.Time
	size   uint64
}

// Continue adds delta more iterations to a span that is still open.
func (s *Span) Continue(delta uint64) {
	atomic.AddUint64(&s.metric.Iterations, delta)
	s.size += delta
}

func (s *Span) Success(delta uint64) {
	s.metric.observe(time.Since(s.start))
	s.metric.EndWithSuccess(delta)
}

func (s *Span) Failure(delta uint64) {
	s.metric.observe(time.Since(s.start))
	s.metric.EndWithFailure(delta)
}

// Close settles every iteration of the span based on *err. Meant for defer.
func (s *Span) Close(err *error) {
	if err != nil && *err != nil {
		s.Failure(s.size)
	} else {
		s.Success(s.size)
	}
}
