package metrics_test

import (
	"github.com/bilus/recorder/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "gopkg.in/check.v1"
)

type PromSuite struct{}

var _ = Suite(&PromSuite{})

type fakeQueue struct {
	size, capacity int
	evicted        uint64
}

func (q fakeQueue) Size() int       { return q.size }
func (q fakeQueue) Capacity() int   { return q.capacity }
func (q fakeQueue) Evicted() uint64 { return q.evicted }

func (s *PromSuite) TestCollectorsReadLiveValues(c *C) {
	m := metrics.NewBasic("consumer")
	cs := metrics.NewCollectors("run-1", m)
	c.Assert(cs, HasLen, 4)

	m.Begin(3)
	m.EndWithSuccess(2)
	m.EndWithFailure(1)
	m.AddBytes(512)

	c.Assert(testutil.ToFloat64(cs[0]), Equals, float64(3))
	c.Assert(testutil.ToFloat64(cs[1]), Equals, float64(2))
	c.Assert(testutil.ToFloat64(cs[2]), Equals, float64(1))
	c.Assert(testutil.ToFloat64(cs[3]), Equals, float64(512))
}

func (s *PromSuite) TestQueueCollectors(c *C) {
	cs := metrics.NewQueueCollectors("run-1", fakeQueue{size: 7, capacity: 10, evicted: 2})
	c.Assert(testutil.ToFloat64(cs[0]), Equals, float64(7))
	c.Assert(testutil.ToFloat64(cs[1]), Equals, float64(10))
	c.Assert(testutil.ToFloat64(cs[2]), Equals, float64(2))
}

func (s *PromSuite) TestRegisterSeveralSources(c *C) {
	reg := prometheus.NewRegistry()
	cs := metrics.NewCollectors("run-1", metrics.NewBasic("producer"), metrics.NewBasic("consumer"))
	cs = append(cs, metrics.NewQueueCollectors("run-1", fakeQueue{capacity: 4})...)
	c.Assert(metrics.Register(reg, cs...), IsNil)

	n, err := testutil.GatherAndCount(reg)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 11)
}

func (s *PromSuite) TestRegisterTwiceFails(c *C) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBasic("producer")
	c.Assert(metrics.Register(reg, metrics.NewCollectors("run-1", m)...), IsNil)
	c.Assert(metrics.Register(reg, metrics.NewCollectors("run-1", m)...), NotNil)
}
