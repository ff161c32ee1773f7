package async

import (
	"context"
	"sync"
	"time"

	"github.com/bilus/recorder/metrics"
	check "gopkg.in/check.v1"
)

// Suite carries the per-test plumbing every pipeline stage needs. Embed it
// and call SetUpTest from the embedding suite.
type Suite struct {
	Wg      sync.WaitGroup
	Ctx     context.Context
	Cancel  context.CancelFunc
	Metrics *metrics.BasicMetrics
}

func (s *Suite) SetUpTest(c *check.C) {
	s.Wg = sync.WaitGroup{}
	s.Metrics = metrics.NewBasic("test")
	s.Ctx, s.Cancel = context.WithCancel(context.Background())
}

func (s *Suite) TearDownTest(c *check.C) {
	s.Cancel()
	c.Assert(s.Metrics.Iterations, check.Equals, s.Metrics.Successes+s.Metrics.Failures)
}

func (s *Suite) WithTimeout(d time.Duration) context.CancelFunc {
	s.Ctx, s.Cancel = context.WithTimeout(context.Background(), d)
	return s.Cancel
}

// WaitFor waits for the suite's wait group, failing the test after d.
func (s *Suite) WaitFor(c *check.C, d time.Duration) {
	barrierCh := make(chan struct{})
	go func() {
		s.Wg.Wait()
		close(barrierCh)
	}()
	select {
	case <-barrierCh:
	case <-time.After(d):
		c.Fatalf("Timeout waiting for goroutines after %v", d)
	}
}
