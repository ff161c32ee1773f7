package consumer_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bilus/recorder/pipeline/consumer"
	"github.com/bilus/recorder/pipeline/item"
	"github.com/bilus/recorder/pipeline/queue"
	"github.com/bilus/recorder/test/async"
	"github.com/bilus/recorder/test/fixtures"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type MySuite struct {
	Queue  *queue.Queue
	Config *consumer.Config
	async.Suite
}

var _ = Suite(&MySuite{})

func (s *MySuite) SetUpTest(c *C) {
	s.Queue = queue.New(*queue.DefaultConfig().WithCapacity(16))
	s.Config = consumer.DefaultConfig().WithOutputDir("out").WithFormat("bmp")
	s.Suite.SetUpTest(c)
}

func (s *MySuite) push(c *C, seqs ...uint64) {
	for _, seq := range seqs {
		c.Assert(s.Queue.TryPush(item.New(fixtures.Frame(int(seq)), seq)), Equals, true)
	}
}

func (s *MySuite) TestFileName(c *C) {
	c.Assert(consumer.FileName("img", 42, 3, "jpg"), Equals, "img_00000042_t3.jpg")
	c.Assert(s.Config.Path(7, 1), Equals, filepath.Join("out", "img_00000007_t1.bmp"))
}

func (s *MySuite) TestFileNamesAreUniqueAcrossConsumers(c *C) {
	seen := map[string]bool{}
	for seq := uint64(0); seq < 500; seq++ {
		for id := 1; id <= 7; id++ {
			name := consumer.FileName("img", seq, id, "jpg")
			c.Assert(seen[name], Equals, false, Commentf("duplicate %s", name))
			seen[name] = true
		}
	}
}

func (s *MySuite) TestValidate(c *C) {
	c.Assert(consumer.DefaultConfig().Validate(), IsNil)
	err := consumer.DefaultConfig().WithOutputDir("").WithQuality(0).Validate()
	c.Assert(err, ErrorMatches, "(?s)consumer output_dir is required.*consumer quality must be within 1-100.*")
}

func (s *MySuite) TestDrainsUntilFinished(c *C) {
	p := &fixtures.CollectingPersister{Size: 10}
	s.push(c, 0, 1, 2)
	s.Queue.Finish()
	written := consumer.Run(*s.Config, 1, s.Queue, p, s.Metrics)
	c.Assert(written, Equals, uint64(3))
	c.Assert(p.Paths(), DeepEquals, []string{
		filepath.Join("out", "img_00000000_t1.bmp"),
		filepath.Join("out", "img_00000001_t1.bmp"),
		filepath.Join("out", "img_00000002_t1.bmp"),
	})
	c.Assert(s.Metrics.Successes, Equals, uint64(3))
	c.Assert(s.Metrics.Bytes, Equals, uint64(30))
}

func (s *MySuite) TestWaitsForItemsUntilFinish(c *C) {
	p := &fixtures.CollectingPersister{Size: 1}
	consumer.Go(*s.Config, 2, s.Queue, p, s.Metrics, &s.Wg)
	time.Sleep(time.Millisecond * 10)
	s.push(c, 5)
	time.Sleep(time.Millisecond * 10)
	s.push(c, 6)
	s.Queue.Finish()
	s.WaitFor(c, time.Second)
	c.Assert(p.Paths(), HasLen, 2)
	c.Assert(s.Metrics.Successes, Equals, uint64(2))
}

func (s *MySuite) TestFailuresDoNotStopTheConsumer(c *C) {
	p := &fixtures.FailingPersister{
		FailIf:              func(path string) bool { return strings.Contains(path, "00000001") },
		CollectingPersister: fixtures.CollectingPersister{Size: 4},
	}
	s.push(c, 0, 1, 2, 3)
	s.Queue.Finish()
	written := consumer.Run(*s.Config, 1, s.Queue, p, s.Metrics)
	c.Assert(written, Equals, uint64(3))
	c.Assert(s.Metrics.Iterations, Equals, uint64(4))
	c.Assert(s.Metrics.Successes, Equals, uint64(3))
	c.Assert(s.Metrics.Failures, Equals, uint64(1))
	c.Assert(s.Metrics.Bytes, Equals, uint64(12))
}

func (s *MySuite) TestManyConsumersShareTheWork(c *C) {
	p := &fixtures.CollectingPersister{Size: 1, Latency: time.Millisecond}
	for id := 1; id <= 4; id++ {
		consumer.Go(*s.Config, id, s.Queue, p, s.Metrics, &s.Wg)
	}
	for seq := uint64(0); seq < 40; seq++ {
		s.push(c, seq)
	}
	s.Queue.Finish()
	s.WaitFor(c, time.Second*5)

	paths := p.Paths()
	c.Assert(paths, HasLen, 40)
	seqs := map[string]bool{}
	for _, path := range paths {
		var seq uint64
		var id int
		_, err := fmt.Sscanf(filepath.Base(path), "img_%08d_t%d.bmp", &seq, &id)
		c.Assert(err, IsNil)
		key := fmt.Sprint(seq)
		c.Assert(seqs[key], Equals, false)
		seqs[key] = true
	}
	c.Assert(s.Metrics.Successes, Equals, uint64(40))
}
