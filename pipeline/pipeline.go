package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bilus/recorder/colors"
	"github.com/bilus/recorder/metrics"
	"github.com/bilus/recorder/pipeline/consumer"
	"github.com/bilus/recorder/pipeline/item"
	"github.com/bilus/recorder/pipeline/producer"
	"github.com/bilus/recorder/pipeline/queue"
	"github.com/bilus/recorder/pipeline/reporter"
)

// MaxConsumers caps the number of consumer goroutines.
const MaxConsumers = 7

var ErrInvalidConfig = errors.New("invalid pipeline config")

type Config struct {
	Queue     queue.Config    `yaml:"queue"`
	Producer  producer.Config `yaml:"producer"`
	Consumer  consumer.Config `yaml:"consumer"`
	Consumers int             `yaml:"consumers"`
}

func DefaultConfig() *Config {
	return &Config{
		Queue:     *queue.DefaultConfig(),
		Producer:  *producer.DefaultConfig(),
		Consumer:  *consumer.DefaultConfig(),
		Consumers: 4,
	}
}

func (c *Config) WithConsumers(n int) *Config {
	c.Consumers = n
	return c
}

// Validate reports every problem at once, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.Consumers < 1 || c.Consumers > MaxConsumers {
		errs = append(errs, fmt.Errorf("consumers must be within 1-%v, got %v", MaxConsumers, c.Consumers))
	}
	if c.Queue.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("queue capacity must be positive, got %v", c.Queue.Capacity))
	}
	if c.Queue.Policy != queue.Blocking && c.Queue.Policy != queue.DropOldest {
		errs = append(errs, fmt.Errorf("unknown queue policy %v", c.Queue.Policy))
	}
	if err := c.Producer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Consumer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

type PipelineMetrics struct {
	Producer *metrics.BasicMetrics
	Consumer *metrics.BasicMetrics
}

func NewMetrics() PipelineMetrics {
	return PipelineMetrics{
		Producer: metrics.NewBasic("producer"),
		Consumer: metrics.NewBasic("consumer"),
	}
}

func (m PipelineMetrics) All() []metrics.Metrics {
	return []metrics.Metrics{m.Producer, m.Consumer}
}

// Pipeline owns the hand-off queue shared by one producer and the consumers.
type Pipeline struct {
	config  Config
	queue   *queue.Queue
	metrics PipelineMetrics
	runID   string
}

// New validates config and builds the queue. Nothing is started, so a
// configuration error leaves no goroutine behind.
func New(config Config, metrics PipelineMetrics, runID string) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		config:  config,
		queue:   queue.New(config.Queue),
		metrics: metrics,
		runID:   runID,
	}, nil
}

// Queue exposes the hand-off queue for telemetry.
func (p *Pipeline) Queue() *queue.Queue {
	return p.queue
}

// Run starts the consumers and the producer, waits for the producer to stop,
// finishes the queue and waits for every consumer to drain it. Cancelling ctx
// only cuts the production phase short; queued items are still written.
func (p *Pipeline) Run(ctx context.Context, generator item.Generator, persister consumer.Persister) reporter.Summary {
	start := time.Now()
	producerWg := sync.WaitGroup{}
	consumersWg := sync.WaitGroup{}

	for id := 1; id <= p.config.Consumers; id++ {
		consumer.Go(p.config.Consumer, id, p.queue, persister, p.metrics.Consumer, &consumersWg)
	}
	producer.Go(ctx, p.config.Producer, generator, p.queue, p.metrics.Producer, &producerWg)

	producerWg.Wait()
	log.Printf(colors.Queue("Production stopped, draining %v queued items..."), p.queue.Size())
	p.queue.Finish()
	consumersWg.Wait()
	log.Println(colors.Done("Pipeline completed"))

	return p.summarize(time.Since(start))
}

func (p *Pipeline) summarize(elapsed time.Duration) reporter.Summary {
	prod := p.metrics.Producer.Snapshot()
	cons := p.metrics.Consumer.Snapshot()
	evicted := p.queue.Evicted()
	return reporter.Summary{
		RunID:     p.runID,
		Duration:  elapsed,
		Generated: prod.Iterations,
		Enqueued:  prod.Successes,
		Rejected:  prod.Failures,
		Evicted:   evicted,
		Dropped:   prod.Failures + evicted,
		Written:   cons.Successes,
		Failed:    cons.Failures,
		Bytes:     cons.Bytes,
		QueueLeft: p.queue.Size(),
	}
}
