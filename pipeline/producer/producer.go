package producer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bilus/recorder/colors"
	"github.com/bilus/recorder/metrics"
	"github.com/bilus/recorder/pipeline/item"
	"google.golang.org/api/iterator"
)

type Config struct {
	// Rate is the target number of items per second.
	Rate     int           `yaml:"rate"`
	Duration time.Duration `yaml:"duration"`
}

func DefaultConfig() *Config {
	return &Config{
		Rate:     50,
		Duration: time.Second * 300,
	}
}

func (c *Config) WithRate(rate int) *Config {
	c.Rate = rate
	return c
}

func (c *Config) WithDuration(d time.Duration) *Config {
	c.Duration = d
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.Rate <= 0 {
		errs = append(errs, fmt.Errorf("producer rate must be positive, got %v", c.Rate))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("producer duration must be positive, got %v", c.Duration))
	}
	return errors.Join(errs...)
}

// Period is the time budget of a single tick.
func (c Config) Period() time.Duration {
	return time.Second / time.Duration(c.Rate)
}

// Pusher is the producer's view of the hand-off queue.
type Pusher interface {
	TryPush(it item.Item) bool
	Size() int
}

// Go runs the producer loop in a new goroutine tracked by wg. The producer
// never finishes the queue; whoever waits on wg does that.
func Go(ctx context.Context, config Config, generator item.Generator, q Pusher, metrics *metrics.BasicMetrics, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		Run(ctx, config, generator, q, metrics)
	}()
}

// Run generates one item per tick until config.Duration has elapsed, ctx is
// cancelled or the generator is exhausted. Generated items are counted as
// iterations, accepted pushes as successes and rejected ones as failures.
// It returns the number of items generated.
func Run(ctx context.Context, config Config, generator item.Generator, q Pusher, metrics *metrics.BasicMetrics) uint64 {
	period := config.Period()
	start := time.Now()
	deadline := start.Add(config.Duration)
	log.Printf(colors.Producer("Starting producer at %v items/s for %v"), config.Rate, config.Duration)

	var seq uint64
	for time.Now().Before(deadline) {
		tickStart := time.Now()

		payload, err := generator.Generate(ctx)
		switch {
		case err == iterator.Done:
			log.Printf(colors.Producer("Exiting producer: generator exhausted after %v items"), seq)
			return seq
		case ctx.Err() != nil:
			log.Printf(colors.Producer("Exiting producer: %v"), ctx.Err())
			return seq
		case err != nil:
			log.Printf(colors.Error("Error generating item: %v"), err)
		default:
			metrics.Begin(1)
			if q.TryPush(item.New(payload, seq)) {
				metrics.EndWithSuccess(1)
			} else {
				metrics.EndWithFailure(1)
			}
			seq++
			if seq%uint64(config.Rate) == 0 {
				reportRate(seq, time.Since(start), q.Size())
			}
		}

		if elapsed := time.Since(tickStart); elapsed < period {
			if !sleep(ctx, period-elapsed) {
				log.Printf(colors.Producer("Exiting producer: %v"), ctx.Err())
				return seq
			}
		}
	}
	log.Printf(colors.Producer("Producer done: %v items in %v"), seq, time.Since(start).Round(time.Millisecond))
	return seq
}

func reportRate(generated uint64, elapsed time.Duration, queued int) {
	if elapsed <= 0 {
		return
	}
	rate := float64(generated) / elapsed.Seconds()
	log.Printf(colors.Producer("Generating: %.2f items/s (queue: %v)"), rate, queued)
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
