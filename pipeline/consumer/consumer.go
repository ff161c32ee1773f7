package consumer

import (
	"errors"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"sync"

	"github.com/bilus/recorder/colors"
	"github.com/bilus/recorder/metrics"
	"github.com/bilus/recorder/pipeline/item"
)

type Config struct {
	OutputDir string `yaml:"output_dir"`
	Prefix    string `yaml:"prefix"`
	Format    string `yaml:"format"`
	Quality   int    `yaml:"quality"`
	// ProgressEvery logs a progress line after that many items written by
	// one consumer. Zero disables progress lines.
	ProgressEvery int `yaml:"progress_every"`
}

func DefaultConfig() *Config {
	return &Config{
		OutputDir:     "output",
		Prefix:        "img",
		Format:        "jpg",
		Quality:       90,
		ProgressEvery: 100,
	}
}

func (c *Config) WithOutputDir(dir string) *Config {
	c.OutputDir = dir
	return c
}

func (c *Config) WithFormat(format string) *Config {
	c.Format = format
	return c
}

func (c *Config) WithQuality(quality int) *Config {
	c.Quality = quality
	return c
}

func (c *Config) WithProgressEvery(n int) *Config {
	c.ProgressEvery = n
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("consumer output_dir is required"))
	}
	if c.Prefix == "" {
		errs = append(errs, errors.New("consumer prefix is required"))
	}
	if c.Format == "" {
		errs = append(errs, errors.New("consumer format is required"))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("consumer quality must be within 1-100, got %v", c.Quality))
	}
	if c.ProgressEvery < 0 {
		errs = append(errs, fmt.Errorf("consumer progress_every must not be negative, got %v", c.ProgressEvery))
	}
	return errors.Join(errs...)
}

// FileName names the output of item seq handled by consumer consumerID. The
// consumer id is part of the name so concurrent consumers never collide.
func FileName(prefix string, seq uint64, consumerID int, ext string) string {
	return fmt.Sprintf("%s_%08d_t%d.%s", prefix, seq, consumerID, ext)
}

func (c Config) Path(seq uint64, consumerID int) string {
	return filepath.Join(c.OutputDir, FileName(c.Prefix, seq, consumerID, c.Format))
}

// Popper is the consumer's view of the hand-off queue.
type Popper interface {
	Pop() (item.Item, bool)
}

// Persister encodes a payload and stores it at path, returning the number
// of bytes persisted. It must be safe for concurrent calls with distinct
// paths and must not modify payload.
type Persister interface {
	Persist(payload image.Image, path string, quality int) (int64, error)
}

// Go runs a consumer in a new goroutine tracked by wg.
func Go(config Config, id int, q Popper, persister Persister, metrics *metrics.BasicMetrics, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		Run(config, id, q, persister, metrics)
	}()
}

// Run drains q until it is finished and empty. A failed item is logged and
// counted; it never stops the consumer. Returns the number of items written.
func Run(config Config, id int, q Popper, persister Persister, metrics *metrics.BasicMetrics) uint64 {
	log.Printf(colors.Consumer("Starting consumer #%v"), id)
	var written uint64
	for {
		it, ok := q.Pop()
		if !ok {
			break
		}
		if consumeItem(config, id, it, persister, metrics) {
			written++
			if config.ProgressEvery > 0 && written%uint64(config.ProgressEvery) == 0 {
				log.Printf(colors.Consumer("Consumer #%v has written %v items"), id, written)
			}
		}
	}
	log.Printf(colors.Done("Consumer #%v finished. Total: %v items"), id, written)
	return written
}

func consumeItem(config Config, id int, it item.Item, persister Persister, metrics *metrics.BasicMetrics) bool {
	path := config.Path(it.Seq, id)
	span := metrics.Begin(1)
	size, err := persister.Persist(it.Payload, path, config.Quality)
	span.Close(&err)
	if err != nil {
		log.Printf(colors.Error("Error writing %v: %v"), path, err)
		return false
	}
	metrics.AddBytes(uint64(size))
	return true
}
