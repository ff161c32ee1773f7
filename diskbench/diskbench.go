// Package diskbench measures how fast frames can be encoded and written to
// disk one after another, without any queue in between.
package diskbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/bilus/recorder/colors"
	"github.com/bilus/recorder/metrics"
	"github.com/bilus/recorder/pipeline/consumer"
	"github.com/bilus/recorder/pipeline/item"
	"github.com/bilus/recorder/pipeline/reporter"
	"github.com/dustin/go-humanize"
	"google.golang.org/api/iterator"
)

var ErrNothingWritten = errors.New("no frame could be written")

type Config struct {
	Count     int
	OutputDir string
	Prefix    string
	Format    string
	Quality   int
}

func DefaultConfig() *Config {
	return &Config{
		Count:     1000,
		OutputDir: "tests_output",
		Prefix:    "img",
		Format:    "jpg",
		Quality:   90,
	}
}

func (c *Config) WithCount(n int) *Config {
	c.Count = n
	return c
}

func (c *Config) WithOutputDir(dir string) *Config {
	c.OutputDir = dir
	return c
}

func (c *Config) WithFormat(format string) *Config {
	c.Format = format
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.Count <= 0 {
		errs = append(errs, fmt.Errorf("bench count must be positive, got %v", c.Count))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("bench output dir is required"))
	}
	if c.Prefix == "" {
		errs = append(errs, errors.New("bench prefix is required"))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("bench quality must be within 1-100, got %v", c.Quality))
	}
	return errors.Join(errs...)
}

// Path names the n-th frame, counting from 1.
func (c Config) Path(n int) string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("%s_%d.%s", c.Prefix, n, c.Format))
}

// ProgressEvery is how often a progress line is logged.
func (c Config) ProgressEvery() int {
	return max(100, c.Count/10)
}

type Result struct {
	Written    int
	Total      time.Duration
	Timing     metrics.Timing
	Throughput float64
	// FileSize is the size of the first written file.
	FileSize int64
	Bytes    uint64
}

// EstimatedBytes extrapolates the first file size to every written frame.
func (r Result) EstimatedBytes() uint64 {
	return uint64(r.FileSize) * uint64(r.Written)
}

// Run generates and persists config.Count frames sequentially, timing every
// write. Failed writes are logged and skipped. The generator may end the run
// early by returning iterator.Done.
func Run(ctx context.Context, config Config, generator item.Generator, persister consumer.Persister, m *metrics.BasicMetrics) (Result, error) {
	if err := config.Validate(); err != nil {
		return Result{}, err
	}
	log.Printf(colors.Info("Writing %v frames to %v"), config.Count, config.OutputDir)

	var result Result
	start := time.Now()
	for n := 1; n <= config.Count; n++ {
		payload, err := generator.Generate(ctx)
		if err == iterator.Done {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf(colors.Error("Error generating frame %v: %v"), n, err)
			continue
		}

		path := config.Path(n)
		span := m.Begin(1)
		size, err := persister.Persist(payload, path, config.Quality)
		span.Close(&err)
		if err != nil {
			log.Printf(colors.Error("Error writing %v: %v"), path, err)
			continue
		}
		m.AddBytes(uint64(size))
		if result.Written == 0 {
			result.FileSize = size
		}
		result.Written++

		if n%config.ProgressEvery() == 0 {
			log.Printf(colors.Consumer("Progress: %v/%v frames"), n, config.Count)
		}
	}
	result.Total = time.Since(start)

	snapshot := m.Snapshot()
	result.Timing = snapshot.Timing
	result.Bytes = snapshot.Bytes
	if result.Total > 0 {
		result.Throughput = float64(result.Written) / result.Total.Seconds()
	}
	if result.Written == 0 {
		return result, ErrNothingWritten
	}
	return result, nil
}

func PrintResult(w io.Writer, r Result) {
	reporter.PrintSettings(w, [][2]string{
		{"frames written", fmt.Sprintf("%v", r.Written)},
		{"total time", r.Total.Round(time.Millisecond).String()},
		{"min write", r.Timing.Min.String()},
		{"mean write", r.Timing.Mean().String()},
		{"max write", r.Timing.Max.String()},
		{"throughput", fmt.Sprintf("%.2f frames/s", r.Throughput)},
		{"first file size", humanize.IBytes(uint64(r.FileSize))},
		{"estimated total", humanize.IBytes(r.EstimatedBytes())},
		{"data written", humanize.IBytes(r.Bytes)},
	})
}
