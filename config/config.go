package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bilus/recorder/imaging"
	"github.com/bilus/recorder/pipeline"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Pipeline            pipeline.Config `yaml:"pipeline"`
	Frame               FrameConfig     `yaml:"frame"`
	Metrics             MetricsConfig   `yaml:"metrics"`
	Report              ReportConfig    `yaml:"report"`
	ShutdownGracePeriod time.Duration   `yaml:"shutdown_grace_period"`
}

type FrameConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Seed   uint64 `yaml:"seed"`
}

type MetricsConfig struct {
	// Addr enables the /metrics and /healthz endpoints when not empty.
	Addr string `yaml:"addr"`
}

type ReportConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file, fills in missing values and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Parse builds the configuration of a subcommand: the file named by -config
// (if any) is read first and flags given on the command line override it.
func Parse(name string, args []string) (*Config, error) {
	probe := flag.NewFlagSet(name, flag.ExitOnError)
	path := probe.String("config", "", "Path to YAML configuration file")
	Default().BindFlags(probe)
	if err := probe.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *path != "" {
		var err error
		if cfg, err = read(*path); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.String("config", *path, "Path to YAML configuration file")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers command-line flags writing straight into c. Current
// values of c become the flag defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	p := &c.Pipeline
	fs.IntVar(&p.Producer.Rate, "fps", p.Producer.Rate, "Target frames per second")
	fs.DurationVar(&p.Producer.Duration, "time", p.Producer.Duration, "Run duration")
	fs.IntVar(&p.Consumers, "writers", p.Consumers, fmt.Sprintf("Number of writer goroutines (1-%v)", pipeline.MaxConsumers))
	fs.StringVar(&p.Consumer.OutputDir, "dir", p.Consumer.OutputDir, "Output directory")
	fs.StringVar(&p.Consumer.Prefix, "prefix", p.Consumer.Prefix, "Output file name prefix")
	fs.StringVar(&p.Consumer.Format, "format", p.Consumer.Format, "Image format: "+strings.Join(imaging.Formats, ", "))
	fs.IntVar(&p.Consumer.Quality, "quality", p.Consumer.Quality, "JPEG quality (1-100)")
	fs.IntVar(&p.Queue.Capacity, "capacity", p.Queue.Capacity, "Queue capacity in frames")
	fs.TextVar(&p.Queue.Policy, "policy", p.Queue.Policy, "Overflow policy: block or drop_oldest")
	fs.IntVar(&c.Frame.Width, "width", c.Frame.Width, "Frame width in pixels")
	fs.IntVar(&c.Frame.Height, "height", c.Frame.Height, "Frame height in pixels")
	fs.Uint64Var(&c.Frame.Seed, "seed", c.Frame.Seed, "Noise generator seed")
	fs.StringVar(&c.Metrics.Addr, "metrics-addr", c.Metrics.Addr, "Serve /metrics and /healthz on this address")
	fs.DurationVar(&c.Report.Interval, "report-interval", c.Report.Interval, "Metrics table interval, 0 disables")
}

func (c *Config) applyDefaults() {
	def := pipeline.DefaultConfig()
	p := &c.Pipeline
	if p.Queue.Capacity == 0 {
		p.Queue.Capacity = def.Queue.Capacity
	}
	if p.Producer.Rate == 0 {
		p.Producer.Rate = def.Producer.Rate
	}
	if p.Producer.Duration == 0 {
		p.Producer.Duration = def.Producer.Duration
	}
	if p.Consumers == 0 {
		p.Consumers = def.Consumers
	}
	if p.Consumer.OutputDir == "" {
		p.Consumer.OutputDir = def.Consumer.OutputDir
	}
	if p.Consumer.Prefix == "" {
		p.Consumer.Prefix = def.Consumer.Prefix
	}
	if p.Consumer.Format == "" {
		p.Consumer.Format = def.Consumer.Format
	}
	if p.Consumer.Quality == 0 {
		p.Consumer.Quality = def.Consumer.Quality
	}
	if p.Consumer.ProgressEvery == 0 {
		p.Consumer.ProgressEvery = def.Consumer.ProgressEvery
	}
	if c.Frame.Width == 0 {
		c.Frame.Width = 1920
	}
	if c.Frame.Height == 0 {
		c.Frame.Height = 1280
	}
	if c.Report.Interval == 0 {
		c.Report.Interval = time.Second * 5
	}
	if c.ShutdownGracePeriod == 0 {
		c.ShutdownGracePeriod = time.Second * 30
	}
}

// Validate normalizes the image format and checks every section, joining
// all problems into one error wrapping pipeline.ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		errs = append(errs, fmt.Errorf("frame dimensions must be positive, got %vx%v", c.Frame.Width, c.Frame.Height))
	}
	if format, err := imaging.NormalizeFormat(c.Pipeline.Consumer.Format); err != nil {
		errs = append(errs, err)
	} else {
		c.Pipeline.Consumer.Format = format
	}
	if c.Report.Interval < 0 {
		errs = append(errs, fmt.Errorf("report interval must not be negative, got %v", c.Report.Interval))
	}
	if c.ShutdownGracePeriod < 0 {
		errs = append(errs, fmt.Errorf("shutdown grace period must not be negative, got %v", c.ShutdownGracePeriod))
	}
	if len(errs) > 0 {
		if err := c.Pipeline.Validate(); err != nil {
			errs = append(errs, err)
		}
		return fmt.Errorf("%w: %w", pipeline.ErrInvalidConfig, errors.Join(errs...))
	}
	return c.Pipeline.Validate()
}

// FrameBytes is the in-memory size of one frame.
func (c Config) FrameBytes() uint64 {
	return imaging.FrameBytes(c.Frame.Width, c.Frame.Height)
}

// MemoryCeiling bounds the memory held by frames: a full queue plus one
// frame in the hands of every consumer and the producer.
func (c Config) MemoryCeiling() uint64 {
	frames := uint64(c.Pipeline.Queue.Capacity + c.Pipeline.Consumers + 1)
	return frames * c.FrameBytes()
}

// Settings lists the values printed before a run.
func (c Config) Settings() [][2]string {
	p := c.Pipeline
	return [][2]string{
		{"resolution", fmt.Sprintf("%vx%v", c.Frame.Width, c.Frame.Height)},
		{"target rate", fmt.Sprintf("%v frames/s", p.Producer.Rate)},
		{"duration", p.Producer.Duration.String()},
		{"writers", fmt.Sprintf("%v", p.Consumers)},
		{"output", fmt.Sprintf("%s/%s_*.%s", p.Consumer.OutputDir, p.Consumer.Prefix, p.Consumer.Format)},
		{"queue", fmt.Sprintf("%v frames, %v", p.Queue.Capacity, p.Queue.Policy)},
		{"frame size", humanize.IBytes(c.FrameBytes())},
		{"memory ceiling", humanize.IBytes(c.MemoryCeiling())},
	}
}
