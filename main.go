package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bilus/recorder/colors"
	"github.com/bilus/recorder/config"
	"github.com/bilus/recorder/diskbench"
	"github.com/bilus/recorder/imaging"
	"github.com/bilus/recorder/metrics"
	"github.com/bilus/recorder/pipeline/reporter"
	"github.com/bilus/recorder/pipeline/runner"
)

func main() {
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Usage = printUsage
	flag.Parse()
	if *noColor {
		colors.Disable()
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := args[0]
	var err error

	switch cmd {
	case "run":
		err = runCommand(args[1:])
	case "validate":
		err = validateCommand(args[1:])
	case "bench":
		err = benchCommand(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf(colors.Error("recorder %s: %v"), cmd, err)
	}
}

func runCommand(args []string) error {
	cfg, err := config.Parse("run", args)
	if err != nil {
		return err
	}

	ctx := runner.SetupTermination(context.Background())
	_, err = runner.Run(ctx, cfg, os.Stdout)
	return err
}

func validateCommand(args []string) error {
	cfg, err := config.Parse("validate", args)
	if err != nil {
		return err
	}
	reporter.PrintSettings(os.Stdout, cfg.Settings())
	fmt.Println(colors.Done("config looks good"))
	return nil
}

func benchCommand(args []string) error {
	bench := diskbench.DefaultConfig()
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	fs.IntVar(&bench.Count, "count", bench.Count, "Number of frames to write")
	fs.StringVar(&bench.OutputDir, "dir", bench.OutputDir, "Output directory")
	fs.StringVar(&bench.Prefix, "prefix", bench.Prefix, "Output file name prefix")
	fs.StringVar(&bench.Format, "format", bench.Format, "Image format: "+strings.Join(imaging.Formats, ", "))
	fs.IntVar(&bench.Quality, "quality", bench.Quality, "JPEG quality (1-100)")
	width := fs.Int("width", 1920, "Frame width in pixels")
	height := fs.Int("height", 1080, "Frame height in pixels")
	seed := fs.Uint64("seed", 0, "Noise generator seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	writer, err := imaging.NewFileWriter(bench.Format)
	if err != nil {
		return err
	}
	bench.Format = writer.Format
	noise, err := imaging.NewNoise(*width, *height, *seed)
	if err != nil {
		return err
	}
	if err := imaging.EnsureDir(bench.OutputDir); err != nil {
		return err
	}

	ctx := runner.SetupTermination(context.Background())
	result, err := diskbench.Run(ctx, *bench, noise.WithLimit(bench.Count), writer, metrics.NewBasic("bench"))
	if err != nil {
		return err
	}
	diskbench.PrintResult(os.Stdout, result)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: recorder [-no-color] <command> [flags]

Commands:
  run       generate frames at a fixed rate and write them to disk
  validate  check a configuration and print the effective settings
  bench     measure sequential encode-and-write speed
  help      show this message

Run "recorder <command> -h" for the flags of a command. Flags given to run
and validate override the file passed with -config.
`)
}
