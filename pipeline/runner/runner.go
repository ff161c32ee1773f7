package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bilus/recorder/colors"
	"github.com/bilus/recorder/config"
	"github.com/bilus/recorder/httputil"
	"github.com/bilus/recorder/imaging"
	"github.com/bilus/recorder/metrics"
	"github.com/bilus/recorder/pipeline"
	"github.com/bilus/recorder/pipeline/reporter"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Run records noise frames to disk as configured by cfg and prints the
// settings, periodic metrics and the final summary to out. Cancelling ctx
// stops production early; frames already queued are still written.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (reporter.Summary, error) {
	runID := uuid.NewString()

	generator, err := imaging.NewNoise(cfg.Frame.Width, cfg.Frame.Height, cfg.Frame.Seed)
	if err != nil {
		return reporter.Summary{}, err
	}
	writer, err := imaging.NewFileWriter(cfg.Pipeline.Consumer.Format)
	if err != nil {
		return reporter.Summary{}, err
	}
	m := pipeline.NewMetrics()
	p, err := pipeline.New(cfg.Pipeline, m, runID)
	if err != nil {
		return reporter.Summary{}, err
	}
	if err := imaging.EnsureDir(cfg.Pipeline.Consumer.OutputDir); err != nil {
		return reporter.Summary{}, err
	}

	reg := prometheus.NewRegistry()
	collectors := append(metrics.NewCollectors(runID, m.Producer, m.Consumer), metrics.NewQueueCollectors(runID, p.Queue())...)
	if err := metrics.Register(reg, collectors...); err != nil {
		return reporter.Summary{}, fmt.Errorf("register metrics: %w", err)
	}

	helpersWg := sync.WaitGroup{}
	helpersCtx, stopHelpers := context.WithCancel(ctx)
	defer stopHelpers()

	var server io.Closer
	if cfg.Metrics.Addr != "" {
		listener, err := httputil.ListenAndServeWithClose(cfg.Metrics.Addr, httputil.TelemetryHandler(reg, runID), &helpersWg)
		if err != nil {
			return reporter.Summary{}, fmt.Errorf("metrics server: %w", err)
		}
		log.Printf(colors.Info("Serving metrics on http://%v/metrics"), listener.Addr())
		server = listener
	}

	reporter.PrintSettings(out, append([][2]string{{"run id", runID}}, cfg.Settings()...))
	if cfg.Report.Interval > 0 {
		reporter.Go(helpersCtx, out, cfg.Report.Interval, &helpersWg, m.All()...)
	}

	summary := p.Run(ctx, generator, writer)

	stopHelpers()
	if server != nil {
		server.Close()
	}
	WaitWithTimeout(&helpersWg, cfg.ShutdownGracePeriod)

	reporter.ReportMetrics(out, m.All()...)
	reporter.PrintSummary(out, summary)
	return summary, nil
}

// SetupTermination cancels the returned context on Ctrl+C or SIGTERM.
func SetupTermination(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signalsCh := make(chan os.Signal, 64)
	signal.Notify(signalsCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(signalsCh)
		select {
		case sig := <-signalsCh:
			log.Printf(colors.Error("Terminating on %v..."), sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

// WaitWithTimeout waits for wg and reports false if gracePeriod ran out first.
func WaitWithTimeout(wg *sync.WaitGroup, gracePeriod time.Duration) bool {
	barrierCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(barrierCh)
	}()
	select {
	case <-barrierCh:
		return true
	case <-time.After(gracePeriod):
		log.Println(colors.Error("Timeout waiting for finish"))
		return false
	}
}
