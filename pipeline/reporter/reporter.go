package reporter

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bilus/recorder/metrics"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Go prints a metrics table to w every tick until ctx is done.
func Go(ctx context.Context, w io.Writer, tick time.Duration, wg *sync.WaitGroup, metrics ...metrics.Metrics) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ReportMetrics(w, metrics...)
			}
		}
	}()
}

func ReportMetrics(w io.Writer, metrics ...metrics.Metrics) {
	if len(metrics) == 0 {
		return
	}
	header := append([]string{"source"}, metrics[0].Labels()...)
	rows := make([][]string, len(metrics))
	for i, m := range metrics {
		rows[i] = append([]string{m.SourceName()}, m.Values()...)
	}
	printTable(w, header, rows)
}

// Summary is the outcome of a whole run. Dropped is Rejected plus Evicted.
type Summary struct {
	RunID     string
	Duration  time.Duration
	Generated uint64
	Enqueued  uint64
	Rejected  uint64
	Evicted   uint64
	Dropped   uint64
	Written   uint64
	Failed    uint64
	Bytes     uint64
	QueueLeft int
}

func (s Summary) GenerationRate() float64 {
	return perSecond(s.Generated, s.Duration)
}

func (s Summary) WriteRate() float64 {
	return perSecond(s.Written, s.Duration)
}

func (s Summary) BytesPerSecond() uint64 {
	return uint64(perSecond(s.Bytes, s.Duration))
}

func PrintSummary(w io.Writer, s Summary) {
	printTable(w, []string{"result", "value"}, [][]string{
		{"run id", s.RunID},
		{"total time", s.Duration.Round(time.Millisecond).String()},
		{"items generated", fmt.Sprintf("%v", s.Generated)},
		{"average rate", fmt.Sprintf("%.2f items/s", s.GenerationRate())},
		{"items enqueued", fmt.Sprintf("%v", s.Enqueued)},
		{"items dropped", fmt.Sprintf("%v (rejected %v, evicted %v)", s.Dropped, s.Rejected, s.Evicted)},
		{"items written", fmt.Sprintf("%v (%.2f items/s)", s.Written, s.WriteRate())},
		{"write failures", fmt.Sprintf("%v", s.Failed)},
		{"data written", humanize.IBytes(s.Bytes)},
		{"write speed", humanize.IBytes(s.BytesPerSecond()) + "/s"},
		{"left in queue", fmt.Sprintf("%v", s.QueueLeft)},
	})
}

// PrintSettings renders key/value pairs in the order given.
func PrintSettings(w io.Writer, settings [][2]string) {
	rows := make([][]string, len(settings))
	for i, kv := range settings {
		rows[i] = []string{kv[0], kv[1]}
	}
	printTable(w, []string{"setting", "value"}, rows)
}

func perSecond(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func printTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	for _, row := range data {
		table.Append(row)
	}
	table.Render()
}
