// Package batch fans prompts out over a bounded pool of workers that share
// one generator.
package batch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/manash/pollgen/pkg/models"
)

const DefaultWorkers = 5

type Generator interface {
	Generate(ctx context.Context, prompt string, o models.Overrides) (string, bool)
}

type Result struct {
	Index    int
	Prompt   string
	Path     string
	OK       bool
	Skipped  bool
	Duration time.Duration
}

type Summary struct {
	RunID     string
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

type Options struct {
	Workers  int
	Defaults models.Overrides
}

type Processor struct {
	gen    Generator
	logger *zap.Logger
	out    io.Writer
	outMu  sync.Mutex
}

func NewProcessor(gen Generator, logger *zap.Logger, out io.Writer) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Processor{gen: gen, logger: logger, out: out}
}

func (p *Processor) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	fmt.Fprintf(p.out, format, args...)
	p.outMu.Unlock()
}

// Process generates every item with at most opts.Workers in flight. Results
// keep the position of their item. Cancelling ctx stops submission of new
// items; items already running finish and the rest are marked skipped.
func (p *Processor) Process(ctx context.Context, items []Item, opts Options) Summary {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	logger.Info("batch started", zap.Int("items", len(items)), zap.Int("workers", workers))

	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Index: item.Index, Prompt: item.Prompt, Skipped: true}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	inflight := context.WithoutCancel(ctx)
	total := len(items)

	for i, item := range items {
		if ctx.Err() != nil {
			logger.Warn("batch cancelled, not submitting remaining items", zap.Int("remaining", total-i))
			break
		}
		g.Go(func() error {
			// The slot may free up only after ctx was cancelled.
			if ctx.Err() != nil {
				return nil
			}
			results[i] = p.processItem(inflight, item, opts.Defaults, i+1, total)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{RunID: runID, Results: results, Duration: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.OK:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}

	logger.Info("batch finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.Duration),
	)
	return summary
}

func (p *Processor) processItem(ctx context.Context, item Item, defaults models.Overrides, current, total int) Result {
	start := time.Now()
	result := Result{Index: item.Index, Prompt: item.Prompt}

	p.printf("[%d/%d] Generating: %q...\n", current, total, truncate(item.Prompt, 50))

	path, ok := p.gen.Generate(ctx, item.Prompt, mergeOverrides(item.Overrides(), defaults))
	result.Path = path
	result.OK = ok
	result.Duration = time.Since(start)

	if ok {
		p.printf("       Saved: %s\n", path)
	} else {
		p.printf("       Failed: %q\n", truncate(item.Prompt, 50))
	}
	return result
}

// mergeOverrides fills fields the item left unset from the batch-wide
// defaults.
func mergeOverrides(item, defaults models.Overrides) models.Overrides {
	if item.Width == 0 {
		item.Width = defaults.Width
	}
	if item.Height == 0 {
		item.Height = defaults.Height
	}
	if item.Model == "" {
		item.Model = defaults.Model
	}
	if item.Seed == nil {
		item.Seed = defaults.Seed
	}
	if item.NoLogo == nil {
		item.NoLogo = defaults.NoLogo
	}
	return item
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func (p *Processor) PrintSummary(s Summary) {
	fmt.Fprintln(p.out)
	color.New(color.FgCyan, color.Bold).Fprintln(p.out, "Summary:")
	fmt.Fprintf(p.out, "  Run: %s\n", s.RunID)

	ok := color.New(color.FgGreen)
	ok.Fprintf(p.out, "  Successful: %s/%s images\n",
		humanize.Comma(int64(s.Succeeded)), humanize.Comma(int64(len(s.Results))))
	if s.Failed > 0 {
		color.New(color.FgRed).Fprintf(p.out, "  Failed: %d (see below)\n", s.Failed)
	}
	if s.Skipped > 0 {
		color.New(color.FgYellow).Fprintf(p.out, "  Skipped: %d (cancelled)\n", s.Skipped)
	}
	fmt.Fprintf(p.out, "  Elapsed: %s\n", s.Duration.Round(time.Millisecond))

	var failed []Result
	for _, r := range s.Results {
		if !r.OK && !r.Skipped {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Failures:")
		for _, r := range failed {
			fmt.Fprintf(p.out, "  [%d] %q\n", r.Index, truncate(r.Prompt, 40))
		}
	}
}
