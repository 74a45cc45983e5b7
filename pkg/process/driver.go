package process

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/pullwatch/pullwatch/internal/mmap"
	"github.com/pullwatch/pullwatch/internal/model"
	pwerrors "github.com/pullwatch/pullwatch/pkg/errors"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
	"github.com/pullwatch/pullwatch/pkg/segment"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

// Config tunes the processor.
type Config struct {
	// Workers bounds the fan-out. Zero means runtime.NumCPU().
	Workers int

	// Progress, when set, receives (consumed, total) byte counts on the
	// sequential path. The parallel path reports per-boundary instead.
	Progress func(consumed, total int64)
}

// Result is the outcome of one processing run.
type Result struct {
	Encounters []*model.Encounter
	Counters   telemetry.Snapshot

	// BoundaryErrors holds the isolated per-boundary failures. A failed
	// boundary contributes no encounters but never aborts the merge.
	BoundaryErrors []error
}

// Processor is the parallel chunk driver. One Processor can run
// multiple files; each run gets fresh pipelines and counters.
type Processor struct {
	log    zerolog.Logger
	tables gamedata.Tables
	cfg    Config
}

// NewProcessor creates a driver with the given game-data tables.
func NewProcessor(log zerolog.Logger, tables gamedata.Tables, cfg Config) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Processor{
		log:    log.With().Str("component", "process").Logger(),
		tables: tables,
		cfg:    cfg,
	}
}

// ProcessFile maps path and processes it. The mapping is read-only and
// shared across workers without locking.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Result, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, pwerrors.Wrap(err, pwerrors.CodeFileNotFound, "cannot map input file").
			WithContext("path", path)
	}
	defer f.Close()

	return p.ProcessData(ctx, f.Data)
}

// ProcessData runs boundary discovery, fan-out and merge over an
// in-memory byte view.
func (p *Processor) ProcessData(ctx context.Context, data []byte) (*Result, error) {
	ctx, span := telemetry.StartSpanFromContext(ctx, "process.run")
	defer span.End()
	span.SetAttributes(attribute.Int64("input.bytes", int64(len(data))))

	counters := telemetry.NewCounters()

	boundaries := p.discover(ctx, data)
	if len(boundaries) == 0 {
		return p.runSequential(ctx, data, counters)
	}
	return p.runParallel(ctx, data, boundaries, counters)
}

func (p *Processor) discover(ctx context.Context, data []byte) []Boundary {
	_, span := telemetry.StartSpanFromContext(ctx, "process.discover")
	defer span.End()

	boundaries := DiscoverBoundaries(data)
	span.SetAttributes(attribute.Int("boundaries", len(boundaries)))
	p.log.Debug().Int("boundaries", len(boundaries)).Msg("boundary discovery complete")
	return boundaries
}

// runSequential pushes the whole input through one pipeline. Used when
// no top-level boundaries exist in the file.
func (p *Processor) runSequential(ctx context.Context, data []byte, counters *telemetry.Counters) (*Result, error) {
	ctx, span := telemetry.StartSpanFromContext(ctx, "process.sequential")
	defer span.End()

	var progress func(int64)
	if p.cfg.Progress != nil {
		total := int64(len(data))
		progress = func(consumed int64) { p.cfg.Progress(consumed, total) }
	}

	pipe := NewPipeline(p.log, p.tables, counters)
	if err := pipe.Run(ctx, data, progress); err != nil {
		return nil, err
	}

	encounters := pipe.Encounters()
	finalizeMerged(encounters, p.tables)
	return &Result{Encounters: encounters, Counters: counters.Snapshot()}, nil
}

// runParallel fans one worker out per boundary under a bounded
// errgroup. Workers share only the read-only input bytes and the atomic
// counter set; every pipeline is private to its goroutine.
func (p *Processor) runParallel(ctx context.Context, data []byte, boundaries []Boundary, counters *telemetry.Counters) (*Result, error) {
	ctx, span := telemetry.StartSpanFromContext(ctx, "process.fanout")
	defer span.End()

	results := make([][]*model.Encounter, len(boundaries))
	workerErrs := make([]error, len(boundaries))

	// The advanced-logging header precedes every boundary range, so no
	// worker ever parses it; seed the workers that start past it.
	advancedAt := AdvancedLatchOffset(data)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, b := range boundaries {
		i, b := i, b
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					workerErrs[i] = pwerrors.WorkerBoundary(
						fmt.Errorf("worker panic: %v", r), b.Start, b.End)
				}
			}()

			pipe := NewPipeline(p.log, p.tables, counters)
			if advancedAt >= 0 && b.Start > advancedAt {
				pipe.SetAdvanced(true)
			}
			if runErr := pipe.Run(gctx, data[b.Start:b.End], nil); runErr != nil {
				workerErrs[i] = pwerrors.WorkerBoundary(runErr, b.Start, b.End)
				return nil
			}
			results[i] = pipe.Encounters()
			return nil
		})
	}
	// Worker failures are isolated into workerErrs; the group error is
	// only ever a context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, pwerrors.ContextCanceled("parallel run")
	}

	res := &Result{}
	for i, encs := range results {
		if workerErrs[i] != nil {
			counters.AddBoundaryFailures(1)
			res.BoundaryErrors = append(res.BoundaryErrors, workerErrs[i])
			telemetry.RecordError(ctx, workerErrs[i])
			telemetry.AddSpanEvent(ctx, "boundary.failed",
				attribute.Int64("start", boundaries[i].Start),
				attribute.Int64("end", boundaries[i].End))
			p.log.Warn().Err(workerErrs[i]).
				Int64("start", boundaries[i].Start).
				Int64("end", boundaries[i].End).
				Msg("boundary worker failed")
			continue
		}
		res.Encounters = append(res.Encounters, encs...)
	}

	mergeSort(res.Encounters)
	finalizeMerged(res.Encounters, p.tables)

	res.Counters = counters.Snapshot()
	span.SetAttributes(attribute.Int("encounters", len(res.Encounters)))
	return res, nil
}

// mergeSort restores deterministic output order regardless of worker
// completion order.
func mergeSort(encounters []*model.Encounter) {
	sort.SliceStable(encounters, func(i, j int) bool {
		if !encounters[i].StartTime.Equal(encounters[j].StartTime) {
			return encounters[i].StartTime.Before(encounters[j].StartTime)
		}
		return encounters[i].EncounterID < encounters[j].EncounterID
	})
}

// finalizeMerged re-runs metric finalization after a merge. The
// recomputation is idempotent; it is a safety net, not a data source.
func finalizeMerged(encounters []*model.Encounter, tables gamedata.Tables) {
	for _, enc := range encounters {
		segment.ComputeMetrics(enc, tables)
	}
}
