// Package process wraps the tokenizer → factory → segmenter pipeline
// with boundary discovery and parallel fan-out over a memory-mapped
// file.
package process

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/internal/pool"
	pwerrors "github.com/pullwatch/pullwatch/pkg/errors"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
	"github.com/pullwatch/pullwatch/pkg/parser"
	"github.com/pullwatch/pullwatch/pkg/segment"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

// cancelCheckInterval is how many lines a pipeline processes between
// context checks.
const cancelCheckInterval = 4096

// Pipeline is one independent tokenizer + factory + segmentation chain.
// It owns all of its mutable state, so each worker gets its own.
type Pipeline struct {
	log      zerolog.Logger
	tok      *parser.Tokenizer
	factory  *parser.Factory
	engine   *segment.Engine
	counters *telemetry.Counters
}

// NewPipeline builds a pipeline writing into the shared counter set.
// Counters use atomic adds, so one set can be shared across pipelines.
func NewPipeline(log zerolog.Logger, tables gamedata.Tables, counters *telemetry.Counters) *Pipeline {
	return &Pipeline{
		log:      log,
		tok:      parser.NewTokenizer(),
		factory:  parser.NewFactory(),
		engine:   segment.NewEngine(log, tables),
		counters: counters,
	}
}

// SetAdvanced pre-latches the tokenizer's advanced-logging flag. The
// parallel driver calls it for byte ranges that start after the
// enabling COMBAT_LOG_VERSION line, which the range itself never
// contains.
func (p *Pipeline) SetAdvanced(v bool) {
	p.tok.SetAdvanced(v)
}

// Run feeds every line of data through the pipeline. Per-line failures
// are counted, never returned; the only error path is context
// cancellation. When progress is non-nil it is invoked periodically
// with the byte offset consumed so far.
func (p *Pipeline) Run(ctx context.Context, data []byte, progress func(consumed int64)) error {
	lb := pool.NewLineBuffer(data)

	var sinceCheck int
	for lb.HasMore() {
		line := lb.NextLine()
		if len(line) == 0 {
			continue
		}

		sinceCheck++
		if sinceCheck >= cancelCheckInterval {
			sinceCheck = 0
			if err := ctx.Err(); err != nil {
				p.flushStats()
				return pwerrors.ContextCanceled("pipeline run")
			}
			if progress != nil {
				progress(int64(lb.Offset()))
			}
		}

		p.counters.AddLinesProcessed(1)
		parsed, err := p.tok.ParseLine(line)
		if err != nil {
			p.counters.AddParseErrors(1)
			continue
		}

		ev := p.factory.CreateEvent(parsed)
		if ev == nil {
			continue
		}
		p.counters.AddEventsProcessed(1)
		p.engine.Ingest(ev)
	}

	p.engine.Finish()
	p.flushStats()
	if progress != nil {
		progress(int64(lb.Offset()))
	}
	return nil
}

// Encounters returns the finalized encounters the pipeline produced.
func (p *Pipeline) Encounters() []*model.Encounter {
	return p.engine.Encounters()
}

// flushStats folds the factory and engine counters into the shared set.
func (p *Pipeline) flushStats() {
	fs := p.factory.Stats()
	p.counters.AddAmountMismatches(fs.AmountMismatches)

	es := p.engine.Stats()
	p.counters.AddRouteErrors(es.RouteErrors)
	p.counters.AddDedupedSwings(es.DedupedSwings)
	p.counters.AddBoundaryFailures(es.BoundaryFailures)
	p.counters.AddEncountersProduced(int64(len(p.engine.Encounters())))
}
