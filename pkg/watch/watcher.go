// Package watch follows a live combat log, feeding appended lines
// through a sequential pipeline and emitting encounters as the game
// writes their closing boundary.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/internal/pool"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
	"github.com/pullwatch/pullwatch/pkg/parser"
	"github.com/pullwatch/pullwatch/pkg/segment"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

const (
	// defaultDebounce coalesces the bursts of write events the game
	// client produces while flushing.
	defaultDebounce = 500 * time.Millisecond

	// defaultPollInterval backstops fsnotify on filesystems that drop
	// events (network mounts).
	defaultPollInterval = 2 * time.Second
)

// Follower tails one growing log file. It owns a private sequential
// pipeline; finalized encounters stream out over Encounters().
type Follower struct {
	log      zerolog.Logger
	path     string
	debounce time.Duration
	poll     time.Duration

	tok      *parser.Tokenizer
	factory  *parser.Factory
	engine   *segment.Engine
	tables   gamedata.Tables
	counters *telemetry.Counters

	offset  int64
	emitted int
	out     chan *model.Encounter
}

// NewFollower creates a follower for path. The file does not need to
// exist yet; it is picked up on creation.
func NewFollower(log zerolog.Logger, tables gamedata.Tables, path string) (*Follower, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	flog := log.With().Str("component", "watch").Str("path", abs).Logger()
	return &Follower{
		log:      flog,
		path:     abs,
		debounce: defaultDebounce,
		poll:     defaultPollInterval,
		tok:      parser.NewTokenizer(),
		factory:  parser.NewFactory(),
		engine:   segment.NewEngine(flog, tables),
		tables:   tables,
		counters: telemetry.NewCounters(),
		out:      make(chan *model.Encounter, 16),
	}, nil
}

// Encounters is the output stream. Closed when Run returns.
func (f *Follower) Encounters() <-chan *model.Encounter {
	return f.out
}

// Counters returns a snapshot of the run counters.
func (f *Follower) Counters() telemetry.Snapshot {
	return f.counters.Snapshot()
}

// Run blocks until ctx is done. Watching the containing directory
// rather than the file survives the log being rotated into place.
func (f *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	// Catch up on whatever is already in the file.
	f.consume(ctx)

	debounce := time.NewTimer(f.debounce)
	debounce.Stop()
	poll := time.NewTicker(f.poll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			// A pull still open when watching stops is surfaced as a
			// failed encounter rather than silently lost.
			f.engine.Finish()
			f.emitNew()
			close(f.out)
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				close(f.out)
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if abs, err := filepath.Abs(event.Name); err != nil || abs != f.path {
				continue
			}
			debounce.Reset(f.debounce)

		case <-debounce.C:
			f.consume(ctx)

		case <-poll.C:
			f.consume(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				close(f.out)
				return nil
			}
			f.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// consume reads bytes appended since the last pass and pushes complete
// lines through the pipeline. A shrunken file means rotation or
// truncation, which resets the pipeline state.
func (f *Follower) consume(ctx context.Context) {
	stat, err := os.Stat(f.path)
	if err != nil {
		return
	}

	if stat.Size() < f.offset {
		f.log.Info().Msg("log truncated, resetting pipeline")
		f.reset()
	}
	if stat.Size() == f.offset {
		return
	}

	fh, err := os.Open(f.path)
	if err != nil {
		f.log.Warn().Err(err).Msg("cannot open log")
		return
	}
	defer fh.Close()

	if _, err := fh.Seek(f.offset, io.SeekStart); err != nil {
		f.log.Warn().Err(err).Msg("cannot seek log")
		return
	}

	data, err := io.ReadAll(fh)
	if err != nil {
		f.log.Warn().Err(err).Msg("cannot read log")
		return
	}

	// Hold back the trailing partial line; the next write completes it.
	complete := len(data)
	for complete > 0 && data[complete-1] != '\n' {
		complete--
	}
	if complete == 0 {
		return
	}
	f.feed(ctx, data[:complete])
	f.offset += int64(complete)
	f.emitNew()
}

func (f *Follower) feed(ctx context.Context, data []byte) {
	lb := pool.NewLineBuffer(data)
	for lb.HasMore() {
		if ctx.Err() != nil {
			return
		}
		line := lb.NextLine()
		if len(line) == 0 {
			continue
		}
		f.counters.AddLinesProcessed(1)

		parsed, err := f.tok.ParseLine(line)
		if err != nil {
			f.counters.AddParseErrors(1)
			continue
		}
		ev := f.factory.CreateEvent(parsed)
		if ev == nil {
			continue
		}
		f.counters.AddEventsProcessed(1)
		f.engine.Ingest(ev)
	}
}

// emitNew sends encounters finalized since the last pass.
func (f *Follower) emitNew() {
	encs := f.engine.Encounters()
	for ; f.emitted < len(encs); f.emitted++ {
		f.counters.AddEncountersProduced(1)
		f.out <- encs[f.emitted]
	}
}

// reset discards parser and segmentation state after a truncation. The
// counters survive; they describe the whole watch session.
func (f *Follower) reset() {
	f.offset = 0
	f.emitted = 0
	f.tok = parser.NewTokenizer()
	f.factory = parser.NewFactory()
	f.engine = segment.NewEngine(f.log, f.tables)
}
