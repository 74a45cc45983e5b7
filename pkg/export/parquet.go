package export

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/pullwatch/pullwatch/internal/model"
	pwerrors "github.com/pullwatch/pullwatch/pkg/errors"
)

// defaultBatchSize is how many character rows accumulate before a
// record batch is flushed to the file.
const defaultBatchSize = 1024

// characterSchema is one row per character per encounter.
func characterSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "report_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "encounter_name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "encounter_kind", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "encounter_start", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "pull", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "success", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
		{Name: "difficulty", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "keystone_level", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "guid", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "role", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "spec_id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "item_level", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "damage_done", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "healing_done", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "damage_taken", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "deaths", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "dps", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "hps", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "combat_dps", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "combat_hps", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "active_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	}, nil)
}

// ParquetWriter writes per-character metric rows using Apache Arrow.
type ParquetWriter struct {
	reportID string

	allocator memory.Allocator
	schema    *arrow.Schema
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder

	mu       sync.Mutex
	rowCount int
	total    int64
	closed   bool
}

// NewParquetWriter creates a writer targeting output. Rows carry
// reportID so multiple runs can land in one downstream table.
func NewParquetWriter(output io.Writer, reportID string) (*ParquetWriter, error) {
	allocator := memory.NewGoAllocator()
	schema := characterSchema()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, pwerrors.Wrap(err, pwerrors.CodeWriteFailed, "cannot create parquet writer")
	}

	return &ParquetWriter{
		reportID:  reportID,
		allocator: allocator,
		schema:    schema,
		writer:    writer,
		builder:   array.NewRecordBuilder(allocator, schema),
	}, nil
}

// WriteEncounters appends one row per character per encounter.
// Characters are emitted in GUID order so output is deterministic.
func (w *ParquetWriter) WriteEncounters(encounters []*model.Encounter) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return pwerrors.New(pwerrors.CodeWriteFailed, "writer already closed")
	}

	for _, enc := range encounters {
		guids := make([]string, 0, len(enc.Characters))
		for guid := range enc.Characters {
			guids = append(guids, guid)
		}
		sort.Strings(guids)

		for _, guid := range guids {
			w.appendRow(enc, enc.Characters[guid])
			w.rowCount++
			if w.rowCount >= defaultBatchSize {
				if err := w.flushBatch(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *ParquetWriter) appendRow(enc *model.Encounter, c *model.Character) {
	f := w.builder.Fields()

	f[0].(*array.StringBuilder).Append(w.reportID)
	f[1].(*array.StringBuilder).Append(enc.Name)
	f[2].(*array.StringBuilder).Append(string(enc.Kind))
	f[3].(*array.Int64Builder).Append(enc.StartTime.UnixMilli())
	f[4].(*array.Int64Builder).Append(int64(enc.Pull))
	f[5].(*array.BooleanBuilder).Append(enc.Success)

	if enc.Difficulty != "" {
		f[6].(*array.StringBuilder).Append(enc.Difficulty)
	} else {
		f[6].AppendNull()
	}
	if enc.KeystoneLevel > 0 {
		f[7].(*array.Int64Builder).Append(enc.KeystoneLevel)
	} else {
		f[7].AppendNull()
	}

	f[8].(*array.StringBuilder).Append(c.GUID)
	f[9].(*array.StringBuilder).Append(c.Name)
	f[10].(*array.StringBuilder).Append(string(c.Role))

	if c.SpecID != 0 {
		f[11].(*array.Int64Builder).Append(c.SpecID)
	} else {
		f[11].AppendNull()
	}
	if c.ItemLevel > 0 {
		f[12].(*array.Float64Builder).Append(c.ItemLevel)
	} else {
		f[12].AppendNull()
	}

	f[13].(*array.Int64Builder).Append(c.TotalDamageDone)
	f[14].(*array.Int64Builder).Append(c.TotalHealingDone)
	f[15].(*array.Int64Builder).Append(c.TotalDamageTaken)
	f[16].(*array.Int64Builder).Append(int64(len(c.Deaths)))
	f[17].(*array.Float64Builder).Append(c.DPS)
	f[18].(*array.Float64Builder).Append(c.HPS)
	f[19].(*array.Float64Builder).Append(c.CombatDPS)
	f[20].(*array.Float64Builder).Append(c.CombatHPS)
	f[21].(*array.Float64Builder).Append(c.ActivePct)
}

func (w *ParquetWriter) flushBatch() error {
	if w.rowCount == 0 {
		return nil
	}

	batch := w.builder.NewRecord()
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return pwerrors.Wrap(err, pwerrors.CodeWriteFailed, "parquet batch write failed")
	}

	w.total += int64(w.rowCount)
	w.rowCount = 0
	return nil
}

// RowsWritten returns the number of rows flushed so far.
func (w *ParquetWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Close flushes remaining rows and finalizes the file footer.
func (w *ParquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushBatch(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
