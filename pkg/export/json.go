// Package export serializes finalized encounters for downstream
// consumers: a JSON tree for the full hierarchy and a parquet table of
// per-character metric rows.
package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

// Report is the top-level JSON document: run identity plus the
// encounter tree and the run counters.
type Report struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Source      string             `json:"source,omitempty"`
	Encounters  []*model.Encounter `json:"encounters"`
	Counters    telemetry.Snapshot `json:"counters"`
}

// NewReport wraps a run's output under a fresh report id.
func NewReport(source string, encounters []*model.Encounter, counters telemetry.Snapshot) *Report {
	return &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Encounters:  encounters,
		Counters:    counters,
	}
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
