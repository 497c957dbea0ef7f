// Package report summarizes the outcome of a migration batch.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hemanthest/dataquerymigration/internal/migrate"
)

// Summary is the batch-level outcome of a migration run.
type Summary struct {
	BatchID    uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Impacted   int
	Failed     int
	Records    []migrate.QueryRecord
}

// New builds a Summary over migrated records. Failed counts records whose
// Status was set by the orchestrator; impacted and failed are not exclusive.
func New(records []migrate.QueryRecord, started, finished time.Time) Summary {
	s := Summary{
		BatchID:    uuid.New(),
		StartedAt:  started,
		FinishedAt: finished,
		Total:      len(records),
		Records:    records,
	}
	for _, rec := range records {
		if rec.Impacted {
			s.Impacted++
		}
		if strings.HasPrefix(rec.Status, "migration failed") {
			s.Failed++
		}
	}
	return s
}

// ImpactedRecords returns the impacted subset in input order.
func (s Summary) ImpactedRecords() []migrate.QueryRecord {
	var out []migrate.QueryRecord
	for _, rec := range s.Records {
		if rec.Impacted {
			out = append(out, rec)
		}
	}
	return out
}

// Render writes a human-readable run summary.
func (s Summary) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "batch %s: %d queries, %d impacted, %d failed (%s)\n",
		s.BatchID, s.Total, s.Impacted, s.Failed,
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	return err
}
