// Package migration carries records from an old storage generation into
// a new one, once.
//
// The run is guarded at the top and best-effort inside: a target that
// already holds any transaction aborts the whole run with zero writes,
// but once the run is in progress each record is attempted on its own,
// failures are counted and skipped, and earlier inserts are never rolled
// back. That asymmetry is deliberate and relied upon; a Completed run
// with a non-zero failure count is a valid terminal state.
package migration

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/export"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// State is the engine's position in its one-shot lifecycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
)

// RecordSource yields legacy records in their native shape. The flat-file
// store is the usual source; a parsed CSV snapshot also qualifies.
type RecordSource interface {
	Records() ([]models.LegacyRecord, error)
}

// Report is the terminal outcome of a run.
type Report struct {
	State    State `json:"state"`
	Migrated int   `json:"migrated_count"`
	Failed   int   `json:"failed_count"`
}

// Engine moves every record of src into dst under one owner. It is the
// only component that understands both the legacy record shape and the
// target backend at once.
type Engine struct {
	src     RecordSource
	dst     storage.Backend
	ownerID uint
	log     *zap.SugaredLogger
	state   State
}

// NewEngine creates a migration engine. ownerID is the owner every
// migrated transaction is assigned to; the legacy shapes carry none.
func NewEngine(src RecordSource, dst storage.Backend, ownerID uint, log *zap.SugaredLogger) *Engine {
	return &Engine{src: src, dst: dst, ownerID: ownerID, log: log, state: StateNotStarted}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Run executes the one-shot migration. If the target already contains
// any transaction the run transitions straight to Aborted with nothing
// written. Original record timestamps are preserved exactly.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if e.state != StateNotStarted {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "migration engine already ran")
	}

	records, err := e.src.Records()
	if err != nil {
		return nil, err
	}

	existing, err := e.dst.CountTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		e.state = StateAborted
		e.log.Warnw("migration aborted, target already has transactions", "existing", existing)
		return &Report{State: StateAborted}, apperrors.ErrMigrationDuplicationRisk
	}

	e.state = StateInProgress
	report := &Report{}
	for _, rec := range records {
		if err := e.migrateRecord(ctx, rec); err != nil {
			report.Failed++
			e.log.Warnw("record migration failed", "date", rec.Date, "error", err)
			continue
		}
		report.Migrated++
	}

	e.state = StateCompleted
	report.State = StateCompleted
	e.log.Infow("migration completed", "migrated", report.Migrated, "failed", report.Failed)
	return report, nil
}

func (e *Engine) migrateRecord(ctx context.Context, rec models.LegacyRecord) error {
	date, err := parseRecordDate(rec.Date)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	items := make([]storage.Item, 0, len(rec.Earnings)+len(rec.Expenses))
	for _, it := range rec.Earnings {
		items = append(items, storage.Item{Kind: models.KindEarning, Name: it.Name, Amount: it.Amount})
	}
	for _, it := range rec.Expenses {
		items = append(items, storage.Item{Kind: models.KindExpense, Name: it.Name, Amount: it.Amount})
	}
	if len(items) == 0 {
		// A record with bare totals and no items has nothing the
		// normalized shape can hold.
		return nil
	}

	_, err = e.dst.InsertTransactions(ctx, e.ownerID, date, items)
	return err
}

// parseRecordDate accepts the second-precision legacy layout and the
// day-only layout that CSV snapshots carry.
func parseRecordDate(s string) (time.Time, error) {
	if t, err := time.Parse(models.TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(models.BucketLayout, s)
}

// SnapshotSource reads a CSV snapshot file as a migration source,
// closing the export/reimport round trip.
type SnapshotSource struct {
	path string
}

// NewSnapshotSource creates a source over the snapshot at path.
func NewSnapshotSource(path string) *SnapshotSource {
	return &SnapshotSource{path: path}
}

// Records parses the snapshot into legacy records.
func (s *SnapshotSource) Records() ([]models.LegacyRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	defer f.Close()
	return export.ParseSnapshot(f)
}
