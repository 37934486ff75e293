// Package export produces deterministic CSV snapshots of the ledger and
// reads them back for reimport.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// Header is the exact snapshot header row. Columns carrying item lists
// are rendered as comma-joined "name: amount" pairs.
var Header = []string{"Date", "Earnings", "Total Earning", "Expenses", "Total Expenses", "Net"}

// Result reports the outcome of a snapshot. NoOp means the scope held no
// records and nothing was written; that is a signal, not a failure.
type Result struct {
	Rows int
	NoOp bool
}

// Engine writes snapshots of one storage backend.
type Engine struct {
	backend storage.Backend
}

// NewEngine creates an export engine over the given backend.
func NewEngine(backend storage.Backend) *Engine {
	return &Engine{backend: backend}
}

// Snapshot writes the owner's full ledger to w, one row per date bucket,
// dates ascending. The header is written whenever at least one record
// exists, even if a bucket's earnings or expenses list is empty (the
// column is then an empty string). An empty scope writes nothing.
func (e *Engine) Snapshot(ctx context.Context, ownerID uint, w io.Writer) (Result, error) {
	txs, err := e.backend.QueryByOwner(ctx, ownerID, nil)
	if err != nil {
		return Result{}, err
	}
	if len(txs) == 0 {
		return Result{NoOp: true}, nil
	}

	type row struct {
		date     string
		earnings []models.LineItem
		expenses []models.LineItem
	}
	var rows []*row
	byBucket := make(map[string]*row)
	for _, tx := range txs {
		key := models.DateBucket(tx.Date)
		r, ok := byBucket[key]
		if !ok {
			// txs arrive date-ascending, so append order is bucket order.
			r = &row{date: key}
			byBucket[key] = r
			rows = append(rows, r)
		}
		item := models.LineItem{Name: tx.Description, Amount: tx.Amount}
		if tx.Kind == models.KindEarning {
			r.earnings = append(r.earnings, item)
		} else {
			r.expenses = append(r.expenses, item)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, r := range rows {
		var totalEarning, totalExpenses int64
		for _, it := range r.earnings {
			totalEarning += it.Amount
		}
		for _, it := range r.expenses {
			totalExpenses += it.Amount
		}
		record := []string{
			r.date,
			flatten(r.earnings),
			strconv.FormatInt(totalEarning, 10),
			flatten(r.expenses),
			strconv.FormatInt(totalExpenses, 10),
			strconv.FormatInt(totalEarning-totalExpenses, 10),
		}
		if err := cw.Write(record); err != nil {
			return Result{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return Result{Rows: len(rows)}, nil
}

// SnapshotFile writes the snapshot to path, leaving the file untouched
// when the scope is empty.
func (e *Engine) SnapshotFile(ctx context.Context, ownerID uint, path string) error {
	var buf bytes.Buffer
	res, err := e.Snapshot(ctx, ownerID, &buf)
	if err != nil {
		return err
	}
	if res.NoOp {
		return nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

// flatten renders a list column as "name: amount, name: amount".
func flatten(items []models.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s: %d", it.Name, it.Amount))
	}
	return strings.Join(parts, ", ")
}
