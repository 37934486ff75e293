package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
)

// ParseSnapshot reads a CSV snapshot back into legacy records, one per
// row. It is the inverse of Snapshot up to assigned ids, which the
// snapshot does not carry. Item names containing ", " cannot survive the
// flattened rendering; that is a limitation of the legacy format itself.
func ParseSnapshot(r io.Reader) ([]models.LegacyRecord, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if isHeader(rows[0]) {
		rows = rows[1:]
	}

	var records []models.LegacyRecord
	for i, row := range rows {
		if len(row) != len(Header) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("row %d: expected %d columns, got %d", i+1, len(Header), len(row)))
		}
		rec := models.LegacyRecord{Date: row[0]}
		if rec.Earnings, err = parseItems(row[1]); err != nil {
			return nil, err
		}
		if rec.Expenses, err = parseItems(row[3]); err != nil {
			return nil, err
		}
		rec.TotalEarning, rec.TotalExpenses = rec.Totals()
		rec.Net = rec.TotalEarning - rec.TotalExpenses
		records = append(records, rec)
	}
	return records, nil
}

func isHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i, col := range Header {
		if row[i] != col {
			return false
		}
	}
	return true
}

// parseItems splits a flattened "name: amount, name: amount" column.
func parseItems(s string) ([]models.LineItem, error) {
	if s == "" {
		return nil, nil
	}
	var items []models.LineItem
	for _, part := range strings.Split(s, ", ") {
		idx := strings.LastIndex(part, ": ")
		if idx < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("malformed item %q", part))
		}
		amount, err := strconv.ParseInt(part[idx+2:], 10, 64)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("malformed amount in item %q", part))
		}
		items = append(items, models.LineItem{Name: part[:idx], Amount: amount})
	}
	return items, nil
}
