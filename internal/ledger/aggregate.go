// Package ledger implements the core of the daily tracker: batch
// submission, per-day aggregation, and owner-scoped edits over whatever
// storage generation is configured.
package ledger

import (
	"sort"

	"dayledger/internal/models"
)

// Aggregate groups an owner's transactions into per-day summaries.
//
// Bucketing is by calendar day via models.DateBucket; transactions are
// written with second precision but summarized per day, on both the
// write and the read side, so buckets never fragment. The function is
// pure and deterministic: input order within a bucket does not affect
// the result, sums are exact integer arithmetic, and the returned
// summaries are ordered by date ascending.
func Aggregate(ownerID uint, txs []models.Transaction) []models.DailySummary {
	buckets := make(map[string]*models.DailySummary)
	for _, tx := range txs {
		key := models.DateBucket(tx.Date)
		sum, ok := buckets[key]
		if !ok {
			sum = &models.DailySummary{OwnerID: ownerID, Date: key}
			buckets[key] = sum
		}
		switch tx.Kind {
		case models.KindEarning:
			sum.TotalEarning += tx.Amount
		case models.KindExpense:
			sum.TotalExpense += tx.Amount
		}
	}

	out := make([]models.DailySummary, 0, len(buckets))
	for _, sum := range buckets {
		sum.Net = sum.TotalEarning - sum.TotalExpense
		sum.Status = models.StatusFor(sum.TotalEarning, sum.TotalExpense)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
