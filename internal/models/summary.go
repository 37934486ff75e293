package models

// Status classifies a day's balance.
type Status string

const (
	StatusPositive Status = "positive"
	StatusNegative Status = "negative"
	StatusNeutral  Status = "neutral"
)

// StatusFor applies the status rule to a pair of daily totals.
func StatusFor(totalEarning, totalExpense int64) Status {
	switch {
	case totalEarning > totalExpense:
		return StatusPositive
	case totalEarning < totalExpense:
		return StatusNegative
	default:
		return StatusNeutral
	}
}

// DailySummary is the per-owner, per-day view over transactions.
// It is derived data: always recomputed from transactions on read,
// never persisted, so summary and detail cannot drift.
type DailySummary struct {
	OwnerID      uint   `json:"owner_id"`
	Date         string `json:"date"`
	TotalEarning int64  `json:"total_earning"`
	TotalExpense int64  `json:"total_expense"`
	Net          int64  `json:"net"`
	Status       Status `json:"status"`
}
