package models

// LineItem is a named amount inside a legacy record, a submission
// result, or an export row.
type LineItem struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// LegacyRecord is one entry of the flat-file store: a single day's
// submission with its item lists and precomputed totals. The field set
// and JSON keys are fixed by the on-disk format and must not change.
type LegacyRecord struct {
	Date          string     `json:"date"`
	Earnings      []LineItem `json:"earnings"`
	TotalEarning  int64      `json:"total_earning"`
	Expenses      []LineItem `json:"expenses"`
	TotalExpenses int64      `json:"total_expenses"`
	Net           int64      `json:"net"`
}

// Totals recomputes the record's totals from its item lists.
func (r *LegacyRecord) Totals() (earning, expense int64) {
	for _, it := range r.Earnings {
		earning += it.Amount
	}
	for _, it := range r.Expenses {
		expense += it.Amount
	}
	return earning, expense
}
