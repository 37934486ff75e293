package models

import "time"

// TransactionKind classifies a line item as money in or money out.
// The kind is fixed when the transaction is created and never changes.
type TransactionKind string

const (
	KindEarning TransactionKind = "earning"
	KindExpense TransactionKind = "expense"
)

// Valid reports whether k is one of the two supported kinds.
func (k TransactionKind) Valid() bool {
	return k == KindEarning || k == KindExpense
}

// Transaction is one recorded earning or expense line item.
// Amount is a whole positive integer; the schema enforces amount > 0
// and restricts type to the two kinds above.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Description string          `gorm:"not null" json:"description"`
	Amount      int64           `gorm:"not null;check:amount > 0" json:"amount"`
	Kind        TransactionKind `gorm:"column:type;not null;check:type IN ('earning','expense')" json:"type"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TimeLayout is the timestamp format used by the legacy flat-file store.
// Record dates persist at second precision in this layout.
const TimeLayout = "2006-01-02 15:04:05"

// BucketLayout is the calendar-day key used for daily summaries.
const BucketLayout = "2006-01-02"

// DateBucket returns the daily-summary bucket key for t. Both the
// aggregator and the export engine bucket through this function so the
// write side and read side can never disagree on granularity.
func DateBucket(t time.Time) string {
	return t.Format(BucketLayout)
}
