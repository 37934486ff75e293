// Package recordstore is the second storage generation: the two-table
// sqlite schema that replaced the flat file before the normalized schema
// existed. One row per submitted record plus earnings/expenses child
// tables, dates kept as text at second precision.
//
// Like the flat file it serves a single configured owner; it is retained
// as a migration target and for reading old databases, not for new
// deployments.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

type record struct {
	ID            uint   `gorm:"primaryKey"`
	Date          string `gorm:"not null"`
	TotalEarning  int64  `gorm:"column:total_earning"`
	TotalExpenses int64  `gorm:"column:total_expenses"`
	Net           int64

	Earnings []earning `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
	Expenses []expense `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

func (record) TableName() string { return "records" }

type earning struct {
	ID       uint `gorm:"primaryKey"`
	RecordID uint `gorm:"not null;index"`
	Name     string
	Amount   int64 `gorm:"check:amount > 0"`
}

func (earning) TableName() string { return "earnings" }

type expense struct {
	ID       uint `gorm:"primaryKey"`
	RecordID uint `gorm:"not null;index"`
	Name     string
	Amount   int64 `gorm:"check:amount > 0"`
}

func (expense) TableName() string { return "expenses" }

// Transaction ids span two tables, so the exposed id encodes the side in
// its low bit: earnings map to 2*row, expenses to 2*row+1.
func encodeID(rowID uint, isExpense bool) uint {
	id := rowID * 2
	if isExpense {
		id++
	}
	return id
}

func decodeID(id uint) (rowID uint, isExpense bool) {
	return id / 2, id%2 == 1
}

// Store implements storage.Backend over the legacy two-table schema.
type Store struct {
	db      *gorm.DB
	ownerID uint
	timeout time.Duration
	inTx    bool
}

// Open opens (or creates) the legacy database at path for one owner.
func Open(path string, ownerID uint, timeout time.Duration) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("%s?_fk=1", path)), &gorm.Config{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	if err := db.AutoMigrate(&record{}, &earning{}, &expense{}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	return &Store{db: db, ownerID: ownerID, timeout: timeout}, nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) WithTransaction(ctx context.Context, fn func(tx storage.Backend) error) error {
	if s.inTx {
		return fn(s)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, ownerID: s.ownerID, timeout: s.timeout, inTx: true})
	})
	return translate(err)
}

func (s *Store) InsertTransactions(ctx context.Context, ownerID uint, date time.Time, items []storage.Item) ([]uint, error) {
	if ownerID != s.ownerID {
		return nil, apperrors.ErrUserNotFound
	}
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyBatch
	}
	for _, it := range items {
		if !it.Kind.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown transaction kind")
		}
		if it.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
	}

	var ids []uint
	err := s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)

		rec := record{Date: date.Format(models.TimeLayout)}
		for _, it := range items {
			switch it.Kind {
			case models.KindEarning:
				rec.TotalEarning += it.Amount
			case models.KindExpense:
				rec.TotalExpenses += it.Amount
			}
		}
		rec.Net = rec.TotalEarning - rec.TotalExpenses
		if err := st.db.Create(&rec).Error; err != nil {
			return translate(err)
		}

		ids = make([]uint, 0, len(items))
		for _, it := range items {
			if it.Kind == models.KindEarning {
				row := earning{RecordID: rec.ID, Name: it.Name, Amount: it.Amount}
				if err := st.db.Create(&row).Error; err != nil {
					return translate(err)
				}
				ids = append(ids, encodeID(row.ID, false))
			} else {
				row := expense{RecordID: rec.ID, Name: it.Name, Amount: it.Amount}
				if err := st.db.Create(&row).Error; err != nil {
					return translate(err)
				}
				ids = append(ids, encodeID(row.ID, true))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) QueryByOwner(ctx context.Context, ownerID uint, rng *storage.DateRange) ([]models.Transaction, error) {
	if ownerID != s.ownerID {
		return nil, nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var recs []record
	if err := s.db.WithContext(ctx).Preload("Earnings").Preload("Expenses").Find(&recs).Error; err != nil {
		return nil, translate(err)
	}

	var txs []models.Transaction
	for _, rec := range recs {
		date, _ := time.Parse(models.TimeLayout, rec.Date)
		if !rng.Contains(date) {
			continue
		}
		for _, row := range rec.Earnings {
			txs = append(txs, models.Transaction{
				ID: encodeID(row.ID, false), Date: date, Description: row.Name,
				Amount: row.Amount, Kind: models.KindEarning, UserID: ownerID,
			})
		}
		for _, row := range rec.Expenses {
			txs = append(txs, models.Transaction{
				ID: encodeID(row.ID, true), Date: date, Description: row.Name,
				Amount: row.Amount, Kind: models.KindExpense, UserID: ownerID,
			})
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	return txs, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id, ownerID uint, upd storage.Update) error {
	if ownerID != s.ownerID {
		return apperrors.ErrTransactionNotFound
	}
	if upd.Amount != nil && *upd.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	rowID, isExpense := decodeID(id)

	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)
		var recordID uint

		if isExpense {
			var row expense
			if err := st.db.First(&row, rowID).Error; err != nil {
				return translate(err)
			}
			applyUpdate(&row.Name, &row.Amount, upd)
			if err := st.db.Save(&row).Error; err != nil {
				return translate(err)
			}
			recordID = row.RecordID
		} else {
			var row earning
			if err := st.db.First(&row, rowID).Error; err != nil {
				return translate(err)
			}
			applyUpdate(&row.Name, &row.Amount, upd)
			if err := st.db.Save(&row).Error; err != nil {
				return translate(err)
			}
			recordID = row.RecordID
		}
		return st.recomputeTotals(recordID)
	})
}

func applyUpdate(name *string, amount *int64, upd storage.Update) {
	if upd.Description != nil {
		*name = *upd.Description
	}
	if upd.Amount != nil {
		*amount = *upd.Amount
	}
}

func (s *Store) DeleteTransaction(ctx context.Context, id, ownerID uint) error {
	if ownerID != s.ownerID {
		return apperrors.ErrTransactionNotFound
	}
	rowID, isExpense := decodeID(id)

	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)
		var recordID uint

		if isExpense {
			var row expense
			if err := st.db.First(&row, rowID).Error; err != nil {
				return translate(err)
			}
			recordID = row.RecordID
			if err := st.db.Delete(&row).Error; err != nil {
				return translate(err)
			}
		} else {
			var row earning
			if err := st.db.First(&row, rowID).Error; err != nil {
				return translate(err)
			}
			recordID = row.RecordID
			if err := st.db.Delete(&row).Error; err != nil {
				return translate(err)
			}
		}
		return st.recomputeTotals(recordID)
	})
}

// recomputeTotals refreshes a record's stored totals after an item edit.
func (s *Store) recomputeTotals(recordID uint) error {
	var totalEarning, totalExpenses int64
	if err := s.db.Model(&earning{}).Where("record_id = ?", recordID).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalEarning).Error; err != nil {
		return translate(err)
	}
	if err := s.db.Model(&expense{}).Where("record_id = ?", recordID).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalExpenses).Error; err != nil {
		return translate(err)
	}
	err := s.db.Model(&record{}).Where("id = ?", recordID).Updates(map[string]interface{}{
		"total_earning":  totalEarning,
		"total_expenses": totalExpenses,
		"net":            totalEarning - totalExpenses,
	}).Error
	return translate(err)
}

func (s *Store) DeleteUser(ctx context.Context, ownerID uint) error {
	if ownerID != s.ownerID {
		return apperrors.ErrUserNotFound
	}
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)
		for _, model := range []interface{}{&earning{}, &expense{}, &record{}} {
			if err := st.db.Where("1 = 1").Delete(model).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var earnings, expenses int64
	if err := s.db.WithContext(ctx).Model(&earning{}).Count(&earnings).Error; err != nil {
		return 0, translate(err)
	}
	if err := s.db.WithContext(ctx).Model(&expense{}).Count(&expenses).Error; err != nil {
		return 0, translate(err)
	}
	return earnings + expenses, nil
}

func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps sqlite-native failures into the application taxonomy.
// This generation only ever runs on sqlite.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrTransactionNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrStorageBusy, err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return apperrors.Wrap(apperrors.ErrStorageBusy, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck:
			return apperrors.Wrap(apperrors.ErrInvalidInput, err)
		}
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
