// Package sqlstore is the current storage generation: the normalized
// users/transactions schema on gorm, embedded (sqlite) or networked
// (postgres). It is the only generation safe under concurrent writers;
// every logical operation runs inside exactly one database transaction
// and relies on the engine's locking within that boundary.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// Store implements storage.Backend and storage.UserDirectory.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
	inTx    bool
}

// Open connects through the given gorm dialector. timeout bounds every
// storage operation that does not already carry a deadline.
func Open(dialector gorm.Dialector, timeout time.Duration) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db, timeout: timeout}, nil
}

// OpenSQLite opens the embedded generation at path with foreign keys on.
func OpenSQLite(path string, timeout time.Duration) (*Store, error) {
	return Open(sqlite.Open(fmt.Sprintf("%s?_fk=1", path)), timeout)
}

// OpenPostgres opens the networked generation.
func OpenPostgres(dsn string, timeout time.Duration) (*Store, error) {
	return Open(postgres.New(postgres.Config{DSN: dsn}), timeout)
}

// AutoMigrate creates the schema. The sqlite generation migrates itself
// this way; postgres schemas are applied by cmd/migrate instead.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&models.User{}, &models.Transaction{}); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

// DB exposes the underlying gorm handle for test setup.
func (s *Store) DB() *gorm.DB { return s.db }

// bound applies the configured timeout when ctx has no deadline yet.
func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// WithTransaction runs fn inside one database transaction. A nested call
// from within a transaction scope joins the enclosing unit.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx storage.Backend) error) error {
	if s.inTx {
		return fn(s)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, timeout: s.timeout, inTx: true})
	})
	return translate(err)
}

func (s *Store) InsertTransactions(ctx context.Context, ownerID uint, date time.Time, items []storage.Item) ([]uint, error) {
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyBatch
	}
	rows := make([]models.Transaction, 0, len(items))
	for _, it := range items {
		if !it.Kind.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown transaction kind")
		}
		if it.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		rows = append(rows, models.Transaction{
			Date:        date,
			Description: it.Name,
			Amount:      it.Amount,
			Kind:        it.Kind,
			UserID:      ownerID,
		})
	}

	err := s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)
		if err := st.db.Create(&rows).Error; err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

func (s *Store) QueryByOwner(ctx context.Context, ownerID uint, rng *storage.DateRange) ([]models.Transaction, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if rng != nil {
		if rng.From != nil {
			q = q.Where("date >= ?", *rng.From)
		}
		if rng.To != nil {
			q = q.Where("date <= ?", *rng.To)
		}
	}

	var txs []models.Transaction
	if err := q.Order("date ASC, id ASC").Find(&txs).Error; err != nil {
		return nil, translate(err)
	}
	return txs, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id, ownerID uint, upd storage.Update) error {
	if upd.Amount != nil && *upd.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)

		var row models.Transaction
		if err := st.db.Where("id = ? AND user_id = ?", id, ownerID).First(&row).Error; err != nil {
			return translate(err)
		}
		if upd.Description != nil {
			row.Description = *upd.Description
		}
		if upd.Amount != nil {
			row.Amount = *upd.Amount
		}
		if err := st.db.Save(&row).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id, ownerID uint) error {
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)
		res := st.db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Transaction{})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrTransactionNotFound
		}
		return nil
	})
}

// DeleteUser removes the user and all their transactions in one unit.
// The cascade is explicit so it holds even on engines where the foreign
// key pragma is off.
func (s *Store) DeleteUser(ctx context.Context, ownerID uint) error {
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		st := tx.(*Store)
		if err := st.db.Where("user_id = ?", ownerID).Delete(&models.Transaction{}).Error; err != nil {
			return translate(err)
		}
		res := st.db.Delete(&models.User{}, ownerID)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// CreateUser registers a new user with an already hashed credential.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	if username == "" || passwordHash == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username and password are required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	user := &models.User{Username: username, PasswordHash: passwordHash}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, translate(err)
	}
	return &user, nil
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
