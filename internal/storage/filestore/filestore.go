// Package filestore is the first storage generation: the whole record
// set lives in one JSON document that is loaded into memory and fully
// rewritten on every save.
//
// The rewrite is not crash-atomic: a failure mid-write can corrupt or
// truncate the store. That weakness is part of this generation's
// documented behavior and is deliberately not fixed here; the relational
// generations supersede it for anything beyond single-writer use. The
// store serves exactly one owner, which is all the flat format can
// express.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// document is the on-disk shape: {"records": [...]}.
type document struct {
	Records []models.LegacyRecord `json:"records"`
}

// memRecord pairs a legacy record with the process-local transaction ids
// assigned to its items. Ids are stable within a process, not across
// restarts; the flat format has nowhere to persist them.
type memRecord struct {
	rec        models.LegacyRecord
	earningIDs []uint
	expenseIDs []uint
}

// Store is the flat-file backend. Safe for concurrent readers and a
// single writer within one process; never safe for multiple processes.
type Store struct {
	path    string
	ownerID uint

	mu     sync.Mutex
	recs   []memRecord
	nextID uint
}

// Open loads the JSON document at path, creating an empty store when the
// file does not exist yet. ownerID is the single owner this store serves.
func Open(path string, ownerID uint) (*Store, error) {
	s := &Store{path: path, ownerID: ownerID, nextID: 1}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	for _, rec := range doc.Records {
		s.recs = append(s.recs, s.index(rec))
	}
	return s, nil
}

// index assigns ids to every item of rec, earnings first.
func (s *Store) index(rec models.LegacyRecord) memRecord {
	mr := memRecord{rec: rec}
	for range rec.Earnings {
		mr.earningIDs = append(mr.earningIDs, s.nextID)
		s.nextID++
	}
	for range rec.Expenses {
		mr.expenseIDs = append(mr.expenseIDs, s.nextID)
		s.nextID++
	}
	return mr
}

// save rewrites the entire file. A failure here can leave the file
// truncated; that is the legacy generation's known weakness.
func (s *Store) save() error {
	doc := document{Records: make([]models.LegacyRecord, 0, len(s.recs))}
	for _, mr := range s.recs {
		doc.Records = append(doc.Records, mr.rec)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

// snapshot deep-copies the in-memory state for rollback.
func (s *Store) snapshot() []memRecord {
	cp := make([]memRecord, len(s.recs))
	for i, mr := range s.recs {
		cp[i] = memRecord{
			rec: models.LegacyRecord{
				Date:          mr.rec.Date,
				Earnings:      append([]models.LineItem(nil), mr.rec.Earnings...),
				TotalEarning:  mr.rec.TotalEarning,
				Expenses:      append([]models.LineItem(nil), mr.rec.Expenses...),
				TotalExpenses: mr.rec.TotalExpenses,
				Net:           mr.rec.Net,
			},
			earningIDs: append([]uint(nil), mr.earningIDs...),
			expenseIDs: append([]uint(nil), mr.expenseIDs...),
		}
	}
	return cp
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(apperrors.ErrStorageBusy, err)
		}
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

// WithTransaction runs fn against an unlocked view of the store while
// holding the write lock. The in-memory state is snapshotted first; on
// error it is restored and the file untouched, on success the whole file
// is rewritten once.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx storage.Backend) error) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snapshot()
	beforeNext := s.nextID
	if err := fn(&txStore{s: s}); err != nil {
		s.recs = before
		s.nextID = beforeNext
		return err
	}
	if err := s.save(); err != nil {
		s.recs = before
		s.nextID = beforeNext
		return err
	}
	return nil
}

func (s *Store) InsertTransactions(ctx context.Context, ownerID uint, date time.Time, items []storage.Item) ([]uint, error) {
	var ids []uint
	err := s.WithTransaction(ctx, func(tx storage.Backend) error {
		var err error
		ids, err = tx.InsertTransactions(ctx, ownerID, date, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) QueryByOwner(ctx context.Context, ownerID uint, rng *storage.DateRange) ([]models.Transaction, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryByOwner(ownerID, rng)
}

func (s *Store) UpdateTransaction(ctx context.Context, id, ownerID uint, upd storage.Update) error {
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		return tx.UpdateTransaction(ctx, id, ownerID, upd)
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id, ownerID uint) error {
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		return tx.DeleteTransaction(ctx, id, ownerID)
	})
}

func (s *Store) DeleteUser(ctx context.Context, ownerID uint) error {
	return s.WithTransaction(ctx, func(tx storage.Backend) error {
		return tx.DeleteUser(ctx, ownerID)
	})
}

func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countTransactions(), nil
}

// Records returns a copy of the stored records in their native flat-file
// shape. Only the migration engine should care about this form.
func (s *Store) Records() ([]models.LegacyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LegacyRecord, 0, len(s.recs))
	for _, mr := range s.snapshot() {
		out = append(out, mr.rec)
	}
	return out, nil
}

// Close is a no-op; the file is only held open during saves.
func (s *Store) Close() error { return nil }

// txStore is the view handed to WithTransaction bodies. The outer call
// already holds the lock and performs the save, so these methods mutate
// memory directly.
type txStore struct {
	s *Store
}

// WithTransaction on a transaction view joins the enclosing unit.
func (t *txStore) WithTransaction(ctx context.Context, fn func(tx storage.Backend) error) error {
	return fn(t)
}

func (t *txStore) InsertTransactions(ctx context.Context, ownerID uint, date time.Time, items []storage.Item) ([]uint, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if ownerID != t.s.ownerID {
		return nil, apperrors.ErrUserNotFound
	}
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyBatch
	}

	rec := models.LegacyRecord{Date: date.Format(models.TimeLayout)}
	mr := memRecord{}
	var ids []uint
	for _, it := range items {
		if it.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		item := models.LineItem{Name: it.Name, Amount: it.Amount}
		id := t.s.nextID
		t.s.nextID++
		switch it.Kind {
		case models.KindEarning:
			rec.Earnings = append(rec.Earnings, item)
			mr.earningIDs = append(mr.earningIDs, id)
		case models.KindExpense:
			rec.Expenses = append(rec.Expenses, item)
			mr.expenseIDs = append(mr.expenseIDs, id)
		default:
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown transaction kind")
		}
		ids = append(ids, id)
	}
	rec.TotalEarning, rec.TotalExpenses = rec.Totals()
	rec.Net = rec.TotalEarning - rec.TotalExpenses
	mr.rec = rec
	t.s.recs = append(t.s.recs, mr)
	return ids, nil
}

func (t *txStore) QueryByOwner(ctx context.Context, ownerID uint, rng *storage.DateRange) ([]models.Transaction, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return t.s.queryByOwner(ownerID, rng)
}

func (t *txStore) UpdateTransaction(ctx context.Context, id, ownerID uint, upd storage.Update) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if ownerID != t.s.ownerID {
		return apperrors.ErrTransactionNotFound
	}
	item, mr := t.s.find(id)
	if item == nil {
		return apperrors.ErrTransactionNotFound
	}
	if upd.Amount != nil {
		if *upd.Amount <= 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		item.Amount = *upd.Amount
	}
	if upd.Description != nil {
		item.Name = *upd.Description
	}
	mr.rec.TotalEarning, mr.rec.TotalExpenses = mr.rec.Totals()
	mr.rec.Net = mr.rec.TotalEarning - mr.rec.TotalExpenses
	return nil
}

func (t *txStore) DeleteTransaction(ctx context.Context, id, ownerID uint) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if ownerID != t.s.ownerID {
		return apperrors.ErrTransactionNotFound
	}
	for ri := range t.s.recs {
		mr := &t.s.recs[ri]
		for i, eid := range mr.earningIDs {
			if eid == id {
				mr.rec.Earnings = append(mr.rec.Earnings[:i], mr.rec.Earnings[i+1:]...)
				mr.earningIDs = append(mr.earningIDs[:i], mr.earningIDs[i+1:]...)
				recompute(&mr.rec)
				return nil
			}
		}
		for i, eid := range mr.expenseIDs {
			if eid == id {
				mr.rec.Expenses = append(mr.rec.Expenses[:i], mr.rec.Expenses[i+1:]...)
				mr.expenseIDs = append(mr.expenseIDs[:i], mr.expenseIDs[i+1:]...)
				recompute(&mr.rec)
				return nil
			}
		}
	}
	return apperrors.ErrTransactionNotFound
}

func (t *txStore) DeleteUser(ctx context.Context, ownerID uint) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if ownerID != t.s.ownerID {
		return apperrors.ErrUserNotFound
	}
	t.s.recs = nil
	return nil
}

func (t *txStore) CountTransactions(ctx context.Context) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	return t.s.countTransactions(), nil
}

func (t *txStore) Close() error { return nil }

func recompute(rec *models.LegacyRecord) {
	rec.TotalEarning, rec.TotalExpenses = rec.Totals()
	rec.Net = rec.TotalEarning - rec.TotalExpenses
}

// find locates an item by id. The returned pointers stay valid until the
// next structural mutation.
func (s *Store) find(id uint) (*models.LineItem, *memRecord) {
	for ri := range s.recs {
		mr := &s.recs[ri]
		for i, eid := range mr.earningIDs {
			if eid == id {
				return &mr.rec.Earnings[i], mr
			}
		}
		for i, eid := range mr.expenseIDs {
			if eid == id {
				return &mr.rec.Expenses[i], mr
			}
		}
	}
	return nil, nil
}

func (s *Store) countTransactions() int64 {
	var n int64
	for _, mr := range s.recs {
		n += int64(len(mr.rec.Earnings) + len(mr.rec.Expenses))
	}
	return n
}

func (s *Store) queryByOwner(ownerID uint, rng *storage.DateRange) ([]models.Transaction, error) {
	if ownerID != s.ownerID {
		return nil, nil
	}
	var txs []models.Transaction
	for _, mr := range s.recs {
		// Unparseable legacy dates sort to the beginning rather than
		// making the whole ledger unreadable.
		date, _ := time.Parse(models.TimeLayout, mr.rec.Date)
		if !rng.Contains(date) {
			continue
		}
		for i, it := range mr.rec.Earnings {
			txs = append(txs, models.Transaction{
				ID: mr.earningIDs[i], Date: date, Description: it.Name,
				Amount: it.Amount, Kind: models.KindEarning, UserID: ownerID,
			})
		}
		for i, it := range mr.rec.Expenses {
			txs = append(txs, models.Transaction{
				ID: mr.expenseIDs[i], Date: date, Description: it.Name,
				Amount: it.Amount, Kind: models.KindExpense, UserID: ownerID,
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
