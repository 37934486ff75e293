package ledger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// Exporter refreshes the CSV snapshot after a submission. Implemented by
// the export engine; kept as an interface so the side channel stays
// fire-and-forget from the service's point of view.
type Exporter interface {
	SnapshotFile(ctx context.Context, ownerID uint, path string) error
}

// snapshotTimeout bounds the background snapshot refresh.
const snapshotTimeout = 30 * time.Second

// Service handles ledger business logic over a storage backend.
type Service struct {
	backend    storage.Backend
	exporter   Exporter
	exportPath string
	log        *zap.SugaredLogger
}

// NewService creates a ledger service. exporter may be nil (or exportPath
// empty) to disable the snapshot side channel.
func NewService(backend storage.Backend, exporter Exporter, exportPath string, log *zap.SugaredLogger) *Service {
	return &Service{backend: backend, exporter: exporter, exportPath: exportPath, log: log}
}

// SubmissionResult is what the submission collaborator gets back: the
// persisted item lists, totals, net, and a status tag.
type SubmissionResult struct {
	IDs           []uint            `json:"ids"`
	Earnings      []models.LineItem `json:"earning_items"`
	TotalEarning  int64             `json:"total_earning"`
	Expenses      []models.LineItem `json:"expense_items"`
	TotalExpenses int64             `json:"total_expenses"`
	Net           int64             `json:"net"`
	Status        models.Status     `json:"status"`
	Dropped       int               `json:"dropped"`
}

// Submit persists a batch of line items for one owner.
//
// Items with an empty name, a non-positive amount, or an unknown kind are
// dropped individually and silently; partial validity never fails the
// batch, and a batch with zero valid items still succeeds with an empty
// result. Valid items are written as one atomic multi-row insert. After
// the commit a snapshot refresh is kicked off in the background; its
// failure is logged and never affects the submission's outcome.
func (s *Service) Submit(ctx context.Context, ownerID uint, date time.Time, items []storage.Item) (*SubmissionResult, error) {
	if date.IsZero() {
		date = time.Now()
	}

	result := &SubmissionResult{
		Earnings: []models.LineItem{},
		Expenses: []models.LineItem{},
	}
	valid := make([]storage.Item, 0, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" || it.Amount <= 0 || !it.Kind.Valid() {
			result.Dropped++
			continue
		}
		valid = append(valid, it)
		switch it.Kind {
		case models.KindEarning:
			result.Earnings = append(result.Earnings, models.LineItem{Name: it.Name, Amount: it.Amount})
			result.TotalEarning += it.Amount
		case models.KindExpense:
			result.Expenses = append(result.Expenses, models.LineItem{Name: it.Name, Amount: it.Amount})
			result.TotalExpenses += it.Amount
		}
	}
	result.Net = result.TotalEarning - result.TotalExpenses
	result.Status = models.StatusFor(result.TotalEarning, result.TotalExpenses)

	if len(valid) > 0 {
		ids, err := s.backend.InsertTransactions(ctx, ownerID, date, valid)
		if err != nil {
			return nil, err
		}
		result.IDs = ids
	}

	s.refreshSnapshot(ownerID)
	return result, nil
}

// refreshSnapshot rewrites the CSV side channel in the background. The
// submission has already committed; only the observability log ever
// hears about a failure here.
func (s *Service) refreshSnapshot(ownerID uint) {
	if s.exporter == nil || s.exportPath == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := s.exporter.SnapshotFile(ctx, ownerID, s.exportPath); err != nil {
			s.log.Warnw("snapshot refresh failed",
				"owner_id", ownerID,
				"path", s.exportPath,
				"error", err,
			)
		}
	}()
}

// History returns the owner's daily summaries, always recomputed from
// the stored transactions.
func (s *Service) History(ctx context.Context, ownerID uint, rng *storage.DateRange) ([]models.DailySummary, error) {
	txs, err := s.backend.QueryByOwner(ctx, ownerID, rng)
	if err != nil {
		return nil, err
	}
	return Aggregate(ownerID, txs), nil
}

// Transactions returns the owner's raw line items, ordered by date then id.
func (s *Service) Transactions(ctx context.Context, ownerID uint, rng *storage.DateRange) ([]models.Transaction, error) {
	return s.backend.QueryByOwner(ctx, ownerID, rng)
}

// UpdateTransaction edits description and/or amount of an owned
// transaction. The kind is immutable and not part of the update shape;
// an amount of zero or less is rejected before storage is touched, and
// a cleared description is rejected the same way.
func (s *Service) UpdateTransaction(ctx context.Context, id, ownerID uint, upd storage.Update) error {
	if upd.Amount != nil && *upd.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if upd.Description != nil {
		trimmed := strings.TrimSpace(*upd.Description)
		if trimmed == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "description must not be empty")
		}
		upd.Description = &trimmed
	}
	return s.backend.UpdateTransaction(ctx, id, ownerID, upd)
}

// DeleteTransaction removes an owned transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id, ownerID uint) error {
	return s.backend.DeleteTransaction(ctx, id, ownerID)
}

// DeleteOwner removes a user and all of their transactions.
func (s *Service) DeleteOwner(ctx context.Context, ownerID uint) error {
	return s.backend.DeleteUser(ctx, ownerID)
}
