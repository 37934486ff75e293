package recordstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dayledger/internal/models"
	"dayledger/internal/storage"
	"dayledger/internal/testutil"
)

const ownerID = 1

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	store, err := Open(path, ownerID, 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestIDEncoding(t *testing.T) {
	cases := []struct {
		rowID     uint
		isExpense bool
		want      uint
	}{
		{1, false, 2},
		{1, true, 3},
		{7, false, 14},
		{7, true, 15},
	}
	for _, c := range cases {
		got := encodeID(c.rowID, c.isExpense)
		if got != c.want {
			t.Errorf("encodeID(%d, %v) = %d, want %d", c.rowID, c.isExpense, got, c.want)
		}
		rowID, isExpense := decodeID(got)
		if rowID != c.rowID || isExpense != c.isExpense {
			t.Errorf("decodeID(%d) = (%d, %v), want (%d, %v)", got, rowID, isExpense, c.rowID, c.isExpense)
		}
	}
}

func TestInsertTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("one_record_with_child_rows", func(t *testing.T) {
		store := openTemp(t)
		ids, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
			{Kind: models.KindExpense, Name: "Food", Amount: 40},
		})
		testutil.AssertNoError(t, err)
		if len(ids) != 2 {
			t.Fatalf("expected 2 ids, got %d", len(ids))
		}
		if ids[0]%2 != 0 || ids[1]%2 != 1 {
			t.Errorf("expected earning id even and expense id odd, got %v", ids)
		}

		var rec record
		if err := store.db.Preload("Earnings").Preload("Expenses").First(&rec).Error; err != nil {
			t.Fatalf("record not found: %v", err)
		}
		if rec.TotalEarning != 150 || rec.TotalExpenses != 40 || rec.Net != 110 {
			t.Errorf("unexpected stored totals: %+v", rec)
		}
		if rec.Date != "2024-03-15 12:00:00" {
			t.Errorf("unexpected date text: %s", rec.Date)
		}
		if len(rec.Earnings) != 1 || len(rec.Expenses) != 1 {
			t.Errorf("unexpected child rows: %d earnings, %d expenses", len(rec.Earnings), len(rec.Expenses))
		}
	})

	t.Run("wrong_owner", func(t *testing.T) {
		store := openTemp(t)
		_, err := store.InsertTransactions(ctx, ownerID+1, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
		})
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("invalid_item_fails_whole_batch", func(t *testing.T) {
		store := openTemp(t)
		_, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
			{Kind: models.KindExpense, Name: "Free", Amount: -1},
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		n, err := store.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected no rows after failed batch, got %d", n)
		}
	})
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls_back_record_and_children", func(t *testing.T) {
		store := openTemp(t)
		boom := errors.New("boom")
		err := store.WithTransaction(ctx, func(tx storage.Backend) error {
			if _, err := tx.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
				{Kind: models.KindEarning, Name: "Work", Amount: 150},
			}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the inner error back, got %v", err)
		}

		n, err := store.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected rollback, found %d transactions", n)
		}
		var recs int64
		if err := store.db.Model(&record{}).Count(&recs).Error; err != nil {
			t.Fatal(err)
		}
		if recs != 0 {
			t.Errorf("expected no record rows, got %d", recs)
		}
	})
}

func TestQueryByOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("flattens_and_orders", func(t *testing.T) {
		store := openTemp(t)
		_, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 16), []storage.Item{
			{Kind: models.KindExpense, Name: "Later", Amount: 40},
		})
		testutil.AssertNoError(t, err)
		_, err = store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Earlier", Amount: 150},
		})
		testutil.AssertNoError(t, err)

		txs, err := store.QueryByOwner(ctx, ownerID, nil)
		testutil.AssertNoError(t, err)
		if len(txs) != 2 || txs[0].Description != "Earlier" || txs[1].Description != "Later" {
			t.Fatalf("unexpected order: %+v", txs)
		}
		if txs[0].Kind != models.KindEarning || txs[1].Kind != models.KindExpense {
			t.Errorf("kinds lost in flattening: %+v", txs)
		}
	})

	t.Run("foreign_owner_sees_nothing", func(t *testing.T) {
		store := openTemp(t)
		_, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
		})
		testutil.AssertNoError(t, err)

		txs, err := store.QueryByOwner(ctx, ownerID+1, nil)
		testutil.AssertNoError(t, err)
		if len(txs) != 0 {
			t.Errorf("expected empty result, got %d", len(txs))
		}
	})
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("updates_item_and_totals", func(t *testing.T) {
		store := openTemp(t)
		ids, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
			{Kind: models.KindExpense, Name: "Food", Amount: 40},
		})
		testutil.AssertNoError(t, err)

		amount := int64(60)
		testutil.AssertNoError(t, store.UpdateTransaction(ctx, ids[1], ownerID, storage.Update{Amount: &amount}))

		var rec record
		if err := store.db.First(&rec).Error; err != nil {
			t.Fatal(err)
		}
		if rec.TotalExpenses != 60 || rec.Net != 90 {
			t.Errorf("totals not recomputed: %+v", rec)
		}
	})

	t.Run("unknown_id", func(t *testing.T) {
		store := openTemp(t)
		desc := "x"
		err := store.UpdateTransaction(ctx, 99, ownerID, storage.Update{Description: &desc})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("wrong_owner_is_not_found", func(t *testing.T) {
		store := openTemp(t)
		ids, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
		})
		testutil.AssertNoError(t, err)

		amount := int64(1)
		err = store.UpdateTransaction(ctx, ids[0], ownerID+1, storage.Update{Amount: &amount})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("removes_child_row_and_recomputes", func(t *testing.T) {
		store := openTemp(t)
		ids, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
			{Kind: models.KindExpense, Name: "Food", Amount: 40},
		})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, store.DeleteTransaction(ctx, ids[1], ownerID))

		n, err := store.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 1 {
			t.Errorf("expected 1 remaining transaction, got %d", n)
		}
		var rec record
		if err := store.db.First(&rec).Error; err != nil {
			t.Fatal(err)
		}
		if rec.TotalExpenses != 0 || rec.Net != 150 {
			t.Errorf("totals not recomputed: %+v", rec)
		}
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("clears_all_tables", func(t *testing.T) {
		store := openTemp(t)
		_, err := store.InsertTransactions(ctx, ownerID, day(2024, 3, 15), []storage.Item{
			{Kind: models.KindEarning, Name: "Work", Amount: 150},
			{Kind: models.KindExpense, Name: "Food", Amount: 40},
		})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, store.DeleteUser(ctx, ownerID))

		n, err := store.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected empty store, got %d", n)
		}
		var recs int64
		if err := store.db.Model(&record{}).Count(&recs).Error; err != nil {
			t.Fatal(err)
		}
		if recs != 0 {
			t.Errorf("expected no record rows, got %d", recs)
		}
	})

	t.Run("wrong_owner", func(t *testing.T) {
		store := openTemp(t)
		err := store.DeleteUser(ctx, ownerID+1)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}
