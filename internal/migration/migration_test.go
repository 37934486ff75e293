package migration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"dayledger/internal/migration"
	"dayledger/internal/models"
	"dayledger/internal/storage/filestore"
	"dayledger/internal/testutil"
)

func writeLegacyFile(t *testing.T, contents string) *filestore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := filestore.Open(path, 1)
	if err != nil {
		t.Fatalf("failed to open legacy store: %v", err)
	}
	return store
}

const legacyTwoRecords = `{"records": [
	{"date": "2024-03-15 09:30:00",
	 "earnings": [{"name": "Work", "amount": 150}],
	 "total_earning": 150,
	 "expenses": [{"name": "Food", "amount": 40}],
	 "total_expenses": 40,
	 "net": 110},
	{"date": "2024-03-16 18:00:00",
	 "earnings": [],
	 "total_earning": 0,
	 "expenses": [{"name": "Rent", "amount": 500}],
	 "total_expenses": 500,
	 "net": -500}
]}`

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("moves_every_record", func(t *testing.T) {
		src := writeLegacyFile(t, legacyTwoRecords)
		dst := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, dst)
		user := testutil.CreateTestUser(t, dst)

		engine := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar())
		report, err := engine.Run(ctx)
		testutil.AssertNoError(t, err)

		if report.State != migration.StateCompleted {
			t.Errorf("expected completed state, got %s", report.State)
		}
		if report.Migrated != 2 || report.Failed != 0 {
			t.Errorf("unexpected counts: %+v", report)
		}

		txs, err := dst.QueryByOwner(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)
		if len(txs) != 3 {
			t.Fatalf("expected 3 migrated transactions, got %d", len(txs))
		}
		// Original timestamps survive, not just the calendar day.
		if got := txs[0].Date.Format(models.TimeLayout); got != "2024-03-15 09:30:00" {
			t.Errorf("timestamp not preserved: %s", got)
		}
		if txs[0].Kind != models.KindEarning || txs[1].Kind != models.KindExpense {
			t.Errorf("kinds lost: %+v", txs[:2])
		}
	})

	t.Run("nonempty_target_aborts_with_zero_writes", func(t *testing.T) {
		src := writeLegacyFile(t, legacyTwoRecords)
		dst := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, dst)
		user := testutil.CreateTestUser(t, dst)
		testutil.CreateTestTransaction(t, dst, user.ID, models.KindEarning, "Existing", 10, testutil.Day(2024, 1, 1))

		engine := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar())
		report, err := engine.Run(ctx)
		testutil.AssertAppError(t, err, "MIGRATION_DUPLICATION_RISK")

		if report.State != migration.StateAborted {
			t.Errorf("expected aborted state, got %s", report.State)
		}
		if engine.State() != migration.StateAborted {
			t.Errorf("engine state not aborted: %s", engine.State())
		}

		n, err := dst.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 1 {
			t.Errorf("target changed despite abort: %d transactions", n)
		}
	})

	t.Run("second_run_rejected", func(t *testing.T) {
		src := writeLegacyFile(t, legacyTwoRecords)
		dst := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, dst)
		user := testutil.CreateTestUser(t, dst)

		engine := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar())
		_, err := engine.Run(ctx)
		testutil.AssertNoError(t, err)

		_, err = engine.Run(ctx)
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		// A fresh engine against the now-populated target aborts instead.
		second := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar())
		_, err = second.Run(ctx)
		testutil.AssertAppError(t, err, "MIGRATION_DUPLICATION_RISK")

		n, err := dst.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 3 {
			t.Errorf("expected data unchanged at 3 transactions, got %d", n)
		}
	})

	t.Run("bad_record_is_counted_and_skipped", func(t *testing.T) {
		src := writeLegacyFile(t, `{"records": [
			{"date": "not a date",
			 "earnings": [{"name": "Lost", "amount": 10}],
			 "total_earning": 10, "expenses": [], "total_expenses": 0, "net": 10},
			{"date": "2024-03-15 09:30:00",
			 "earnings": [{"name": "Kept", "amount": 20}],
			 "total_earning": 20, "expenses": [], "total_expenses": 0, "net": 20}
		]}`)
		dst := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, dst)
		user := testutil.CreateTestUser(t, dst)

		report, err := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar()).Run(ctx)
		testutil.AssertNoError(t, err)
		if report.State != migration.StateCompleted || report.Migrated != 1 || report.Failed != 1 {
			t.Errorf("unexpected report: %+v", report)
		}

		txs, err := dst.QueryByOwner(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)
		if len(txs) != 1 || txs[0].Description != "Kept" {
			t.Fatalf("expected only the good record, got %+v", txs)
		}
	})

	t.Run("itemless_record_counts_as_migrated", func(t *testing.T) {
		src := writeLegacyFile(t, `{"records": [
			{"date": "2024-03-15 09:30:00",
			 "earnings": [], "total_earning": 0,
			 "expenses": [], "total_expenses": 0, "net": 0}
		]}`)
		dst := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, dst)
		user := testutil.CreateTestUser(t, dst)

		report, err := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar()).Run(ctx)
		testutil.AssertNoError(t, err)
		if report.Migrated != 1 || report.Failed != 0 {
			t.Errorf("unexpected report: %+v", report)
		}

		n, err := dst.CountTransactions(ctx)
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("itemless record must write nothing, got %d rows", n)
		}
	})
}

func TestSnapshotSource(t *testing.T) {
	ctx := context.Background()

	t.Run("csv_snapshot_as_source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.csv")
		csv := "Date,Earnings,Total Earning,Expenses,Total Expenses,Net\n" +
			"2024-03-15,Work: 150,150,Food: 40,40,110\n"
		if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
			t.Fatal(err)
		}

		dst := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, dst)
		user := testutil.CreateTestUser(t, dst)

		src := migration.NewSnapshotSource(path)
		report, err := migration.NewEngine(src, dst, user.ID, zap.NewNop().Sugar()).Run(ctx)
		testutil.AssertNoError(t, err)
		if report.Migrated != 1 {
			t.Errorf("unexpected report: %+v", report)
		}

		txs, err := dst.QueryByOwner(ctx, user.ID, nil)
		testutil.AssertNoError(t, err)
		if len(txs) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(txs))
		}
		if txs[0].Description != "Work" || txs[1].Description != "Food" {
			t.Errorf("unexpected transactions: %+v", txs)
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		src := migration.NewSnapshotSource(filepath.Join(t.TempDir(), "absent.csv"))
		_, err := src.Records()
		testutil.AssertAppError(t, err, "STORAGE_UNAVAILABLE")
	})
}
