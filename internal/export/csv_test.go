package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dayledger/internal/export"
	"dayledger/internal/models"
	"dayledger/internal/testutil"
)

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("one_row_per_date_bucket", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)

		day1 := testutil.Day(2024, 3, 15)
		day2 := testutil.Day(2024, 3, 16)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindEarning, "Work", 150, day1)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindExpense, "Food", 40, day1)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindExpense, "Rent", 500, day2)

		var buf bytes.Buffer
		res, err := export.NewEngine(store).Snapshot(ctx, user.ID, &buf)
		testutil.AssertNoError(t, err)
		if res.NoOp || res.Rows != 2 {
			t.Fatalf("unexpected result: %+v", res)
		}

		rows, err := csv.NewReader(&buf).ReadAll()
		testutil.AssertNoError(t, err)
		if len(rows) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d", len(rows))
		}
		want := []string{"Date", "Earnings", "Total Earning", "Expenses", "Total Expenses", "Net"}
		for i, col := range want {
			if rows[0][i] != col {
				t.Fatalf("unexpected header: %v", rows[0])
			}
		}
		if rows[1][0] != "2024-03-15" || rows[2][0] != "2024-03-16" {
			t.Errorf("rows not date-ascending: %v, %v", rows[1][0], rows[2][0])
		}
		if rows[1][1] != "Work: 150" || rows[1][3] != "Food: 40" {
			t.Errorf("unexpected flattened items: %v", rows[1])
		}
		if rows[1][2] != "150" || rows[1][4] != "40" || rows[1][5] != "110" {
			t.Errorf("unexpected totals: %v", rows[1])
		}
		if rows[2][1] != "" || rows[2][5] != "-500" {
			t.Errorf("expected empty earnings column and negative net: %v", rows[2])
		}
	})

	t.Run("multiple_items_comma_joined", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)
		day := testutil.Day(2024, 3, 15)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindEarning, "Work", 150, day)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindEarning, "Side gig", 50, day)

		var buf bytes.Buffer
		_, err := export.NewEngine(store).Snapshot(ctx, user.ID, &buf)
		testutil.AssertNoError(t, err)

		rows, err := csv.NewReader(&buf).ReadAll()
		testutil.AssertNoError(t, err)
		if rows[1][1] != "Work: 150, Side gig: 50" {
			t.Errorf("unexpected earnings column: %q", rows[1][1])
		}
	})

	t.Run("empty_scope_is_noop", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)

		var buf bytes.Buffer
		res, err := export.NewEngine(store).Snapshot(ctx, user.ID, &buf)
		testutil.AssertNoError(t, err)
		if !res.NoOp {
			t.Error("expected NoOp for empty scope")
		}
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})

	t.Run("deterministic_output", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)
		day := testutil.Day(2024, 3, 15)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindEarning, "Work", 150, day)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindExpense, "Food", 40, day)

		engine := export.NewEngine(store)
		var first, second bytes.Buffer
		_, err := engine.Snapshot(ctx, user.ID, &first)
		testutil.AssertNoError(t, err)
		_, err = engine.Snapshot(ctx, user.ID, &second)
		testutil.AssertNoError(t, err)
		if first.String() != second.String() {
			t.Error("identical data must snapshot to identical bytes")
		}
	})
}

func TestSnapshotFile(t *testing.T) {
	ctx := context.Background()

	t.Run("leaves_file_untouched_on_noop", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)

		path := filepath.Join(t.TempDir(), "snapshot.csv")
		if err := os.WriteFile(path, []byte("previous content"), 0o644); err != nil {
			t.Fatal(err)
		}

		err := export.NewEngine(store).SnapshotFile(ctx, user.ID, path)
		testutil.AssertNoError(t, err)

		data, err := os.ReadFile(path)
		testutil.AssertNoError(t, err)
		if string(data) != "previous content" {
			t.Errorf("file rewritten on empty scope: %q", data)
		}
	})

	t.Run("writes_snapshot", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindEarning, "Work", 150, testutil.Day(2024, 3, 15))

		path := filepath.Join(t.TempDir(), "snapshot.csv")
		err := export.NewEngine(store).SnapshotFile(ctx, user.ID, path)
		testutil.AssertNoError(t, err)

		data, err := os.ReadFile(path)
		testutil.AssertNoError(t, err)
		if !strings.HasPrefix(string(data), "Date,Earnings,") {
			t.Errorf("unexpected file contents: %q", data)
		}
	})
}

func TestParseSnapshot(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		store := testutil.SetupTestStore(t)
		defer testutil.TeardownTestStore(t, store)
		user := testutil.CreateTestUser(t, store)
		day := testutil.Day(2024, 3, 15)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindEarning, "Work", 150, day)
		testutil.CreateTestTransaction(t, store, user.ID, models.KindExpense, "Food", 40, day)

		var buf bytes.Buffer
		_, err := export.NewEngine(store).Snapshot(context.Background(), user.ID, &buf)
		testutil.AssertNoError(t, err)

		recs, err := export.ParseSnapshot(&buf)
		testutil.AssertNoError(t, err)
		if len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
		rec := recs[0]
		if rec.Date != "2024-03-15" {
			t.Errorf("unexpected date: %s", rec.Date)
		}
		if len(rec.Earnings) != 1 || rec.Earnings[0].Name != "Work" || rec.Earnings[0].Amount != 150 {
			t.Errorf("unexpected earnings: %+v", rec.Earnings)
		}
		if len(rec.Expenses) != 1 || rec.Expenses[0].Name != "Food" || rec.Expenses[0].Amount != 40 {
			t.Errorf("unexpected expenses: %+v", rec.Expenses)
		}
		if rec.TotalEarning != 150 || rec.TotalExpenses != 40 || rec.Net != 110 {
			t.Errorf("totals not recomputed: %+v", rec)
		}
	})

	t.Run("name_containing_colon_space", func(t *testing.T) {
		in := strings.NewReader(`2024-03-15,"Job: extra: 75",75,,0,75` + "\n")
		recs, err := export.ParseSnapshot(in)
		testutil.AssertNoError(t, err)
		if len(recs) != 1 || len(recs[0].Earnings) != 1 {
			t.Fatalf("unexpected records: %+v", recs)
		}
		// The amount is split off the last ": " so the name keeps its own.
		if recs[0].Earnings[0].Name != "Job: extra" || recs[0].Earnings[0].Amount != 75 {
			t.Errorf("unexpected item: %+v", recs[0].Earnings[0])
		}
	})

	t.Run("empty_input", func(t *testing.T) {
		recs, err := export.ParseSnapshot(strings.NewReader(""))
		testutil.AssertNoError(t, err)
		if len(recs) != 0 {
			t.Errorf("expected no records, got %d", len(recs))
		}
	})

	t.Run("malformed_item", func(t *testing.T) {
		_, err := export.ParseSnapshot(strings.NewReader("2024-03-15,garbage,0,,0,0\n"))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("wrong_column_count", func(t *testing.T) {
		_, err := export.ParseSnapshot(strings.NewReader("a,b\n"))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
