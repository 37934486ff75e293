// Package testutil provides test helpers for setting up in-memory
// databases, creating fixtures, and making assertions.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"dayledger/internal/storage/sqlstore"
)

// SetupTestStore creates an isolated in-memory sqlite store with the
// normalized schema migrated. Each call gets its own shared-cache
// database so the connection pool sees one schema and tests stay
// independent of each other.
func SetupTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", nextID())
	store, err := sqlstore.Open(sqlite.Open(dsn), 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return store
}

// TeardownTestStore closes the underlying database connection.
func TeardownTestStore(t *testing.T, store *sqlstore.Store) {
	t.Helper()

	if err := store.Close(); err != nil {
		t.Errorf("failed to close test store: %v", err)
	}
}
