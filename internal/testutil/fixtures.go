package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dayledger/internal/models"
	"dayledger/internal/storage/sqlstore"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique username.
func CreateTestUser(t *testing.T, store *sqlstore.Store) *models.User {
	t.Helper()
	return CreateTestUserWithName(t, store, fmt.Sprintf("user%d", nextID()))
}

// CreateTestUserWithName creates a user with the given username.
func CreateTestUserWithName(t *testing.T, store *sqlstore.Store, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{Username: username, PasswordHash: string(hash)}
	if err := store.DB().Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestTransaction creates one transaction of the given kind.
func CreateTestTransaction(t *testing.T, store *sqlstore.Store, ownerID uint, kind models.TransactionKind, name string, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Date:        date,
		Description: name,
		Amount:      amount,
		Kind:        kind,
		UserID:      ownerID,
	}
	if err := store.DB().Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// Day returns noon UTC on the given calendar day, a convenient
// second-precision timestamp inside one daily bucket.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}
