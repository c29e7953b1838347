package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

// newTransactionTestDB opens a fresh SQLite database with a findings table.
func newTransactionTestDB(t *testing.T) Database {
	t.Helper()
	ctx := context.Background()

	db, err := NewDatabase(ctx, "sqlite:///"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Session(ctx).Exec(
		"CREATE TABLE findings (id INTEGER PRIMARY KEY, container TEXT, field TEXT)",
	).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func countFindings(t *testing.T, db Database) int64 {
	t.Helper()
	var count int64
	if err := db.Session(context.Background()).Raw("SELECT COUNT(*) FROM findings").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestTransaction_Commit(t *testing.T) {
	ctx := context.Background()
	db := newTransactionTestDB(t)

	txn, err := NewTransaction(ctx, db)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if txn.Session() == nil {
		t.Fatal("Session() returned nil")
	}

	if err := txn.Session().Exec(
		"INSERT INTO findings (container, field) VALUES (?, ?)", "customers", "email",
	).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := countFindings(t, db); got != 1 {
		t.Errorf("expected 1 row after commit, got %d", got)
	}

	// Commit and rollback after commit are no-ops.
	if err := txn.Commit(); err != nil {
		t.Errorf("second Commit should not error: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Errorf("Rollback after Commit should not error: %v", err)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	ctx := context.Background()
	db := newTransactionTestDB(t)

	txn, err := NewTransaction(ctx, db)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	if err := txn.Session().Exec(
		"INSERT INTO findings (container, field) VALUES (?, ?)", "customers", "email",
	).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if got := countFindings(t, db); got != 0 {
		t.Errorf("expected 0 rows after rollback, got %d", got)
	}

	if err := txn.Rollback(); err != nil {
		t.Errorf("second Rollback should not error: %v", err)
	}
}

func TestWithTransaction_Success(t *testing.T) {
	ctx := context.Background()
	db := newTransactionTestDB(t)

	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		return tx.Exec(
			"INSERT INTO findings (container, field) VALUES (?, ?)", "customers", "nik",
		).Error
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}

	if got := countFindings(t, db); got != 1 {
		t.Errorf("expected 1 row, got %d", got)
	}
}

func TestWithTransaction_ErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTransactionTestDB(t)

	testErr := errors.New("recognizer unavailable")
	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Exec(
			"INSERT INTO findings (container, field) VALUES (?, ?)", "customers", "nik",
		).Error; err != nil {
			return err
		}
		return testErr
	})
	if !errors.Is(err, testErr) {
		t.Errorf("expected wrapped error, got: %v", err)
	}

	if got := countFindings(t, db); got != 0 {
		t.Errorf("expected 0 rows after error, got %d", got)
	}
}
