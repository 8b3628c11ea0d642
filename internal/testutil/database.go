package testutil

import (
	"testing"

	"smbsync/internal/backup"
	"smbsync/internal/database"
)

// NewTestLedger creates a new in-memory SQLite ledger with schema applied.
// The ledger is automatically closed when the test completes.
func NewTestLedger(t *testing.T) backup.Ledger {
	t.Helper()
	return NewTestLedgerWithClock(t, backup.RealClock{})
}

// NewTestLedgerWithClock is NewTestLedger with an explicit clock, for tests
// that assert on timestamps.
func NewTestLedgerWithClock(t *testing.T, clock backup.Clock) backup.Ledger {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	ledger := database.NewSQLiteLedgerFromDB(sqlDB, clock)

	t.Cleanup(func() {
		ledger.Close()
	})

	return ledger
}
