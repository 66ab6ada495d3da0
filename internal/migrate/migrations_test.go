package migrate_test

import (
	"testing"

	"github.com/edwinlov3tt/approval-dashboard/internal/db"
	"github.com/edwinlov3tt/approval-dashboard/internal/migrate"
)

func TestMigrateAppliesAllStepsOnce(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version < 2 {
		t.Fatalf("expected schema version >= 2, got %d", version)
	}
	for _, table := range []string{"advertisers", "approval_requests", "approval_activity", "approvers"} {
		var name string
		if err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}

	// second run is a no-op, not an error
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	var again int
	_ = conn.QueryRow(`PRAGMA user_version`).Scan(&again)
	if again != version {
		t.Fatalf("version moved on no-op run: %d -> %d", version, again)
	}
}
