package integration_tests

import (
	"context"
	"testing"

	"github.com/rubiojr/vendorscout/cmd"
)

func TestPendingMigrationsBlockCommands(t *testing.T) {
	ctx := context.Background()
	configPath, _ := CreateTestConfig(t, t.TempDir())

	if err := cmd.CheckPendingMigrations(ctx, configPath); err == nil {
		t.Fatal("Expected pending migrations on a fresh database")
	}

	if err := cmd.RunMigrations(ctx, configPath, false); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if err := cmd.CheckPendingMigrations(ctx, configPath); err != nil {
		t.Fatalf("Expected no pending migrations after migrate: %v", err)
	}

	// Running again is a no-op.
	if err := cmd.RunMigrations(ctx, configPath, false); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	if err := cmd.RunMigrations(ctx, configPath, true); err != nil {
		t.Fatalf("Migration status failed: %v", err)
	}
}
