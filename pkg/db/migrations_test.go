package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"with .sql suffix", "001_test.sql", "001_test"},
		{"uppercase suffix", "002_test.SQL", "002_test"},
		{"no suffix", "003_test", "003_test"},
		{"empty", "", ""},
		{"just .sql", ".sql", ".sql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeVersion(tt.input))
		})
	}
}

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, sql := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
	}
	return dir
}

func TestFindMigrationsSortsAndFilters(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"002_views.sql":  "SELECT 2;",
		"001_tables.sql": "SELECT 1;",
		"notes.txt":      "not a migration",
		"010_later.sql":  "SELECT 10;",
	})

	migrations, err := findMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, "001_tables", migrations[0].Version)
	assert.Equal(t, "002_views", migrations[1].Version)
	assert.Equal(t, "010_later", migrations[2].Version)
}

func TestFindMigrationsMissingDir(t *testing.T) {
	_, err := findMigrations(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestRunMigrationsNilPool(t *testing.T) {
	_, err := RunMigrations(context.Background(), nil, "migrations")
	assert.Error(t, err)
}

func TestRunMigrationsToEmptyTarget(t *testing.T) {
	_, err := RunMigrationsTo(context.Background(), nil, "migrations", "")
	assert.Error(t, err)
}

func TestRunMigrationsAppliesAndSkips(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	pool := setupTestDB(t)
	defer pool.Close()
	defer cleanupMigrationState(t, pool, "mig_test_a", "mig_test_b")

	dir := writeMigrations(t, map[string]string{
		"001_create_a.sql": "CREATE TABLE mig_test_a (id INT);",
		"002_create_b.sql": "CREATE TABLE mig_test_b (id INT);",
	})

	result, err := RunMigrations(ctx, pool, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_a", "002_create_b"}, result.Applied)
	assert.Empty(t, result.Skipped)

	// Second run is a no-op.
	result, err = RunMigrations(ctx, pool, dir)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Len(t, result.Skipped, 2)
}

func TestRunMigrationsToTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	pool := setupTestDB(t)
	defer pool.Close()
	defer cleanupMigrationState(t, pool, "mig_target_a", "mig_target_b", "mig_target_c")

	dir := writeMigrations(t, map[string]string{
		"001_a.sql": "CREATE TABLE mig_target_a (id INT);",
		"002_b.sql": "CREATE TABLE mig_target_b (id INT);",
		"003_c.sql": "CREATE TABLE mig_target_c (id INT);",
	})

	result, err := RunMigrationsTo(ctx, pool, dir, "002_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a", "002_b"}, result.Applied)

	pending, err := PendingMigrations(ctx, pool, dir)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "003_c", pending[0].Version)
}

func TestRunMigrationsToUnknownTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	pool := setupTestDB(t)
	defer pool.Close()

	dir := writeMigrations(t, map[string]string{
		"001_a.sql": "SELECT 1;",
	})

	_, err := RunMigrationsTo(ctx, pool, dir, "099_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStatusReportsPendingAndApplied(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	pool := setupTestDB(t)
	defer pool.Close()
	defer cleanupMigrationState(t, pool, "mig_status_a")

	dir := writeMigrations(t, map[string]string{
		"001_a.sql": "CREATE TABLE mig_status_a (id INT);",
		"002_b.sql": "CREATE TABLE mig_status_b (id INT);",
	})

	_, err := RunMigrationsTo(ctx, pool, dir, "001_a")
	require.NoError(t, err)

	status, err := Status(ctx, pool, dir)
	require.NoError(t, err)

	appliedVersions := make([]string, 0, len(status.Applied))
	for _, e := range status.Applied {
		appliedVersions = append(appliedVersions, e.Version)
		assert.NotNil(t, e.AppliedAt)
	}
	assert.Contains(t, appliedVersions, "001_a")

	pendingVersions := make([]string, 0, len(status.Pending))
	for _, e := range status.Pending {
		pendingVersions = append(pendingVersions, e.Version)
		assert.Nil(t, e.AppliedAt)
	}
	assert.Contains(t, pendingVersions, "002_b")
}

// cleanupMigrationState drops test tables and their schema_migrations rows so
// reruns start clean.
func cleanupMigrationState(t *testing.T, pool *pgxpool.Pool, tables ...string) {
	t.Helper()
	ctx := context.Background()
	for _, table := range tables {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	}
	_, _ = pool.Exec(ctx, "DELETE FROM schema_migrations WHERE version LIKE '00%_a' OR version LIKE '00%_b' OR version LIKE '00%_c' OR version LIKE '00%_create_%'")
}
