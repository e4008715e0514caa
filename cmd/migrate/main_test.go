package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_add_goals.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.goals` (goal_id STRING);")
	writeMigration(t, dir, "0001_init.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.accounts` (account_id STRING);")
	writeMigration(t, dir, "notes.txt", "not a migration")
	writeMigration(t, dir, "001_bad_version.sql", "SELECT 1;")

	migrations, err := readMigrations(dir, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	// Sorted by version, with placeholders substituted.
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "`proj.ds.accounts`")
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "add_goals", migrations[1].Name)
}

func TestReadMigrations_ChecksumIgnoresPlaceholders(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	sql := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.accounts` (account_id STRING);"
	writeMigration(t, dirA, "0001_init.sql", sql)
	writeMigration(t, dirB, "0001_init.sql", sql)

	a, err := readMigrations(dirA, "proj-a", "ds-a")
	require.NoError(t, err)
	b, err := readMigrations(dirB, "proj-b", "ds-b")
	require.NoError(t, err)

	// Same file applied to different projects keeps one identity.
	assert.Equal(t, a[0].Checksum, b[0].Checksum)
	assert.NotEqual(t, a[0].SQL, b[0].SQL)
}

func TestMigrationFilePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
	}{
		{"0001_init.sql", true},
		{"0042_add_import_runs.sql", true},
		{"001_short_version.sql", false},
		{"0001_missing_extension", false},
		{"0001.sql", false},
		{"init_0001.sql", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.valid, migrationFilePattern.MatchString(tt.filename))
		})
	}
}
