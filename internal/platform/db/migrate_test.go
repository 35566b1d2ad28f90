package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("embedded migration set is empty")
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_triage_case.sql" {
		t.Errorf("first migration = %d %s", migrations[0].Version, migrations[0].Name)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("migrations not sorted at %d", i)
		}
	}
}

func TestLoadMigrationsFromDir(t *testing.T) {
	dir := t.TempDir()
	files := []struct {
		name    string
		content string
	}{
		{"010_later.sql", "SELECT 10;"},
		{"002_second.sql", "SELECT 2;"},
		{"001_first.sql", "SELECT 1;"},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := NewMigratorFromDir(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	wantVersions := []int{1, 2, 10}
	if len(migrations) != len(wantVersions) {
		t.Fatalf("got %d migrations", len(migrations))
	}
	for i, want := range wantVersions {
		if migrations[i].Version != want {
			t.Errorf("migration[%d] version = %d, want %d", i, migrations[i].Version, want)
		}
	}
	if migrations[0].SQL != "SELECT 1;" {
		t.Errorf("SQL content = %q", migrations[0].SQL)
	}
}

func TestLoadMigrationsSkipsInvalidNames(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"001_valid.sql":   "SELECT 1;",
		"readme.sql":      "-- no version prefix",
		"notes.txt":       "not sql",
		"abc_invalid.sql": "-- non-numeric prefix",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := NewMigratorFromDir(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Version != 1 {
		t.Fatalf("got %+v, want only 001_valid.sql", migrations)
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	if _, err := NewMigratorFromDir(nil, "/nonexistent/path").LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
