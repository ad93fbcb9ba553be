package db

import (
	"path/filepath"
	"testing"
)

func TestNewTestDB(t *testing.T) {
	testDB, err := NewTestDB()
	if err != nil {
		t.Fatalf("NewTestDB: %v", err)
	}
	defer testDB.Close()

	var name string
	err = testDB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='shared_sessions'`).Scan(&name)
	if err != nil {
		t.Fatalf("shared_sessions table missing: %v", err)
	}

	if err := runMigrations(testDB); err != nil {
		t.Errorf("migrations should be repeatable: %v", err)
	}
}

func TestInitDBSingleton(t *testing.T) {
	ResetDB()
	defer ResetDB()

	path := filepath.Join(t.TempDir(), "relay.db")
	first, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	second, err := InitDB(filepath.Join(t.TempDir(), "other.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if first != second || GetDB() != first {
		t.Error("InitDB should return the same handle")
	}

	var mode string
	if err := first.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %s, want wal", mode)
	}
}
