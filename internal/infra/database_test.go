package infra

import (
	"path/filepath"
	"testing"

	"meal-stub-service/config"
)

func TestNewDB_SQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver:    "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "nested", "stubs.sqlite"),
	}

	db, err := NewDB(cfg)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer CloseDB(db)

	if err := db.Exec("CREATE TABLE ping (id INTEGER)").Error; err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("want 1 max open connection for sqlite, got %d", got)
	}
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	if _, err := NewDB(&config.Config{DBDriver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
