package repository

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB はmigrations/のSQLを適用したインメモリSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return setupTestDBWithSchema(t, nil)
}

// setupTestDBWithSchema はSQLの文字列置換を適用してからスキーマを作成する。
// replacements は old, new の組の並び。
func setupTestDBWithSchema(t *testing.T, replacements []string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// :memory: は接続ごとに別DBになるため単一接続に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	if err != nil || len(files) == 0 {
		t.Fatalf("failed to find migrations: %v", err)
	}
	sort.Strings(files)
	for _, f := range files {
		sql, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("failed to read %s: %v", f, err)
		}
		ddl := strings.NewReplacer(replacements...).Replace(string(sql))
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("failed to apply %s: %v", f, err)
		}
	}

	return db
}
