// Package dbtest opens throwaway SQLite databases migrated with the shipped
// goose migrations.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/procurebot/procurement-backend/pkg/db"
	"github.com/procurebot/procurement-backend/pkg/migrate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns a migrated client backed by a file in t.TempDir(). The pool is
// limited to one connection, matching the production SQLite setup.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := migrate.Up(context.Background(), sqlDB, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.Wrap(conn, "sqlite")
}

// Count returns the number of rows in table.
func Count(t testing.TB, client *db.Client, table string) int64 {
	t.Helper()
	var n int64
	if err := client.DB().Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
