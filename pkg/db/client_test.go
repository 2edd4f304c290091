package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(t.TempDir()+"/client.db"), gormConfig())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db, "sqlite")

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db, "sqlite")

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicky"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback, got %d rows", count)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !IsUniqueViolation(err, "name") {
		t.Fatalf("expected column name in violation text, got %v", err)
	}
	if IsUniqueViolation(errors.New("other"), "") {
		t.Fatalf("plain error should not match")
	}
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t), "sqlite")
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if client.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %q", client.Driver())
	}
}

func TestWithTx_ImmediateTxSerialisesWritersAcrossHandles(t *testing.T) {
	dsn := "file:" + t.TempDir() + "/shared.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	open := func() *gorm.DB {
		conn, err := gorm.Open(sqlite.Open(dsn), gormConfig())
		if err != nil {
			t.Fatalf("failed to open sqlite: %v", err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			t.Fatalf("sql handle: %v", err)
		}
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
		return conn
	}
	first, second := open(), open()
	if err := first.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	ctx := context.Background()
	otherDone := make(chan error, 1)
	err := Wrap(first, "sqlite").WithTx(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&testModel{}).Count(&n).Error; err != nil {
			return err
		}
		go func() {
			otherDone <- Wrap(second, "sqlite").WithTx(ctx, func(tx *gorm.DB) error {
				return tx.Create(&testModel{Name: "second"}).Error
			})
		}()
		time.Sleep(50 * time.Millisecond)
		return tx.Create(&testModel{Name: "first"}).Error
	})
	if err != nil {
		t.Fatalf("read-then-write transaction failed: %v", err)
	}
	if err := <-otherDone; err != nil {
		t.Fatalf("concurrent writer failed: %v", err)
	}

	var count int64
	if err := first.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both writes to commit, got %d rows", count)
	}
}
