// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scentledger/internal/db"
)

var seq atomic.Uint64

// Open returns an Accessor over a private in-memory sqlite database with every
// table migrated. The database is closed when the test ends.
func Open(t testing.TB) *db.Accessor {
	t.Helper()
	return db.FromHandle(OpenGorm(t))
}

// OpenGorm is Open without the Accessor wrapper.
func OpenGorm(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	cfg := db.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	database, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("automigrate sqlite database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB.Close()
	})
	return database
}
