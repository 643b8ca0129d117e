package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"scentledger/internal/config"
	"scentledger/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), GormConfig())
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := AutoMigrate(database); err != nil {
		t.Fatalf("automigrate sqlite database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database
}

func TestInitializeRequiresURL(t *testing.T) {
	t.Parallel()

	db, err := Initialize(config.DatabaseConfig{URL: ""})
	if err == nil {
		t.Fatal("expected error when database URL is empty")
	}
	if db != nil {
		t.Fatal("expected returned db handle to be nil on error")
	}
}

func TestAutoMigrateRejectsNilDatabase(t *testing.T) {
	t.Parallel()

	if err := AutoMigrate(nil); err == nil {
		t.Fatal("expected error when database handle is nil")
	}
}

func TestAutoMigrateCreatesEveryTable(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	for _, table := range []string{
		"materials_abstract", "material_tags", "material_links", "materials", "material_history",
		"formulae", "formula_materials", "formula_notes", "trials", "trial_materials", "trial_notes",
	} {
		if !database.Migrator().HasTable(table) {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestConfigurePropagatesInitializationError(t *testing.T) {
	t.Parallel()

	if _, err := Configure(config.DatabaseConfig{}); err == nil {
		t.Fatal("expected configuration error when initialize fails")
	}
}

func TestDialectorSelectsDriverFromURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		url      string
		postgres bool
	}{
		{"postgres scheme", "postgres://user@localhost/ledger", true},
		{"postgresql scheme", "PostgreSQL://user@localhost/ledger", true},
		{"plain path", "formulae.db", false},
		{"sqlite prefix", "sqlite:formulae.db", false},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dialector := Dialector(tt.url)
			_, isPostgres := dialector.(*postgres.Dialector)
			if isPostgres != tt.postgres {
				t.Fatalf("Dialector(%q) postgres = %t, want %t", tt.url, isPostgres, tt.postgres)
			}
			if !tt.postgres {
				sqliteDialector, ok := dialector.(*sqlite.Dialector)
				if !ok {
					t.Fatalf("Dialector(%q) = %T, want sqlite", tt.url, dialector)
				}
				if sqliteDialector.DSN != "formulae.db" {
					t.Fatalf("sqlite DSN = %q", sqliteDialector.DSN)
				}
			}
		})
	}
}

func TestAccessorConnectIsSingleFlight(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	var opens int32
	release := make(chan struct{})
	accessor := NewAccessorFunc(func() (*gorm.DB, error) {
		atomic.AddInt32(&opens, 1)
		<-release
		return database, nil
	})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accessor.Connect(context.Background())
			errs <- err
		}()
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&opens); got != 1 {
		t.Fatalf("open called %d times, want 1", got)
	}

	if _, err := accessor.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() after open error = %v", err)
	}
	if got := atomic.LoadInt32(&opens); got != 1 {
		t.Fatalf("memoized handle reopened: %d opens", got)
	}
}

func TestAccessorRetriesAfterFailedOpen(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	attempts := 0
	accessor := NewAccessorFunc(func() (*gorm.DB, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("disk not mounted")
		}
		return database, nil
	})

	if _, err := accessor.Connect(context.Background()); err == nil {
		t.Fatal("expected first connect to fail")
	}
	if _, err := accessor.Connect(context.Background()); err != nil {
		t.Fatalf("second connect error = %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestBulkInsertBindsValues(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	abstract := models.AbstractMaterial{Name: "Vetiver", Type: models.MaterialTypeEssentialOil}
	if err := database.Create(&abstract).Error; err != nil {
		t.Fatalf("create abstract material: %v", err)
	}

	rows := [][]any{
		{abstract.ID, "earthy"},
		{abstract.ID, "it's smoky"},
	}
	if err := BulkInsert(database, "material_tags", []string{"material_id", "value"}, rows); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	var tags []models.MaterialTag
	if err := database.Order("id asc").Find(&tags).Error; err != nil {
		t.Fatalf("load tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
	if tags[1].Value != "it's smoky" {
		t.Fatalf("quoted value stored as %q", tags[1].Value)
	}
}

func TestBulkInsertRejectsEmptyAndRaggedBatches(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	if err := BulkInsert(database, "material_tags", []string{"material_id", "value"}, nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if err := BulkInsert(database, "material_tags", []string{"material_id", "value"}, [][]any{{1}}); err == nil {
		t.Fatal("expected error for row width mismatch")
	}
}

func TestAccessorTransactionRollsBack(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	accessor := FromHandle(database)
	failure := errors.New("abort")

	err := accessor.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Trial{Name: "rolled back"}).Error; err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Transaction() error = %v, want %v", err, failure)
	}

	var count int64
	if err := database.Model(&models.Trial{}).Count(&count).Error; err != nil {
		t.Fatalf("count trials: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d trials", count)
	}
}
