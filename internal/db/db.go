package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"scentledger/internal/config"
	applog "scentledger/internal/log"
	"scentledger/models"
)

// ErrEmptyBatch is returned by BulkInsert when there is nothing to insert.
var ErrEmptyBatch = errors.New("bulk insert: no rows")

// GormConfig returns the gorm settings shared by every handle the application opens.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 applog.NewGormLogger(),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// Dialector picks the gorm driver for url. postgres:// and postgresql:// URLs use
// the postgres driver; anything else is treated as a sqlite path or DSN, with an
// optional "sqlite:" prefix.
func Dialector(url string) gorm.Dialector {
	trimmed := strings.TrimSpace(url)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(trimmed)
	}
	return sqlite.Open(strings.TrimPrefix(trimmed, "sqlite:"))
}

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}

	db, err := gorm.Open(Dialector(cfg.URL), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}

	return db.AutoMigrate(models.All()...)
}

// Configure opens the database described by cfg and migrates the schema.
func Configure(cfg config.DatabaseConfig) (*gorm.DB, error) {
	database, err := Initialize(cfg)
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(database); err != nil {
		return nil, err
	}

	return database, nil
}

// Accessor lazily opens a single database handle and memoizes it. Callers that
// arrive while the first open is in flight wait for that same open.
type Accessor struct {
	open  func() (*gorm.DB, error)
	group singleflight.Group

	mu     sync.RWMutex
	handle *gorm.DB
}

// NewAccessor returns an Accessor that opens and migrates the database in cfg on first use.
func NewAccessor(cfg config.DatabaseConfig) *Accessor {
	return &Accessor{
		open: func() (*gorm.DB, error) {
			return Configure(cfg)
		},
	}
}

// NewAccessorFunc returns an Accessor that calls open on first use.
func NewAccessorFunc(open func() (*gorm.DB, error)) *Accessor {
	return &Accessor{open: open}
}

// FromHandle wraps an already opened handle.
func FromHandle(db *gorm.DB) *Accessor {
	return &Accessor{
		open: func() (*gorm.DB, error) {
			return db, nil
		},
		handle: db,
	}
}

// Connect returns the memoized handle, opening it on first call. A failed open is
// not memoized, so a later call tries again.
func (a *Accessor) Connect(ctx context.Context) (*gorm.DB, error) {
	if handle := a.cached(); handle != nil {
		return handle.WithContext(ctx), nil
	}

	v, err, shared := a.group.Do("connect", func() (any, error) {
		if handle := a.cached(); handle != nil {
			return handle, nil
		}
		applog.Debug(ctx, "opening database")
		handle, err := a.open()
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.handle = handle
		a.mu.Unlock()
		applog.Info(ctx, "database ready")
		return handle, nil
	})
	if err != nil {
		applog.Error(ctx, "failed to open database", "error", err)
		return nil, err
	}
	if shared {
		applog.Debug(ctx, "joined in-flight database open")
	}
	return v.(*gorm.DB).WithContext(ctx), nil
}

func (a *Accessor) cached() *gorm.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handle
}

// Transaction runs fn inside a single database transaction. The transaction is
// rolled back when fn returns an error.
func (a *Accessor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	handle, err := a.Connect(ctx)
	if err != nil {
		return err
	}
	return handle.Transaction(fn)
}

// Close releases the memoized handle. A later Connect opens a new one.
func (a *Accessor) Close() error {
	a.mu.Lock()
	handle := a.handle
	a.handle = nil
	a.mu.Unlock()

	if handle == nil {
		return nil
	}
	sqlDB, err := handle.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BulkInsert writes rows into table with one multi-row INSERT. Every value is
// bound through a placeholder. rows must not be empty.
func BulkInsert(tx *gorm.DB, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return ErrEmptyBatch
	}
	if len(columns) == 0 {
		return fmt.Errorf("bulk insert into %s: no columns", table)
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	groups := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("bulk insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		groups = append(groups, placeholder)
		args = append(args, row...)
	}

	quoted := make([]string, 0, len(columns))
	for _, column := range columns {
		quoted = append(quoted, tx.Statement.Quote(column))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		tx.Statement.Quote(table),
		strings.Join(quoted, ","),
		strings.Join(groups, ", "),
	)

	return tx.Exec(query, args...).Error
}
