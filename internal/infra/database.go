package infra

import (
	"fmt"
	"time"

	"comandapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the Postgres pool. TranslateError is required: the ledger
// relies on gorm.ErrDuplicatedKey to detect a second open cash session.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// GormConfig is shared by the production pool and the sqlite test databases.
// Auto timestamps are UTC with microsecond precision, like the services' clock.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// RunMigrations creates or updates the ledger tables and applies the DDL
// AutoMigrate cannot express. Every statement is idempotent and valid on
// both Postgres and SQLite.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Category{},
		&model.Product{},
		&model.CashSession{},
		&model.CashMovement{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// HasSessionTable reports whether the deployment carries cash_sessions.
// Databases that only hold the legacy movement log answer false.
func HasSessionTable(db *gorm.DB) bool {
	return db.Migrator().HasTable(&model.CashSession{})
}

func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open drawer per collaborator, across every process.
		{"one open session per collaborator", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_cash_sessions_open_per_collaborator
    ON cash_sessions (collaborator_id)
    WHERE status = 'aberto'`},
		{"reconciliation window over finalized orders", `
CREATE INDEX IF NOT EXISTS idx_orders_collaborator_status_updated
    ON orders (collaborator_id, status, updated_at)`},
		{"movement window per responsible", `
CREATE INDEX IF NOT EXISTS idx_cash_movements_responsible_created
    ON cash_movements (responsible_id, created_at)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
