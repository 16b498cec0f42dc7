// Package migrate applies the schema in ../../../migrations via
// golang-migrate, grounded on the teacher's pkg/database/migration.Manager
// (driver instance + file source + timeout-bounded Up()).
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
)

// Config controls where migrations live and how long Up() may run.
type Config struct {
	MigrationsPath string
	Timeout        time.Duration
}

// Manager wraps a golang-migrate instance bound to db.
type Manager struct {
	db       *sqlx.DB
	cfg      Config
	migrator *migrate.Migrate
}

// NewManager builds a Manager; call Init before Up.
func NewManager(db *sqlx.DB, cfg Config) (*Manager, error) {
	if db == nil {
		return nil, errors.New("migrate: db connection cannot be nil")
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	return &Manager{db: db, cfg: cfg}, nil
}

// Init constructs the migrator instance against the Postgres driver.
func (m *Manager) Init() error {
	driver, err := postgres.WithInstance(m.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate: postgres driver: %w", err)
	}
	sourceURL := fmt.Sprintf("file://%s", m.cfg.MigrationsPath)
	migrator, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate: new migrator: %w", err)
	}
	m.migrator = migrator
	return nil
}

// Up applies every pending migration, bounded by cfg.Timeout.
func (m *Manager) Up(ctx context.Context) error {
	if m.migrator == nil {
		if err := m.Init(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := m.migrator.Up()
		if err == migrate.ErrNoChange {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("migrate: up: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("migrate: timed out after %s", m.cfg.Timeout)
	}
}

// Version reports the current schema version and whether it is dirty.
func (m *Manager) Version() (uint, bool, error) {
	if m.migrator == nil {
		if err := m.Init(); err != nil {
			return 0, false, err
		}
	}
	v, dirty, err := m.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("migrate: version: %w", err)
	}
	return v, dirty, nil
}
