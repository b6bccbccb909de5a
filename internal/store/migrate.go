package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/gigboard/gigchat/internal/store/migrations"
)

// Schema is the journal schema state after Migrate.
type Schema struct {
	Version uint
	Dirty   bool
	// Applied is false when the schema was already current.
	Applied bool
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("journal migrations: %w", err)
	}
	drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("journal migrate driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite3", drv)
}

// Migrate brings the journal schema up to date. Running it on a current
// schema is a no-op.
func (db *DB) Migrate() (Schema, error) {
	m, err := db.migrator()
	if err != nil {
		return Schema{}, err
	}
	var s Schema
	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return Schema{}, fmt.Errorf("migrate journal: %w", err)
	default:
		s.Applied = true
	}
	s.Version, s.Dirty, _ = m.Version()
	return s, nil
}
