package lyralink

import (
	"context"

	"golang.org/x/xerrors"
)

// Database drivers understood by OpenStore.
const (
	DriverSQLite     = "sqlite"
	DriverGormSQLite = "sqlite-gorm"
	DriverPostgres   = "postgres"
)

// MigratingStore is a Store owning a database connection.
type MigratingStore interface {
	Store
	Migrate(ctx context.Context) error
	Close() error
}

// OpenStore opens the store for driver using dsn. It does not migrate.
func OpenStore(driver, dsn string) (MigratingStore, error) {
	var (
		s   MigratingStore
		err error
	)

	switch driver {
	case DriverSQLite, "":
		s, err = NewSQLiteStore(dsn)
	case DriverGormSQLite:
		s, err = NewGormSQLiteStore(dsn)
	case DriverPostgres:
		s, err = NewPostgresStore(dsn)
	default:
		return nil, xerrors.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}
