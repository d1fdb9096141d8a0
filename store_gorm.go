package lyralink

import (
	"context"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/xerrors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLink is the gorm model of the link table.
type gormLink struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ShortCode   string    `gorm:"column:short_code;size:64;not null;uniqueIndex:idx_link_short_code"`
	OriginalURL string    `gorm:"column:original_url;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (gormLink) TableName() string {
	return "link"
}

func (g gormLink) toLink() Link {
	return Link{
		ID:          g.ID,
		ShortCode:   g.ShortCode,
		OriginalURL: g.OriginalURL,
		CreatedAt:   g.CreatedAt.UTC(),
	}
}

const (
	postgresUniqueViolation = "23505"
	originalURLIndex        = "idx_link_original_url"
)

// GormStore is a Store backed by any database gorm can talk to. It is meant
// for PostgreSQL when several instances share one database.
type GormStore struct {
	db       *gorm.DB
	postgres bool
}

var _ Store = &GormStore{}

// NewPostgresStore connects to PostgreSQL using a DSN like
// "host=localhost user=lyralink dbname=lyralink sslmode=disable".
func NewPostgresStore(dsn string) (*GormStore, error) {
	return NewGormStore(postgres.Open(dsn))
}

// NewGormSQLiteStore opens a SQLite database through gorm using the
// pure-Go driver, which needs no cgo.
func NewGormSQLiteStore(dsn string) (*GormStore, error) {
	return NewGormStore(sqlite.Open(dsn))
}

// NewGormStore opens a GormStore using dialector d. Call Migrate before
// first use.
func NewGormStore(d gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, xerrors.Errorf("could not open %s database: %w", d.Name(), err)
	}

	s := &GormStore{
		db:       db,
		postgres: d.Name() == "postgres",
	}

	if !s.postgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, xerrors.Errorf("could not get underlying database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return s, nil
}

// Migrate creates the link table and its unique indexes. On PostgreSQL the
// URL index is built over md5(original_url), since long URLs can exceed the
// b-tree entry size limit.
func (s *GormStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.AutoMigrate(&gormLink{}); err != nil {
		return storageError("migrate link table", err)
	}

	indexExpr := "original_url"
	if s.postgres {
		indexExpr = "md5(original_url)"
	}
	err := db.Exec("create unique index if not exists " + originalURLIndex + " on link (" + indexExpr + ")").Error
	if err != nil {
		return storageError("create URL index", err)
	}

	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindByOriginalURL returns the link minted for longURL.
func (s *GormStore) FindByOriginalURL(ctx context.Context, longURL string) (Link, error) {
	q := s.db.WithContext(ctx)
	if s.postgres {
		q = q.Where("md5(original_url) = md5(?)", longURL)
	}
	return s.take(q.Where("original_url = ?", longURL), "look up link by URL")
}

// FindByShortCode returns the link with the provided short code.
func (s *GormStore) FindByShortCode(ctx context.Context, code string) (Link, error) {
	return s.take(s.db.WithContext(ctx).Where("short_code = ?", code), "look up link by short code")
}

func (s *GormStore) take(q *gorm.DB, op string) (Link, error) {
	var row gormLink
	err := q.Take(&row).Error
	if err != nil {
		if xerrors.Is(err, gorm.ErrRecordNotFound) {
			return Link{}, ErrNotFound
		}
		return Link{}, storageError(op, err)
	}
	return row.toLink(), nil
}

// Insert adds a new link, relying on the unique indexes to reject
// duplicates.
func (s *GormStore) Insert(ctx context.Context, code, longURL string, createdAt time.Time) (Link, error) {
	row := gormLink{
		ShortCode:   code,
		OriginalURL: longURL,
		CreatedAt:   createdAt.UTC(),
	}

	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if dupErr := classifyGormConstraint(err); dupErr != nil {
			return Link{}, dupErr
		}
		return Link{}, storageError("insert link", err)
	}

	return row.toLink(), nil
}

// classifyGormConstraint maps unique violations reported by PostgreSQL or
// SQLite to ErrDuplicateCode or ErrDuplicateURL. It returns nil for any
// other error.
func classifyGormConstraint(err error) error {
	var pgErr *pgconn.PgError
	if xerrors.As(err, &pgErr) {
		if pgErr.Code != postgresUniqueViolation {
			return nil
		}
		if pgErr.ConstraintName == originalURLIndex {
			return ErrDuplicateURL
		}
		return ErrDuplicateCode
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: link.original_url"):
		return ErrDuplicateURL
	case strings.Contains(msg, "UNIQUE constraint failed: link.short_code"):
		return ErrDuplicateCode
	case xerrors.Is(err, gorm.ErrDuplicatedKey):
		// translated errors don't say which index fired
		return ErrDuplicateCode
	}
	return nil
}
