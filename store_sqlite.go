package lyralink

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"
)

// SQLiteStore is a Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// compile-time assertion that we implement Store
var _ Store = &SQLiteStore{}

const sqliteSchema = `
create table if not exists link (
	id           integer primary key autoincrement,
	short_code   text      not null unique,
	original_url text      not null unique,
	created_at   timestamp not null
);`

// NewSQLiteStore returns a Store backed by a SQLite database, e.g.
// "file:lyralink.db?_journal_mode=wal&_busy_timeout=5000". Call Migrate
// before first use.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, xerrors.Errorf("could not open SQLite database: %w", err)
	}

	// SQLite has a single writer anyway; one connection also keeps
	// in-memory databases consistent across queries.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// Migrate creates the link table if it does not exist yet.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return storageError("migrate SQLite schema", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByOriginalURL returns the link minted for longURL.
func (s *SQLiteStore) FindByOriginalURL(ctx context.Context, longURL string) (Link, error) {
	row := s.db.QueryRowContext(ctx, "select id, short_code, original_url, created_at from link where original_url = ?", longURL)
	return s.scan(row, "look up link by URL")
}

// FindByShortCode returns the link with the provided short code.
func (s *SQLiteStore) FindByShortCode(ctx context.Context, code string) (Link, error) {
	row := s.db.QueryRowContext(ctx, "select id, short_code, original_url, created_at from link where short_code = ?", code)
	return s.scan(row, "look up link by short code")
}

func (s *SQLiteStore) scan(row *sql.Row, op string) (Link, error) {
	var l Link
	err := row.Scan(&l.ID, &l.ShortCode, &l.OriginalURL, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Link{}, ErrNotFound
		}
		return Link{}, storageError(op, err)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

// Insert adds a new link. The unique constraints on short_code and
// original_url are the only thing guarding against concurrent writers.
func (s *SQLiteStore) Insert(ctx context.Context, code, longURL string, createdAt time.Time) (Link, error) {
	createdAt = createdAt.UTC()

	res, err := s.db.ExecContext(ctx, "insert into link (short_code, original_url, created_at) values (?, ?, ?)", code, longURL, createdAt)
	if err != nil {
		if dupErr := classifySQLiteConstraint(err); dupErr != nil {
			return Link{}, dupErr
		}
		return Link{}, storageError("insert link", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Link{}, storageError("get ID of inserted link", err)
	}

	return Link{
		ID:          id,
		ShortCode:   code,
		OriginalURL: longURL,
		CreatedAt:   createdAt,
	}, nil
}

// classifySQLiteConstraint maps a unique constraint violation to
// ErrDuplicateCode or ErrDuplicateURL, depending on the offending column.
// It returns nil for any other error.
func classifySQLiteConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if !xerrors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	// the message looks like "UNIQUE constraint failed: link.short_code"
	if strings.Contains(sqliteErr.Error(), "link.original_url") {
		return ErrDuplicateURL
	}
	return ErrDuplicateCode
}
