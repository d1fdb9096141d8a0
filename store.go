package lyralink

import (
	"context"
	"errors"
	"time"
)

// Link is a persisted short code -> URL mapping. Links are never updated or
// deleted once inserted.
type Link struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps track of the short code -> URL mapping.
type Store interface {
	// FindByOriginalURL returns ErrNotFound if no link exists for longURL.
	FindByOriginalURL(ctx context.Context, longURL string) (Link, error)
	// FindByShortCode returns ErrNotFound if no link exists for code.
	FindByShortCode(ctx context.Context, code string) (Link, error)
	// Insert must reject the link atomically with ErrDuplicateCode if the
	// short code is taken, or ErrDuplicateURL if the URL already has a code.
	Insert(ctx context.Context, code, longURL string, createdAt time.Time) (Link, error)
}

var (
	ErrNotFound      = errors.New("not found in store")
	ErrDuplicateCode = errors.New("short code already taken")
	ErrDuplicateURL  = errors.New("URL already has a short code")

	// ErrStorageUnavailable is matched by every *StorageError.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError reports a failure of the storage layer itself, as opposed to
// a miss or a uniqueness violation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
