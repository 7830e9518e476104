package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const retryBaseDelay = 20 * time.Millisecond

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgCode(err) == "23505"
}

// IsTransient reports failures that are safe to retry: serialization
// failures, deadlocks and dropped connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	code := pgCode(err)
	return code == "40001" || code == "40P01" || strings.HasPrefix(code, "08")
}

// WithRetry runs fn up to attempts times while it fails transiently, doubling
// the delay between tries. A transient failure that outlives the budget is
// returned as apperr TRANSIENT_STORE_ERROR; other errors are returned as is.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return apperr.Transient(err)
}
