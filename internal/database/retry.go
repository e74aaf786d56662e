package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketflow/internal/constants"

	"github.com/cenkalti/backoff/v4"
)

func newRetryBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond
	bo.MaxInterval = time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond
	return backoff.WithMaxRetries(bo, uint64(constants.DefaultDatabaseRetryAttempts-1))
}

// withRetry runs operation, retrying transient SQLite errors with
// exponential backoff. Other errors stop the loop immediately.
func withRetry(ctx context.Context, operationName string, operation func() error) error {
	err := backoff.Retry(func() error {
		err := operation()
		if err != nil && !isRetryableDBError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(newRetryBackoff(), ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", operationName, err)
	}
	return nil
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "database is locked"),
		strings.Contains(errStr, "database table is locked"),
		strings.Contains(errStr, "disk I/O error"):
		return true
	}
	return false
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
