package repositories

import (
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"time"
)

type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// isTransient reports SQLite lock contention that clears on retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// withRetry runs fn, retrying transient errors with jittered backoff.
func withRetry(fn func() error) error {
	cfg := defaultRetryConfig
	var err error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		if attempt < cfg.maxRetries {
			time.Sleep(backoff(cfg, attempt))
		}
	}
	return err
}

func backoff(cfg retryConfig, attempt int) time.Duration {
	d := cfg.baseDelay << attempt
	if d > cfg.maxDelay {
		d = cfg.maxDelay
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
