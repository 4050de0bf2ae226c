// Package retry applies one bounded retry and timeout policy to every
// persistence round trip.
package retry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/jackc/pgx/v5/pgconn"
	goretry "github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	logger         *slog.Logger
}

func NewPolicy(cfg internal.PersistenceConfig, logger *slog.Logger) *Policy {
	p := &Policy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
		AttemptTimeout: cfg.AttemptTimeout,
		logger:         logger,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Default is the production policy: 3 attempts, 1s doubling to 10s, 15s per attempt.
func Default(logger *slog.Logger) *Policy {
	return NewPolicy(internal.PersistenceConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 15 * time.Second,
	}, logger)
}

func (p *Policy) backoff() goretry.Backoff {
	b := goretry.NewExponential(p.BaseDelay)
	b = goretry.WithCappedDuration(p.MaxDelay, b)
	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. Exhausted transient failures come back as an
// internal.AppError of type TRANSIENT_ERROR.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func Value[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	v, err := goretry.DoValue(ctx, p.backoff(), func(ctx context.Context) (T, error) {
		attempt++
		attemptCtx, cancel := p.attemptContext(ctx)
		defer cancel()

		v, err := fn(attemptCtx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() == nil && IsTransient(err) {
			p.logger.Warn("transient persistence failure",
				"operation", op,
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"error", err)
			return v, goretry.RetryableError(err)
		}
		return v, err
	})
	if err != nil && IsTransient(err) {
		p.logger.Error("persistence operation failed after retries",
			"operation", op,
			"attempts", attempt,
			"error", err)
		var zero T
		return zero, internal.NewTransientError("Service temporarily unavailable", err)
	}
	return v, err
}

func (p *Policy) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.AttemptTimeout)
}

// retryable SQLSTATE classes: connection exceptions, serialization and
// deadlock failures, operator intervention.
var transientSQLStates = []string{"08", "40001", "40P01", "53300", "57P01", "57P02", "57P03"}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := internal.IsAppError(err); ok {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, state := range transientSQLStates {
			if strings.HasPrefix(pgErr.Code, state) {
				return true
			}
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is locked")
}

// IsUniqueViolation reports a unique constraint failure from postgres or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
