// Package mmigration wraps golang-migrate-style schema migrations with the
// operational guardrails a shared postgres instance needs: a preflight
// check that refuses to run against a dirty schema, a cross-process
// advisory lock so only one instance runs migrations at a time, and bounded
// auto-recovery for a dirty migration left behind by a crashed deploy.
package mmigration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrMigrationDirty                = errors.New("mmigration: schema is in a dirty state")
	ErrMigrationLockFailed           = errors.New("mmigration: failed to acquire advisory lock")
	ErrMigrationRecoveryFailed       = errors.New("mmigration: dirty migration recovery failed")
	ErrMaxRecoveryPerVersionExceeded = errors.New("mmigration: max recovery attempts exceeded for this version")
	ErrMigrationFileNotFound         = errors.New("mmigration: migration file not found for version")
	ErrMaxRetriesExceeded            = errors.New("mmigration: max retries exceeded")
)

const advisoryLockRetryInterval = 250 * time.Millisecond

// MigrationConfig controls MigrationWrapper's retry, locking, and recovery
// behavior. Zero-value fields take the defaults from DefaultConfig when
// passed to NewMigrationWrapper.
type MigrationConfig struct {
	// Component names this service in the advisory lock key and logs, so
	// concurrent migrations across different services never contend on
	// the same lock.
	Component string
	// MigrationsPath is the directory of .up.sql/.down.sql files.
	MigrationsPath string

	MaxRetries            int
	MaxRecoveryPerVersion int
	RetryBackoff          time.Duration
	MaxBackoff            time.Duration
	LockTimeout           time.Duration

	// AutoRecoverDirty allows recoverDirtyMigration to clear a dirty flag
	// left by a crashed migration run. Off by default: clearing a dirty
	// flag blind is a data-loss risk unless the operator opts in.
	AutoRecoverDirty bool
}

// DefaultConfig returns sane defaults for everything except Component and
// MigrationsPath, which the caller must always set.
func DefaultConfig() MigrationConfig {
	return MigrationConfig{
		MaxRetries:            3,
		MaxRecoveryPerVersion: 3,
		RetryBackoff:          1 * time.Second,
		MaxBackoff:            30 * time.Second,
		LockTimeout:           5 * time.Second,
	}
}

// MigrationStatus is the last-observed state of the schema_migrations
// table.
type MigrationStatus struct {
	Version          int
	Dirty            bool
	LastChecked      time.Time
	LastError        error
	RecoveryAttempts int
}

// HealthStatus is the minimal readiness payload exposed over HTTP; it
// intentionally carries nothing beyond Healthy so it never leaks schema
// version or error detail to an unauthenticated health-check caller.
type HealthStatus struct {
	Healthy bool `json:"healthy"`
}

// MigrationWrapper guards migration execution against concurrent runners
// and a dirty schema left by a previous crash.
type MigrationWrapper struct {
	config                     MigrationConfig
	logger                     Logger
	recoveryAttemptsPerVersion map[int]int
	status                     MigrationStatus
}

// NewMigrationWrapper validates config and returns a ready MigrationWrapper.
// db is accepted for symmetry with callers that open migrations against an
// already-established connection; the wrapper itself takes db as an
// argument on each operation rather than storing it, so callers can run
// PreflightCheck and AcquireAdvisoryLock against the same *sql.DB they use
// elsewhere.
func NewMigrationWrapper(db *sql.DB, config MigrationConfig, logger Logger) (*MigrationWrapper, error) {
	if config.MigrationsPath == "" {
		return nil, fmt.Errorf("mmigration: MigrationsPath is required (see DefaultConfig() for typical values)")
	}

	if config.Component == "" {
		return nil, fmt.Errorf("mmigration: Component is required (see DefaultConfig() for typical values)")
	}

	defaults := DefaultConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.MaxRecoveryPerVersion <= 0 {
		config.MaxRecoveryPerVersion = defaults.MaxRecoveryPerVersion
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = defaults.LockTimeout
	}

	return &MigrationWrapper{
		config:                     config,
		logger:                     logger,
		recoveryAttemptsPerVersion: make(map[int]int),
		status:                     MigrationStatus{LastChecked: time.Now()},
	}, nil
}

// PreflightCheck reads the current schema_migrations row. A missing table
// or no rows means a fresh database, not an error. A dirty row is reported
// back along with ErrMigrationDirty so the caller can decide whether to
// attempt recovery.
func (w *MigrationWrapper) PreflightCheck(ctx context.Context, db *sql.DB) (MigrationStatus, error) {
	var status MigrationStatus

	row := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1")

	err := row.Scan(&status.Version, &status.Dirty)

	switch {
	case err == nil:
		if status.Dirty {
			status.LastError = ErrMigrationDirty
			return status, ErrMigrationDirty
		}

		return status, nil

	case errors.Is(err, sql.ErrNoRows):
		return MigrationStatus{}, nil

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MigrationStatus{}, err

	case strings.Contains(err.Error(), "does not exist"):
		return MigrationStatus{}, nil

	default:
		return MigrationStatus{}, fmt.Errorf("mmigration: failed to query schema_migrations: %w", err)
	}
}

// advisoryLockKey derives a stable bigint lock key from Component, so two
// different services never contend on the same advisory lock.
func (w *MigrationWrapper) advisoryLockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("mmigration:" + w.config.Component))

	return int64(h.Sum64())
}

// AcquireAdvisoryLock blocks until it holds the session-level postgres
// advisory lock for this Component, or LockTimeout elapses.
func (w *MigrationWrapper) AcquireAdvisoryLock(ctx context.Context, db *sql.DB) error {
	key := w.advisoryLockKey()
	deadline := time.Now().Add(w.config.LockTimeout)
	timeoutErr := func() error {
		w.logStaleLockHolder(ctx, db, key)
		return fmt.Errorf("%w: timeout waiting for advisory lock after %s", ErrMigrationLockFailed, w.config.LockTimeout)
	}

	attempted := false

	for {
		if attempted && !time.Now().Before(deadline) {
			return timeoutErr()
		}

		attempted = true

		var locked bool

		row := db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key)
		if err := row.Scan(&locked); err != nil {
			return fmt.Errorf("mmigration: advisory lock query failed: %w", err)
		}

		if locked {
			return nil
		}

		if !time.Now().Before(deadline) {
			return timeoutErr()
		}

		wait := advisoryLockRetryInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (w *MigrationWrapper) logStaleLockHolder(ctx context.Context, db *sql.DB, key int64) {
	var (
		pid             int
		user            string
		applicationName string
		backendStart    time.Time
	)

	query := "SELECT pid, usename, application_name, backend_start FROM pg_stat_activity WHERE pg_locks.objid = $1"

	row := db.QueryRowContext(ctx, query, key)
	if err := row.Scan(&pid, &user, &applicationName, &backendStart); err != nil {
		w.logger.Warnf("mmigration: could not identify advisory lock holder: %v", err)
		return
	}

	w.logger.Warnf("mmigration: advisory lock held by pid=%d user=%s app=%s since=%s", pid, user, applicationName, backendStart)
}

// ReleaseAdvisoryLock releases the session-level advisory lock acquired by
// AcquireAdvisoryLock.
func (w *MigrationWrapper) ReleaseAdvisoryLock(ctx context.Context, db *sql.DB) error {
	var released bool

	row := db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", w.advisoryLockKey())
	if err := row.Scan(&released); err != nil {
		return fmt.Errorf("mmigration: advisory unlock query failed: %w", err)
	}

	if !released {
		w.logger.Warn("mmigration: advisory unlock returned false; lock was not held by this session")
	}

	return nil
}

// recoverDirtyMigration clears the dirty flag for version after confirming
// a migration file for it still exists on disk and the per-version
// recovery budget has not been exhausted. It never changes the recorded
// version: only the operator re-running migrations does that.
func (w *MigrationWrapper) recoverDirtyMigration(ctx context.Context, db *sql.DB, version int) error {
	if !w.config.AutoRecoverDirty {
		return fmt.Errorf("%w: auto-recovery disabled", ErrMigrationRecoveryFailed)
	}

	if w.recoveryAttemptsPerVersion[version] >= w.config.MaxRecoveryPerVersion {
		return fmt.Errorf("%w: version %d", ErrMaxRecoveryPerVersionExceeded, version)
	}

	matches, err := filepath.Glob(filepath.Join(w.config.MigrationsPath, fmt.Sprintf("%06d_*", version)))
	if err != nil {
		return fmt.Errorf("mmigration: glob migrations path: %w", err)
	}

	if len(matches) == 0 {
		return fmt.Errorf("%w: version %d", ErrMigrationFileNotFound, version)
	}

	result, err := db.ExecContext(ctx, "UPDATE schema_migrations SET dirty = false WHERE version = $1", version)
	if err != nil {
		return fmt.Errorf("mmigration: clear dirty flag: %w", err)
	}

	w.recoveryAttemptsPerVersion[version]++

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		w.logger.Warnf("mmigration: clearing dirty flag for version %d affected 0 rows", version)
	}

	return nil
}

// calculateBackoff returns RetryBackoff*2^attempt, capped at MaxBackoff.
func (w *MigrationWrapper) calculateBackoff(attempt int) time.Duration {
	backoff := w.config.RetryBackoff

	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= w.config.MaxBackoff {
			return w.config.MaxBackoff
		}
	}

	if backoff > w.config.MaxBackoff {
		return w.config.MaxBackoff
	}

	return backoff
}

func (w *MigrationWrapper) shouldRetry(attempt int) bool {
	return attempt < w.config.MaxRetries
}

func (w *MigrationWrapper) isRetryableError(err error) bool {
	switch {
	case errors.Is(err, ErrMigrationDirty), errors.Is(err, ErrMigrationLockFailed):
		return true
	default:
		return false
	}
}

// GetHealthStatus reports the wrapper's last-observed schema state as a
// minimal, external-safe payload.
func (w *MigrationWrapper) GetHealthStatus() HealthStatus {
	return HealthStatus{Healthy: !w.status.Dirty && w.status.LastError == nil}
}

// IsHealthy is the same judgment as GetHealthStatus without the JSON
// wrapper, for callers (like FiberReadinessCheck) that just need a bool.
func (w *MigrationWrapper) IsHealthy() bool {
	return !w.status.Dirty && w.status.LastError == nil
}

// FiberReadinessCheck adapts a MigrationWrapper to a fiber readiness-probe
// predicate.
func FiberReadinessCheck(w *MigrationWrapper) bool {
	return w.IsHealthy()
}
