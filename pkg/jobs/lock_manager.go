package jobs

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cricmirror/core/pkg/database"
	"github.com/cricmirror/core/pkg/logger"
)

const (
	tryLockSQL = "SELECT pg_try_advisory_lock($1)"
	unlockSQL  = "SELECT pg_advisory_unlock($1)"

	lockNamespace    = "cricmirror.job:"
	lockPollInterval = 100 * time.Millisecond
)

// JobLockManager serialises runs of the same job across processes
type JobLockManager interface {
	// AcquireLock returns false without error when another session holds the lock
	AcquireLock(ctx context.Context, jobName string) (bool, error)
	ReleaseLock(ctx context.Context, jobName string) error
	IsLocked(ctx context.Context, jobName string) (bool, error)
	// AcquireLockWithTimeout polls until the lock is free or timeout elapses
	AcquireLockWithTimeout(ctx context.Context, jobName string, timeout time.Duration) (bool, error)
}

type connAcquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PostgreSQLLockManager uses session advisory locks. When db is a pool the connection
// that took a lock stays checked out until ReleaseLock.
type PostgreSQLLockManager struct {
	db     database.DBTX
	logger *logger.Logger

	mu     sync.Mutex
	pinned map[string]*pgxpool.Conn
}

// NewPostgreSQLLockManager creates a lock manager over db
func NewPostgreSQLLockManager(db database.DBTX) JobLockManager {
	return &PostgreSQLLockManager{
		db:     db,
		logger: logger.New("job-lock-manager"),
		pinned: make(map[string]*pgxpool.Conn),
	}
}

// generateLockID maps a job name to a non-negative advisory lock key
func (p *PostgreSQLLockManager) generateLockID(jobName string) int64 {
	h := fnv.New64a()
	h.Write([]byte(lockNamespace + jobName))
	return int64(h.Sum64() &^ (1 << 63))
}

func (p *PostgreSQLLockManager) event(level zerolog.Level, jobName, action string) *zerolog.Event {
	return p.logger.WithLevel(level).
		Str("job_name", jobName).
		Int64("lock_id", p.generateLockID(jobName)).
		Str("action", action)
}

func (p *PostgreSQLLockManager) AcquireLock(ctx context.Context, jobName string) (bool, error) {
	lockID := p.generateLockID(jobName)

	var (
		acquired bool
		err      error
	)
	if pool, ok := p.db.(connAcquirer); ok {
		acquired, err = p.acquirePinned(ctx, pool, jobName, lockID)
	} else {
		err = p.db.QueryRow(ctx, tryLockSQL, lockID).Scan(&acquired)
	}
	if err != nil {
		p.event(zerolog.ErrorLevel, jobName, "acquire_lock_failed").Err(err).Msg("Failed to acquire job lock")
		return false, fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
	}

	if acquired {
		p.event(zerolog.DebugLevel, jobName, "lock_acquired").Msg("Job lock acquired")
	} else {
		p.event(zerolog.DebugLevel, jobName, "lock_already_held").Msg("Job lock held elsewhere")
	}
	return acquired, nil
}

func (p *PostgreSQLLockManager) acquirePinned(ctx context.Context, pool connAcquirer, jobName string, lockID int64) (bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryLockSQL, lockID).Scan(&acquired); err != nil || !acquired {
		conn.Release()
		return false, err
	}

	p.mu.Lock()
	p.pinned[jobName] = conn
	p.mu.Unlock()
	return true, nil
}

func (p *PostgreSQLLockManager) unpin(jobName string) *pgxpool.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn := p.pinned[jobName]
	delete(p.pinned, jobName)
	return conn
}

func (p *PostgreSQLLockManager) ReleaseLock(ctx context.Context, jobName string) error {
	lockID := p.generateLockID(jobName)

	var (
		released bool
		err      error
	)
	if conn := p.unpin(jobName); conn != nil {
		err = conn.QueryRow(ctx, unlockSQL, lockID).Scan(&released)
		conn.Release()
	} else {
		err = p.db.QueryRow(ctx, unlockSQL, lockID).Scan(&released)
	}
	if err != nil {
		p.event(zerolog.ErrorLevel, jobName, "release_lock_failed").Err(err).Msg("Failed to release job lock")
		return fmt.Errorf("failed to release lock for job %s: %w", jobName, err)
	}

	if released {
		p.event(zerolog.DebugLevel, jobName, "lock_released").Msg("Job lock released")
	} else {
		p.event(zerolog.WarnLevel, jobName, "lock_not_held").Msg("Released a job lock this session did not hold")
	}
	return nil
}

// IsLocked tests the lock by taking and dropping it on one session.
func (p *PostgreSQLLockManager) IsLocked(ctx context.Context, jobName string) (bool, error) {
	lockID := p.generateLockID(jobName)

	db := p.db
	if pool, ok := p.db.(connAcquirer); ok {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check lock for job %s: %w", jobName, err)
		}
		defer conn.Release()
		db = conn
	}

	var free bool
	if err := db.QueryRow(ctx, tryLockSQL, lockID).Scan(&free); err != nil {
		return false, fmt.Errorf("failed to check lock for job %s: %w", jobName, err)
	}
	if !free {
		return true, nil
	}

	if _, err := db.Exec(ctx, unlockSQL, lockID); err != nil {
		p.event(zerolog.WarnLevel, jobName, "check_unlock_failed").Err(err).Msg("Failed to drop check lock")
	}
	return false, nil
}

func (p *PostgreSQLLockManager) AcquireLockWithTimeout(ctx context.Context, jobName string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		acquired, err := p.AcquireLock(ctx, jobName)
		if err != nil || acquired {
			return acquired, err
		}

		select {
		case <-ctx.Done():
			p.event(zerolog.DebugLevel, jobName, "lock_wait_timeout").Dur("timeout", timeout).Msg("Gave up waiting for job lock")
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// LockGuard remembers whether it holds the lock so Release is safe to defer.
type LockGuard struct {
	locks    JobLockManager
	jobName  string
	acquired bool
}

func NewLockGuard(locks JobLockManager, jobName string) *LockGuard {
	return &LockGuard{locks: locks, jobName: jobName}
}

func (g *LockGuard) Acquire(ctx context.Context) (bool, error) {
	acquired, err := g.locks.AcquireLock(ctx, g.jobName)
	g.acquired = acquired && err == nil
	return g.acquired, err
}

func (g *LockGuard) AcquireWithTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	acquired, err := g.locks.AcquireLockWithTimeout(ctx, g.jobName, timeout)
	g.acquired = acquired && err == nil
	return g.acquired, err
}

// Release is a no-op unless the guard holds the lock.
func (g *LockGuard) Release(ctx context.Context) error {
	if !g.acquired {
		return nil
	}
	if err := g.locks.ReleaseLock(ctx, g.jobName); err != nil {
		return err
	}
	g.acquired = false
	return nil
}
