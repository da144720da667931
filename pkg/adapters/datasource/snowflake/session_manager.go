package snowflake

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/querybench/querybench-engine/pkg/apperrors"
	"github.com/querybench/querybench-engine/pkg/logging"
)

const (
	DefaultMaxBlockingOps = 10
	DefaultCommandTimeout = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
)

// ManagerConfig holds concurrency and timeout settings shared by every
// session the manager owns.
type ManagerConfig struct {
	// MaxBlockingOps caps concurrent driver calls across all sessions.
	// Snowflake round trips are slow and hold goroutines for seconds; the
	// cap keeps a burst of requests from piling up unbounded work.
	MaxBlockingOps int64
	CommandTimeout time.Duration
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
}

func (c *ManagerConfig) applyDefaults() {
	if c.MaxBlockingOps <= 0 {
		c.MaxBlockingOps = DefaultMaxBlockingOps
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
}

// SessionManager owns one Snowflake session handle per stored connection.
// Unlike the PostgreSQL pool, a handle here fronts a remote session that the
// service can silently expire, so every cache hit is probed and a dead
// session is rebuilt once before the caller sees an error.
//
// All driver calls go through a weighted semaphore sized by MaxBlockingOps.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*sql.DB
	sem      *semaphore.Weighted
	cfg      ManagerConfig
	logger   *zap.Logger

	// connect is swappable in tests so session-cache semantics can be
	// exercised against a scripted in-memory driver.
	connect func(cred *Config) (*sql.DB, error)
}

// NewSessionManager creates an empty manager. One instance is constructed at
// process start and shared by every request path.
func NewSessionManager(cfg ManagerConfig, logger *zap.Logger) *SessionManager {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &SessionManager{
		sessions: make(map[string]*sql.DB),
		sem:      semaphore.NewWeighted(cfg.MaxBlockingOps),
		cfg:      cfg,
		logger:   logger,
	}
	m.connect = m.dial
	return m
}

func (m *SessionManager) dial(cred *Config) (*sql.DB, error) {
	dsn, err := cred.DSN()
	if err != nil {
		return nil, err
	}
	return sql.Open("snowflake", dsn)
}

// withSlot runs one blocking driver call under the concurrency cap.
func (m *SessionManager) withSlot(ctx context.Context, fn func() error) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)
	return fn()
}

// AcquireOrCreate returns a live session for connectionID, building one from
// cred on first use. A cached session that fails its liveness probe is closed,
// evicted and rebuilt exactly once within the same call.
func (m *SessionManager) AcquireOrCreate(ctx context.Context, connectionID string, cred *Config) (*sql.DB, error) {
	if err := cred.Validate(); err != nil {
		return nil, apperrors.Connectivity(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.sessions[connectionID]; ok {
		if err := m.probe(ctx, db); err == nil {
			return db, nil
		}
		m.logger.Info("cached session failed liveness probe, rebuilding",
			zap.String("connection_id", connectionID),
		)
		m.discard(ctx, db)
		delete(m.sessions, connectionID)
	}

	db, err := m.open(ctx, cred)
	if err != nil {
		m.logger.Warn("session creation failed",
			zap.String("connection_id", connectionID),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, connectivityError(err)
	}

	m.sessions[connectionID] = db
	m.logger.Info("created snowflake session", zap.String("connection_id", connectionID))
	return db, nil
}

// open dials and verifies a new session. sql.Open is lazy, so the probe is
// what actually reaches the service and surfaces auth failures.
func (m *SessionManager) open(ctx context.Context, cred *Config) (*sql.DB, error) {
	var db *sql.DB
	err := m.withSlot(ctx, func() error {
		var err error
		db, err = m.connect(cred)
		return err
	})
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := m.withSlot(probeCtx, func() error {
		var one int
		return db.QueryRowContext(probeCtx, "SELECT 1").Scan(&one)
	}); err != nil {
		m.discard(ctx, db)
		return nil, err
	}
	return db, nil
}

// probe checks that a cached session still answers.
func (m *SessionManager) probe(ctx context.Context, db *sql.DB) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	return m.withSlot(probeCtx, func() error {
		var one int
		return db.QueryRowContext(probeCtx, "SELECT 1").Scan(&one)
	})
}

// discard closes a session best-effort. Close errors on an already-dead
// session carry no information, so they are logged at debug and dropped.
func (m *SessionManager) discard(ctx context.Context, db *sql.DB) {
	err := m.withSlot(ctx, db.Close)
	if err != nil {
		m.logger.Debug("session close failed", zap.String("error", logging.SanitizeError(err)))
	}
}

// Close tears down and evicts one session. Idempotent when the key is absent.
func (m *SessionManager) Close(ctx context.Context, connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.sessions[connectionID]; ok {
		m.discard(ctx, db)
		delete(m.sessions, connectionID)
		m.logger.Debug("closed snowflake session", zap.String("connection_id", connectionID))
	}
}

// CloseAll tears down every cached session. Called once during orderly
// process shutdown; safe to call repeatedly.
func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, db := range m.sessions {
		m.discard(ctx, db)
		delete(m.sessions, id)
	}
	m.logger.Info("closed all snowflake sessions")
}

// Len reports how many sessions are currently cached.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Test opens a throwaway session, round-trips a version query and closes it.
// The cache is never touched.
func (m *SessionManager) Test(ctx context.Context, cred *Config) error {
	if err := cred.Validate(); err != nil {
		return apperrors.Connectivity(err)
	}

	db, err := m.open(ctx, cred)
	if err != nil {
		return connectivityError(err)
	}
	defer m.discard(ctx, db)

	testCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	err = m.withSlot(testCtx, func() error {
		var version string
		return db.QueryRowContext(testCtx, "SELECT CURRENT_VERSION()").Scan(&version)
	})
	if err != nil {
		return connectivityError(err)
	}
	return nil
}

// Executor wraps a session acquired from this manager so statements run under
// the shared concurrency cap and statement deadline.
func (m *SessionManager) Executor(db *sql.DB) *QueryExecutor {
	return &QueryExecutor{
		db:             db,
		gate:           m.withSlot,
		commandTimeout: m.cfg.CommandTimeout,
	}
}

// CommandTimeout exposes the statement deadline applied by executors.
func (m *SessionManager) CommandTimeout() time.Duration {
	return m.cfg.CommandTimeout
}
