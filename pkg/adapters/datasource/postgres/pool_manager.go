package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/apperrors"
	"github.com/querybench/querybench-engine/pkg/logging"
)

const (
	DefaultPoolMinConns   = 1
	DefaultPoolMaxConns   = 5
	DefaultCommandTimeout = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// ManagerConfig holds sizing and timeout settings applied to every pool the
// manager creates.
type ManagerConfig struct {
	PoolMinConns   int32
	PoolMaxConns   int32
	CommandTimeout time.Duration
	ConnectTimeout time.Duration
}

func (c *ManagerConfig) applyDefaults() {
	if c.PoolMinConns <= 0 {
		c.PoolMinConns = DefaultPoolMinConns
	}
	if c.PoolMaxConns <= 0 {
		c.PoolMaxConns = DefaultPoolMaxConns
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// PoolManager owns one bounded pgx pool per stored connection, keyed by the
// connection's stable identifier. Pools are created lazily on first use and
// live until Close/CloseAll; there is no implicit eviction.
//
// All map mutation happens under one mutex; two callers racing to create a
// pool for the same key serialize so exactly one construction happens and the
// loser reuses it.
type PoolManager struct {
	mu     sync.Mutex
	pools  map[string]*pgxpool.Pool
	cfg    ManagerConfig
	logger *zap.Logger

	// newPool is swappable in tests so pool-map semantics can be exercised
	// without a live server.
	newPool func(ctx context.Context, cred *Config) (*pgxpool.Pool, error)
}

// NewPoolManager creates an empty manager. One instance is constructed at
// process start and shared by every request path.
func NewPoolManager(cfg ManagerConfig, logger *zap.Logger) *PoolManager {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &PoolManager{
		pools:  make(map[string]*pgxpool.Pool),
		cfg:    cfg,
		logger: logger,
	}
	m.newPool = m.dialPool
	return m
}

// dialPool builds and verifies a new pool for cred. pgxpool construction is
// lazy, so an explicit ping is needed to surface auth/network failures here
// instead of on the first statement.
func (m *PoolManager) dialPool(ctx context.Context, cred *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cred.DSN())
	if err != nil {
		return nil, err
	}
	poolCfg.MinConns = m.cfg.PoolMinConns
	poolCfg.MaxConns = m.cfg.PoolMaxConns
	poolCfg.ConnConfig.ConnectTimeout = m.cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// AcquireOrCreate returns the live pool for connectionID, building one from
// cred on first use. Construction failures are reported as ConnectivityError
// with the driver error preserved for classification.
func (m *PoolManager) AcquireOrCreate(ctx context.Context, connectionID string, cred *Config) (*pgxpool.Pool, error) {
	if err := cred.Validate(); err != nil {
		return nil, apperrors.Connectivity(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[connectionID]; ok {
		return pool, nil
	}

	pool, err := m.newPool(ctx, cred)
	if err != nil {
		m.logger.Warn("pool creation failed",
			zap.String("connection_id", connectionID),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, apperrors.Connectivity(err)
	}

	m.pools[connectionID] = pool
	m.logger.Info("created connection pool",
		zap.String("connection_id", connectionID),
		zap.Int32("max_conns", m.cfg.PoolMaxConns),
	)
	return pool, nil
}

// Close tears down and evicts one pool. Idempotent when the key is absent.
func (m *PoolManager) Close(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[connectionID]; ok {
		pool.Close()
		delete(m.pools, connectionID)
		m.logger.Debug("closed connection pool", zap.String("connection_id", connectionID))
	}
}

// CloseAll tears down every cached pool. Called once during orderly process
// shutdown; safe to call repeatedly.
func (m *PoolManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, pool := range m.pools {
		pool.Close()
		delete(m.pools, id)
	}
	m.logger.Info("closed all connection pools")
}

// Len reports how many pools are currently cached.
func (m *PoolManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// Test opens a single throwaway connection, performs a trivial round trip and
// closes it. The cache is never touched, so a probe against bad credentials
// cannot poison it. Fails with the same ConnectivityError taxonomy as
// AcquireOrCreate.
func (m *PoolManager) Test(ctx context.Context, cred *Config) error {
	if err := cred.Validate(); err != nil {
		return apperrors.Connectivity(err)
	}

	connCfg, err := pgx.ParseConfig(cred.DSN())
	if err != nil {
		return apperrors.Connectivity(err)
	}
	connCfg.ConnectTimeout = m.cfg.ConnectTimeout

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return apperrors.Connectivity(err)
	}
	defer conn.Close(context.Background())

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return apperrors.Connectivity(err)
	}
	return nil
}

// CommandTimeout exposes the statement deadline applied by executors.
func (m *PoolManager) CommandTimeout() time.Duration {
	return m.cfg.CommandTimeout
}
