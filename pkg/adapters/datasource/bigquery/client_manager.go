package bigquery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/logging"
)

// ClientManager owns one BigQuery client per stored connection. Clients carry
// no server-side session state, so there is no liveness probe; a cached
// client stays until Close/CloseAll.
type ClientManager struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  *zap.Logger

	// connect is swappable in tests.
	connect func(ctx context.Context, cfg *Config) (*Client, error)
}

// NewClientManager creates an empty manager.
func NewClientManager(logger *zap.Logger) *ClientManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientManager{
		clients: make(map[string]*Client),
		logger:  logger,
		connect: Connect,
	}
}

// AcquireOrCreate returns the cached client for connectionID, building one
// from cfg on first use.
func (m *ClientManager) AcquireOrCreate(ctx context.Context, connectionID string, cfg *Config) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[connectionID]; ok {
		return client, nil
	}

	client, err := m.connect(ctx, cfg)
	if err != nil {
		m.logger.Warn("bigquery client creation failed",
			zap.String("connection_id", connectionID),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, err
	}

	m.clients[connectionID] = client
	m.logger.Info("created bigquery client", zap.String("connection_id", connectionID))
	return client, nil
}

// Close tears down and evicts one client. Idempotent when the key is absent.
func (m *ClientManager) Close(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[connectionID]; ok {
		_ = client.Close()
		delete(m.clients, connectionID)
	}
}

// CloseAll tears down every cached client.
func (m *ClientManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clients {
		_ = client.Close()
		delete(m.clients, id)
	}
}

// Len reports how many clients are currently cached.
func (m *ClientManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Test builds a throwaway client, pings and closes it. The cache is never
// touched.
func (m *ClientManager) Test(ctx context.Context, cfg *Config) error {
	client, err := m.connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return client.Ping(ctx)
}
