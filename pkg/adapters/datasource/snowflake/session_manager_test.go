package snowflake

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

func testCred() *Config {
	return &Config{
		Account:   "org-acct",
		User:      "reader",
		Password:  "pw",
		Database:  "ANALYTICS",
		Warehouse: "COMPUTE_WH",
	}
}

// fakeManager wires a SessionManager to scripted in-memory sessions. Each
// dial consumes the next session from the list.
func fakeManager(t *testing.T, sessions ...*fakeSession) (*SessionManager, *int) {
	t.Helper()
	m := NewSessionManager(ManagerConfig{}, zap.NewNop())

	dials := 0
	m.connect = func(cred *Config) (*sql.DB, error) {
		if dials >= len(sessions) {
			return nil, errors.New("no more scripted sessions")
		}
		db := openFake(sessions[dials])
		dials++
		return db, nil
	}
	t.Cleanup(func() { m.CloseAll(context.Background()) })
	return m, &dials
}

func TestAcquireOrCreate_CachesSession(t *testing.T) {
	m, dials := fakeManager(t, newFakeSession())

	ctx := context.Background()
	first, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)

	second, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, *dials)
	assert.Equal(t, 1, m.Len())
}

func TestAcquireOrCreate_RebuildsDeadSession(t *testing.T) {
	stale := newFakeSession()
	fresh := newFakeSession()
	m, dials := fakeManager(t, stale, fresh)

	ctx := context.Background()
	first, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)

	stale.setHealthy(false)

	second, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, *dials)
	assert.Equal(t, 1, m.Len())
	assert.True(t, stale.isClosed())
}

func TestAcquireOrCreate_DialFailureIsConnectivity(t *testing.T) {
	m := NewSessionManager(ManagerConfig{}, zap.NewNop())
	m.connect = func(cred *Config) (*sql.DB, error) {
		return nil, errors.New("failed to connect to the service")
	}

	_, err := m.AcquireOrCreate(context.Background(), "conn-a", testCred())
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectivity(err))
	assert.Equal(t, 0, m.Len())
}

func TestAcquireOrCreate_ProbeFailureOnNewSessionNotCached(t *testing.T) {
	dead := newFakeSession()
	dead.setHealthy(false)
	m, _ := fakeManager(t, dead)

	_, err := m.AcquireOrCreate(context.Background(), "conn-a", testCred())
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
	assert.True(t, dead.isClosed())

	// The probe error text matches no classification rule; construction
	// failures still surface as connectivity, never as a query failure.
	assert.True(t, apperrors.IsConnectivity(err))
	assert.False(t, apperrors.IsQuery(err))
}

func TestAcquireOrCreate_ConcurrentCallersSingleConstruction(t *testing.T) {
	m := NewSessionManager(ManagerConfig{}, zap.NewNop())

	var dials atomic.Int32
	m.connect = func(cred *Config) (*sql.DB, error) {
		dials.Add(1)
		return openFake(newFakeSession()), nil
	}
	t.Cleanup(func() { m.CloseAll(context.Background()) })

	const callers = 16
	dbs := make([]*sql.DB, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := m.AcquireOrCreate(context.Background(), "conn-a", testCred())
			assert.NoError(t, err)
			dbs[i] = db
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, 1, m.Len())
	for i := 1; i < callers; i++ {
		assert.Same(t, dbs[0], dbs[i])
	}
}

func TestAcquireOrCreate_InvalidCredentialRejectedBeforeDial(t *testing.T) {
	m := NewSessionManager(ManagerConfig{}, zap.NewNop())
	m.connect = func(cred *Config) (*sql.DB, error) {
		t.Fatal("dial must not happen for invalid credentials")
		return nil, nil
	}

	cred := testCred()
	cred.Account = ""
	_, err := m.AcquireOrCreate(context.Background(), "conn-a", cred)
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectivity(err))
}

func TestClose_EvictsAndClosesSession(t *testing.T) {
	session := newFakeSession()
	m, _ := fakeManager(t, session, newFakeSession())

	ctx := context.Background()
	_, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)

	m.Close(ctx, "conn-a")
	assert.Equal(t, 0, m.Len())
	assert.True(t, session.isClosed())

	m.Close(ctx, "conn-a")
	assert.Equal(t, 0, m.Len())
}

func TestCloseAll_Idempotent(t *testing.T) {
	m, _ := fakeManager(t, newFakeSession(), newFakeSession())

	ctx := context.Background()
	_, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)
	_, err = m.AcquireOrCreate(ctx, "conn-b", testCred())
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	m.CloseAll(ctx)
	assert.Equal(t, 0, m.Len())
	m.CloseAll(ctx)
	assert.Equal(t, 0, m.Len())
}

func TestTest_NeverTouchesCache(t *testing.T) {
	session := newFakeSession()
	session.script("SELECT CURRENT_VERSION()", fakeResult{
		cols:  []string{"CURRENT_VERSION()"},
		types: []string{"TEXT"},
		rows:  [][]driver.Value{{"9.1.0"}},
	})
	m, _ := fakeManager(t, session)

	require.NoError(t, m.Test(context.Background(), testCred()))
	assert.Equal(t, 0, m.Len())
	assert.True(t, session.isClosed())
	assert.Contains(t, session.seenQueries(), "SELECT CURRENT_VERSION()")
}

func TestTest_FailureIsConnectivity(t *testing.T) {
	dead := newFakeSession()
	dead.setHealthy(false)
	m, _ := fakeManager(t, dead)

	err := m.Test(context.Background(), testCred())
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectivity(err))
	assert.False(t, apperrors.IsQuery(err))
	assert.Equal(t, 0, m.Len())
}

func TestGate_RespectsContextWhileSlotHeld(t *testing.T) {
	session := newFakeSession()
	m, _ := fakeManager(t, session)
	m.sem = semaphore.NewWeighted(1)

	ctx := context.Background()
	db, err := m.AcquireOrCreate(ctx, "conn-a", testCred())
	require.NoError(t, err)

	release := make(chan struct{})
	session.setBlockOn(release)
	session.script("SELECT SYSTEM$WAIT(5)", fakeResult{cols: []string{"x"}, types: []string{"TEXT"}})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		_, _ = m.Executor(db).Run(ctx, "SELECT SYSTEM$WAIT(5)")
	}()
	<-started
	// Give the goroutine time to take the only slot.
	time.Sleep(20 * time.Millisecond)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = m.withSlot(canceled, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
}

func TestNewSessionManager_Defaults(t *testing.T) {
	m := NewSessionManager(ManagerConfig{}, zap.NewNop())
	assert.Equal(t, int64(DefaultMaxBlockingOps), m.cfg.MaxBlockingOps)
	assert.Equal(t, DefaultCommandTimeout, m.cfg.CommandTimeout)
	assert.Equal(t, DefaultConnectTimeout, m.cfg.ConnectTimeout)
	assert.Equal(t, DefaultProbeTimeout, m.cfg.ProbeTimeout)
	assert.Equal(t, DefaultCommandTimeout, m.CommandTimeout())
}
