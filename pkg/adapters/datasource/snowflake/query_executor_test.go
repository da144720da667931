package snowflake

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	"github.com/querybench/querybench-engine/pkg/apperrors"
)

func fakeExecutor(t *testing.T, session *fakeSession) *QueryExecutor {
	t.Helper()
	m := NewSessionManager(ManagerConfig{}, zap.NewNop())
	db := openFake(session)
	t.Cleanup(func() { _ = db.Close() })
	return m.Executor(db)
}

func TestRun_NormalizesResult(t *testing.T) {
	session := newFakeSession()
	session.script("SELECT id, name, active FROM users", fakeResult{
		cols:  []string{"ID", "NAME", "ACTIVE"},
		types: []string{"FIXED", "TEXT", "BOOLEAN"},
		rows: [][]driver.Value{
			{int64(1), []byte("ada"), true},
			{int64(2), []byte("grace"), false},
		},
	})

	result, err := fakeExecutor(t, session).Run(context.Background(), "SELECT id, name, active FROM users")
	require.NoError(t, err)

	assert.Equal(t, []datasource.ColumnInfo{
		{Name: "ID", Type: "NUMBER"},
		{Name: "NAME", Type: "TEXT"},
		{Name: "ACTIVE", Type: "BOOLEAN"},
	}, result.Columns)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, map[string]any{"ID": int64(1), "NAME": "ada", "ACTIVE": true}, result.Rows[0])
	assert.Equal(t, 2, result.Stats.RowCount)
	assert.GreaterOrEqual(t, result.Stats.ElapsedMs, 0.0)
}

func TestRun_UnrecognizedDriverTypeIsUnknown(t *testing.T) {
	session := newFakeSession()
	session.script("SELECT g FROM t", fakeResult{
		cols:  []string{"G"},
		types: []string{"GEOGRAPHY"},
		rows:  [][]driver.Value{{[]byte("POINT(0 0)")}},
	})

	result, err := fakeExecutor(t, session).Run(context.Background(), "SELECT g FROM t")
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", result.Columns[0].Type)
}

func TestRun_ErrorIsQueryClass(t *testing.T) {
	_, err := fakeExecutor(t, newFakeSession()).Run(context.Background(), "SELECT nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsQuery(err))
}

func TestRunPaginated_FirstPageWithCount(t *testing.T) {
	query := "SELECT * FROM events"
	session := newFakeSession()
	session.script(datasource.CountQuery(query), fakeResult{
		cols:  []string{"COUNT(*)"},
		types: []string{"FIXED"},
		rows:  [][]driver.Value{{int64(7)}},
	})
	session.script(datasource.WindowQuery(query, 3, 0), fakeResult{
		cols:  []string{"ID"},
		types: []string{"FIXED"},
		rows:  [][]driver.Value{{int64(1)}, {int64(2)}, {int64(3)}},
	})

	page, err := fakeExecutor(t, session).RunPaginated(context.Background(), query, datasource.Page{
		BatchSize:    3,
		Offset:       0,
		IncludeCount: true,
	})
	require.NoError(t, err)

	require.NotNil(t, page.TotalRows)
	assert.Equal(t, int64(7), *page.TotalRows)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.NextOffset)
	assert.Len(t, page.Rows, 3)
}

func TestRunPaginated_LastPageWithKnownTotal(t *testing.T) {
	query := "SELECT * FROM events"
	session := newFakeSession()
	session.script(datasource.CountQuery(query), fakeResult{
		cols:  []string{"COUNT(*)"},
		types: []string{"FIXED"},
		rows:  [][]driver.Value{{int64(2)}},
	})
	session.script(datasource.WindowQuery(query, 3, 0), fakeResult{
		cols:  []string{"ID"},
		types: []string{"FIXED"},
		rows:  [][]driver.Value{{int64(1)}, {int64(2)}},
	})

	page, err := fakeExecutor(t, session).RunPaginated(context.Background(), query, datasource.Page{
		BatchSize:    3,
		Offset:       0,
		IncludeCount: true,
	})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, 2, page.NextOffset)
}

func TestRunPaginated_LaterPageSkipsCount(t *testing.T) {
	query := "SELECT * FROM events"
	session := newFakeSession()
	session.script(datasource.WindowQuery(query, 3, 3), fakeResult{
		cols:  []string{"ID"},
		types: []string{"FIXED"},
		rows:  [][]driver.Value{{int64(4)}, {int64(5)}, {int64(6)}},
	})

	page, err := fakeExecutor(t, session).RunPaginated(context.Background(), query, datasource.Page{
		BatchSize:    3,
		Offset:       3,
		IncludeCount: true,
	})
	require.NoError(t, err)

	assert.Nil(t, page.TotalRows)
	// Full batch with no total in hand reports another page even when the
	// result set ends exactly here.
	assert.True(t, page.HasMore)
	assert.Equal(t, 6, page.NextOffset)
	assert.NotContains(t, session.seenQueries(), datasource.CountQuery(query))
}

func TestRunPaginated_CountFailureAbortsBeforeWindow(t *testing.T) {
	query := "SELECT * FROM events"
	session := newFakeSession()
	// Count query left unscripted so it fails; the window query must never run.
	session.script(datasource.WindowQuery(query, 3, 0), fakeResult{
		cols:  []string{"ID"},
		types: []string{"FIXED"},
	})

	_, err := fakeExecutor(t, session).RunPaginated(context.Background(), query, datasource.Page{
		BatchSize:    3,
		Offset:       0,
		IncludeCount: true,
	})
	require.Error(t, err)
	assert.NotContains(t, session.seenQueries(), datasource.WindowQuery(query, 3, 0))
}
