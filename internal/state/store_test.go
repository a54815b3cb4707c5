package state

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS rebalancing_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEventFillsIDAndTimestamp(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO rebalancing_events").
		WithArgs(sqlmock.AnyArg(), "pos-1", "rebalance", "SOL/USDC", "out of range", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveEvent(context.Background(), types.RebalanceEvent{
		PositionID: "pos-1",
		Type:       types.EventRebalance,
		PoolPair:   "SOL/USDC",
		Message:    "out of range",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentEvents(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"event_id", "position_id", "event_type", "pool_pair", "message", "created_at"}).
		AddRow("e2", "pos-1", "success", "SOL/USDC", "rebalanced", fixedNow).
		AddRow("e1", "pos-1", "rebalance", "SOL/USDC", "out of range", fixedNow.Add(-time.Minute))
	mock.ExpectQuery("SELECT event_id").WithArgs(DefaultEventLimit).WillReturnRows(rows)

	events, err := s.RecentEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, types.EventSuccess, events[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailySummary(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"event_type", "count"}).
		AddRow("rebalance", 4).
		AddRow("alert", 1)
	mock.ExpectQuery("SELECT event_type, COUNT").WithArgs(fixedNow.Add(-SummaryWindow)).WillReturnRows(rows)

	summary, err := s.DailySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.Counts[types.EventRebalance])
	assert.Equal(t, 1, summary.Counts[types.EventAlert])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStopLossConfigCommits(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stop_loss_configs").
		WithArgs("pos-1", true, 15.0, "STABLE", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.SaveStopLossConfig(context.Background(), "pos-1", types.StopLossConfig{Enabled: true, Percentage: 15, TargetToken: types.TargetTokenStable})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStopLossConfigRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stop_loss_configs").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.SaveStopLossConfig(context.Background(), "pos-1", types.StopLossConfig{Enabled: true, Percentage: 15, TargetToken: types.TargetTokenX})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadStopLossConfigsSkipsUnknownTokens(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"position_id", "enabled", "percentage", "target_token"}).
		AddRow("pos-1", true, 10.0, "Y").
		AddRow("pos-2", true, 20.0, "DOGE")
	mock.ExpectQuery("SELECT position_id").WillReturnRows(rows)

	configs, err := s.LoadStopLossConfigs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]types.StopLossConfig{
		"pos-1": {Enabled: true, Percentage: 10, TargetToken: types.TargetTokenY},
	}, configs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStopLossConfig(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM stop_loss_configs").WithArgs("pos-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeleteStopLossConfig(context.Background(), "pos-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilDatabase(t *testing.T) {
	s := NewStore(nil)
	assert.ErrorIs(t, s.SaveEvent(context.Background(), types.RebalanceEvent{}), ErrNotInitialized)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrNotInitialized)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultEventLimit, ClampLimit(0))
	assert.Equal(t, DefaultEventLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxEventLimit, ClampLimit(10_000))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(3)
	m.now = func() time.Time { return fixedNow }

	for i, typ := range []types.EventType{types.EventRebalance, types.EventAlert, types.EventSuccess, types.EventRebalance} {
		require.NoError(t, m.SaveEvent(ctx, types.RebalanceEvent{
			Type:      typ,
			Message:   string(typ),
			Timestamp: fixedNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := m.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3, "oldest event evicted")
	assert.Equal(t, fixedNow.Add(3*time.Minute), events[0].Timestamp)
	assert.NotEmpty(t, events[0].ID)

	summary, err := m.Summary(ctx, fixedNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Counts[types.EventSuccess])

	cfg := types.StopLossConfig{Enabled: true, Percentage: 5, TargetToken: types.TargetTokenX}
	require.NoError(t, m.SaveStopLossConfig(ctx, "pos-1", cfg))
	loaded, err := m.LoadStopLossConfigs(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded["pos-1"])
	require.NoError(t, m.DeleteStopLossConfig(ctx, "pos-1"))
	loaded, _ = m.LoadStopLossConfigs(ctx)
	assert.Empty(t, loaded)
}
