package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type snapshotProducerMock struct {
	mock.Mock
}

func (m *snapshotProducerMock) Snapshot(ctx context.Context, source snapshot.Source) (snapshot.Snapshot, error) {
	args := m.Called(ctx, source)
	snap, _ := args.Get(0).(snapshot.Snapshot)
	return snap, args.Error(1)
}

func newPipelineFixture(t *testing.T, producer SnapshotProducer, now *time.Time) (*memory.Store, *PipelineService) {
	t.Helper()

	store := memory.NewStore()
	teams := memory.NewTeamRepository(nil)
	settlement := NewSettlementService(store.Matches(), store.Bets(), SettlementConfig{}, nil, logging.NewNop())
	reconciler := NewReconciliationService(store.Matches(), teams, ReconcileConfig{}, nil, logging.NewNop())
	reconciler.now = func() time.Time { return *now }
	detector := NewFinishDetector(store.Matches(), settlement, FinishDetectorConfig{DisappearanceMisses: 2}, nil, logging.NewNop())
	detector.now = func() time.Time { return *now }
	return store, NewPipelineService(producer, reconciler, detector, settlement)
}

func TestPipelineService_MainThenLiveCycles(t *testing.T) {
	ctx := context.Background()
	now := reconcileNow
	producer := new(snapshotProducerMock)
	store, pipeline := newPipelineFixture(t, producer, &now)

	upcoming := testRecord("Arsenal", "Chelsea", reconcileNow.Add(10*time.Minute))
	producer.On("Snapshot", mock.Anything, snapshot.SourceMain).
		Return(snapshot.Snapshot{Source: snapshot.SourceMain, Records: []snapshot.Record{upcoming}}, nil).Once()

	stats, err := pipeline.MainCycle(ctx, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats["created"])

	now = reconcileNow.Add(30 * time.Minute)
	live := upcoming
	live.StatusHint = snapshot.HintLive
	live.HomeScore, live.AwayScore = intPtr(0), intPtr(1)
	filler := testRecord("Leeds", "Burnley", reconcileNow.Add(-time.Hour))
	producer.On("Snapshot", mock.Anything, snapshot.SourceLive).
		Return(snapshot.Snapshot{Source: snapshot.SourceLive, Records: []snapshot.Record{live, filler}}, nil).Once()
	producer.On("Snapshot", mock.Anything, snapshot.SourceLive).
		Return(snapshot.Snapshot{Source: snapshot.SourceLive, Records: []snapshot.Record{filler}}, nil).Twice()

	stats, err = pipeline.LiveCycle(ctx, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats["updated"])
	assert.Equal(t, 1, stats["skipped"], "unknown in-play rows are not created")

	_, err = pipeline.LiveCycle(ctx, logging.NewNop())
	require.NoError(t, err)
	stats, err = pipeline.LiveCycle(ctx, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats["finished"])

	items, err := store.Matches().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, match.StatusFinished, items[0].Status)
	assert.Equal(t, 0, *items[0].HomeScore)
	assert.Equal(t, 1, *items[0].AwayScore)
	producer.AssertExpectations(t)
}

func TestPipelineService_ProducerErrorFailsCycle(t *testing.T) {
	now := reconcileNow
	producer := new(snapshotProducerMock)
	_, pipeline := newPipelineFixture(t, producer, &now)

	producer.On("Snapshot", mock.Anything, snapshot.SourceMain).
		Return(snapshot.Snapshot{}, errors.New("browser crashed")).Once()

	_, err := pipeline.MainCycle(context.Background(), logging.NewNop())
	require.ErrorContains(t, err, "browser crashed")
}
