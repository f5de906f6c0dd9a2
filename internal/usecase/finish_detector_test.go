package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type detectorFixture struct {
	store    *memory.Store
	detector *FinishDetector
	now      time.Time
}

func newDetectorFixture(t *testing.T, misses int) *detectorFixture {
	t.Helper()

	store := memory.NewStore()
	settlement := NewSettlementService(store.Matches(), store.Bets(), SettlementConfig{}, nil, logging.NewNop())
	f := &detectorFixture{
		store:    store,
		detector: NewFinishDetector(store.Matches(), settlement, FinishDetectorConfig{DisappearanceMisses: misses}, nil, logging.NewNop()),
		now:      time.Date(2026, time.March, 14, 21, 0, 0, 0, time.UTC),
	}
	f.detector.now = func() time.Time { return f.now }
	return f
}

func (f *detectorFixture) liveMatch(t *testing.T, home, away string, score *[2]int) match.Match {
	t.Helper()

	item := match.Match{
		HomeTeam:  home,
		AwayTeam:  away,
		KickoffAt: f.now.Add(-time.Hour),
		Status:    match.StatusLive,
	}
	if score != nil {
		item.HomeScore, item.AwayScore = intPtr(score[0]), intPtr(score[1])
	}
	created, err := f.store.Matches().Create(context.Background(), item)
	require.NoError(t, err)
	return created
}

func (f *detectorFixture) detect(t *testing.T, opts DetectOptions, records ...snapshot.Record) DetectResult {
	t.Helper()

	result, err := f.detector.Detect(context.Background(), snapshot.Snapshot{Source: snapshot.SourceLive, Records: records}, opts)
	require.NoError(t, err)
	return result
}

func (f *detectorFixture) status(t *testing.T, id int64) match.Match {
	t.Helper()

	item, ok, err := f.store.Matches().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	return item
}

func TestFinishDetector_ExplicitFinishSettles(t *testing.T) {
	t.Parallel()

	f := newDetectorFixture(t, 3)
	m := f.liveMatch(t, "Arsenal", "Chelsea", &[2]int{1, 1})
	f.store.OpenAccount(1, decimal.Zero)
	placeBet(f.store, 1, m.ID, bet.TypeHome, "21.00")

	rec := testRecord("Arsenal", "Chelsea", m.KickoffAt)
	rec.StatusHint = snapshot.HintFinished
	rec.HomeScore, rec.AwayScore = intPtr(2), intPtr(1)

	result := f.detect(t, DetectOptions{}, rec)
	assert.Equal(t, 1, result.Finished)
	assert.Equal(t, 1, result.Settled)
	assert.Equal(t, "21", balanceOf(t, f.store, 1))

	got := f.status(t, m.ID)
	assert.Equal(t, match.StatusFinished, got.Status)
	assert.Equal(t, 2, *got.HomeScore)
	assert.Equal(t, 1, *got.AwayScore)
}

func TestFinishDetector_FinishedWithoutScoreIsUnresolved(t *testing.T) {
	t.Parallel()

	f := newDetectorFixture(t, 3)
	m := f.liveMatch(t, "Arsenal", "Chelsea", nil)

	rec := testRecord("Arsenal", "Chelsea", m.KickoffAt)
	rec.StatusHint = snapshot.HintFinished

	result := f.detect(t, DetectOptions{}, rec)
	assert.Equal(t, 1, result.Unresolved)

	got := f.status(t, m.ID)
	assert.Equal(t, match.StatusFinished, got.Status)
	assert.True(t, got.Unresolved)
	assert.False(t, got.Settleable())
}

func TestFinishDetector_DisappearanceNeedsConsecutiveMisses(t *testing.T) {
	t.Parallel()

	f := newDetectorFixture(t, 3)
	m := f.liveMatch(t, "Arsenal", "Chelsea", &[2]int{3, 2})
	other := f.liveMatch(t, "Leeds", "Burnley", nil)
	present := testRecord("Arsenal", "Chelsea", m.KickoffAt)
	filler := testRecord("Leeds", "Burnley", other.KickoffAt)
	opts := DetectOptions{Disappearance: true}

	f.detect(t, opts, present, filler)

	f.detect(t, opts, filler)
	f.detect(t, opts, filler)
	// Reappearing resets the counter.
	f.detect(t, opts, present, filler)
	f.detect(t, opts, filler)
	// An empty snapshot is not a sighting of absence.
	f.detect(t, opts)
	second := f.detect(t, opts, filler)
	assert.Equal(t, 0, second.Finished)
	assert.Equal(t, match.StatusLive, f.status(t, m.ID).Status)

	third := f.detect(t, opts, filler)
	assert.Equal(t, 1, third.Finished)

	got := f.status(t, m.ID)
	assert.Equal(t, match.StatusFinished, got.Status)
	assert.Equal(t, 3, *got.HomeScore)
	assert.Equal(t, 2, *got.AwayScore)
	assert.Equal(t, match.StatusLive, f.status(t, other.ID).Status)
}

func TestFinishDetector_DisappearanceOnlyForMatchesSeenLive(t *testing.T) {
	t.Parallel()

	f := newDetectorFixture(t, 1)
	m := f.liveMatch(t, "Arsenal", "Chelsea", nil)
	filler := testRecord("Leeds", "Burnley", f.now)

	result := f.detect(t, DetectOptions{Disappearance: true}, filler)
	assert.Equal(t, 0, result.Missing)
	assert.Equal(t, match.StatusLive, f.status(t, m.ID).Status)
}

func TestFinishDetector_CanceledHintCancelsUpcoming(t *testing.T) {
	t.Parallel()

	f := newDetectorFixture(t, 3)
	created, err := f.store.Matches().Create(context.Background(), match.Match{
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		KickoffAt: f.now.Add(-5 * time.Minute),
		Status:    match.StatusUpcoming,
	})
	require.NoError(t, err)

	rec := testRecord("Arsenal", "Chelsea", created.KickoffAt)
	rec.StatusHint = snapshot.HintCanceled
	result := f.detect(t, DetectOptions{}, rec)
	assert.Equal(t, 1, result.Canceled)
	assert.Equal(t, match.StatusCanceled, f.status(t, created.ID).Status)
}
