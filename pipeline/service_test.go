package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flipscore/config"
	"flipscore/metrics"
	"flipscore/scoring"
	"flipscore/store"
)

func testService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	svc, err := New(st, cfg, zaptest.NewLogger(t), metrics.New())
	require.NoError(t, err)
	return svc, st
}

func seedSussex(t *testing.T, st *store.Store) {
	t.Helper()
	records := []scoring.VoteRecord{
		{Jurisdiction: "sussex", Precinct: "4", Contest: "PRESIDENT", ElectionDate: "2024-11-05", Party: scoring.PartyChallenger, Votes: 600},
		{Jurisdiction: "sussex", Precinct: "4", Contest: "PRESIDENT", ElectionDate: "2024-11-05", Party: scoring.PartyIncumbent, Votes: 700},
		{Jurisdiction: "sussex", Precinct: "004", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: scoring.PartyChallenger, Votes: 300},
		{Jurisdiction: "sussex", Precinct: "4", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: scoring.PartyChallenger, Votes: 180},
		{Jurisdiction: "sussex", Precinct: "4", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: scoring.PartyIncumbent, Votes: 500},
		{Jurisdiction: "sussex", Precinct: "4", Contest: "SURROGATE", ElectionDate: "2024-11-05", Party: scoring.PartyIncumbent, Votes: 900},
	}
	_, err := st.InsertVoteRecords(context.Background(), "", records)
	require.NoError(t, err)
}

func TestRunRebuild(t *testing.T) {
	svc, st := testService(t)
	seedSussex(t, st)
	ctx := context.Background()

	result, err := svc.Run(ctx, ModeRebuild, []string{"sussex"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Jurisdictions)
	assert.Equal(t, 1, result.RacesWritten)
	assert.Zero(t, result.Failed)

	races, err := st.Races(ctx, "sussex")
	require.NoError(t, err)
	require.Len(t, races, 1)

	// The sheriff race merges both precinct spellings; the presidential
	// race has a three-digit gap and an exhausted pool, so it is filtered.
	got := races[0]
	assert.Equal(t, "SHERIFF", got.Key.Contest)
	assert.Equal(t, "004", got.Key.Precinct)
	assert.Equal(t, int64(480), got.ChallengerVotes)
	assert.Equal(t, int64(21), got.VoteGap)
	assert.Equal(t, int64(600), got.ReferenceVotes)
	assert.Equal(t, scoring.ResolvedSameElection, got.ReferenceTier)
	assert.Equal(t, scoring.TierSlamDunk, got.Tier)
	assert.Equal(t, scoring.PathwayVoteGap, got.BestPathway)
}

func TestRunMergeIsIdempotent(t *testing.T) {
	svc, st := testService(t)
	seedSussex(t, st)
	ctx := context.Background()

	_, err := svc.Run(ctx, ModeMerge, []string{"sussex"})
	require.NoError(t, err)
	_, err = svc.Run(ctx, ModeMerge, []string{"sussex"})
	require.NoError(t, err)

	races, err := st.Races(ctx, "sussex")
	require.NoError(t, err)
	assert.Len(t, races, 1)
}

func TestRunAllDiscoversJurisdictions(t *testing.T) {
	svc, st := testService(t)
	seedSussex(t, st)
	ctx := context.Background()

	result, err := svc.RunAll(ctx, ModeRebuild)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Jurisdictions)
}

func TestScoreEmptyJurisdiction(t *testing.T) {
	svc, _ := testService(t)

	races, stats, err := svc.Score(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, races)
	assert.Zero(t, stats.RowsIn)
}
