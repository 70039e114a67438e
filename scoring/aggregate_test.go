package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateMergesPrecinctVariants(t *testing.T) {
	records := []VoteRecord{
		{Jurisdiction: "sussex", Precinct: "4", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 300},
		{Jurisdiction: "sussex", Precinct: "004", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 180},
		{Jurisdiction: "sussex", Precinct: "P-4", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 500},
	}

	totals, stats := Aggregate(records)
	require.Len(t, totals, 1)
	got := totals[0]
	assert.Equal(t, "004", got.Key.Precinct)
	assert.Equal(t, int64(480), got.ChallengerVotes)
	assert.Equal(t, int64(500), got.IncumbentVotes)
	assert.Equal(t, int64(980), got.TotalVotes)
	assert.Equal(t, 0, stats.Dropped())
}

func TestAggregateDropsBadRows(t *testing.T) {
	records := []VoteRecord{
		{Jurisdiction: "sussex", Precinct: "12", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 100},
		{Jurisdiction: "sussex", Precinct: "12", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 120},
		{Jurisdiction: "sussex", Precinct: "N/A", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 50},
		{Jurisdiction: "sussex", Precinct: "12", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: "green", Votes: 10},
		{Jurisdiction: "sussex", Precinct: "12", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: -5},
	}

	totals, stats := Aggregate(records)
	require.Len(t, totals, 1)
	assert.Equal(t, int64(100), totals[0].ChallengerVotes)
	assert.Equal(t, 5, stats.RowsIn)
	assert.Equal(t, 1, stats.MalformedPrecinct)
	assert.Equal(t, 1, stats.UnknownParty)
	assert.Equal(t, 1, stats.NegativeVotes)
	assert.Equal(t, 3, stats.Dropped())
}

func TestAggregateExcludesUncontested(t *testing.T) {
	records := []VoteRecord{
		{Jurisdiction: "sussex", Precinct: "7", Contest: "SURROGATE", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 900},
		{Jurisdiction: "sussex", Precinct: "7", Contest: "SURROGATE", ElectionDate: "2024-11-05", Party: PartyOther, Votes: 40},
		{Jurisdiction: "sussex", Precinct: "7", Contest: "CLERK", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 400},
		{Jurisdiction: "sussex", Precinct: "7", Contest: "CLERK", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 410},
	}

	totals, stats := Aggregate(records)
	require.Len(t, totals, 1)
	assert.Equal(t, "CLERK", totals[0].Key.Contest)
	assert.Equal(t, 1, stats.Uncontested)
}

func TestAggregateOutputOrderIsDeterministic(t *testing.T) {
	records := []VoteRecord{
		{Jurisdiction: "warren", Precinct: "2", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 10},
		{Jurisdiction: "warren", Precinct: "2", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 20},
		{Jurisdiction: "sussex", Precinct: "9", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 10},
		{Jurisdiction: "sussex", Precinct: "9", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 20},
		{Jurisdiction: "sussex", Precinct: "1", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyChallenger, Votes: 10},
		{Jurisdiction: "sussex", Precinct: "1", Contest: "SHERIFF", ElectionDate: "2024-11-05", Party: PartyIncumbent, Votes: 20},
	}

	first, _ := Aggregate(records)
	second, _ := Aggregate(records)
	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "sussex", first[0].Key.Jurisdiction)
	assert.Equal(t, "001", first[0].Key.Precinct)
	assert.Equal(t, "009", first[1].Key.Precinct)
	assert.Equal(t, "warren", first[2].Key.Jurisdiction)
}
