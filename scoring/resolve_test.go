package scoring

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var benchmarkRe = regexp.MustCompile(`(?i)^(president|governor|united states senator)`)

func benchTotals(jurisdiction, precinct, contest, date string, challenger int64) ContestTotals {
	return ContestTotals{
		Key: RaceKey{
			Jurisdiction: jurisdiction,
			Precinct:     precinct,
			Contest:      contest,
			ElectionDate: date,
		},
		ChallengerVotes: challenger,
		IncumbentVotes:  1,
		TotalVotes:      challenger + 1,
	}
}

func TestResolveSameElection(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "004", "PRESIDENT", "2024-11-05", 600),
		benchTotals("sussex", "004", "PRESIDENT", "2020-11-03", 900),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "004", ElectionDate: "2024-11-05"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	assert.Equal(t, int64(600), got.ReferenceVotes)
	assert.Equal(t, ResolvedSameElection, got.Tier)
}

func TestResolveSameElectionKeepsLargerBenchmark(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "004", "UNITED STATES SENATOR", "2024-11-05", 550),
		benchTotals("sussex", "004", "PRESIDENT", "2024-11-05", 620),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "004", ElectionDate: "2024-11-05"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	assert.Equal(t, int64(620), got.ReferenceVotes)
}

func TestResolvePriorElectionPicksMostRecent(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "004", "PRESIDENT", "2016-11-08", 800),
		benchTotals("sussex", "004", "PRESIDENT", "2020-11-03", 900),
		benchTotals("sussex", "004", "PRESIDENT", "2026-11-03", 950),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "004", ElectionDate: "2025-11-04"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	assert.Equal(t, int64(900), got.ReferenceVotes)
	assert.Equal(t, ResolvedPriorElection, got.Tier)
}

func TestResolvePriorElectionTieKeepsLarger(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "004", "UNITED STATES SENATOR", "2024-11-05", 400),
		benchTotals("sussex", "004", "PRESIDENT", "2024-11-05", 700),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "004", ElectionDate: "2025-11-04"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	assert.Equal(t, ResolvedPriorElection, got.Tier)
	assert.Equal(t, int64(700), got.ReferenceVotes)
}

func TestResolveJurisdictionAverage(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "001", "PRESIDENT", "2024-11-05", 300),
		benchTotals("sussex", "002", "PRESIDENT", "2024-11-05", 500),
	}, benchmarkRe)

	keys := []TurnoutKey{
		{Jurisdiction: "sussex", Precinct: "001", ElectionDate: "2024-11-05"},
		{Jurisdiction: "sussex", Precinct: "002", ElectionDate: "2024-11-05"},
		{Jurisdiction: "sussex", Precinct: "003", ElectionDate: "2024-11-05"},
	}
	resolved := r.ResolveAll(keys)

	got := resolved[keys[2]]
	assert.Equal(t, int64(400), got.ReferenceVotes)
	assert.Equal(t, ResolvedJurisdictionAverage, got.Tier)
	assert.Equal(t, ResolvedSameElection, resolved[keys[0]].Tier)
}

func TestResolveAverageIgnoresOtherJurisdictions(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("warren", "001", "PRESIDENT", "2024-11-05", 9000),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "003", ElectionDate: "2024-11-05"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	assert.Equal(t, ResolvedNone, got.Tier)
	assert.Equal(t, int64(0), got.ReferenceVotes)
}

func TestResolveMunicipalDateFallsBackToPartisanBenchmark(t *testing.T) {
	// A May municipal election has no benchmark of its own; the prior
	// November general supplies the reference.
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "012", "GOVERNOR", "2024-11-05", 450),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "012", ElectionDate: "2025-05-13"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	require.Equal(t, ResolvedPriorElection, got.Tier)
	assert.Equal(t, int64(450), got.ReferenceVotes)
}

func TestResolveIgnoresNonBenchmarkContests(t *testing.T) {
	r := NewResolver([]ContestTotals{
		benchTotals("sussex", "004", "SHERIFF", "2024-11-05", 700),
	}, benchmarkRe)

	key := TurnoutKey{Jurisdiction: "sussex", Precinct: "004", ElectionDate: "2024-11-05"}
	got := r.ResolveAll([]TurnoutKey{key})[key]
	assert.Equal(t, ResolvedNone, got.Tier)
}
