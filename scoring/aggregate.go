package scoring

import (
	"sort"

	"flipscore/precinct"
)

// AggregateStats counts rows dropped on the way into contest totals.
type AggregateStats struct {
	RowsIn            int
	MalformedPrecinct int
	UnknownParty      int
	NegativeVotes     int
	Uncontested       int
}

// Dropped is the total of rows excluded for row-level faults.
func (s AggregateStats) Dropped() int {
	return s.MalformedPrecinct + s.UnknownParty + s.NegativeVotes
}

// Aggregate rolls raw vote rows into per-contest party totals keyed by the
// canonical precinct form. Rows with an unknown party, a negative count, or
// a precinct carrying no digits are dropped, never fatal. Contests where
// either major bucket is zero are uncontested and excluded from all further
// scope. Output order is deterministic.
func Aggregate(records []VoteRecord) ([]ContestTotals, AggregateStats) {
	stats := AggregateStats{RowsIn: len(records)}
	totals := make(map[RaceKey]*ContestTotals)

	for _, rec := range records {
		padded, _, ok := precinct.Normalize(rec.Precinct)
		if !ok {
			stats.MalformedPrecinct++
			continue
		}
		if rec.Votes < 0 {
			stats.NegativeVotes++
			continue
		}
		switch rec.Party {
		case PartyChallenger, PartyIncumbent, PartyOther:
		default:
			stats.UnknownParty++
			continue
		}

		key := RaceKey{
			Jurisdiction: rec.Jurisdiction,
			Precinct:     padded,
			Contest:      rec.Contest,
			ElectionDate: rec.ElectionDate,
		}
		t := totals[key]
		if t == nil {
			t = &ContestTotals{Key: key}
			totals[key] = t
		}
		switch rec.Party {
		case PartyChallenger:
			t.ChallengerVotes += rec.Votes
		case PartyIncumbent:
			t.IncumbentVotes += rec.Votes
		case PartyOther:
			t.OtherVotes += rec.Votes
		}
		t.TotalVotes += rec.Votes
	}

	out := make([]ContestTotals, 0, len(totals))
	for _, t := range totals {
		if t.ChallengerVotes == 0 || t.IncumbentVotes == 0 {
			stats.Uncontested++
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return lessRaceKey(out[i].Key, out[j].Key) })
	return out, stats
}

func lessRaceKey(a, b RaceKey) bool {
	if a.Jurisdiction != b.Jurisdiction {
		return a.Jurisdiction < b.Jurisdiction
	}
	if a.Precinct != b.Precinct {
		return a.Precinct < b.Precinct
	}
	if a.Contest != b.Contest {
		return a.Contest < b.Contest
	}
	return a.ElectionDate < b.ElectionDate
}
