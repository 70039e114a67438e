package scoring

import (
	"regexp"
	"sort"
)

type benchResult struct {
	date  string
	votes int64
}

// Resolver produces a reference turnout benchmark per precinct/election via
// tiered fallback. It is built once per run from the aggregated totals and
// passed down explicitly; there is no package-level state.
type Resolver struct {
	exact   map[TurnoutKey]int64
	history map[string][]benchResult
}

// NewResolver indexes benchmark-contest results out of the aggregated
// totals. benchmark selects which contest names count as turnout
// benchmarks; the benchmark figure for a precinct is the challenger
// party's total in that contest.
func NewResolver(totals []ContestTotals, benchmark *regexp.Regexp) *Resolver {
	r := &Resolver{
		exact:   make(map[TurnoutKey]int64),
		history: make(map[string][]benchResult),
	}
	for _, t := range totals {
		if !benchmark.MatchString(t.Key.Contest) {
			continue
		}
		key := t.TurnoutKey()
		// Several benchmark contests on one ballot keep the larger figure.
		if v, ok := r.exact[key]; !ok || t.ChallengerVotes > v {
			r.exact[key] = t.ChallengerVotes
		}
		hk := historyKey(key.Jurisdiction, key.Precinct)
		r.history[hk] = append(r.history[hk], benchResult{date: key.ElectionDate, votes: t.ChallengerVotes})
	}
	// Votes break same-date ties so Tier 2 keeps the larger figure,
	// matching the exact-match policy above.
	for _, results := range r.history {
		sort.Slice(results, func(i, j int) bool {
			if results[i].date != results[j].date {
				return results[i].date < results[j].date
			}
			return results[i].votes < results[j].votes
		})
	}
	return r
}

// ResolveAll resolves every turnout key in two passes: exact and
// prior-election lookups first, then jurisdiction-wide averages computed
// only over values the first pass resolved, so Tier 3 does not depend on
// input order. Keys no tier reaches come back with tier "none" and a zero
// value; callers substitute the contest's own total.
func (r *Resolver) ResolveAll(keys []TurnoutKey) map[TurnoutKey]ReferenceTurnout {
	resolved := make(map[TurnoutKey]ReferenceTurnout, len(keys))
	sums := make(map[string]int64)
	counts := make(map[string]int64)

	for _, key := range keys {
		if _, done := resolved[key]; done {
			continue
		}
		votes, tier := r.resolveDirect(key)
		resolved[key] = ReferenceTurnout{Key: key, ReferenceVotes: votes, Tier: tier}
		if tier == ResolvedSameElection || tier == ResolvedPriorElection {
			ak := historyKey(key.Jurisdiction, key.ElectionDate)
			sums[ak] += votes
			counts[ak]++
		}
	}

	for key, ref := range resolved {
		if ref.Tier != ResolvedNone {
			continue
		}
		ak := historyKey(key.Jurisdiction, key.ElectionDate)
		if counts[ak] == 0 {
			continue
		}
		ref.ReferenceVotes = sums[ak] / counts[ak]
		ref.Tier = ResolvedJurisdictionAverage
		resolved[key] = ref
	}
	return resolved
}

// resolveDirect covers Tier 1 (same election) and Tier 2 (most recent
// earlier election). Tier 1 always wins when present, whatever the values.
func (r *Resolver) resolveDirect(key TurnoutKey) (int64, ResolutionTier) {
	if votes, ok := r.exact[key]; ok {
		return votes, ResolvedSameElection
	}
	results := r.history[historyKey(key.Jurisdiction, key.Precinct)]
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].date < key.ElectionDate {
			return results[i].votes, ResolvedPriorElection
		}
	}
	return 0, ResolvedNone
}

func historyKey(a, b string) string { return a + "\x00" + b }
