package scoring

// Party buckets as supplied by the raw-results collaborator.
type Party string

const (
	PartyChallenger Party = "challenger"
	PartyIncumbent  Party = "incumbent"
	PartyOther      Party = "other"
)

// VoteRecord is one raw per-candidate result row. Precinct is free-form;
// ElectionDate is ISO YYYY-MM-DD so lexicographic order is chronological.
type VoteRecord struct {
	Jurisdiction string
	Precinct     string
	Contest      string
	ElectionDate string
	Party        Party
	Candidate    string
	Votes        int64
}

// RaceKey is the natural key of one contest in one precinct and election.
// Precinct holds the padded canonical form.
type RaceKey struct {
	Jurisdiction string
	Precinct     string
	Contest      string
	ElectionDate string
}

// TurnoutKey identifies a precinct/election pair for turnout lookups.
type TurnoutKey struct {
	Jurisdiction string
	Precinct     string
	ElectionDate string
}

// ContestTotals is the summed per-party view of one contest. Summation is
// its only construction path; it is recomputed whenever raw input changes.
type ContestTotals struct {
	Key             RaceKey
	ChallengerVotes int64
	IncumbentVotes  int64
	OtherVotes      int64
	TotalVotes      int64
}

func (t ContestTotals) TurnoutKey() TurnoutKey {
	return TurnoutKey{
		Jurisdiction: t.Key.Jurisdiction,
		Precinct:     t.Key.Precinct,
		ElectionDate: t.Key.ElectionDate,
	}
}

// ResolutionTier records which fallback supplied a reference turnout value.
type ResolutionTier string

const (
	ResolvedSameElection        ResolutionTier = "same_election"
	ResolvedPriorElection       ResolutionTier = "prior_election"
	ResolvedJurisdictionAverage ResolutionTier = "jurisdiction_average"
	ResolvedNone                ResolutionTier = "none"
)

// ReferenceTurnout is the benchmark turnout resolved for one
// precinct/election pair.
type ReferenceTurnout struct {
	Key            TurnoutKey
	ReferenceVotes int64
	Tier           ResolutionTier
}

// Tier is the difficulty classification assigned to a race.
type Tier string

const (
	TierSlamDunk        Tier = "SLAM_DUNK"
	TierHighlyFlippable Tier = "HIGHLY_FLIPPABLE"
	TierCompetitive     Tier = "COMPETITIVE"
	TierStretchGoal     Tier = "STRETCH_GOAL"
)

// Pathway names the cheaper viable route to closing the gap.
type Pathway string

const (
	PathwayVoteGap    Pathway = "vote_gap"
	PathwayActivation Pathway = "activation"
	PathwayDifficult  Pathway = "difficult"
)

// RaceCategory distinguishes partisan contests from municipal ones, which
// borrow their reference turnout from the nearest partisan benchmark.
type RaceCategory string

const (
	CategoryPartisan  RaceCategory = "partisan"
	CategoryMunicipal RaceCategory = "municipal"
)

// ActivationUnreachable marks races whose activation pool is empty; the
// percentage is never produced by dividing by zero.
const ActivationUnreachable = float64(-1)

// FlippableRace is the classified output row. Downstream consumers read it
// and nothing else, and must probe both precinct forms via
// precinct.Normalize since upstream identifiers are not canonicalized.
type FlippableRace struct {
	Key                 RaceKey
	ChallengerVotes     int64
	IncumbentVotes      int64
	VoteGap             int64
	MarginPct           float64
	ReferenceVotes      int64
	ReferenceTier       ResolutionTier
	ActivationPool      int64
	ActivationPctNeeded float64
	Tier                Tier
	BestPathway         Pathway
	Category            RaceCategory
}
