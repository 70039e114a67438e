package scoring

import (
	"math"
	"strings"
)

// Thresholds are the tier and pathway cutoffs. Callers disagree on the
// inclusion policy in practice, so both filter modes and every number here
// are configuration rather than constants.
type Thresholds struct {
	SlamDunkGap              int64   `yaml:"slam_dunk_gap"`
	FlippableGap             int64   `yaml:"flippable_gap"`
	SlamDunkActivationPct    float64 `yaml:"slam_dunk_activation_pct"`
	FlippableActivationPct   float64 `yaml:"flippable_activation_pct"`
	CompetitiveGap           int64   `yaml:"competitive_gap"`
	CompetitiveActivationPct float64 `yaml:"competitive_activation_pct"`
	PathwayGap               int64   `yaml:"pathway_gap"`
	PathwayActivationPct     float64 `yaml:"pathway_activation_pct"`
	MaxMarginPct             float64 `yaml:"max_margin_pct"`
	MinTotalVotes            int64   `yaml:"min_total_votes"`
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SlamDunkGap:              25,
		FlippableGap:             100,
		SlamDunkActivationPct:    15,
		FlippableActivationPct:   35,
		CompetitiveGap:           300,
		CompetitiveActivationPct: 60,
		PathwayGap:               100,
		PathwayActivationPct:     50,
		MaxMarginPct:             15,
		MinTotalVotes:            50,
	}
}

// FilterMode selects which inclusion policy bounds the tracked universe.
// The two policies coexist among callers and are not equivalent.
type FilterMode string

const (
	FilterGapActivation FilterMode = "gap_activation"
	FilterMarginFloor   FilterMode = "margin_floor"
)

// Classifier computes gap/activation metrics and assigns difficulty tiers.
// Identical inputs always yield identical output.
type Classifier struct {
	thresholds        Thresholds
	mode              FilterMode
	municipalPrefixes []string
}

func NewClassifier(th Thresholds, mode FilterMode, municipalPrefixes []string) *Classifier {
	prefixes := make([]string, 0, len(municipalPrefixes))
	for _, p := range municipalPrefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &Classifier{thresholds: th, mode: mode, municipalPrefixes: prefixes}
}

// Classify scores one in-scope contest. ok is false when the challenger is
// already ahead, which puts the race outside the tracked universe entirely;
// a tied race stays in scope with a gap of one.
func (c *Classifier) Classify(t ContestTotals, ref ReferenceTurnout) (FlippableRace, bool) {
	if t.ChallengerVotes > t.IncumbentVotes {
		return FlippableRace{}, false
	}

	referenceVotes := ref.ReferenceVotes
	if ref.Tier == ResolvedNone {
		// Final fallback: the contest's own turnout keeps the row in the
		// pipeline while signalling the activation pathway is meaningless.
		referenceVotes = t.TotalVotes
	}

	gap := t.IncumbentVotes + 1 - t.ChallengerVotes
	pool := referenceVotes - t.ChallengerVotes
	if pool < 0 {
		pool = 0
	}
	pct := ActivationUnreachable
	if pool > 0 {
		pct = round1(float64(gap) / float64(pool) * 100)
	}
	var margin float64
	if t.TotalVotes > 0 {
		margin = round1(float64(t.IncumbentVotes-t.ChallengerVotes) / float64(t.TotalVotes) * 100)
	}

	race := FlippableRace{
		Key:                 t.Key,
		ChallengerVotes:     t.ChallengerVotes,
		IncumbentVotes:      t.IncumbentVotes,
		VoteGap:             gap,
		MarginPct:           margin,
		ReferenceVotes:      referenceVotes,
		ReferenceTier:       ref.Tier,
		ActivationPool:      pool,
		ActivationPctNeeded: pct,
		Category:            c.category(t.Key.Contest),
	}
	race.Tier = c.tier(race)
	race.BestPathway = c.pathway(race)
	return race, true
}

// tier applies the difficulty ladder; the first matching rule wins.
func (c *Classifier) tier(r FlippableRace) Tier {
	th := c.thresholds
	activation := r.ActivationPool > 0 && r.ActivationPctNeeded >= 0
	switch {
	case r.VoteGap <= th.SlamDunkGap:
		return TierSlamDunk
	case r.VoteGap <= th.FlippableGap:
		return TierHighlyFlippable
	case activation && r.ActivationPctNeeded <= th.SlamDunkActivationPct:
		return TierSlamDunk
	case activation && r.ActivationPctNeeded <= th.FlippableActivationPct:
		return TierHighlyFlippable
	case r.VoteGap <= th.CompetitiveGap || (activation && r.ActivationPctNeeded <= th.CompetitiveActivationPct):
		return TierCompetitive
	default:
		return TierStretchGoal
	}
}

// pathway picks the cheaper viable route to closing the gap. A raw vote
// count and a percentage only become comparable as fractions of their own
// viability thresholds, so that ratio is the comparison.
func (c *Classifier) pathway(r FlippableRace) Pathway {
	th := c.thresholds
	gapViable := r.VoteGap <= th.PathwayGap
	activationViable := r.ActivationPool > 0 && r.ActivationPctNeeded >= 0 && r.ActivationPctNeeded <= th.PathwayActivationPct
	switch {
	case gapViable && activationViable:
		gapRatio := float64(r.VoteGap) / float64(th.PathwayGap)
		activationRatio := r.ActivationPctNeeded / th.PathwayActivationPct
		if gapRatio <= activationRatio {
			return PathwayVoteGap
		}
		return PathwayActivation
	case gapViable:
		return PathwayVoteGap
	case activationViable:
		return PathwayActivation
	default:
		return PathwayDifficult
	}
}

// Include applies the configured inclusion filter to a classified race.
func (c *Classifier) Include(r FlippableRace, totalVotes int64) bool {
	th := c.thresholds
	switch c.mode {
	case FilterMarginFloor:
		return r.MarginPct <= th.MaxMarginPct && totalVotes >= th.MinTotalVotes
	default:
		if r.VoteGap <= th.PathwayGap {
			return true
		}
		return r.ActivationPool > 0 && r.ActivationPctNeeded >= 0 && r.ActivationPctNeeded <= th.PathwayActivationPct
	}
}

func (c *Classifier) category(contest string) RaceCategory {
	upper := strings.ToUpper(contest)
	for _, prefix := range c.municipalPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return CategoryMunicipal
		}
	}
	return CategoryPartisan
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
