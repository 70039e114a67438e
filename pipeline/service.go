package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"flipscore/config"
	"flipscore/metrics"
	"flipscore/scoring"
	"flipscore/store"
)

// Mode selects how classified races are published.
type Mode string

const (
	// ModeRebuild recomputes a jurisdiction from scratch and replaces its
	// published set atomically.
	ModeRebuild Mode = "rebuild"
	// ModeMerge upserts the recomputed races without deleting anything.
	ModeMerge Mode = "merge"
)

// RunResult summarizes one Run invocation.
type RunResult struct {
	Jurisdictions int
	RacesWritten  int
	Failed        int
}

// Service drives the aggregate/resolve/classify pipeline per jurisdiction.
type Service struct {
	store   *store.Store
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	pool    pond.Pool
	bench   *regexp.Regexp
}

func New(st *store.Store, cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*Service, error) {
	bench, err := cfg.BenchmarkRegexp()
	if err != nil {
		return nil, err
	}
	return &Service{
		store:   st,
		cfg:     cfg,
		log:     log,
		metrics: m,
		pool:    pond.NewPool(cfg.WorkerCount),
		bench:   bench,
	}, nil
}

// RunAll scores every jurisdiction present in the raw results.
func (s *Service) RunAll(ctx context.Context, mode Mode) (RunResult, error) {
	jurisdictions, err := s.store.Jurisdictions(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list jurisdictions: %w", err)
	}
	return s.Run(ctx, mode, jurisdictions)
}

// Run scores the named jurisdictions concurrently. One jurisdiction failing
// does not stop the others; the error is non-nil only when every one fails.
func (s *Service) Run(ctx context.Context, mode Mode, jurisdictions []string) (RunResult, error) {
	var written, failed int64
	group := s.pool.NewGroupContext(ctx)
	for _, jurisdiction := range jurisdictions {
		group.Submit(func() {
			n, err := s.runJurisdiction(group.Context(), mode, jurisdiction)
			s.metrics.RecordRun(err)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				s.log.Error("scoring run failed", zap.String("jurisdiction", jurisdiction), zap.Error(err))
				return
			}
			atomic.AddInt64(&written, int64(n))
		})
	}
	if err := group.Wait(); err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		Jurisdictions: len(jurisdictions),
		RacesWritten:  int(atomic.LoadInt64(&written)),
		Failed:        int(atomic.LoadInt64(&failed)),
	}
	if result.Failed > 0 && result.Failed == len(jurisdictions) {
		return result, fmt.Errorf("all %d jurisdictions failed", result.Failed)
	}
	return result, nil
}

func (s *Service) runJurisdiction(ctx context.Context, mode Mode, jurisdiction string) (int, error) {
	start := time.Now()
	runID, err := s.store.StartRun(ctx, string(mode), jurisdiction)
	if err != nil {
		// Bookkeeping failure never blocks the scoring work itself.
		s.log.Warn("run bookkeeping unavailable", zap.String("jurisdiction", jurisdiction), zap.Error(err))
	}

	races, stats, err := s.Score(ctx, jurisdiction)
	if err != nil {
		s.finishRun(ctx, runID, "failed", 0, err)
		return 0, err
	}

	switch mode {
	case ModeMerge:
		err = s.store.MergeRaces(ctx, races)
	default:
		err = s.store.ReplaceRaces(ctx, jurisdiction, races)
	}
	if err != nil {
		s.finishRun(ctx, runID, "failed", 0, err)
		return 0, fmt.Errorf("publish races: %w", err)
	}

	s.finishRun(ctx, runID, "succeeded", len(races), nil)
	s.metrics.AddDropped(stats.Dropped())
	s.metrics.AddRacesWritten(len(races))
	s.log.Info("scored jurisdiction",
		zap.String("jurisdiction", jurisdiction),
		zap.String("mode", string(mode)),
		zap.Int("rows_in", stats.RowsIn),
		zap.Int("rows_dropped", stats.Dropped()),
		zap.Int("uncontested", stats.Uncontested),
		zap.Int("races", len(races)),
		zap.Duration("elapsed", time.Since(start)))
	return len(races), nil
}

// Score runs aggregation, turnout resolution, and classification for one
// jurisdiction without publishing anything.
func (s *Service) Score(ctx context.Context, jurisdiction string) ([]scoring.FlippableRace, scoring.AggregateStats, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.FetchTimeoutSec)*time.Second)
	defer cancel()

	records, err := s.store.VoteRecords(fetchCtx, jurisdiction)
	if err != nil {
		return nil, scoring.AggregateStats{}, fmt.Errorf("fetch vote records: %w", err)
	}

	totals, stats := s.aggregate(records)
	resolver := scoring.NewResolver(totals, s.bench)
	keys := make([]scoring.TurnoutKey, 0, len(totals))
	for _, t := range totals {
		keys = append(keys, t.TurnoutKey())
	}
	resolved := resolver.ResolveAll(keys)

	classifier := scoring.NewClassifier(s.cfg.Thresholds, s.cfg.FilterMode, s.cfg.MunicipalPrefixes)
	races := make([]scoring.FlippableRace, 0, len(totals))
	for _, t := range totals {
		ref := resolved[t.TurnoutKey()]
		race, ok := classifier.Classify(t, ref)
		if !ok {
			continue
		}
		if ref.Tier == scoring.ResolvedNone {
			s.log.Warn("no reference turnout, using contest total",
				zap.String("jurisdiction", t.Key.Jurisdiction),
				zap.String("precinct", t.Key.Precinct),
				zap.String("contest", t.Key.Contest))
		}
		if !classifier.Include(race, t.TotalVotes) {
			continue
		}
		races = append(races, race)
	}
	return races, stats, nil
}

func (s *Service) aggregate(records []scoring.VoteRecord) ([]scoring.ContestTotals, scoring.AggregateStats) {
	totals, stats := scoring.Aggregate(records)
	s.metrics.AddIngested(stats.RowsIn)
	return totals, stats
}

func (s *Service) finishRun(ctx context.Context, runID, status string, races int, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.store.FinishRun(ctx, runID, status, races, msg); err != nil {
		s.log.Warn("run bookkeeping update failed", zap.String("run_id", runID), zap.Error(err))
	}
}
