package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"flipscore/scoring"
)

// ErrDuplicateKey marks an insert batch carrying two rows with the same
// natural key; the whole batch is rejected rather than silently last-wins.
var ErrDuplicateKey = errors.New("duplicate natural key in batch")

// Store wraps SQLite access for raw results, classified races, and run
// bookkeeping.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS raw_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			jurisdiction TEXT NOT NULL,
			precinct TEXT NOT NULL,
			contest_name TEXT NOT NULL,
			election_date TEXT NOT NULL,
			party TEXT NOT NULL,
			candidate TEXT,
			votes INTEGER NOT NULL,
			source TEXT,
			imported_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_raw_results_jurisdiction ON raw_results(jurisdiction);`,
		`CREATE TABLE IF NOT EXISTS flippable_races (
			jurisdiction TEXT NOT NULL,
			precinct TEXT NOT NULL,
			contest_name TEXT NOT NULL,
			election_date TEXT NOT NULL,
			challenger_votes INTEGER NOT NULL,
			incumbent_votes INTEGER NOT NULL,
			vote_gap INTEGER NOT NULL,
			margin_pct REAL NOT NULL,
			reference_votes INTEGER NOT NULL,
			reference_tier TEXT NOT NULL,
			activation_pool INTEGER NOT NULL,
			activation_pct_needed REAL NOT NULL,
			tier TEXT NOT NULL,
			best_pathway TEXT NOT NULL,
			category TEXT NOT NULL,
			updated_at TIMESTAMP,
			PRIMARY KEY (jurisdiction, precinct, contest_name, election_date)
		);`,
		`CREATE TABLE IF NOT EXISTS scoring_runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			jurisdiction TEXT,
			status TEXT NOT NULL,
			races_written INTEGER,
			error TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS imported_files (
			path TEXT PRIMARY KEY,
			rows INTEGER,
			imported_at TIMESTAMP
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertVoteRecords appends raw result rows in one transaction and marks
// the source path as imported. Returns the number of rows written.
func (s *Store) InsertVoteRecords(ctx context.Context, source string, records []scoring.VoteRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_results(jurisdiction, precinct, contest_name, election_date, party, candidate, votes, source, imported_at)
		VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Jurisdiction, rec.Precinct, rec.Contest, rec.ElectionDate, string(rec.Party), nullableString(rec.Candidate), rec.Votes, nullableString(source), now); err != nil {
			return 0, err
		}
	}
	if source != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO imported_files(path, rows, imported_at) VALUES(?,?,?)
			ON CONFLICT(path) DO UPDATE SET rows=excluded.rows, imported_at=excluded.imported_at`, source, len(records), now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// FileImported reports whether a source path is already in the ledger.
func (s *Store) FileImported(ctx context.Context, path string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM imported_files WHERE path = ?`, path).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// VoteRecords returns every raw row for one jurisdiction.
func (s *Store) VoteRecords(ctx context.Context, jurisdiction string) ([]scoring.VoteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT jurisdiction, precinct, contest_name, election_date, party, COALESCE(candidate, ''), votes
		FROM raw_results WHERE jurisdiction = ? ORDER BY id`, jurisdiction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.VoteRecord
	for rows.Next() {
		var rec scoring.VoteRecord
		var party string
		if err := rows.Scan(&rec.Jurisdiction, &rec.Precinct, &rec.Contest, &rec.ElectionDate, &party, &rec.Candidate, &rec.Votes); err != nil {
			return nil, err
		}
		rec.Party = scoring.Party(party)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Jurisdictions lists distinct jurisdictions present in the raw results.
func (s *Store) Jurisdictions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT jurisdiction FROM raw_results ORDER BY jurisdiction`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var j string
		if err := rows.Scan(&j); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const insertRaceSQL = `INSERT INTO flippable_races(jurisdiction, precinct, contest_name, election_date,
		challenger_votes, incumbent_votes, vote_gap, margin_pct, reference_votes, reference_tier,
		activation_pool, activation_pct_needed, tier, best_pathway, category, updated_at)
	VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(jurisdiction, precinct, contest_name, election_date) DO UPDATE SET
		challenger_votes=excluded.challenger_votes,
		incumbent_votes=excluded.incumbent_votes,
		vote_gap=excluded.vote_gap,
		margin_pct=excluded.margin_pct,
		reference_votes=excluded.reference_votes,
		reference_tier=excluded.reference_tier,
		activation_pool=excluded.activation_pool,
		activation_pct_needed=excluded.activation_pct_needed,
		tier=excluded.tier,
		best_pathway=excluded.best_pathway,
		category=excluded.category,
		updated_at=excluded.updated_at`

// ReplaceRaces publishes a full rebuild for one jurisdiction. Delete and
// insert share a transaction so readers never observe a partial set.
func (s *Store) ReplaceRaces(ctx context.Context, jurisdiction string, races []scoring.FlippableRace) error {
	if err := checkDuplicates(races); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flippable_races WHERE jurisdiction = ?`, jurisdiction); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertRaceSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range races {
		if r.Key.Jurisdiction != jurisdiction {
			return fmt.Errorf("race %v outside jurisdiction %q", r.Key, jurisdiction)
		}
		if _, err := stmt.ExecContext(ctx, raceArgs(r, now)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MergeRaces upserts classified races without touching rows outside the
// batch.
func (s *Store) MergeRaces(ctx context.Context, races []scoring.FlippableRace) error {
	if err := checkDuplicates(races); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRaceSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range races {
		if _, err := stmt.ExecContext(ctx, raceArgs(r, now)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Races returns the classified rows for one jurisdiction in key order.
func (s *Store) Races(ctx context.Context, jurisdiction string) ([]scoring.FlippableRace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT jurisdiction, precinct, contest_name, election_date,
			challenger_votes, incumbent_votes, vote_gap, margin_pct, reference_votes, reference_tier,
			activation_pool, activation_pct_needed, tier, best_pathway, category
		FROM flippable_races WHERE jurisdiction = ?
		ORDER BY jurisdiction, precinct, contest_name, election_date`, jurisdiction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.FlippableRace
	for rows.Next() {
		var r scoring.FlippableRace
		var tier, pathway, category, refTier string
		if err := rows.Scan(&r.Key.Jurisdiction, &r.Key.Precinct, &r.Key.Contest, &r.Key.ElectionDate,
			&r.ChallengerVotes, &r.IncumbentVotes, &r.VoteGap, &r.MarginPct, &r.ReferenceVotes, &refTier,
			&r.ActivationPool, &r.ActivationPctNeeded, &tier, &pathway, &category); err != nil {
			return nil, err
		}
		r.ReferenceTier = scoring.ResolutionTier(refTier)
		r.Tier = scoring.Tier(tier)
		r.BestPathway = scoring.Pathway(pathway)
		r.Category = scoring.RaceCategory(category)
		out = append(out, r)
	}
	return out, rows.Err()
}

// StartRun records the beginning of a scoring run and returns its id.
func (s *Store) StartRun(ctx context.Context, mode, jurisdiction string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO scoring_runs(id, mode, jurisdiction, status, started_at)
		VALUES(?,?,?,?,?)`, id, mode, nullableString(jurisdiction), "running", time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun closes out a scoring run. A blank id is a no-op so callers that
// failed to start a run can still report.
func (s *Store) FinishRun(ctx context.Context, id, status string, racesWritten int, errMsg string) error {
	if id == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE scoring_runs SET status=?, races_written=?, error=?, finished_at=? WHERE id=?`,
		status, racesWritten, nullableString(errMsg), time.Now().UTC(), id)
	return err
}

func checkDuplicates(races []scoring.FlippableRace) error {
	seen := make(map[scoring.RaceKey]struct{}, len(races))
	for _, r := range races {
		if _, dup := seen[r.Key]; dup {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, r.Key)
		}
		seen[r.Key] = struct{}{}
	}
	return nil
}

func raceArgs(r scoring.FlippableRace, now time.Time) []any {
	return []any{
		r.Key.Jurisdiction, r.Key.Precinct, r.Key.Contest, r.Key.ElectionDate,
		r.ChallengerVotes, r.IncumbentVotes, r.VoteGap, r.MarginPct, r.ReferenceVotes, string(r.ReferenceTier),
		r.ActivationPool, r.ActivationPctNeeded, string(r.Tier), string(r.BestPathway), string(r.Category), now,
	}
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
