package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	grid             TEXT NOT NULL,
	dataset_hash     TEXT,
	started_at       TEXT NOT NULL,
	finished_at      TEXT,
	evaluated        INTEGER NOT NULL DEFAULT 0,
	rejected         INTEGER NOT NULL DEFAULT 0,
	best_fingerprint TEXT,
	best_spec        TEXT,
	best_point       TEXT,
	exact            INTEGER,
	close            INTEGER,
	mae              REAL,
	score            REAL,
	residuals        BLOB
);

CREATE TABLE IF NOT EXISTS improvements (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	grid         TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	point        TEXT,
	spec         TEXT NOT NULL,
	exact        INTEGER NOT NULL,
	close        INTEGER NOT NULL,
	mae          REAL NOT NULL,
	score        REAL NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id),
	UNIQUE (run_id, seq)
);

CREATE INDEX IF NOT EXISTS improvements_fingerprint ON improvements(fingerprint);
`

// #endregion schema

// #region store-struct
// Store persists search runs and their improvements in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region begin-run
// BeginRun opens a run for grid over the dataset identified by datasetHash.
func (s *Store) BeginRun(grid, datasetHash string) (Run, error) {
	run := Run{
		RunID:       uuid.New().String(),
		Grid:        grid,
		DatasetHash: datasetHash,
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, grid, dataset_hash, started_at) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Grid, nullIfEmpty(datasetHash), run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// #endregion begin-run

// #region finish-run
// FinishRun records the final counters and best trial of a run.
func (s *Store) FinishRun(runID string, st search.State) error {
	finished := time.Now().UTC().Format(time.RFC3339Nano)
	if st.Best == nil {
		res, err := s.db.Exec(
			`UPDATE runs SET finished_at = ?, evaluated = ?, rejected = ? WHERE run_id = ?`,
			finished, st.Evaluated, st.Rejected, runID,
		)
		return checkUpdated(res, err, runID)
	}

	b := st.Best
	fp, err := Fingerprint(b.Spec)
	if err != nil {
		return err
	}
	specJSON, err := json.Marshal(b.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	pointJSON, err := json.Marshal(b.Point)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, evaluated = ?, rejected = ?,
		   best_fingerprint = ?, best_spec = ?, best_point = ?,
		   exact = ?, close = ?, mae = ?, score = ?, residuals = ?
		 WHERE run_id = ?`,
		finished, st.Evaluated, st.Rejected,
		fp, string(specJSON), string(pointJSON),
		b.Result.ExactMatches, b.Result.CloseMatches, b.Result.MeanAbsError, b.Result.Score(),
		encodeResiduals(b.Result.Residuals),
		runID,
	)
	return checkUpdated(res, err, runID)
}

func checkUpdated(res sql.Result, err error, runID string) error {
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// #endregion finish-run

// #region get-run
const runColumns = `run_id, grid, dataset_hash, started_at, finished_at, evaluated, rejected,
	best_fingerprint, best_spec, best_point, exact, close, mae, score, residuals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var datasetHash, finished, fp, specJSON, pointJSON sql.NullString
	var exact, closeN sql.NullInt64
	var mae, score sql.NullFloat64
	var started string
	var residuals []byte

	if err := row.Scan(&run.RunID, &run.Grid, &datasetHash, &started, &finished, &run.Evaluated, &run.Rejected,
		&fp, &specJSON, &pointJSON, &exact, &closeN, &mae, &score, &residuals); err != nil {
		return Run{}, err
	}
	run.DatasetHash = datasetHash.String
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	if !specJSON.Valid {
		return run, nil
	}

	best := &Best{
		Fingerprint: fp.String,
		Exact:       int(exact.Int64),
		Close:       int(closeN.Int64),
		MAE:         mae.Float64,
		Score:       score.Float64,
	}
	if err := json.Unmarshal([]byte(specJSON.String), &best.Spec); err != nil {
		return Run{}, fmt.Errorf("unmarshal spec: %w", err)
	}
	if pointJSON.Valid {
		if err := json.Unmarshal([]byte(pointJSON.String), &best.Point); err != nil {
			return Run{}, fmt.Errorf("unmarshal point: %w", err)
		}
	}
	r, err := decodeResiduals(residuals)
	if err != nil {
		return Run{}, err
	}
	best.Residuals = r
	run.Best = best
	return run, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(runID string) (Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// #endregion get-run

// #region list-runs
// ListRuns returns the most recently started runs.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// BestRun returns the finished run over datasetHash whose best trial ranks
// highest: most exact matches, then lowest MAE, then earliest start. Runs
// scored against other datasets are never considered.
func (s *Store) BestRun(datasetHash string) (Run, error) {
	run, err := scanRun(s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs
		 WHERE finished_at IS NOT NULL AND best_spec IS NOT NULL AND dataset_hash IS ?
		 ORDER BY exact DESC, mae ASC, started_at ASC LIMIT 1`, nullIfEmpty(datasetHash)))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("best run: %w", err)
	}
	return run, nil
}

// #endregion list-runs

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
