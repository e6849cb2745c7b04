package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

// #region log-improvement
// LogImprovement appends a trial to the run's improvement history.
func (s *Store) LogImprovement(runID string, seq int, t search.Trial) error {
	fp, err := Fingerprint(t.Spec)
	if err != nil {
		return err
	}
	specJSON, err := json.Marshal(t.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	pointJSON, err := json.Marshal(t.Point)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO improvements (run_id, seq, grid, fingerprint, point, spec, exact, close, mae, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, t.Grid, fp, string(pointJSON), string(specJSON),
		t.Result.ExactMatches, t.Result.CloseMatches, t.Result.MeanAbsError, t.Result.Score(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log improvement: %w", err)
	}
	return nil
}

// Improvements returns a run's improvement history in order.
func (s *Store) Improvements(runID string) ([]Improvement, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, seq, grid, fingerprint, point, spec, exact, close, mae, score, created_at
		 FROM improvements WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list improvements: %w", err)
	}
	defer rows.Close()

	var out []Improvement
	for rows.Next() {
		var imp Improvement
		var pointJSON, specJSON, created string
		if err := rows.Scan(&imp.ID, &imp.RunID, &imp.Seq, &imp.Grid, &imp.Fingerprint, &pointJSON, &specJSON,
			&imp.Exact, &imp.Close, &imp.MAE, &imp.Score, &created); err != nil {
			return nil, fmt.Errorf("scan improvement: %w", err)
		}
		if err := json.Unmarshal([]byte(pointJSON), &imp.Point); err != nil {
			return nil, fmt.Errorf("unmarshal point: %w", err)
		}
		if err := json.Unmarshal([]byte(specJSON), &imp.Spec); err != nil {
			return nil, fmt.Errorf("unmarshal spec: %w", err)
		}
		imp.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, imp)
	}
	return out, rows.Err()
}

// #endregion log-improvement

// #region recorder
// Recorder logs every improvement of one run. Its Observe method plugs into
// search.WithObserver; the first write error is kept and later ones dropped.
type Recorder struct {
	store *Store
	runID string

	mu  sync.Mutex
	seq int
	err error
}

// NewRecorder returns a recorder for runID.
func (s *Store) NewRecorder(runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// Observe records t as the next improvement.
func (r *Recorder) Observe(t search.Trial) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.seq++
	r.err = r.store.LogImprovement(r.runID, r.seq, t)
}

// Err returns the first error Observe hit.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// #endregion recorder
