package triallog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists finalized trial records to sqlite, alongside the CSV
// row, so trial batches can be queried and plotted later.
type Store struct {
	*sql.DB
}

// NewStore opens (creating if needed) the trial database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trials (
			run_id TEXT PRIMARY KEY,
			trial INTEGER,
			agents TEXT,
			distances TEXT,
			convergence_secs TEXT,
			avoidance_secs TEXT,
			assignments TEXT,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trials table: %w", err)
	}

	return &Store{db}, nil
}

// SaveRecord inserts one finalized record. A missing run id is assigned
// here so ad-hoc records (e.g. from tools) are still keyed.
func (s *Store) SaveRecord(rec Record) error {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}

	agents, err := json.Marshal(rec.Agents)
	if err != nil {
		return err
	}
	distances, err := json.Marshal(rec.Distances)
	if err != nil {
		return err
	}
	convergence, err := json.Marshal(rec.ConvergenceSecs)
	if err != nil {
		return err
	}
	avoidance, err := json.Marshal(rec.AvoidanceSecs)
	if err != nil {
		return err
	}
	assignments, err := json.Marshal(rec.Assignments)
	if err != nil {
		return err
	}

	_, err = s.Exec(`
		INSERT INTO trials (run_id, trial, agents, distances, convergence_secs, avoidance_secs, assignments)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Trial, string(agents), string(distances),
		string(convergence), string(avoidance), string(assignments),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial record: %w", err)
	}
	return nil
}

// ListRecords returns all persisted trial records ordered by trial number.
func (s *Store) ListRecords() ([]Record, error) {
	rows, err := s.Query(`
		SELECT run_id, trial, agents, distances, convergence_secs, avoidance_secs, assignments
		FROM trials ORDER BY trial`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var agents, distances, convergence, avoidance, assignments string
		if err := rows.Scan(&rec.RunID, &rec.Trial, &agents, &distances,
			&convergence, &avoidance, &assignments); err != nil {
			return nil, fmt.Errorf("failed to scan trial row: %w", err)
		}
		if err := json.Unmarshal([]byte(agents), &rec.Agents); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(distances), &rec.Distances); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(convergence), &rec.ConvergenceSecs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(avoidance), &rec.AvoidanceSecs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(assignments), &rec.Assignments); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
