// Package history persists an audit trail of deployment and refinement
// passes to Postgres. It is write-mostly observability data, not the
// source of truth for placement: on restart the orchestrator always
// recomputes placement from its live graph and registry rather than
// restoring it from here.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orchestrator/pkg/database"
	"orchestrator/pkg/orchestration/deployer"
)

// Repository records deployment results for later inspection.
type Repository struct {
	db database.DB
}

// NewRepository creates a Repository over an already-connected database.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one audit row for a Deploy or Refine pass.
func (r *Repository) Record(ctx context.Context, phase string, result deployer.Result) error {
	placement, err := json.Marshal(result.Placement)
	if err != nil {
		return fmt.Errorf("marshal placement: %w", err)
	}

	query := `
		INSERT INTO deployment_history (recorded_at, phase, placement, unplaced, warnings)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.Exec(ctx, query, time.Now(), phase, placement, result.Unplaced, result.Warnings)
	if err != nil {
		return fmt.Errorf("insert deployment_history: %w", err)
	}
	return nil
}

// Entry is one retrieved audit row.
type Entry struct {
	ID         int64
	RecordedAt time.Time
	Phase      string
	Placement  map[string]string
	Unplaced   []string
	Warnings   []string
}

// Recent returns the most recent limit entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, recorded_at, phase, placement, unplaced, warnings
		FROM deployment_history
		ORDER BY recorded_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query deployment_history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var placement []byte
		if err := rows.Scan(&e.ID, &e.RecordedAt, &e.Phase, &placement, &e.Unplaced, &e.Warnings); err != nil {
			return nil, fmt.Errorf("scan deployment_history row: %w", err)
		}
		if err := json.Unmarshal(placement, &e.Placement); err != nil {
			return nil, fmt.Errorf("unmarshal placement: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
