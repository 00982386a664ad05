package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/fibre/dbopen"
	"github.com/hazyhaar/fibre/mutation"
)

// InsertBatch appends a committed batch to the log.
func (s *Store) InsertBatch(ctx context.Context, b *mutation.Batch) error {
	records, err := mutation.EncodeRecords(b.Records)
	if err != nil {
		return fmt.Errorf("store: batch %d: %w", b.Generation, err)
	}
	_, err = dbopen.Exec(ctx, s.DB, `
		INSERT INTO commits (id, container, generation, placements, updates, deletions, prop_sets,
		                     units, ticks, duration_us, records, snapshot_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Container, b.Generation,
		b.Effects.Placements, b.Effects.Updates, b.Effects.Deletions, b.Effects.PropSets,
		b.Units, b.Ticks, b.DurationUS, string(records), b.SnapshotRef, b.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("store: insert batch %d: %w", b.Generation, err)
	}
	return nil
}

const batchColumns = `id, container, generation, placements, updates, deletions, prop_sets,
	       units, ticks, duration_us, records, snapshot_ref, created_at`

// GetBatch retrieves the batch of one generation, or nil if there is none.
func (s *Store) GetBatch(ctx context.Context, container string, generation uint64) (*mutation.Batch, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM commits
		WHERE container = ? AND generation = ?`, container, generation)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// ListBatches returns the latest batches, newest first. An empty container
// lists every container.
func (s *Store) ListBatches(ctx context.Context, container string, limit int) ([]*mutation.Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + batchColumns + ` FROM commits`
	var args []any
	if container != "" {
		query += ` WHERE container = ?`
		args = append(args, container)
	}
	query += ` ORDER BY created_at DESC, generation DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list batches: %w", err)
	}
	defer rows.Close()

	var out []*mutation.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountBatches returns the number of logged commits.
func (s *Store) CountBatches(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(sc scanner) (*mutation.Batch, error) {
	b := &mutation.Batch{}
	var records string
	err := sc.Scan(&b.ID, &b.Container, &b.Generation,
		&b.Effects.Placements, &b.Effects.Updates, &b.Effects.Deletions, &b.Effects.PropSets,
		&b.Units, &b.Ticks, &b.DurationUS, &records, &b.SnapshotRef, &b.Timestamp)
	if err != nil {
		return nil, err
	}
	if b.Records, err = mutation.DecodeRecords([]byte(records)); err != nil {
		return nil, fmt.Errorf("store: batch %s: %w", b.ID, err)
	}
	return b, nil
}
