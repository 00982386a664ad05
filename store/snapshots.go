package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/fibre/dbopen"
	"github.com/hazyhaar/fibre/mutation"
)

// InsertSnapshot stores a full-tree snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap *mutation.Snapshot) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO snapshots (id, container, generation, html, html_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Container, snap.Generation, snap.HTML, snap.HTMLHash, snap.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("store: insert snapshot %d: %w", snap.Generation, err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of container, or nil. A
// snapshot whose HTML no longer matches its hash is reported with
// mutation.ErrSnapshotCorrupt.
func (s *Store) LatestSnapshot(ctx context.Context, container string) (*mutation.Snapshot, error) {
	snap := &mutation.Snapshot{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, container, generation, html, html_hash, created_at
		FROM snapshots WHERE container = ?
		ORDER BY generation DESC LIMIT 1`, container).Scan(
		&snap.ID, &snap.Container, &snap.Generation, &snap.HTML, &snap.HTMLHash, &snap.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest snapshot: %w", err)
	}
	if err := snap.Verify(); err != nil {
		return nil, fmt.Errorf("store: latest snapshot %s: %w", snap.ID, err)
	}
	return snap, nil
}

// PruneSnapshots keeps the newest keep snapshots of container.
func (s *Store) PruneSnapshots(ctx context.Context, container string, keep int) (int64, error) {
	res, err := dbopen.Exec(ctx, s.DB, `
		DELETE FROM snapshots WHERE container = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE container = ? ORDER BY generation DESC LIMIT ?
		)`, container, container, keep)
	if err != nil {
		return 0, fmt.Errorf("store: prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
