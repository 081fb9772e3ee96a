package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ergolyam/clipbridge/internal/domain"
)

type ClipRepo struct {
	db *sql.DB
}

func NewClipRepo(db *sql.DB) *ClipRepo {
	return &ClipRepo{db: db}
}

func (r *ClipRepo) Insert(ctx context.Context, e domain.ClipEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clips(body, origin, at)
		VALUES(?, ?, ?)
	`, e.Body, int(e.Origin), toUnixMillis(e.At))
	if err != nil {
		return 0, fmt.Errorf("insert clip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get clip local id: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit entries, newest first.
func (r *ClipRepo) ListRecent(ctx context.Context, limit int) ([]domain.ClipEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT local_id, body, origin, at
		FROM clips
		ORDER BY at DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.ClipEntry
	for rows.Next() {
		var (
			e        domain.ClipEntry
			origin   int
			atMillis int64
		)
		if err := rows.Scan(&e.LocalID, &e.Body, &origin, &atMillis); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		e.Origin = domain.ClipOrigin(origin)
		e.At = fromUnixMillis(atMillis)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clips: %w", err)
	}
	return out, nil
}

// Prune removes everything but the newest keep entries and reports how many
// rows were deleted.
func (r *ClipRepo) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM clips
		WHERE local_id NOT IN (
			SELECT local_id FROM clips
			ORDER BY at DESC, local_id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune clips: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned clips: %w", err)
	}
	return removed, nil
}
