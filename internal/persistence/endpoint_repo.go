package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ergolyam/clipbridge/internal/domain"
)

type EndpointRepo struct {
	db *sql.DB
}

func NewEndpointRepo(db *sql.DB) *EndpointRepo {
	return &EndpointRepo{db: db}
}

// Remember upserts the endpoint. last_used_at only moves forward, so a late
// write cannot demote the most recently used endpoint.
func (r *EndpointRepo) Remember(ctx context.Context, e domain.Endpoint, usedAt time.Time) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("remember endpoint: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO endpoints(host, port, last_used_at)
		VALUES(?, ?, ?)
		ON CONFLICT(host, port) DO UPDATE SET
			last_used_at = CASE
				WHEN excluded.last_used_at > endpoints.last_used_at
				THEN excluded.last_used_at
				ELSE endpoints.last_used_at
			END
	`, e.Host, e.Port, toUnixMillis(usedAt))
	if err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

// LastUsed returns the most recently used endpoint. ok is false when nothing
// has been remembered yet.
func (r *EndpointRepo) LastUsed(ctx context.Context) (domain.Endpoint, bool, error) {
	var e domain.Endpoint
	err := r.db.QueryRowContext(ctx, `
		SELECT host, port
		FROM endpoints
		ORDER BY last_used_at DESC
		LIMIT 1
	`).Scan(&e.Host, &e.Port)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Endpoint{}, false, nil
	}
	if err != nil {
		return domain.Endpoint{}, false, fmt.Errorf("query last used endpoint: %w", err)
	}
	return e, true, nil
}

// ListRecent returns up to limit endpoints, most recently used first.
func (r *EndpointRepo) ListRecent(ctx context.Context, limit int) ([]domain.Endpoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT host, port
		FROM endpoints
		ORDER BY last_used_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.Endpoint
	for rows.Next() {
		var e domain.Endpoint
		if err := rows.Scan(&e.Host, &e.Port); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return out, nil
}
