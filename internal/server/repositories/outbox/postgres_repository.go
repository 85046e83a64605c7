package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, rec *models.OutboxRecord) error {
	query :=
		`INSERT INTO outbox (id, event_kind, identity_id, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.EventKind, rec.IdentityID, rec.Payload, rec.OccurredAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Pending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	query :=
		`SELECT id, event_kind, identity_id, payload, occurred_at, attempts, last_error
		   FROM outbox
		  WHERE dispatched_at IS NULL
		  ORDER BY occurred_at, id
		  LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.OutboxRecord
	for rows.Next() {
		var (
			rec     models.OutboxRecord
			lastErr sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EventKind, &rec.IdentityID, &rec.Payload,
			&rec.OccurredAt, &rec.Attempts, &lastErr); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if lastErr.Valid {
			rec.LastError = &lastErr.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET dispatched_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectAffected(res, common.ErrorNotFound)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectAffected(res, common.ErrorNotFound)
}
