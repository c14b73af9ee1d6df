package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"loanbook/internal/domain"
)

type AuditFilter struct {
	ActorID    *int64
	EntityKind *string
	EntityID   *string
	Limit      int
}

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (actor_id, actor_role, message, entity_kind, entity_id, before, after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		e.ActorID,
		e.ActorRole,
		e.Message,
		e.EntityKind,
		e.EntityID,
		nullBytes(e.Before),
		nullBytes(e.After),
	).Scan(&e.ID)
}

func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, error) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.ActorID != nil {
		where = append(where, fmt.Sprintf("actor_id = $%d", i))
		args = append(args, *f.ActorID)
		i++
	}
	if f.EntityKind != nil && *f.EntityKind != "" {
		where = append(where, fmt.Sprintf("entity_kind = $%d", i))
		args = append(args, *f.EntityKind)
		i++
	}
	if f.EntityID != nil && *f.EntityID != "" {
		where = append(where, fmt.Sprintf("entity_id = $%d", i))
		args = append(args, *f.EntityID)
		i++
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, actor_id, actor_role, message, entity_kind, entity_id, before, after, created_at
		FROM audit_logs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC
		LIMIT ` + fmt.Sprintf("%d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			before    []byte
			after     []byte
			createdAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.ActorID,
			&e.ActorRole,
			&e.Message,
			&e.EntityKind,
			&e.EntityID,
			&before,
			&after,
			&createdAt,
		); err != nil {
			return nil, err
		}
		e.Before = before
		e.After = after
		if createdAt.Valid {
			e.CreatedAt = &createdAt.Time
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
