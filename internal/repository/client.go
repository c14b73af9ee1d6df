package repository

import (
	"context"
	"database/sql"

	"loanbook/internal/domain"
)

const clientColumns = `id, company_id, first_name, last_name, email, phone, created_at, updated_at`

type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) FindClient(ctx context.Context, id string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	c, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ClientRepository) CreateClient(ctx context.Context, c *domain.Client) error {
	query := `
		INSERT INTO clients (id, company_id, first_name, last_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		nullString(c.CompanyID),
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
	)
	return err
}

func (r *ClientRepository) UpdateClient(ctx context.Context, c *domain.Client) error {
	query := `
		UPDATE clients
		SET company_id = $2,
		    first_name = $3,
		    last_name = $4,
		    email = $5,
		    phone = $6,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, c.ID, nullString(c.CompanyID), c.FirstName, c.LastName, c.Email, c.Phone)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) DeleteClient(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) ListClients(ctx context.Context) ([]domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY last_name, first_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanClient(row rowScanner) (*domain.Client, error) {
	var (
		c         domain.Client
		companyID sql.NullString
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	if err := row.Scan(
		&c.ID,
		&companyID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if companyID.Valid {
		c.CompanyID = companyID.String
	}
	if createdAt.Valid {
		c.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}

	return &c, nil
}
