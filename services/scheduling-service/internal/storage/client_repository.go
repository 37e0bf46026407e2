package storage

import (
	"context"

	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

type ClientRepository struct {
	pool *db.Pool
}

func NewClientRepository(pool *db.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func (r *ClientRepository) Create(ctx context.Context, c model.Client) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (company_id, first_name, last_name, phone, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, c.CompanyID, c.FirstName, c.LastName, c.Phone, c.Email).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ClientRepository) Get(ctx context.Context, companyID, clientID string) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, first_name, last_name,
			COALESCE(phone, ''), COALESCE(email, ''), created_at
		FROM clients
		WHERE company_id = $1 AND id = $2
	`, companyID, clientID).Scan(&c.ID, &c.CompanyID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.CreatedAt)
	return c, err
}

func (r *ClientRepository) List(ctx context.Context, companyID string, limit int) ([]model.Client, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, first_name, last_name,
			COALESCE(phone, ''), COALESCE(email, ''), created_at
		FROM clients
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
