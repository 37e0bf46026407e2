package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

type CompanyRepository struct {
	pool *db.Pool
}

func NewCompanyRepository(pool *db.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

func (r *CompanyRepository) Create(ctx context.Context, name, slug, timezone string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO companies (id, name, slug, timezone)
		VALUES ($1, $2, $3, $4)
	`, id, name, slug, timezone)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CompanyRepository) Get(ctx context.Context, companyID string) (model.Company, error) {
	var c model.Company
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, slug, timezone, created_at
		FROM companies
		WHERE id = $1
	`, companyID).Scan(&c.ID, &c.Name, &c.Slug, &c.Timezone, &c.CreatedAt)
	return c, err
}

func (r *CompanyRepository) GetBySlug(ctx context.Context, slug string) (model.Company, error) {
	var c model.Company
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, slug, timezone, created_at
		FROM companies
		WHERE slug = $1
	`, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.Timezone, &c.CreatedAt)
	return c, err
}
