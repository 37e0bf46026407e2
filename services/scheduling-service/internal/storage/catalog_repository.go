package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
)

type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) CreateService(ctx context.Context, s model.Service) (string, error) {
	if s.PriceDisplay == "" {
		s.PriceDisplay = model.PriceDisplayFixed
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (company_id, name, price, duration_minutes, category, price_display)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text
	`, s.CompanyID, s.Name, s.Price.String(), s.DurationMins, s.Category, s.PriceDisplay).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CatalogRepository) ListServices(ctx context.Context, companyID string, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, name, price::text, duration_minutes,
			COALESCE(category, ''), price_display, created_at
		FROM services
		WHERE company_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *CatalogRepository) CreateAddon(ctx context.Context, a model.Addon) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO addons (company_id, name, price, duration_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, a.CompanyID, a.Name, a.Price.String(), a.DurationMins).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// LinkAddon attaches an addon to a service; the addon is only offerable
// under services it is linked to. Both rows must belong to the company.
func (r *CatalogRepository) LinkAddon(ctx context.Context, companyID, serviceID, addonID string) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO service_addons (service_id, addon_id)
		SELECT s.id, a.id
		FROM services s, addons a
		WHERE s.id = $2 AND s.company_id = $1
			AND a.id = $3 AND a.company_id = $1
		ON CONFLICT (service_id, addon_id) DO NOTHING
	`, companyID, serviceID, addonID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either an unknown id or an existing link; distinguish the former.
		var exists bool
		err := r.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM service_addons sa
				JOIN services s ON s.id = sa.service_id
				WHERE s.company_id = $1 AND sa.service_id = $2 AND sa.addon_id = $3
			)
		`, companyID, serviceID, addonID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
	}
	return nil
}

// LoadCatalog resolves the services named by the cart plus their linked
// addons, scoped to the company. Services absent from the result are
// unknown ids; the aggregator turns those into a hard error.
func (r *CatalogRepository) LoadCatalog(ctx context.Context, companyID string, serviceIDs []string) (pricing.Catalog, error) {
	if len(serviceIDs) == 0 {
		return pricing.Catalog{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, name, price::text, duration_minutes,
			COALESCE(category, ''), price_display, created_at
		FROM services
		WHERE company_id = $1 AND id = ANY($2)
	`, companyID, serviceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cat := pricing.Catalog{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		cat[s.ID] = pricing.CatalogEntry{Service: s, Addons: map[string]model.Addon{}}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	addonRows, err := r.pool.Query(ctx, `
		SELECT sa.service_id::text, a.id::text, a.company_id::text, a.name, a.price::text, a.duration_minutes, a.created_at
		FROM service_addons sa
		JOIN addons a ON a.id = sa.addon_id
		WHERE a.company_id = $1 AND sa.service_id = ANY($2)
	`, companyID, serviceIDs)
	if err != nil {
		return nil, err
	}
	defer addonRows.Close()

	for addonRows.Next() {
		var serviceID, priceText string
		var a model.Addon
		if err := addonRows.Scan(&serviceID, &a.ID, &a.CompanyID, &a.Name, &priceText, &a.DurationMins, &a.CreatedAt); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			return nil, err
		}
		a.Price = price
		if entry, ok := cat[serviceID]; ok {
			entry.Addons[a.ID] = a
		}
	}
	if addonRows.Err() != nil {
		return nil, addonRows.Err()
	}
	return cat, nil
}

func scanService(rows pgx.Rows) (model.Service, error) {
	var s model.Service
	var priceText string
	if err := rows.Scan(&s.ID, &s.CompanyID, &s.Name, &priceText, &s.DurationMins, &s.Category, &s.PriceDisplay, &s.CreatedAt); err != nil {
		return model.Service{}, err
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return model.Service{}, err
	}
	s.Price = price
	return s, nil
}
