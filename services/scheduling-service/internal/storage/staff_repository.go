package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

func (r *StaffRepository) Create(ctx context.Context, companyID, fullName, role string, availableForBooking bool) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff (company_id, full_name, role, available_for_booking)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, companyID, fullName, role, availableForBooking).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *StaffRepository) Get(ctx context.Context, companyID, staffID string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, full_name, role, available_for_booking, created_at
		FROM staff
		WHERE company_id = $1 AND id = $2
	`, companyID, staffID).Scan(&s.ID, &s.CompanyID, &s.FullName, &s.Role, &s.AvailableForBooking, &s.CreatedAt)
	return s, err
}

// ListBookable returns staff eligible for auto-assignment, in insertion
// order. The order is the tie-breaker for first-fit assignment and must be
// stable across calls.
func (r *StaffRepository) ListBookable(ctx context.Context, companyID string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, full_name, role, available_for_booking, created_at
		FROM staff
		WHERE company_id = $1 AND available_for_booking
		ORDER BY created_at ASC, id ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.FullName, &s.Role, &s.AvailableForBooking, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *StaffRepository) List(ctx context.Context, companyID string, limit int) ([]model.Staff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, full_name, role, available_for_booking, created_at
		FROM staff
		WHERE company_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.FullName, &s.Role, &s.AvailableForBooking, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *StaffRepository) SetAvailableForBooking(ctx context.Context, companyID, staffID string, available bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff
		SET available_for_booking = $3
		WHERE company_id = $1 AND id = $2
	`, companyID, staffID, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
