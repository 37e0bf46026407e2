package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

type HoursRepository struct {
	pool *db.Pool
}

func NewHoursRepository(pool *db.Pool) *HoursRepository {
	return &HoursRepository{pool: pool}
}

// GetWeeklyHours returns nil (not an error) when the weekday has no row,
// meaning the company is closed that weekday unless an override opens it.
func (r *HoursRepository) GetWeeklyHours(ctx context.Context, companyID string, weekday int) (*model.WeeklyHours, error) {
	var wh model.WeeklyHours
	err := r.pool.QueryRow(ctx, `
		SELECT company_id::text, weekday, open_minute, close_minute, break_start_minute, break_end_minute
		FROM weekly_working_hours
		WHERE company_id = $1 AND weekday = $2
	`, companyID, weekday).Scan(&wh.CompanyID, &wh.Weekday, &wh.OpenMinute, &wh.CloseMinute, &wh.BreakStartMinute, &wh.BreakEndMinute)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &wh, nil
}

func (r *HoursRepository) ListWeeklyHours(ctx context.Context, companyID string) ([]model.WeeklyHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT company_id::text, weekday, open_minute, close_minute, break_start_minute, break_end_minute
		FROM weekly_working_hours
		WHERE company_id = $1
		ORDER BY weekday ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyHours
	for rows.Next() {
		var wh model.WeeklyHours
		if err := rows.Scan(&wh.CompanyID, &wh.Weekday, &wh.OpenMinute, &wh.CloseMinute, &wh.BreakStartMinute, &wh.BreakEndMinute); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *HoursRepository) UpsertWeeklyHours(ctx context.Context, wh model.WeeklyHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weekly_working_hours (company_id, weekday, open_minute, close_minute, break_start_minute, break_end_minute)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, weekday) DO UPDATE
		SET open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute,
			break_start_minute = EXCLUDED.break_start_minute,
			break_end_minute = EXCLUDED.break_end_minute
	`, wh.CompanyID, wh.Weekday, wh.OpenMinute, wh.CloseMinute, wh.BreakStartMinute, wh.BreakEndMinute)
	return err
}

func (r *HoursRepository) DeleteWeeklyHours(ctx context.Context, companyID string, weekday int) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM weekly_working_hours
		WHERE company_id = $1 AND weekday = $2
	`, companyID, weekday)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *HoursRepository) GetDateOverride(ctx context.Context, companyID string, day time.Time) (*model.DateOverride, error) {
	var o model.DateOverride
	err := r.pool.QueryRow(ctx, `
		SELECT company_id::text, day, open_minute, close_minute
		FROM date_overrides
		WHERE company_id = $1 AND day = $2
	`, companyID, day).Scan(&o.CompanyID, &o.Day, &o.OpenMinute, &o.CloseMinute)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *HoursRepository) UpsertDateOverride(ctx context.Context, o model.DateOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO date_overrides (company_id, day, open_minute, close_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, day) DO UPDATE
		SET open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute
	`, o.CompanyID, o.Day, o.OpenMinute, o.CloseMinute)
	return err
}

// StaffHoursForWeekday returns the per-staff hour rows for a weekday.
// Staff without a row follow company hours unmodified.
func (r *HoursRepository) StaffHoursForWeekday(ctx context.Context, companyID string, weekday int) (map[string]model.StaffHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.staff_id::text, h.weekday, h.is_working, h.start_minute, h.end_minute
		FROM staff_working_hours h
		JOIN staff s ON s.id = h.staff_id
		WHERE s.company_id = $1 AND h.weekday = $2
	`, companyID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.StaffHours{}
	for rows.Next() {
		var sh model.StaffHours
		if err := rows.Scan(&sh.StaffID, &sh.Weekday, &sh.IsWorking, &sh.StartMinute, &sh.EndMinute); err != nil {
			return nil, err
		}
		out[sh.StaffID] = sh
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *HoursRepository) UpsertStaffHours(ctx context.Context, companyID string, sh model.StaffHours) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1 AND company_id = $2)
	`, sh.StaffID, companyID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, sh.StaffID, sh.Weekday, sh.IsWorking, sh.StartMinute, sh.EndMinute)
	return err
}

func (r *HoursRepository) CreateTimeOff(ctx context.Context, companyID string, t model.TimeOff) (string, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1 AND company_id = $2)
	`, t.StaffID, companyID).Scan(&exists); err != nil {
		return "", err
	}
	if !exists {
		return "", pgx.ErrNoRows
	}

	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_time_off (id, staff_id, start_date, end_date, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, t.StaffID, t.StartDate, t.EndDate, t.StartMinute, t.EndMinute, t.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *HoursRepository) DeleteTimeOff(ctx context.Context, companyID, timeOffID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM staff_time_off t
		USING staff s
		WHERE t.staff_id = s.id
		  AND s.company_id = $1
		  AND t.id = $2
	`, companyID, timeOffID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TimeOffIntervalsForDay returns, per staff member, the blocked minute
// ranges on the given date.
func (r *HoursRepository) TimeOffIntervalsForDay(ctx context.Context, companyID string, day time.Time) (map[string][]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.staff_id::text, t.start_minute, t.end_minute
		FROM staff_time_off t
		JOIN staff s ON s.id = t.staff_id
		WHERE s.company_id = $1
			AND t.start_date <= $2
			AND t.end_date >= $2
	`, companyID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]availability.Interval{}
	for rows.Next() {
		var staffID string
		var iv availability.Interval
		if err := rows.Scan(&staffID, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out[staffID] = append(out[staffID], iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *HoursRepository) ListTimeOff(ctx context.Context, companyID, staffID string, from, to time.Time, limit int) ([]model.TimeOff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT t.id::text, t.staff_id::text, t.start_date, t.end_date, t.start_minute, t.end_minute,
			COALESCE(t.reason, ''), t.created_at
		FROM staff_time_off t
		JOIN staff s ON s.id = t.staff_id
		WHERE s.company_id = $1
			AND t.staff_id = $2
			AND t.end_date >= $3
			AND t.start_date <= $4
		ORDER BY t.start_date ASC
		LIMIT $5
	`, companyID, staffID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOff
	for rows.Next() {
		var t model.TimeOff
		if err := rows.Scan(&t.ID, &t.StaffID, &t.StartDate, &t.EndDate, &t.StartMinute, &t.EndMinute, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
