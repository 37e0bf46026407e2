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
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type IdempotencyRecord struct {
	CompanyID       string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, companyID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, companyID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (company_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (company_id, idempotency_key) DO NOTHING
	`, companyID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, companyID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, companyID, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE company_id = $1 AND idempotency_key = $2
	`, companyID, key, bookingID, statusCode, response)
	return err
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, companyID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT company_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE company_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, companyID, key).Scan(
		&rec.CompanyID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

// Create inserts the booking row and its selection tree as one unit inside
// the caller's transaction. The bookings table carries an exclusion
// constraint over (staff_id, day, minute range); an overlapping insert
// fails with 23P01, surfaced via IsConflict.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking, sels []pricing.Selection) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(company_id, staff_id, client_id, day, start_minute, end_minute, status, internal_note, client_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text
	`, b.CompanyID, b.StaffID, b.ClientID, b.Day, b.StartMinute, b.EndMinute, b.Status, b.InternalNote, b.ClientNote).Scan(&id)
	if err != nil {
		return "", err
	}
	if err := r.insertSelections(ctx, tx, id, sels); err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceSelections deletes the booking's entire selection tree and inserts
// the new set from scratch. Old selection row ids are not preserved.
func (r *BookingRepository) ReplaceSelections(ctx context.Context, tx pgx.Tx, bookingID string, sels []pricing.Selection) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM booking_addon_selections
		WHERE selection_id IN (SELECT id FROM booking_service_selections WHERE booking_id = $1)
	`, bookingID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM booking_service_selections
		WHERE booking_id = $1
	`, bookingID); err != nil {
		return err
	}
	return r.insertSelections(ctx, tx, bookingID, sels)
}

func (r *BookingRepository) insertSelections(ctx context.Context, tx pgx.Tx, bookingID string, sels []pricing.Selection) error {
	for pos, sel := range sels {
		selectionID := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_service_selections (id, booking_id, service_id, position)
			VALUES ($1, $2, $3, $4)
		`, selectionID, bookingID, sel.ServiceID, pos); err != nil {
			return err
		}
		for _, as := range sel.Addons {
			count := as.Count
			if count < 1 {
				count = 1
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO booking_addon_selections (id, selection_id, addon_id, item_count)
				VALUES ($1, $2, $3, $4)
			`, uuid.NewString(), selectionID, as.AddonID, count); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetSelections returns the booking's current selection tree in stored
// order, shaped for the aggregator. Reads through the caller's transaction
// so pay-time reads see the same view the row locks cover.
func (r *BookingRepository) GetSelections(ctx context.Context, tx pgx.Tx, bookingID string) ([]pricing.Selection, error) {
	rows, err := tx.Query(ctx, `
		SELECT s.id::text, s.service_id::text
		FROM booking_service_selections s
		WHERE s.booking_id = $1
		ORDER BY s.position ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sels []pricing.Selection
	var selectionIDs []string
	for rows.Next() {
		var selectionID string
		var sel pricing.Selection
		if err := rows.Scan(&selectionID, &sel.ServiceID); err != nil {
			return nil, err
		}
		selectionIDs = append(selectionIDs, selectionID)
		sels = append(sels, sel)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(sels) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(selectionIDs))
	for i, id := range selectionIDs {
		index[id] = i
	}

	addonRows, err := tx.Query(ctx, `
		SELECT a.selection_id::text, a.addon_id::text, a.item_count
		FROM booking_addon_selections a
		WHERE a.selection_id = ANY($1)
		ORDER BY a.created_at ASC
	`, selectionIDs)
	if err != nil {
		return nil, err
	}
	defer addonRows.Close()

	for addonRows.Next() {
		var selectionID, addonID string
		var count int
		if err := addonRows.Scan(&selectionID, &addonID, &count); err != nil {
			return nil, err
		}
		if i, ok := index[selectionID]; ok {
			sels[i].Addons = append(sels[i].Addons, pricing.AddonSelection{AddonID: addonID, Count: count})
		}
	}
	if addonRows.Err() != nil {
		return nil, addonRows.Err()
	}
	return sels, nil
}

// BusyIntervals returns booked (not cancelled) intervals per staff member
// for a company and date. Read-only; used by slot computation.
func (r *BookingRepository) BusyIntervals(ctx context.Context, companyID string, day time.Time) (map[string][]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id::text, start_minute, end_minute
		FROM bookings
		WHERE company_id = $1 AND day = $2 AND status = 'booked'
		ORDER BY start_minute ASC
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

// BusyIntervalsForUpdate is the commit-time variant: it locks the day's
// booked rows for the given staff so the re-check and the insert happen
// against a stable view. The exclusion constraint remains the final
// arbiter for writers this lock does not cover.
func (r *BookingRepository) BusyIntervalsForUpdate(ctx context.Context, tx pgx.Tx, companyID string, day time.Time, staffIDs []string) (map[string][]availability.Interval, error) {
	rows, err := tx.Query(ctx, `
		SELECT staff_id::text, start_minute, end_minute
		FROM bookings
		WHERE company_id = $1 AND day = $2 AND status = 'booked' AND staff_id = ANY($3)
		ORDER BY start_minute ASC
		FOR UPDATE
	`, companyID, day, staffIDs)
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

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, companyID, bookingID string) (model.Booking, error) {
	var b model.Booking
	err := tx.QueryRow(ctx, `
		SELECT id::text, company_id::text, staff_id::text, client_id::text, day, start_minute, end_minute,
			status, invoice_id::text, COALESCE(internal_note, ''), COALESCE(client_note, ''), cancelled_at, created_at
		FROM bookings
		WHERE company_id = $1 AND id = $2
		FOR UPDATE
	`, companyID, bookingID).Scan(
		&b.ID, &b.CompanyID, &b.StaffID, &b.ClientID, &b.Day, &b.StartMinute, &b.EndMinute,
		&b.Status, &b.InvoiceID, &b.InternalNote, &b.ClientNote, &b.CancelledAt, &b.CreatedAt,
	)
	return b, err
}

func (r *BookingRepository) Get(ctx context.Context, companyID, bookingID string) (model.Booking, error) {
	var b model.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, staff_id::text, client_id::text, day, start_minute, end_minute,
			status, invoice_id::text, COALESCE(internal_note, ''), COALESCE(client_note, ''), cancelled_at, created_at
		FROM bookings
		WHERE company_id = $1 AND id = $2
	`, companyID, bookingID).Scan(
		&b.ID, &b.CompanyID, &b.StaffID, &b.ClientID, &b.Day, &b.StartMinute, &b.EndMinute,
		&b.Status, &b.InvoiceID, &b.InternalNote, &b.ClientNote, &b.CancelledAt, &b.CreatedAt,
	)
	return b, err
}

// SetInvoice binds the booking to its invoice. Guarded by the NULL check so
// a booking is never re-invoiced; callers verify the prior state under
// FOR UPDATE to report AlreadyPaid cleanly.
func (r *BookingRepository) SetInvoice(ctx context.Context, tx pgx.Tx, companyID, bookingID, invoiceID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET invoice_id = $3
		WHERE company_id = $1 AND id = $2 AND invoice_id IS NULL
	`, companyID, bookingID, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateInterval rewrites the booking's time range, used when a pay-time
// selection edit changes the total duration. The exclusion constraint
// still applies to the new range.
func (r *BookingRepository) UpdateInterval(ctx context.Context, tx pgx.Tx, companyID, bookingID string, startMinute, endMinute int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET start_minute = $3, end_minute = $4
		WHERE company_id = $1 AND id = $2
	`, companyID, bookingID, startMinute, endMinute)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, companyID, bookingID string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now()
		WHERE company_id = $1 AND id = $2
		RETURNING cancelled_at
	`, companyID, bookingID).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) ListByCompanyDay(ctx context.Context, companyID string, day time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, staff_id::text, client_id::text, day, start_minute, end_minute,
			status, invoice_id::text, COALESCE(internal_note, ''), COALESCE(client_note, ''), cancelled_at, created_at
		FROM bookings
		WHERE company_id = $1 AND day = $2
		ORDER BY start_minute ASC
	`, companyID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.CompanyID, &b.StaffID, &b.ClientID, &b.Day, &b.StartMinute, &b.EndMinute,
			&b.Status, &b.InvoiceID, &b.InternalNote, &b.ClientNote, &b.CancelledAt, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
