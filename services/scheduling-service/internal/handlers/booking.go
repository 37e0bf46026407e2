package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/outbox"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type BookingHandler struct {
	bookingRepo *storage.BookingRepository
	catalogRepo *storage.CatalogRepository
	staffRepo   *storage.StaffRepository
	hoursRepo   *storage.HoursRepository
	outboxRepo  *outbox.Repository
	logger      *slog.Logger
	stepMins    int
}

func NewBookingHandler(bookingRepo *storage.BookingRepository, catalogRepo *storage.CatalogRepository, staffRepo *storage.StaffRepository, hoursRepo *storage.HoursRepository, outboxRepo *outbox.Repository, logger *slog.Logger, stepMins int) *BookingHandler {
	if stepMins <= 0 {
		stepMins = availability.DefaultStepMinutes
	}
	return &BookingHandler{
		bookingRepo: bookingRepo,
		catalogRepo: catalogRepo,
		staffRepo:   staffRepo,
		hoursRepo:   hoursRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
		stepMins:    stepMins,
	}
}

type createBookingRequest struct {
	Date         string             `json:"date"`
	Start        string             `json:"start"`
	Selections   []selectionRequest `json:"selections"`
	StaffID      string             `json:"staff_id,omitempty"`
	ClientID     string             `json:"client_id,omitempty"`
	InternalNote string             `json:"internal_note,omitempty"`
	ClientNote   string             `json:"client_note,omitempty"`
}

type createBookingResponse struct {
	BookingID string `json:"booking_id"`
	StaffID   string `json:"staff_id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// Create books the requested interval atomically: quote, staff choice, and
// the overlap check all happen inside one transaction, and the database
// exclusion constraint backstops any writer the row locks did not cover.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	day, ok := parseDay(req.Date)
	if !ok {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	startMinute, err := availability.ParseClock(req.Start)
	if err != nil {
		http.Error(w, "invalid start (want HH:MM)", http.StatusBadRequest)
		return
	}
	if len(req.Selections) == 0 {
		http.Error(w, "at least one selection required", http.StatusBadRequest)
		return
	}
	sels, ok := toSelections(req.Selections)
	if !ok {
		http.Error(w, "invalid selections", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	cat, err := h.catalogRepo.LoadCatalog(ctx, cid, serviceIDs(sels))
	if err != nil {
		http.Error(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	quote, err := pricing.Aggregate(sels, cat)
	if err != nil {
		if errors.Is(err, pricing.ErrServiceNotFound) {
			http.Error(w, "unknown service in selections", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to price selections", http.StatusInternalServerError)
		return
	}
	if quote.TotalMinutes <= 0 {
		http.Error(w, "selections have zero duration", http.StatusBadRequest)
		return
	}
	endMinute := startMinute + quote.TotalMinutes

	tx, err := h.bookingRepo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.bookingRepo.LockIdempotencyKey(ctx, tx, cid, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	win, open, err := h.resolveWindow(ctx, cid, day)
	if err != nil {
		http.Error(w, "failed to load working hours", http.StatusInternalServerError)
		return
	}
	if !open || startMinute < win.Open || endMinute > win.Close ||
		(win.BreakStart != nil && win.BreakEnd != nil && availability.Overlaps(startMinute, endMinute, *win.BreakStart, *win.BreakEnd)) {
		if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, cid, idempotencyKey, http.StatusUnprocessableEntity, "requested time is outside working hours") {
			_ = tx.Commit(ctx)
			return
		}
		http.Error(w, "requested time is outside working hours", http.StatusUnprocessableEntity)
		return
	}

	staffID, ok, err := h.assignStaff(ctx, tx, cid, day, win, startMinute, endMinute, strings.TrimSpace(req.StaffID))
	if err != nil {
		http.Error(w, "failed to check staff availability", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no staff available for the requested time", http.StatusConflict)
		return
	}

	booking := &model.Booking{
		CompanyID:    cid,
		StaffID:      staffID,
		Day:          day,
		StartMinute:  startMinute,
		EndMinute:    endMinute,
		Status:       model.BookingStatusBooked,
		InternalNote: strings.TrimSpace(req.InternalNote),
		ClientNote:   strings.TrimSpace(req.ClientNote),
	}
	if clientID := strings.TrimSpace(req.ClientID); clientID != "" {
		booking.ClientID = &clientID
	}

	id, err := h.bookingRepo.Create(ctx, tx, booking, sels)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}
	booking.ID = id

	evt, err := outbox.BookingCreated(*booking)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	resp := createBookingResponse{
		BookingID: id,
		StaffID:   staffID,
		Date:      day.Format("2006-01-02"),
		Start:     availability.FormatClock(startMinute),
		End:       availability.FormatClock(endMinute),
	}
	respBody, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.bookingRepo.FinalizeIdempotency(ctx, tx, cid, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) resolveWindow(ctx context.Context, cid string, day time.Time) (availability.Window, bool, error) {
	weekly, err := h.hoursRepo.GetWeeklyHours(ctx, cid, int(day.Weekday()))
	if err != nil {
		return availability.Window{}, false, err
	}
	override, err := h.hoursRepo.GetDateOverride(ctx, cid, day)
	if err != nil {
		return availability.Window{}, false, err
	}
	win, open := availability.ResolveWindow(weekly, override)
	return win, open, nil
}

// assignStaff locks the day's booked rows for the candidate pool and picks
// the first staff member whose schedule leaves the interval free. An
// explicit staff id narrows the pool to one.
func (h *BookingHandler) assignStaff(ctx context.Context, tx pgx.Tx, cid string, day time.Time, win availability.Window, startMinute, endMinute int, explicitStaffID string) (string, bool, error) {
	var pool []string
	if explicitStaffID != "" {
		if _, err := h.staffRepo.Get(ctx, cid, explicitStaffID); err != nil {
			if storage.IsNotFound(err) {
				return "", false, nil
			}
			return "", false, err
		}
		pool = []string{explicitStaffID}
	} else {
		staff, err := h.staffRepo.ListBookable(ctx, cid)
		if err != nil {
			return "", false, err
		}
		for _, s := range staff {
			pool = append(pool, s.ID)
		}
	}
	if len(pool) == 0 {
		return "", false, nil
	}

	booked, err := h.bookingRepo.BusyIntervalsForUpdate(ctx, tx, cid, day, pool)
	if err != nil {
		return "", false, err
	}
	timeOff, err := h.hoursRepo.TimeOffIntervalsForDay(ctx, cid, day)
	if err != nil {
		return "", false, err
	}
	staffHours, err := h.hoursRepo.StaffHoursForWeekday(ctx, cid, int(day.Weekday()))
	if err != nil {
		return "", false, err
	}

	busy := mergeBusy(booked, timeOff, staffDayBusy(win, staffHours, pool))
	id, ok := availability.FirstAvailable(pool, busy, startMinute, endMinute)
	return id, ok, nil
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bookingID := strings.TrimSpace(req.BookingID)
	if bookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.bookingRepo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.bookingRepo.GetForUpdate(ctx, tx, cid, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	if booking.Status == model.BookingStatusCancelled && booking.CancelledAt != nil {
		writeJSON(w, http.StatusOK, cancelBookingResponse{
			BookingID:   booking.ID,
			Status:      booking.Status,
			CancelledAt: booking.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}
	if booking.Status != model.BookingStatusBooked {
		http.Error(w, "booking cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.bookingRepo.Cancel(ctx, tx, cid, booking.ID)
	if err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.BookingCancelled(cid, booking.ID, cancelledAt)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		BookingID:   booking.ID,
		Status:      model.BookingStatusCancelled,
		CancelledAt: cancelledAt.UTC().Format(time.RFC3339),
	})
}

type bookingItem struct {
	BookingID   string `json:"booking_id"`
	StaffID     string `json:"staff_id"`
	ClientID    string `json:"client_id,omitempty"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Status      string `json:"status"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	day, ok := parseDay(r.URL.Query().Get("date"))
	if !ok {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	bookings, err := h.bookingRepo.ListByCompanyDay(r.Context(), cid, day)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID: b.ID,
		StaffID:   b.StaffID,
		Date:      b.Day.Format("2006-01-02"),
		Start:     availability.FormatClock(b.StartMinute),
		End:       availability.FormatClock(b.EndMinute),
		Status:    b.Status,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.ClientID != nil {
		item.ClientID = *b.ClientID
	}
	if b.InvoiceID != nil {
		item.InvoiceID = *b.InvoiceID
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, cid, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.bookingRepo.FinalizeIdempotency(ctx, tx, cid, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}
