package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type slotsStaffStore interface {
	Get(ctx context.Context, companyID, staffID string) (model.Staff, error)
	ListBookable(ctx context.Context, companyID string) ([]model.Staff, error)
}

type slotsHoursStore interface {
	GetWeeklyHours(ctx context.Context, companyID string, weekday int) (*model.WeeklyHours, error)
	GetDateOverride(ctx context.Context, companyID string, day time.Time) (*model.DateOverride, error)
	StaffHoursForWeekday(ctx context.Context, companyID string, weekday int) (map[string]model.StaffHours, error)
	TimeOffIntervalsForDay(ctx context.Context, companyID string, day time.Time) (map[string][]availability.Interval, error)
}

type busyIntervalReader interface {
	BusyIntervals(ctx context.Context, companyID string, day time.Time) (map[string][]availability.Interval, error)
}

var errStaffNotFound = errors.New("staff not found")

type SlotsHandler struct {
	catalogRepo catalogStore
	staffRepo   slotsStaffStore
	hoursRepo   slotsHoursStore
	bookingRepo busyIntervalReader
	logger      *slog.Logger
	stepMins    int
}

func NewSlotsHandler(catalogRepo catalogStore, staffRepo slotsStaffStore, hoursRepo slotsHoursStore, bookingRepo busyIntervalReader, logger *slog.Logger, stepMins int) *SlotsHandler {
	if stepMins <= 0 {
		stepMins = availability.DefaultStepMinutes
	}
	return &SlotsHandler{
		catalogRepo: catalogRepo,
		staffRepo:   staffRepo,
		hoursRepo:   hoursRepo,
		bookingRepo: bookingRepo,
		logger:      logger,
		stepMins:    stepMins,
	}
}

type slotsRequest struct {
	Date       string             `json:"date"`
	Selections []selectionRequest `json:"selections"`
	StaffID    string             `json:"staff_id,omitempty"`
}

type slotsResponse struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	TotalPrice      string   `json:"total_price"`
	Slots           []string `json:"slots"`
}

// Compute is the public booking-page endpoint: given a cart and a date it
// returns the start times a client may pick. A closed date answers 200 with
// an empty slot list, not an error.
func (h *SlotsHandler) Compute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}

	var req slotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, ok := parseDay(req.Date)
	if !ok {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
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
	quote, err := h.quote(ctx, cid, sels)
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

	starts, err := h.availableStarts(ctx, cid, day, quote.TotalMinutes, strings.TrimSpace(req.StaffID))
	if err != nil {
		if errors.Is(err, errStaffNotFound) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		h.logger.Error("slot computation failed", "err", err, "company_id", cid)
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	slots := make([]string, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, availability.FormatClock(s))
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		Date:            day.Format("2006-01-02"),
		DurationMinutes: quote.TotalMinutes,
		TotalPrice:      quote.TotalPrice.String(),
		Slots:           slots,
	})
}

func (h *SlotsHandler) quote(ctx context.Context, cid string, sels []pricing.Selection) (pricing.Quote, error) {
	cat, err := h.catalogRepo.LoadCatalog(ctx, cid, serviceIDs(sels))
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Aggregate(sels, cat)
}

// availableStarts resolves the day window, generates candidates, and keeps
// each candidate only if at least one staff member in the pool is free for
// the full interval.
func (h *SlotsHandler) availableStarts(ctx context.Context, cid string, day time.Time, durationMins int, staffID string) ([]int, error) {
	weekly, err := h.hoursRepo.GetWeeklyHours(ctx, cid, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	override, err := h.hoursRepo.GetDateOverride(ctx, cid, day)
	if err != nil {
		return nil, err
	}
	win, open := availability.ResolveWindow(weekly, override)
	if !open {
		return nil, nil
	}

	// An explicit staff id must resolve within the tenant; otherwise the
	// whole window would look free for someone who can never be booked.
	var pool []string
	if staffID != "" {
		if _, err := h.staffRepo.Get(ctx, cid, staffID); err != nil {
			if storage.IsNotFound(err) {
				return nil, errStaffNotFound
			}
			return nil, err
		}
		pool = []string{staffID}
	} else {
		staff, err := h.staffRepo.ListBookable(ctx, cid)
		if err != nil {
			return nil, err
		}
		for _, s := range staff {
			pool = append(pool, s.ID)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	busy, err := h.busyForDay(ctx, cid, day, win, pool)
	if err != nil {
		return nil, err
	}

	candidates := availability.Slots(win, durationMins, h.stepMins)
	var starts []int
	for _, start := range candidates {
		if _, ok := availability.FirstAvailable(pool, busy, start, start+durationMins); ok {
			starts = append(starts, start)
		}
	}
	return starts, nil
}

// busyForDay unions booked intervals, approved time off, and per-staff
// schedule narrowing for the date.
func (h *SlotsHandler) busyForDay(ctx context.Context, cid string, day time.Time, win availability.Window, pool []string) (map[string][]availability.Interval, error) {
	booked, err := h.bookingRepo.BusyIntervals(ctx, cid, day)
	if err != nil {
		return nil, err
	}
	timeOff, err := h.hoursRepo.TimeOffIntervalsForDay(ctx, cid, day)
	if err != nil {
		return nil, err
	}
	staffHours, err := h.hoursRepo.StaffHoursForWeekday(ctx, cid, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	return mergeBusy(booked, timeOff, staffDayBusy(win, staffHours, pool)), nil
}
