package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type HoursHandler struct {
	repo   *storage.HoursRepository
	logger *slog.Logger
}

func NewHoursHandler(repo *storage.HoursRepository, logger *slog.Logger) *HoursHandler {
	return &HoursHandler{repo: repo, logger: logger}
}

type weeklyHoursRequest struct {
	Weekday    int    `json:"weekday"`
	Open       string `json:"open"`
	Close      string `json:"close"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

// UpsertWeekly sets the recurring hours for one weekday. The break is
// optional but must come as a pair inside the open interval.
func (h *HoursHandler) UpsertWeekly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req weeklyHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0..6 (0 = Sunday)", http.StatusBadRequest)
		return
	}
	open, err := availability.ParseClock(req.Open)
	if err != nil {
		http.Error(w, "invalid open (want HH:MM)", http.StatusBadRequest)
		return
	}
	closeMin, err := availability.ParseClock(req.Close)
	if err != nil {
		http.Error(w, "invalid close (want HH:MM)", http.StatusBadRequest)
		return
	}
	if closeMin <= open {
		http.Error(w, "close must be after open", http.StatusBadRequest)
		return
	}

	wh := model.WeeklyHours{
		CompanyID:   cid,
		Weekday:     req.Weekday,
		OpenMinute:  open,
		CloseMinute: closeMin,
	}
	if (req.BreakStart == "") != (req.BreakEnd == "") {
		http.Error(w, "break_start and break_end must come together", http.StatusBadRequest)
		return
	}
	if req.BreakStart != "" {
		bs, err := availability.ParseClock(req.BreakStart)
		if err != nil {
			http.Error(w, "invalid break_start (want HH:MM)", http.StatusBadRequest)
			return
		}
		be, err := availability.ParseClock(req.BreakEnd)
		if err != nil {
			http.Error(w, "invalid break_end (want HH:MM)", http.StatusBadRequest)
			return
		}
		if be <= bs || bs < open || be > closeMin {
			http.Error(w, "break must lie inside open hours", http.StatusBadRequest)
			return
		}
		wh.BreakStartMinute = &bs
		wh.BreakEndMinute = &be
	}

	if err := h.repo.UpsertWeeklyHours(r.Context(), wh); err != nil {
		http.Error(w, "failed to save weekly hours", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type weeklyHoursItem struct {
	Weekday    int    `json:"weekday"`
	Open       string `json:"open"`
	Close      string `json:"close"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

func (h *HoursHandler) ListWeekly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	rows, err := h.repo.ListWeeklyHours(r.Context(), cid)
	if err != nil {
		http.Error(w, "failed to list weekly hours", http.StatusInternalServerError)
		return
	}
	items := make([]weeklyHoursItem, 0, len(rows))
	for _, wh := range rows {
		item := weeklyHoursItem{
			Weekday: wh.Weekday,
			Open:    availability.FormatClock(wh.OpenMinute),
			Close:   availability.FormatClock(wh.CloseMinute),
		}
		if wh.BreakStartMinute != nil && wh.BreakEndMinute != nil {
			item.BreakStart = availability.FormatClock(*wh.BreakStartMinute)
			item.BreakEnd = availability.FormatClock(*wh.BreakEndMinute)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type dateOverrideRequest struct {
	Date  string `json:"date"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// UpsertOverride replaces open/close for one date. Setting close equal to
// open closes the date entirely.
func (h *HoursHandler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req dateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, ok := parseDay(req.Date)
	if !ok {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	open, err := availability.ParseClock(req.Open)
	if err != nil {
		http.Error(w, "invalid open (want HH:MM)", http.StatusBadRequest)
		return
	}
	closeMin, err := availability.ParseClock(req.Close)
	if err != nil {
		http.Error(w, "invalid close (want HH:MM)", http.StatusBadRequest)
		return
	}
	if closeMin < open {
		http.Error(w, "close must not be before open", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpsertDateOverride(r.Context(), model.DateOverride{
		CompanyID:   cid,
		Day:         day,
		OpenMinute:  open,
		CloseMinute: closeMin,
	}); err != nil {
		http.Error(w, "failed to save date override", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type staffHoursRequest struct {
	StaffID   string `json:"staff_id"`
	Weekday   int    `json:"weekday"`
	IsWorking bool   `json:"is_working"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

func (h *HoursHandler) UpsertStaffHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req staffHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" || req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "staff_id and weekday 0..6 required", http.StatusBadRequest)
		return
	}

	sh := model.StaffHours{StaffID: staffID, Weekday: req.Weekday, IsWorking: req.IsWorking}
	if req.IsWorking {
		start, err := availability.ParseClock(req.Start)
		if err != nil {
			http.Error(w, "invalid start (want HH:MM)", http.StatusBadRequest)
			return
		}
		end, err := availability.ParseClock(req.End)
		if err != nil {
			http.Error(w, "invalid end (want HH:MM)", http.StatusBadRequest)
			return
		}
		if end <= start {
			http.Error(w, "end must be after start", http.StatusBadRequest)
			return
		}
		sh.StartMinute = start
		sh.EndMinute = end
	}

	if err := h.repo.UpsertStaffHours(r.Context(), cid, sh); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to save staff hours", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type timeOffRequest struct {
	StaffID   string `json:"staff_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Reason    string `json:"reason,omitempty"`
}

// CreateTimeOff blocks [start, end) on every date in the inclusive date
// range for one staff member.
func (h *HoursHandler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req timeOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	startDate, ok := parseDay(req.StartDate)
	if !ok {
		http.Error(w, "invalid start_date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	endDate, ok := parseDay(req.EndDate)
	if !ok || endDate.Before(startDate) {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}
	start, err := availability.ParseClock(req.Start)
	if err != nil {
		http.Error(w, "invalid start (want HH:MM)", http.StatusBadRequest)
		return
	}
	end, err := availability.ParseClock(req.End)
	if err != nil || end <= start {
		http.Error(w, "invalid end (want HH:MM after start)", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateTimeOff(r.Context(), cid, model.TimeOff{
		StaffID:     staffID,
		StartDate:   startDate,
		EndDate:     endDate,
		StartMinute: start,
		EndMinute:   end,
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to create time off", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"time_off_id": id})
}

func (h *HoursHandler) DeleteTimeOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	timeOffID := strings.TrimSpace(r.URL.Query().Get("time_off_id"))
	if cid == "" || timeOffID == "" {
		http.Error(w, "company id and time_off_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteTimeOff(r.Context(), cid, timeOffID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "time off not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete time off", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
