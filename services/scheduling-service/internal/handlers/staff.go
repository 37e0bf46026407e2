package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type StaffHandler struct {
	repo   *storage.StaffRepository
	logger *slog.Logger
}

func NewStaffHandler(repo *storage.StaffRepository, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{repo: repo, logger: logger}
}

type createStaffRequest struct {
	FullName            string `json:"full_name"`
	Role                string `json:"role,omitempty"`
	AvailableForBooking *bool  `json:"available_for_booking,omitempty"`
}

func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		http.Error(w, "full_name required", http.StatusBadRequest)
		return
	}
	available := true
	if req.AvailableForBooking != nil {
		available = *req.AvailableForBooking
	}

	id, err := h.repo.Create(r.Context(), cid, req.FullName, strings.TrimSpace(req.Role), available)
	if err != nil {
		http.Error(w, "failed to create staff", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"staff_id": id})
}

type staffItem struct {
	StaffID             string `json:"staff_id"`
	FullName            string `json:"full_name"`
	Role                string `json:"role,omitempty"`
	AvailableForBooking bool   `json:"available_for_booking"`
}

func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	staff, err := h.repo.List(r.Context(), cid, 0)
	if err != nil {
		http.Error(w, "failed to list staff", http.StatusInternalServerError)
		return
	}
	items := make([]staffItem, 0, len(staff))
	for _, s := range staff {
		items = append(items, staffItem{
			StaffID:             s.ID,
			FullName:            s.FullName,
			Role:                s.Role,
			AvailableForBooking: s.AvailableForBooking,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type setBookableRequest struct {
	StaffID             string `json:"staff_id"`
	AvailableForBooking bool   `json:"available_for_booking"`
}

func (h *StaffHandler) SetBookable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req setBookableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetAvailableForBooking(r.Context(), cid, staffID, req.AvailableForBooking); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update staff", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
