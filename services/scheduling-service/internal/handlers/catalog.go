package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type CatalogHandler struct {
	repo   *storage.CatalogRepository
	logger *slog.Logger
}

func NewCatalogHandler(repo *storage.CatalogRepository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

type createServiceRequest struct {
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category,omitempty"`
	PriceDisplay    string `json:"price_display,omitempty"`
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMinutes <= 0 {
		http.Error(w, "name and positive duration_minutes required", http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.IsNegative() {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}
	switch req.PriceDisplay {
	case "", model.PriceDisplayFixed, model.PriceDisplayFree, model.PriceDisplayFrom, model.PriceDisplayHidden:
	default:
		http.Error(w, "invalid price_display", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateService(r.Context(), model.Service{
		CompanyID:    cid,
		Name:         req.Name,
		Price:        price,
		DurationMins: req.DurationMinutes,
		Category:     strings.TrimSpace(req.Category),
		PriceDisplay: req.PriceDisplay,
	})
	if err != nil {
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"service_id": id})
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category,omitempty"`
	PriceDisplay    string `json:"price_display"`
}

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	services, err := h.repo.ListServices(r.Context(), cid, 0)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceItem{
			ServiceID:       s.ID,
			Name:            s.Name,
			Price:           s.Price.String(),
			DurationMinutes: s.DurationMins,
			Category:        s.Category,
			PriceDisplay:    s.PriceDisplay,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type createAddonRequest struct {
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *CatalogHandler) CreateAddon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req createAddonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMinutes < 0 {
		http.Error(w, "name required, duration_minutes must not be negative", http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.IsNegative() {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateAddon(r.Context(), model.Addon{
		CompanyID:    cid,
		Name:         req.Name,
		Price:        price,
		DurationMins: req.DurationMinutes,
	})
	if err != nil {
		http.Error(w, "failed to create addon", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"addon_id": id})
}

type linkAddonRequest struct {
	ServiceID string `json:"service_id"`
	AddonID   string `json:"addon_id"`
}

func (h *CatalogHandler) LinkAddon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req linkAddonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	serviceID := strings.TrimSpace(req.ServiceID)
	addonID := strings.TrimSpace(req.AddonID)
	if serviceID == "" || addonID == "" {
		http.Error(w, "service_id and addon_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.LinkAddon(r.Context(), cid, serviceID, addonID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service or addon not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to link addon", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
