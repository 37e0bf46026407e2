package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type CompanyHandler struct {
	repo   *storage.CompanyRepository
	logger *slog.Logger
}

func NewCompanyHandler(repo *storage.CompanyRepository, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{repo: repo, logger: logger}
}

type createCompanyRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Timezone string `json:"timezone,omitempty"`
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || req.Slug == "" {
		http.Error(w, "name and slug required", http.StatusBadRequest)
		return
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}

	id, err := h.repo.Create(r.Context(), req.Name, req.Slug, tz)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			http.Error(w, "slug already taken", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create company", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"company_id": id})
}

type companyView struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Timezone  string `json:"timezone"`
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		c   model.Company
		err error
	)
	if slug := strings.TrimSpace(r.URL.Query().Get("slug")); slug != "" {
		c, err = h.repo.GetBySlug(r.Context(), slug)
	} else if cid := companyID(r); cid != "" {
		c, err = h.repo.Get(r.Context(), cid)
	} else {
		http.Error(w, "company id or slug required", http.StatusBadRequest)
		return
	}
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "company not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load company", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, companyView{CompanyID: c.ID, Name: c.Name, Slug: c.Slug, Timezone: c.Timezone})
}
