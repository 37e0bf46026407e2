package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

type ClientHandler struct {
	repo   *storage.ClientRepository
	logger *slog.Logger
}

func NewClientHandler(repo *storage.ClientRepository, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{repo: repo, logger: logger}
}

type createClientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		http.Error(w, "first_name and last_name required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.Create(r.Context(), model.Client{
		CompanyID: cid,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
	})
	if err != nil {
		http.Error(w, "failed to create client", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"client_id": id})
}

type clientItem struct {
	ClientID  string `json:"client_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	clients, err := h.repo.List(r.Context(), cid, 0)
	if err != nil {
		http.Error(w, "failed to list clients", http.StatusInternalServerError)
		return
	}
	items := make([]clientItem, 0, len(clients))
	for _, c := range clients {
		items = append(items, clientItem{
			ClientID:  c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Phone:     c.Phone,
			Email:     c.Email,
		})
	}
	writeJSON(w, http.StatusOK, items)
}
