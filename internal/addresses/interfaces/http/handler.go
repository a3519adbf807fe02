package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	addressapp "cargotrack-cloud/internal/addresses/application"
	addresses "cargotrack-cloud/internal/addresses/domain"
	"cargotrack-cloud/internal/auth"
)

// Handler provides address book HTTP endpoints.
type Handler struct {
	service *addressapp.Service
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *addressapp.Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("addresses handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, logger: logger}, nil
}

// ServeHTTP handles /api/v1/addresses and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/addresses":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/addresses/"):
		h.handleItem(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if list == nil {
		list = []addresses.SavedAddress{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input addressapp.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	address, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, address)
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/addresses/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		address, err := h.service.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, address)
	case http.MethodPut, http.MethodPatch:
		var input addressapp.Input
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		address, err := h.service.Update(r.Context(), id, input)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, address)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, addresses.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
