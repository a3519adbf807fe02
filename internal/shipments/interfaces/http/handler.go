package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"cargotrack-cloud/internal/audit"
	"cargotrack-cloud/internal/auth"
	devices "cargotrack-cloud/internal/devices/domain"
	shipmentapp "cargotrack-cloud/internal/shipments/application"
	shipments "cargotrack-cloud/internal/shipments/domain"
	"cargotrack-cloud/internal/shipments/interfaces"
)

const exportEventLimit = 500

// Handler provides shipment HTTP endpoints.
type Handler struct {
	service *shipmentapp.Service
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *shipmentapp.Service, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("shipments handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/shipments, its subroutes, and the public
// /track/ lookup.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/track/"):
		h.handleTrack(w, r)
	case r.URL.Path == "/api/v1/shipments":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/shipments/"):
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
	views := make([]shipmentView, 0, len(list))
	for index := range list {
		views = append(views, toView(&list[index]))
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input shipmentapp.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	shipment, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	h.logAudit(r, "shipment.create", shipment.ID)
	respondJSON(w, http.StatusCreated, toView(shipment))
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/shipments/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "export.xlsx", "export.pdf":
			h.handleExport(w, r, id, parts[1])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		shipment, err := h.service.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, toView(shipment))
	case http.MethodPatch:
		var patch shipmentapp.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		shipment, err := h.service.Update(r.Context(), id, patch)
		if err != nil {
			respondError(w, err)
			return
		}
		h.logAudit(r, "shipment.update", id)
		respondJSON(w, http.StatusOK, toView(shipment))
	case http.MethodDelete:
		shipment, err := h.service.Cancel(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		h.logAudit(r, "shipment.cancel", id)
		respondJSON(w, http.StatusOK, toView(shipment))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, id, format string) {
	shipment, events, err := h.service.History(r.Context(), id, exportEventLimit)
	if err != nil {
		respondError(w, err)
		return
	}

	var payload []byte
	var contentType string
	switch format {
	case "export.xlsx":
		payload, err = interfaces.BuildShipmentXLSX(shipment, events)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "export.pdf":
		payload, err = interfaces.BuildShipmentPDF(shipment, events)
		contentType = "application/pdf"
	}
	if err != nil {
		h.logger.Printf("shipments: export failed for %s: %v", id, err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="shipment-`+id+strings.TrimPrefix(format, "export")+`"`)
	_, _ = w.Write(payload)
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	shareCode := strings.TrimPrefix(r.URL.Path, "/track/")
	if shareCode == "" || strings.Contains(shareCode, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	view, err := h.service.Track(r.Context(), shareCode)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string) {
	if h.auditor == nil {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	entry := audit.Entry{
		OrgID:        identity.OrgID,
		Actor:        identity.UserID,
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: "shipment",
		ResourceID:   resourceID,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("shipments: audit write failed: %v", err)
	}
}

type shipmentView struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	OrgID              string            `json:"orgId,omitempty"`
	DeviceID           string            `json:"deviceId,omitempty"`
	Status             shipments.Status  `json:"status"`
	OriginAddress      string            `json:"originAddress,omitempty"`
	OriginLat          *float64          `json:"originLat,omitempty"`
	OriginLng          *float64          `json:"originLng,omitempty"`
	DestinationAddress string            `json:"destinationAddress,omitempty"`
	DestinationLat     *float64          `json:"destinationLat,omitempty"`
	DestinationLng     *float64          `json:"destinationLng,omitempty"`
	ShareCode          string            `json:"shareCode"`
	ShareEnabled       bool              `json:"shareEnabled"`
	DeliveredAt        *time.Time        `json:"deliveredAt,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func toView(shipment *shipments.Shipment) shipmentView {
	view := shipmentView{
		ID:                 shipment.ID,
		UserID:             shipment.UserID,
		OrgID:              shipment.OrgID,
		DeviceID:           shipment.DeviceID,
		Status:             shipment.Status,
		OriginAddress:      shipment.OriginAddress,
		OriginLat:          shipment.OriginLat,
		OriginLng:          shipment.OriginLng,
		DestinationAddress: shipment.DestinationAddress,
		DestinationLat:     shipment.DestinationLat,
		DestinationLng:     shipment.DestinationLng,
		ShareCode:          shipment.ShareCode,
		ShareEnabled:       shipment.ShareEnabled,
		CreatedAt:          shipment.CreatedAt,
		UpdatedAt:          shipment.UpdatedAt,
	}
	if !shipment.DeliveredAt.IsZero() {
		deliveredAt := shipment.DeliveredAt
		view.DeliveredAt = &deliveredAt
	}
	return view
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shipments.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, devices.ErrNotFound):
		http.Error(w, "device not found", http.StatusNotFound)
	case errors.Is(err, shipments.ErrShareExpired):
		http.Error(w, "share link expired", http.StatusGone)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, shipments.ErrTerminalStatus),
		errors.Is(err, shipments.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, shipments.ErrNoDestination),
		errors.Is(err, shipments.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
