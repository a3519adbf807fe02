package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"cargotrack-cloud/internal/audit"
	"cargotrack-cloud/internal/auth"
	deviceapp "cargotrack-cloud/internal/devices/application"
	devices "cargotrack-cloud/internal/devices/domain"
)

// Handler provides device lifecycle HTTP endpoints.
type Handler struct {
	service *deviceapp.Service
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *deviceapp.Service, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("devices handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/devices/{id}/{action}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/api/v1/devices/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]

	switch parts[1] {
	case "activate":
		h.handleActivate(w, r, id)
	case "assign":
		h.handleAssign(w, r, id)
	case "deplete":
		h.handleSimple(w, r, id, "device.deplete", h.service.Deplete)
	case "reset":
		h.handleSimple(w, r, id, "device.reset", h.service.Reset)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		ShipmentID string `json:"shipmentId"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.Activate(r.Context(), id, body.ShipmentID)
	if err != nil {
		respondError(w, err)
		return
	}
	h.logAudit(r, "device.activate", id)
	respondJSON(w, http.StatusOK, activationView{
		Device:  toView(result.Device),
		Binding: result.Binding,
	})
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	device, err := h.service.Assign(r.Context(), id, body.OrderID)
	if err != nil {
		respondError(w, err)
		return
	}
	h.logAudit(r, "device.assign", id)
	respondJSON(w, http.StatusOK, toView(device))
}

func (h *Handler) handleSimple(w http.ResponseWriter, r *http.Request, id, action string, op func(ctx context.Context, deviceID string) (*devices.Device, error)) {
	device, err := op(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	h.logAudit(r, action, id)
	respondJSON(w, http.StatusOK, toView(device))
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
		ResourceType: "device",
		ResourceID:   resourceID,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("devices: audit write failed: %v", err)
	}
}

type deviceView struct {
	ID          string     `json:"id"`
	IMEI        string     `json:"imei,omitempty"`
	ICCID       string     `json:"iccid,omitempty"`
	Status      string     `json:"status"`
	BatteryPct  *float64   `json:"batteryPct,omitempty"`
	OrderID     string     `json:"orderId,omitempty"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type activationView struct {
	Device  deviceView              `json:"device"`
	Binding deviceapp.BindingResult `json:"binding"`
}

func toView(device *devices.Device) deviceView {
	view := deviceView{
		ID:         device.ID,
		IMEI:       device.IMEI,
		ICCID:      device.ICCID,
		Status:     string(device.Status),
		BatteryPct: device.BatteryPct,
		OrderID:    device.OrderID,
		CreatedAt:  device.CreatedAt,
		UpdatedAt:  device.UpdatedAt,
	}
	if !device.ActivatedAt.IsZero() {
		activatedAt := device.ActivatedAt
		view.ActivatedAt = &activatedAt
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
	case errors.Is(err, devices.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, devices.ErrNotPurchased),
		errors.Is(err, devices.ErrAlreadyActive),
		errors.Is(err, devices.ErrDepleted),
		errors.Is(err, devices.ErrStillOwned),
		errors.Is(err, devices.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
