package scans

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"cargotrack-cloud/internal/auth"
)

// Handler exposes manual scan triggers. Scheduled runs go through the
// same engine; the endpoints exist for operators and tests.
type Handler struct {
	engine *Engine
	logger *log.Logger
}

// NewHandler constructs a scan trigger handler.
func NewHandler(engine *Engine, logger *log.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("scans handler: nil engine")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{engine: engine, logger: logger}, nil
}

// ServeHTTP handles POST /api/v1/scans/{name}/run (operator, admin JWT)
// and POST /scans/{name} (scheduler, behind the shared-secret middleware).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var name string
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/v1/scans/"):
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok || identity.Role != auth.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/scans/"), "/")
		if len(parts) != 2 || parts[1] != "run" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		name = parts[0]
	case strings.HasPrefix(r.URL.Path, "/scans/"):
		name = strings.TrimPrefix(r.URL.Path, "/scans/")
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if name == "" || strings.Contains(name, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload any
	var err error
	switch name {
	case "delivery":
		payload, err = h.engine.RunDelivery(r.Context())
	case "battery":
		payload, err = h.engine.RunBattery(r.Context())
	case "signal":
		payload, err = h.engine.RunSignal(r.Context())
	case "unused-labels":
		payload, err = h.engine.RunUnusedLabels(r.Context())
	case "pending-reminders":
		payload, err = h.engine.RunPendingReminders(r.Context())
	case "cleanup":
		payload, err = h.engine.RunCleanup(r.Context())
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Printf("scans: %s run failed: %v", name, err)
		http.Error(w, "scan error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
