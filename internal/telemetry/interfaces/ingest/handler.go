package ingest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	telemetryapp "cargotrack-cloud/internal/telemetry/application"
	telemetry "cargotrack-cloud/internal/telemetry/domain"
)

// Handler receives device location reports. Authentication is the shared
// secret middleware, not user tokens; trackers do not carry JWTs.
type Handler struct {
	ingestor *telemetryapp.Ingestor
	logger   *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(ingestor *telemetryapp.Ingestor, logger *log.Logger) (*Handler, error) {
	if ingestor == nil {
		return nil, errors.New("ingest handler: nil ingestor")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{ingestor: ingestor, logger: logger}, nil
}

// ServeHTTP handles /ingest/telemetry and /ingest/telemetry/batch.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/ingest/telemetry":
		h.handleSingle(w, r)
	case "/ingest/telemetry/batch":
		h.handleBatch(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleSingle(w http.ResponseWriter, r *http.Request) {
	var report telemetry.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	event, err := h.ingestor.Ingest(r.Context(), report)
	if err != nil {
		var validation *telemetry.ValidationError
		switch {
		case errors.As(err, &validation):
			http.Error(w, validation.Error(), http.StatusBadRequest)
		case errors.Is(err, telemetryapp.ErrUnknownDevice):
			http.Error(w, "unknown device", http.StatusNotFound)
		default:
			h.logger.Printf("ingest: %v", err)
			http.Error(w, "ingest error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"eventId": event.ID})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var reports []telemetry.Report
	if err := json.NewDecoder(r.Body).Decode(&reports); err != nil {
		h.logger.Printf("ingest: batch decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(reports) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	result, err := h.ingestor.IngestBatch(r.Context(), reports)
	if err != nil {
		h.logger.Printf("ingest: batch error: %v", err)
		http.Error(w, "ingest error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(result)
}
