package interfaces

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"verify-thresholds/internal/observability/metrics"
	specs "verify-thresholds/internal/specs/domain"
	verificationapp "verify-thresholds/internal/verification/application"
	verification "verify-thresholds/internal/verification/domain"
)

const (
	timeLayout      = time.RFC3339
	maxRequestBytes = 1 << 20
)

// RunHandler provides verification HTTP endpoints.
type RunHandler struct {
	service *verificationapp.Service
	logger  *log.Logger
}

// NewRunHandler constructs a handler.
func NewRunHandler(service *verificationapp.Service, logger *log.Logger) (*RunHandler, error) {
	if service == nil {
		return nil, errors.New("verification handler: nil service")
	}
	return &RunHandler{service: service, logger: logger}, nil
}

type verifyRequest struct {
	Measurements []verification.Measurement `json:"measurements"`
}

// ServeHTTP handles /api/v1/verifications and subroutes.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/verifications":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleVerify(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/verifications/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRun(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RunHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	run, err := h.service.Verify(r.Context(), req.Measurements)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *RunHandler) handleList(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	list, err := h.service.ListRuns(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []verification.Run{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RunHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/verifications/")
	parts := strings.Split(path, "/")
	if parts[0] == "" || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		run, err := h.service.GetRun(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}
	switch parts[1] {
	case "export.pdf":
		h.handleExport(w, r, id, "pdf", "application/pdf", BuildRunPDF)
	case "export.xlsx":
		h.handleExport(w, r, id, "xlsx", xlsxContentType, BuildRunXLSX)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RunHandler) handleExport(w http.ResponseWriter, r *http.Request, id, format, contentType string, build func(*verification.Run) ([]byte, error)) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := build(run)
	if err != nil {
		result = metrics.ResultError
		h.logf("export %s error: run=%s err=%v", format, id, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+run.ID+"."+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *RunHandler) logf(format string, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Printf(format, args...)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verification.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, verification.ErrNoMeasurements),
		errors.Is(err, verification.ErrInvalidMeasurement),
		errors.Is(err, verification.ErrMissingValue),
		errors.Is(err, verification.ErrNonFiniteValue),
		errors.Is(err, verification.ErrNoMatchingSpecs),
		errors.Is(err, specs.ErrSpecNotFound),
		errors.Is(err, specs.ErrAbstractSpec),
		errors.Is(err, specs.ErrUnitMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
