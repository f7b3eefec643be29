package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	specs "verify-thresholds/internal/specs/domain"
)

// Catalog is the read side of a loaded spec table.
type Catalog interface {
	Lookup(name string) (specs.Resolved, error)
	Filter(pkg string, tags []string) []specs.Resolved
}

// Handler serves resolved specs and metric definitions.
type Handler struct {
	catalog Catalog
	metrics *specs.MetricSet
}

// NewHandler constructs a handler. A nil metric set serves an empty list.
func NewHandler(catalog Catalog, metrics *specs.MetricSet) (*Handler, error) {
	if catalog == nil {
		return nil, errors.New("specs handler: nil catalog")
	}
	if metrics == nil {
		metrics = specs.NewMetricSet()
	}
	return &Handler{catalog: catalog, metrics: metrics}, nil
}

// ServeHTTP handles /api/v1/specs, /api/v1/specs/{id} and
// /api/v1/metric-definitions.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/specs":
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/specs/"):
		h.handleGet(w, r)
	case r.URL.Path == "/api/v1/metric-definitions":
		h.handleMetrics(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list := h.catalog.Filter(r.URL.Query().Get("package"), tagsQuery(r))
	if list == nil {
		list = []specs.Resolved{}
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/specs/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	spec, err := h.catalog.Lookup(id)
	if err != nil {
		switch {
		case errors.Is(err, specs.ErrSpecNotFound), errors.Is(err, specs.ErrAbstractSpec):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, spec)
}

type metricResponse struct {
	Name        string   `json:"name"`
	Package     string   `json:"package"`
	Description string   `json:"description,omitempty"`
	Unit        string   `json:"unit"`
	Reference   string   `json:"reference,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	pkg := r.URL.Query().Get("package")
	tags := tagsQuery(r)
	set := h.metrics
	if pkg != "" || len(tags) > 0 {
		set = h.metrics.Subset(pkg, tags)
	}
	resp := make([]metricResponse, 0, set.Len())
	for _, metric := range set.List() {
		resp = append(resp, metricResponse{
			Name:        metric.QualifiedName(),
			Package:     metric.Package,
			Description: metric.Description,
			Unit:        metric.Unit,
			Reference:   metric.Reference,
			Tags:        metric.Tags,
		})
	}
	writeJSON(w, resp)
}

// tagsQuery accepts repeated tag parameters and comma separated values.
func tagsQuery(r *http.Request) []string {
	var tags []string
	for _, value := range r.URL.Query()["tag"] {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
