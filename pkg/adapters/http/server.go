package http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var specYAML []byte

// Server serves an Editor over HTTP.
type Server struct {
	Editor ports.Editor
	Logger *slog.Logger
	spec   *openapi3.T
}

type config struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	origin   string
}

// Option configures NewHandler.
type Option func(*config)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics exposes the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(c *config) { c.gatherer = g }
}

// WithCORSOrigin sets Access-Control-Allow-Origin. Empty disables CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(c *config) { c.origin = origin }
}

// NewHandler creates the HTTP handler for the editor. Requests to API
// routes are validated against the embedded OpenAPI document first.
func NewHandler(editor ports.Editor, opts ...Option) (http.Handler, error) {
	cfg := config{logger: slog.Default(), origin: "*"}
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	validate, err := validator(spec)
	if err != nil {
		return nil, err
	}

	s := &Server{Editor: editor, Logger: cfg.logger, spec: spec}
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(specYAML)
	})
	r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if cfg.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Get("/health", s.Health)
		r.Get("/info", s.Info)
		r.Get("/definitions", s.ListDefinitions)
		r.Get("/documents", s.ListDocuments)
		r.Post("/documents", s.SaveDocument)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Post("/documents/{id}/check", s.CheckConnection)
		r.Post("/documents/{id}/connect", s.Connect)
		r.Post("/documents/{id}/disconnect", s.Disconnect)
		r.Get("/documents/{id}/ports", s.InspectPort)
		r.Post("/validate", s.Validate)
		r.Get("/events", s.SubscribeEvents)
	})

	if cfg.origin == "" {
		return r, nil
	}
	return enableCORS(cfg.origin, r), nil
}

func enableCORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Loom API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error  string         `json:"error"`
	Reason string         `json:"reason,omitempty"`
	Issues []domain.Issue `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

// writeError maps editor errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var aggr *schema.AggregateError
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound), errors.Is(err, flow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, flow.ErrRejected):
		status = http.StatusConflict
		body.Reason = string(flow.RejectionReason(err))
	case errors.As(err, &aggr):
		status = http.StatusUnprocessableEntity
		body.Issues = document.Issues(err)
	case errors.Is(err, domain.ErrLockAcquire):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		s.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.Logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid request body: %v", err)})
		return v, false
	}
	return v, true
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":     loom.Version,
		"api_version": s.spec.Info.Version,
	})
}

// ListDefinitions handles GET /definitions.
func (s *Server) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs := s.Editor.Definitions(r.Context())
	if defs == nil {
		defs = []domain.Definition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Editor.Documents(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// SaveDocument handles POST /documents.
func (s *Server) SaveDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeBody[domain.Document](w, r)
	if !ok {
		return
	}
	saved, err := s.Editor.SaveDocument(r.Context(), &doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Editor.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.Editor.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckConnection handles POST /documents/{id}/check. A rejected connection
// is a successful check with Allowed unset.
func (s *Server) CheckConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[domain.ConnectionRequest](w, r)
	if !ok {
		return
	}
	res, err := s.Editor.Check(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Connect handles POST /documents/{id}/connect.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[domain.ConnectionRequest](w, r)
	if !ok {
		return
	}
	doc, err := s.Editor.Connect(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Disconnect handles POST /documents/{id}/disconnect.
func (s *Server) Disconnect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[domain.ConnectionRequest](w, r)
	if !ok {
		return
	}
	doc, err := s.Editor.Disconnect(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// InspectPort handles GET /documents/{id}/ports.
func (s *Server) InspectPort(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info, err := s.Editor.InspectPort(r.Context(), chi.URLParam(r, "id"), q.Get("blueprint"), q.Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Validate handles POST /validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeBody[domain.Document](w, r)
	if !ok {
		return
	}
	issues, err := s.Editor.Validate(r.Context(), &doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}
