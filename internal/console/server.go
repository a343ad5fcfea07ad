// Package console is the HTTP surface of the invoice console: the versioned
// session API the embedded UI talks to, plus health, metrics, SSE, and the
// embedded assets themselves.
package console

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoice-console/internal/backend"
	"invoice-console/internal/config"
	"invoice-console/internal/events"
	"invoice-console/internal/health"
	"invoice-console/internal/history"
	"invoice-console/internal/metrics"
	"invoice-console/internal/session"
	"invoice-console/web"
)

// APIPrefix is the base path for all console API endpoints.
const APIPrefix = "/console/api/v1"

// Generator is the backend operation the console submits to.
type Generator interface {
	Generate(ctx context.Context, req backend.GenerateRequest) (*backend.GenerateResponse, error)
}

// Handler wires the session store, backend client, and telemetry together.
type Handler struct {
	cfg      config.Config
	logger   *slog.Logger
	sessions *session.Store
	backend  Generator
	poller   *health.Poller
	bus      *events.Bus
	metrics  *metrics.Metrics
	history  history.Store
	assets   fs.FS
}

// NewHandler constructs the console handler.
func NewHandler(
	cfg config.Config,
	sessions *session.Store,
	gen Generator,
	poller *health.Poller,
	bus *events.Bus,
	m *metrics.Metrics,
	hist history.Store,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	assets, err := web.Assets()
	if err != nil {
		logger.Warn("failed to load embedded assets", "err", err)
	}

	return &Handler{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		backend:  gen,
		poller:   poller,
		bus:      bus,
		metrics:  m,
		history:  hist,
		assets:   assets,
	}
}

// ServeHTTP routes console requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.CORSAllowOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", h.cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	}
	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch {
	case r.URL.Path == "/metrics" && r.Method == http.MethodGet:
		promhttp.Handler().ServeHTTP(w, r)
	case r.URL.Path == "/healthz":
		h.writeJSON(w, map[string]string{"status": "ok"})
	case r.URL.Path == "/healthz/backend":
		h.handleBackendHealth(w, r)
	case r.URL.Path == "/events" && r.Method == http.MethodGet:
		h.handleSSE(w, r)
	case strings.HasPrefix(r.URL.Path, APIPrefix):
		h.serveAPI(w, r)
	case r.Method == http.MethodGet:
		h.serveAsset(w, r)
	default:
		http.NotFound(w, r)
	}
}

// serveAPI dispatches paths under APIPrefix.
func (h *Handler) serveAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)

	switch {
	case path == "/sessions" && r.Method == http.MethodPost:
		h.handleCreateSession(w, r)
	case path == "/history" && r.Method == http.MethodGet:
		h.handleListHistory(w, r)
	case strings.HasPrefix(path, "/history/") && r.Method == http.MethodGet:
		h.handleGetHistory(w, r, strings.TrimPrefix(path, "/history/"))
	case path == "/overview" && r.Method == http.MethodGet:
		h.handleOverview(w, r)
	case strings.HasPrefix(path, "/sessions/"):
		h.serveSession(w, r, strings.TrimPrefix(path, "/sessions/"))
	default:
		http.NotFound(w, r)
	}
}

// serveSession dispatches /sessions/{id}[/...] once the session is resolved.
func (h *Handler) serveSession(w http.ResponseWriter, r *http.Request, rest string) {
	id, sub, _ := strings.Cut(rest, "/")
	s := h.sessions.Get(id)
	if s == nil {
		h.writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.writeJSON(w, s.Snapshot())
	case strings.HasPrefix(sub, "files/") && r.Method == http.MethodPost:
		h.handleUpload(w, r, s, strings.TrimPrefix(sub, "files/"))
	case strings.HasPrefix(sub, "timesheets/") && r.Method == http.MethodDelete:
		h.handleRemoveTimesheet(w, r, s, strings.TrimPrefix(sub, "timesheets/"))
	case sub == "config" && r.Method == http.MethodPut:
		h.handleSetConfig(w, r, s)
	case sub == "generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r, s)
	case sub == "result" && r.Method == http.MethodGet:
		h.handleResult(w, r, s)
	case sub == "report.xlsx" && r.Method == http.MethodGet:
		h.handleDownloadReport(w, r, s)
	case sub == "report/preview" && r.Method == http.MethodGet:
		h.handleReportPreview(w, r, s)
	case sub == "audit.json" && r.Method == http.MethodGet:
		h.handleDownloadAudit(w, r, s)
	default:
		http.NotFound(w, r)
	}
}

// serveAsset serves the embedded UI, falling back to index.html at the root.
func (h *Handler) serveAsset(w http.ResponseWriter, r *http.Request) {
	if h.assets == nil {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "index.html"
	}

	data, err := fs.ReadFile(h.assets, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case strings.HasSuffix(name, ".html"):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case strings.HasSuffix(name, ".js"):
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	case strings.HasSuffix(name, ".css"):
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case strings.HasSuffix(name, ".svg"):
		w.Header().Set("Content-Type", "image/svg+xml")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Write(data)
}

// Helper functions

func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func parseWindow(r *http.Request) time.Duration {
	w := r.URL.Query().Get("window")
	switch w {
	case "1h":
		return time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "24h", "":
		return 24 * time.Hour
	default:
		if d, err := time.ParseDuration(w); err == nil {
			return d
		}
		return 24 * time.Hour
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	var n int
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
		} else {
			return def
		}
	}
	return n
}
