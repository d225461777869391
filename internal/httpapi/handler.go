package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"healthmap/core-go/internal/access"
	"healthmap/core-go/internal/db"
	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/geolocate"
	"healthmap/core-go/internal/mapengine"
	"healthmap/core-go/internal/metrics"
)

// Options wires the handler to its collaborators. Only Data is required for
// the map endpoints; everything else has a usable zero value.
type Options struct {
	Pool    *db.Pool
	Data    mapengine.DataSource
	Insight mapengine.InsightSource
	Tiles   mapengine.TileSource

	Center         geo.Point
	Zoom           int
	ScrollZoom     bool
	InsightTimeout time.Duration

	Access      access.Checker
	DefaultRole access.Role
	Metrics     *metrics.Metrics

	// AllowedOrigins lists extra browser origins (scheme://host[:port]) that
	// may open the events websocket. Same-host origins are always accepted.
	AllowedOrigins []string
}

type Handler struct {
	log      zerolog.Logger
	pool     *db.Pool
	opts     Options
	access   access.Checker
	metrics  *metrics.Metrics
	sessions *sessionRegistry
	upgrader websocket.Upgrader
}

func NewHandler(log zerolog.Logger, opts Options) *Handler {
	if opts.Access == nil {
		opts.Access = access.DefaultTable()
	}
	if opts.DefaultRole == "" {
		opts.DefaultRole = access.RoleAdmin
	}
	if opts.Zoom == 0 {
		opts.Zoom = 12
	}
	h := &Handler{
		log:      log,
		pool:     opts.Pool,
		opts:     opts,
		access:   opts.Access,
		metrics:  opts.Metrics,
		sessions: newSessionRegistry(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)
	r.Use(access.Middleware(h.opts.DefaultRole))

	// Long-lived websocket stream; kept out of the request timeout.
	r.Get("/api/v1/sessions/{id}/events", h.handleSessionEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		// Health
		r.Get("/healthz", h.handleHealthz)
		r.Get("/readyz", h.handleReadyZ)
		r.Get("/metrics", h.handleMetrics)

		// API
		r.Get("/api/v1/layers", h.handleGetLayers)

		r.Post("/api/v1/sessions", h.handleCreateSession)
		r.Get("/api/v1/sessions/{id}", h.handleGetSession)
		r.Delete("/api/v1/sessions/{id}", h.handleDeleteSession)
		r.Put("/api/v1/sessions/{id}/config", h.handlePutConfig)
		r.Post("/api/v1/sessions/{id}/zoom", h.handleZoom)
		r.Post("/api/v1/sessions/{id}/locate", h.handleLocate)
		r.Get("/api/v1/sessions/{id}/search", h.handleSearch)
		r.Get("/api/v1/sessions/{id}/selection", h.handleGetSelection)
		r.Put("/api/v1/sessions/{id}/selection", h.handlePutSelection)
		r.Delete("/api/v1/sessions/{id}/selection", h.handleDeleteSelection)
	})

	return r
}

// Close tears down every open map session.
func (h *Handler) Close() {
	h.sessions.closeAll()
}

// RefreshSessions redraws every mounted session from the latest dataset.
func (h *Handler) RefreshSessions() {
	for id, hm := range h.sessions.all() {
		if err := hm.Refresh(); err != nil {
			h.log.Warn().Err(err).Str("session_id", id).Msg("session refresh failed")
		}
	}
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// writeEngineError maps map engine failures onto the error envelope.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error, details map[string]any) {
	switch {
	case errors.Is(err, mapengine.ErrAlreadyInitialized):
		h.writeError(w, http.StatusConflict, "conflict", "map session already initialized", details)
	case errors.Is(err, mapengine.ErrNotInitialized):
		h.writeError(w, http.StatusConflict, "conflict", "map session not initialized", details)
	case errors.Is(err, mapengine.ErrNodeNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "node not found", details)
	case errors.Is(err, mapengine.ErrNotSelectable):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "node is not selectable in this variant", details)
	default:
		h.log.Error().Err(err).Msg("map engine operation failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "map operation failed", nil)
	}
}

// allow checks the caller's role against perm and writes a 403 when it is
// not granted.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, perm access.Permission) bool {
	role := access.RoleFromContext(r.Context())
	if h.access.Allowed(role, perm) {
		return true
	}
	h.writeError(w, http.StatusForbidden, "forbidden", "role is not permitted to perform this action", map[string]any{
		"role":       string(role),
		"permission": string(perm),
	})
	return false
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSONStrict for endpoints whose body may be
// omitted entirely. It reports whether a body was present.
func decodeOptionalJSON(r *http.Request, dst any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}
	err := decodeJSONStrict(r, dst)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return err == nil, err
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.opts.Data == nil || h.opts.Data.Snapshot() == nil {
		h.writeError(w, http.StatusServiceUnavailable, "data_unavailable", "dataset not loaded", nil)
		return
	}

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

func (h *Handler) newHealthMap() *mapengine.HealthMap {
	return mapengine.New(mapengine.Options{
		Data:           h.opts.Data,
		Insight:        h.opts.Insight,
		Locator:        geolocate.Denied{},
		Tiles:          h.opts.Tiles,
		InsightTimeout: h.opts.InsightTimeout,
		Logger:         h.log,
		Metrics:        h.metrics,
	})
}
