package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"healthmap/core-go/internal/access"
	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/geolocate"
	"healthmap/core-go/internal/mapengine"
)

type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*mapengine.HealthMap
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*mapengine.HealthMap)}
}

func (s *sessionRegistry) add(hm *mapengine.HealthMap) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = hm
	s.mu.Unlock()
	return id
}

func (s *sessionRegistry) get(id string) (*mapengine.HealthMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hm, ok := s.sessions[id]
	return hm, ok
}

func (s *sessionRegistry) remove(id string) (*mapengine.HealthMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hm, ok := s.sessions[id]
	delete(s.sessions, id)
	return hm, ok
}

func (s *sessionRegistry) all() map[string]*mapengine.HealthMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*mapengine.HealthMap, len(s.sessions))
	for id, hm := range s.sessions {
		out[id] = hm
	}
	return out
}

func (s *sessionRegistry) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*mapengine.HealthMap)
	s.mu.Unlock()
	for _, hm := range sessions {
		hm.Close()
	}
}

type sessionCreate struct {
	Center     *geo.Point     `json:"center,omitempty"`
	Zoom       *int           `json:"zoom,omitempty"`
	ScrollZoom *bool          `json:"scrollZoom,omitempty"`
	WidthPx    int            `json:"widthPx,omitempty"`
	HeightPx   int            `json:"heightPx,omitempty"`
	Config     *configRequest `json:"config,omitempty"`
}

type sessionResponse struct {
	ID string `json:"id"`
	mapengine.View
}

type zoomRequest struct {
	Delta int `json:"delta"`
}

type zoomResponse struct {
	Zoom int `json:"zoom"`
}

type locateRequest struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

type selectionRequest struct {
	NodeType string `json:"nodeType"`
	NodeID   string `json:"nodeId"`
}

// session looks up the {id} path parameter and writes a 404 when it is
// unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *mapengine.HealthMap, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	hm, ok := h.sessions.get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", map[string]any{"id": id})
		return id, nil, false
	}
	return id, hm, true
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreate
	if _, err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid request body", map[string]any{"error": err.Error()})
		return
	}

	center := h.opts.Center
	if req.Center != nil {
		if !req.Center.Valid() {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid center", map[string]any{"center": req.Center.String()})
			return
		}
		center = *req.Center
	}
	zoom := h.opts.Zoom
	if req.Zoom != nil {
		zoom = *req.Zoom
	}
	scroll := h.opts.ScrollZoom
	if req.ScrollZoom != nil {
		scroll = *req.ScrollZoom
	}
	if req.WidthPx < 0 || req.HeightPx < 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "viewport size must not be negative", nil)
		return
	}

	cfgReq := configRequest{}
	if req.Config != nil {
		cfgReq = *req.Config
	}
	cfg, err := h.resolveConfig(cfgReq)
	if err != nil {
		h.writeConfigError(w, err)
		return
	}
	if !h.allow(w, r, access.PermissionForVariant(string(cfg.Variant))) {
		return
	}

	hm := h.newHealthMap()
	if err := hm.Mount(mapengine.NewMemoryViewport(req.WidthPx, req.HeightPx), center, zoom, scroll); err != nil {
		hm.Close()
		h.writeEngineError(w, err, nil)
		return
	}
	// Configured after mounting so a selected area or journey is framed.
	if err := hm.Configure(cfg); err != nil {
		hm.Close()
		h.writeEngineError(w, err, nil)
		return
	}

	id := h.sessions.add(hm)
	h.log.Info().Str("session_id", id).Str("variant", string(cfg.Variant)).Msg("map session created")
	h.writeJSON(w, http.StatusCreated, sessionResponse{ID: id, View: hm.View()})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: hm.View()})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	hm, ok := h.sessions.remove(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", map[string]any{"id": id})
		return
	}
	hm.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}

	var req configRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	cfg, err := h.resolveConfig(req)
	if err != nil {
		h.writeConfigError(w, err)
		return
	}
	if !h.allow(w, r, access.PermissionForVariant(string(cfg.Variant))) {
		return
	}
	if err := hm.Configure(cfg); err != nil {
		h.writeEngineError(w, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: hm.View()})
}

func (h *Handler) handleZoom(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	var req zoomRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	zoom, err := hm.Zoom(req.Delta)
	if err != nil {
		h.writeEngineError(w, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, zoomResponse{Zoom: zoom})
}

// handleLocate centres on a position reported by the browser. Without one the
// device is treated as having denied geolocation, which is not an error.
func (h *Handler) handleLocate(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	var req locateRequest
	if _, err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "lat and lng must be provided together", nil)
		return
	}

	var reported geolocate.Reported
	if req.Lat != nil {
		reported.Position = &geo.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	res, err := hm.Locate(r.Context(), reported)
	if err != nil {
		h.writeEngineError(w, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := hm.SearchFacility(r.URL.Query().Get("q"))
	if err != nil {
		h.writeEngineError(w, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	_, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, hm.Selection())
}

func (h *Handler) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	if !h.allow(w, r, access.PermRequestInsight) {
		return
	}

	var req selectionRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	nodeType, ok := domain.ParseNodeType(req.NodeType)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid nodeType", map[string]any{"nodeType": req.NodeType})
		return
	}
	nodeID := strings.TrimSpace(req.NodeID)
	if nodeID == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "nodeId is required", nil)
		return
	}

	st, err := hm.Select(nodeType, nodeID)
	if err != nil {
		h.writeEngineError(w, err, map[string]any{"id": id, "nodeType": string(nodeType), "nodeId": nodeID})
		return
	}
	h.writeJSON(w, http.StatusAccepted, st)
}

func (h *Handler) handleDeleteSelection(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := hm.ClearSelection(); err != nil {
		h.writeEngineError(w, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, hm.Selection())
}

// originChecker accepts requests without an Origin header (non-browser
// clients), origins whose host matches the request host, and origins in
// allowed. Comparison is case-insensitive on scheme and host.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(o), "/"))
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

const (
	eventsWriteWait  = 10 * time.Second
	eventsPingPeriod = 30 * time.Second
)

// handleSessionEvents streams selection changes over a websocket. The current
// state is sent first so a client never misses where the panel stands.
func (h *Handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id, hm, ok := h.session(w, r)
	if !ok {
		return
	}
	bufSize := 16
	if v, err := strconv.Atoi(r.URL.Query().Get("buffer")); err == nil && v > 0 && v <= 256 {
		bufSize = v
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	updates, unsubscribe := hm.Subscribe(bufSize)
	defer unsubscribe()

	// The read side only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(st mapengine.SelectionState) error {
		_ = ws.SetWriteDeadline(time.Now().Add(eventsWriteWait))
		return ws.WriteJSON(st)
	}
	if err := send(hm.Selection()); err != nil {
		return
	}

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case st, open := <-updates:
			if !open {
				_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"), time.Now().Add(eventsWriteWait))
				return
			}
			if err := send(st); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		}
	}
}
