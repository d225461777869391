package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"healthmap/core-go/internal/access"
	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/mapengine"
)

type layersResponse struct {
	Variant  mapengine.Variant  `json:"variant"`
	ViewMode mapengine.ViewMode `json:"viewMode"`
	Layers   []mapengine.Layer  `json:"layers"`
}

// configRequest is the wire form of the host configuration. The appointment
// is referenced by id and resolved against the current dataset.
type configRequest struct {
	Variant        string             `json:"variant"`
	ViewMode       string             `json:"viewMode"`
	Toggles        *mapengine.Toggles `json:"toggles,omitempty"`
	SelectedAreaID string             `json:"selectedAreaId,omitempty"`
	AppointmentID  string             `json:"appointmentId,omitempty"`
}

type configError struct {
	status  int
	code    string
	msg     string
	details map[string]any
}

func (e *configError) Error() string { return e.msg }

func (h *Handler) resolveConfig(req configRequest) (mapengine.Config, error) {
	variant, ok := mapengine.ParseVariant(req.Variant)
	if !ok {
		return mapengine.Config{}, &configError{http.StatusBadRequest, "validation_failed", "invalid variant", map[string]any{"variant": req.Variant}}
	}
	mode, ok := mapengine.ParseViewMode(req.ViewMode)
	if !ok {
		return mapengine.Config{}, &configError{http.StatusBadRequest, "validation_failed", "invalid viewMode", map[string]any{"viewMode": req.ViewMode}}
	}

	cfg := mapengine.Config{
		Variant:        variant,
		ViewMode:       mode,
		SelectedAreaID: strings.TrimSpace(req.SelectedAreaID),
	}
	if req.Toggles != nil {
		cfg.Toggles = *req.Toggles
	}

	data := h.snapshot()
	if cfg.SelectedAreaID != "" {
		if _, ok := data.ServiceArea(cfg.SelectedAreaID); !ok {
			return mapengine.Config{}, &configError{http.StatusNotFound, "not_found", "service area not found", map[string]any{"selectedAreaId": cfg.SelectedAreaID}}
		}
	}
	if id := strings.TrimSpace(req.AppointmentID); id != "" {
		appt, ok := data.Appointment(id)
		if !ok {
			return mapengine.Config{}, &configError{http.StatusNotFound, "not_found", "appointment not found", map[string]any{"appointmentId": id}}
		}
		cfg.ActiveAppointment = &appt
	}
	return cfg, nil
}

func (h *Handler) writeConfigError(w http.ResponseWriter, err error) {
	var ce *configError
	if errors.As(err, &ce) {
		h.writeError(w, ce.status, ce.code, ce.msg, ce.details)
		return
	}
	h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid configuration", map[string]any{"error": err.Error()})
}

func (h *Handler) snapshot() *domain.Dataset {
	if h.opts.Data == nil {
		return &domain.Dataset{}
	}
	if d := h.opts.Data.Snapshot(); d != nil {
		return d
	}
	return &domain.Dataset{}
}

// handleGetLayers composes a layer set without a session. It is what a
// stateless client or an export job uses.
func (h *Handler) handleGetLayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	traffic, err := parseBoolParam(q.Get("traffic"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid traffic", map[string]any{"error": err.Error()})
		return
	}

	cfg, err := h.resolveConfig(configRequest{
		Variant:        q.Get("variant"),
		ViewMode:       q.Get("viewMode"),
		Toggles:        &mapengine.Toggles{Traffic: traffic},
		SelectedAreaID: q.Get("selectedAreaId"),
		AppointmentID:  q.Get("appointmentId"),
	})
	if err != nil {
		h.writeConfigError(w, err)
		return
	}
	if !h.allow(w, r, access.PermissionForVariant(string(cfg.Variant))) {
		return
	}

	ls := mapengine.SelectLayers(h.snapshot(), mapengine.Request{
		Variant:        cfg.Variant,
		ViewMode:       cfg.ViewMode,
		Toggles:        cfg.Toggles,
		SelectedAreaID: cfg.SelectedAreaID,
		Journey:        cfg.ActiveAppointment,
	})
	layers := ls.Ordered()
	if layers == nil {
		layers = []mapengine.Layer{}
	}
	h.writeJSON(w, http.StatusOK, layersResponse{
		Variant:  cfg.Variant,
		ViewMode: cfg.ViewMode,
		Layers:   layers,
	})
}

func parseBoolParam(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.New("invalid value")
	}
	return b, nil
}
