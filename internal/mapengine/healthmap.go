package mapengine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/geolocate"
	"healthmap/core-go/internal/metrics"
)

const (
	// LocateZoom is the zoom applied after a successful device locate.
	LocateZoom          = 14
	DefaultFitPaddingPx = 40
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrNotSelectable = errors.New("node is not selectable in this variant")
)

// DataSource hands out the current immutable dataset snapshot.
type DataSource interface {
	Snapshot() *domain.Dataset
}

// Config is the host surface's input to the map.
type Config struct {
	Variant           Variant             `json:"variant"`
	ViewMode          ViewMode            `json:"viewMode"`
	Toggles           Toggles             `json:"toggles"`
	SelectedAreaID    string              `json:"selectedAreaId,omitempty"`
	ActiveAppointment *domain.Appointment `json:"activeAppointment,omitempty"`
}

type Options struct {
	Data           DataSource
	Insight        InsightSource
	Locator        geolocate.Provider
	Tiles          TileSource
	InsightTimeout time.Duration
	FitPaddingPx   int
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// HealthMap is the host-facing map component. All methods are safe for
// concurrent use; mutations are serialised so a render is never interleaved
// with another.
type HealthMap struct {
	data      DataSource
	tiles     TileSource
	padding   int
	log       zerolog.Logger
	metrics   *metrics.Metrics
	selection *SelectionController

	mu      sync.Mutex
	session *Session
	cfg     Config
}

func New(opts Options) *HealthMap {
	if opts.FitPaddingPx <= 0 {
		opts.FitPaddingPx = DefaultFitPaddingPx
	}
	return &HealthMap{
		data:    opts.Data,
		tiles:   opts.Tiles,
		padding: opts.FitPaddingPx,
		log:     opts.Logger,
		metrics: opts.Metrics,
		selection: NewSelectionController(opts.Insight, SelectionOptions{
			Timeout: opts.InsightTimeout,
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
		}),
		session: NewSession(opts.Locator),
		cfg:     Config{Variant: VariantStandard, ViewMode: ViewStandard},
	}
}

func (h *HealthMap) snapshot() *domain.Dataset {
	if h.data == nil {
		return &domain.Dataset{}
	}
	if d := h.data.Snapshot(); d != nil {
		return d
	}
	return &domain.Dataset{}
}

// Mount initialises the session on vp and draws the current configuration.
func (h *HealthMap) Mount(vp Viewport, center geo.Point, zoom int, scrollZoom bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.session.Initialize(vp, InitOptions{
		Center:     center,
		Zoom:       zoom,
		ScrollZoom: scrollZoom,
		Tiles:      h.tiles,
	}); err != nil {
		return err
	}
	return h.renderLocked()
}

// Unmount tears the session down and drops the selection. The map can be
// mounted again afterwards.
func (h *HealthMap) Unmount() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selection.Clear()
	h.session.Teardown()
}

// Close unmounts and stops the selection controller for good.
func (h *HealthMap) Close() {
	h.Unmount()
	h.selection.Close()
}

func (h *HealthMap) Config() Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// Configure applies a new host configuration and redraws. Changing the
// variant clears the selection. A newly selected service area is recentred
// on, and a newly active appointment is framed.
func (h *HealthMap) Configure(cfg Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cfg.Variant == "" {
		cfg.Variant = VariantStandard
	}
	if cfg.ViewMode == "" {
		cfg.ViewMode = ViewStandard
	}
	prev := h.cfg
	h.cfg = cfg

	if prev.Variant != cfg.Variant {
		h.selection.Clear()
	}
	if err := h.renderLocked(); err != nil {
		return err
	}

	data := h.snapshot()
	if cfg.SelectedAreaID != "" && cfg.SelectedAreaID != prev.SelectedAreaID {
		if a, ok := data.ServiceArea(cfg.SelectedAreaID); ok {
			if err := h.session.PanTo(a.Position); err != nil {
				return err
			}
		}
	}
	if a := cfg.ActiveAppointment; a != nil && (prev.ActiveAppointment == nil || prev.ActiveAppointment.ID != a.ID) {
		if err := h.session.FitBounds([]geo.Point{a.PatientLocation, a.Doctor.Position}, h.padding); err != nil {
			return err
		}
	}
	return nil
}

// Refresh redraws from the latest dataset snapshot.
func (h *HealthMap) Refresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renderLocked()
}

func (h *HealthMap) request(data *domain.Dataset) Request {
	req := Request{
		Variant:        h.cfg.Variant,
		ViewMode:       h.cfg.ViewMode,
		Toggles:        h.cfg.Toggles,
		SelectedAreaID: h.cfg.SelectedAreaID,
		Journey:        h.cfg.ActiveAppointment,
	}
	if st := h.selection.State(); st.Node != nil {
		req.Selection = &SelectionRef{Type: st.Node.Type, ID: st.Node.ID}
	}
	return req
}

func (h *HealthMap) renderLocked() error {
	if !h.session.Initialized() {
		return nil
	}
	data := h.snapshot()
	n, err := h.session.Render(SelectLayers(data, h.request(data)))
	if err != nil {
		return err
	}
	h.metrics.ObserveRender(string(h.cfg.Variant), n)
	return nil
}

func selectableType(t domain.NodeType) bool {
	switch t {
	case domain.NodeFacility, domain.NodeIncident, domain.NodePatient:
		return true
	default:
		return false
	}
}

// Select opens the detail panel for a node. It follows the same gating as
// marker clicks: observe-only variants and transports are rejected.
func (h *HealthMap) Select(t domain.NodeType, id string) (SelectionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !panelClickable(h.cfg.Variant) || !selectableType(t) {
		return h.selection.State(), ErrNotSelectable
	}
	data := h.snapshot()
	n, ok := data.Node(t, id)
	if !ok {
		return h.selection.State(), ErrNodeNotFound
	}
	if h.selection.Select(n, data.RelatedNodes(n)) {
		if err := h.renderLocked(); err != nil {
			return h.selection.State(), err
		}
	}
	return h.selection.State(), nil
}

func (h *HealthMap) ClearSelection() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selection.Clear()
	return h.renderLocked()
}

func (h *HealthMap) Selection() SelectionState {
	return h.selection.State()
}

// Subscribe streams selection changes to the surrounding panel.
func (h *HealthMap) Subscribe(buffer int) (<-chan SelectionState, func()) {
	return h.selection.Subscribe(buffer)
}

// WaitSelection blocks until the in-flight insight request, if any, settles.
func (h *HealthMap) WaitSelection() {
	h.selection.Wait()
}

type LocateResult struct {
	Located  bool       `json:"located"`
	Position *geo.Point `json:"position,omitempty"`
}

// Locate centres the map on the device and drops a transient marker that
// lasts until the next redraw. A denied or failed lookup changes nothing and
// is not an error. locator overrides the session's provider when non-nil.
func (h *HealthMap) Locate(ctx context.Context, locator geolocate.Provider) (LocateResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.session.Initialized() {
		return LocateResult{}, ErrNotInitialized
	}
	if locator != nil {
		prev := h.session.WithLocator(locator)
		defer h.session.WithLocator(prev)
	}

	p, err := h.session.LocateDevice(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("device locate failed")
		return LocateResult{}, nil
	}
	if err := h.session.SetView(p, LocateZoom); err != nil {
		return LocateResult{}, err
	}
	marker := Layer{Kind: LayerDeviceLocation, Shapes: []Shape{RenderDeviceLocation(uuid.NewString(), p)}}
	if _, err := h.session.AddOverlay(marker); err != nil {
		return LocateResult{}, err
	}
	return LocateResult{Located: true, Position: &p}, nil
}

type SearchResult struct {
	Matched  bool             `json:"matched"`
	Facility *domain.Facility `json:"facility,omitempty"`
}

// SearchFacility pans to the first facility whose name contains query,
// ignoring case. No match, or an empty query, is a no-op.
func (h *HealthMap) SearchFacility(query string) (SearchResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return SearchResult{}, nil
	}
	for _, f := range h.snapshot().Facilities {
		if !strings.Contains(strings.ToLower(f.Name), q) {
			continue
		}
		if err := h.session.PanTo(f.Position); err != nil {
			return SearchResult{}, err
		}
		return SearchResult{Matched: true, Facility: &f}, nil
	}
	return SearchResult{}, nil
}

// Zoom applies an integer step and returns the resulting zoom.
func (h *HealthMap) Zoom(delta int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.ZoomBy(delta)
}

type View struct {
	Config    Config         `json:"config"`
	Mounted   bool           `json:"mounted"`
	Viewport  *ViewportState `json:"viewport,omitempty"`
	Selection SelectionState `json:"selection"`
}

type snapshotter interface {
	Snapshot() ViewportState
}

func (h *HealthMap) View() View {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := View{
		Config:    h.cfg,
		Mounted:   h.session.Initialized(),
		Selection: h.selection.State(),
	}
	if s, ok := h.session.Viewport().(snapshotter); ok {
		st := s.Snapshot()
		v.Viewport = &st
	}
	return v
}
