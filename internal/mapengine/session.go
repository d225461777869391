package mapengine

import (
	"context"
	"errors"
	"fmt"

	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/geolocate"
)

var (
	// ErrAlreadyInitialized is a programming error: a session owns exactly one
	// viewport until Teardown, and a viewport carries at most one base layer.
	ErrAlreadyInitialized = errors.New("map session already initialized")
	ErrNotInitialized     = errors.New("map session not initialized")
	ErrGeolocationDenied  = errors.New("geolocation denied")
)

type InitOptions struct {
	Center     geo.Point
	Zoom       int
	ScrollZoom bool
	Tiles      TileSource
}

// Session owns one viewport for the lifetime of a mounted view. It replaces
// the viewport's contents on every render but never the viewport itself.
// Session is not safe for concurrent use; HealthMap serialises access.
type Session struct {
	vp      Viewport
	base    LayerHandle
	locator geolocate.Provider
}

func NewSession(locator geolocate.Provider) *Session {
	if locator == nil {
		locator = geolocate.Denied{}
	}
	return &Session{locator: locator}
}

func (s *Session) Initialized() bool {
	return s.vp != nil
}

func (s *Session) Initialize(vp Viewport, opts InitOptions) error {
	if vp == nil {
		return errors.New("nil viewport")
	}
	if s.vp != nil || vp.HasBaseLayer() {
		return ErrAlreadyInitialized
	}
	vp.SetView(opts.Center, opts.Zoom)
	vp.SetScrollZoom(opts.ScrollZoom)
	s.base = vp.AddBaseLayer(opts.Tiles)
	s.vp = vp
	return nil
}

// Teardown removes every layer, the base included, and releases the viewport.
// Tearing down an uninitialised session does nothing.
func (s *Session) Teardown() {
	if s.vp == nil {
		return
	}
	s.ClearOverlays()
	s.vp.RemoveLayer(s.base)
	s.vp = nil
	s.base = ""
}

// ClearOverlays removes every non-base layer. It is idempotent.
func (s *Session) ClearOverlays() {
	if s.vp == nil {
		return
	}
	for _, h := range s.vp.Overlays() {
		s.vp.RemoveLayer(h)
	}
}

// Render rebuilds the overlay stack from scratch. Layers are added bottom to
// top by kind, so the resulting z-order does not depend on the order of ls.
// It returns the number of layers added.
func (s *Session) Render(ls LayerSet) (int, error) {
	if s.vp == nil {
		return 0, ErrNotInitialized
	}
	s.ClearOverlays()
	ordered := ls.Ordered()
	for _, l := range ordered {
		s.vp.AddLayer(l)
	}
	return len(ordered), nil
}

// AddOverlay adds a single layer on top of the current stack. It survives
// until the next Render.
func (s *Session) AddOverlay(l Layer) (LayerHandle, error) {
	if s.vp == nil {
		return "", ErrNotInitialized
	}
	return s.vp.AddLayer(l), nil
}

func (s *Session) ZoomBy(delta int) (int, error) {
	if s.vp == nil {
		return 0, ErrNotInitialized
	}
	return s.vp.SetZoom(s.vp.Zoom() + delta), nil
}

func (s *Session) PanTo(p geo.Point) error {
	if s.vp == nil {
		return ErrNotInitialized
	}
	s.vp.SetView(p, s.vp.Zoom())
	return nil
}

func (s *Session) SetView(p geo.Point, zoom int) error {
	if s.vp == nil {
		return ErrNotInitialized
	}
	s.vp.SetView(p, zoom)
	return nil
}

// FitBounds frames every position. An empty list leaves the view alone.
func (s *Session) FitBounds(positions []geo.Point, paddingPx int) error {
	if s.vp == nil {
		return ErrNotInitialized
	}
	b, ok := geo.BoundsOf(positions)
	if !ok {
		return nil
	}
	s.vp.FitBounds(b, paddingPx)
	return nil
}

// LocateDevice asks the geolocation collaborator for the device position.
// Any collaborator failure is reported as ErrGeolocationDenied wrapping the
// cause.
func (s *Session) LocateDevice(ctx context.Context) (geo.Point, error) {
	if s.vp == nil {
		return geo.Point{}, ErrNotInitialized
	}
	p, err := s.locator.CurrentPosition(ctx)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %w", ErrGeolocationDenied, err)
	}
	return p, nil
}

// WithLocator swaps the geolocation collaborator, returning the previous one.
func (s *Session) WithLocator(p geolocate.Provider) geolocate.Provider {
	prev := s.locator
	if p == nil {
		p = geolocate.Denied{}
	}
	s.locator = p
	return prev
}

func (s *Session) Viewport() Viewport {
	return s.vp
}
