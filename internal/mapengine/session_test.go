package mapengine

import (
	"context"
	"errors"
	"testing"

	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/geolocate"
)

var lagos = geo.Point{Lat: 6.5244, Lng: 3.3792}

func mountedSession(t *testing.T) (*Session, *MemoryViewport) {
	t.Helper()
	vp := NewMemoryViewport(1024, 768)
	s := NewSession(geolocate.Static{Position: lagos})
	if err := s.Initialize(vp, InitOptions{Center: lagos, Zoom: 12, Tiles: TileSource{URLTemplate: "https://tiles.example/{z}/{x}/{y}.png"}}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return s, vp
}

func TestSession_InitializeTwiceFails(t *testing.T) {
	s, vp := mountedSession(t)
	if err := s.Initialize(vp, InitOptions{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	s.Teardown()
	if vp.Snapshot().Base != nil {
		t.Fatalf("expected teardown to remove the base layer")
	}
	if err := s.Initialize(vp, InitOptions{Zoom: 10}); err != nil {
		t.Fatalf("expected re-initialise after teardown to work, got %v", err)
	}
}

func TestSession_SecondSessionOnSameViewportFails(t *testing.T) {
	first, vp := mountedSession(t)
	if _, err := first.AddOverlay(Layer{Kind: LayerFacilities}); err != nil {
		t.Fatalf("add overlay: %v", err)
	}

	second := NewSession(nil)
	if err := second.Initialize(vp, InitOptions{Zoom: 5}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if second.Initialized() {
		t.Fatalf("rejected session must stay uninitialised")
	}

	st := vp.Snapshot()
	if st.Zoom != 12 || st.Base == nil || len(st.Overlays) != 1 {
		t.Fatalf("first session's viewport was disturbed: %+v", st)
	}

	first.Teardown()
	if err := second.Initialize(vp, InitOptions{Zoom: 5}); err != nil {
		t.Fatalf("expected initialise once the base layer is gone, got %v", err)
	}
}

func TestSession_OperationsRequireInitialize(t *testing.T) {
	s := NewSession(nil)
	if _, err := s.Render(LayerSet{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from Render, got %v", err)
	}
	if _, err := s.ZoomBy(1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from ZoomBy, got %v", err)
	}
	if err := s.PanTo(lagos); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from PanTo, got %v", err)
	}
	s.ClearOverlays()
	s.Teardown()
}

func TestSession_RenderOrdersLayersRegardlessOfInput(t *testing.T) {
	s, vp := mountedSession(t)
	shuffled := LayerSet{Layers: []Layer{
		{Kind: LayerJourney},
		{Kind: LayerIncidents},
		{Kind: LayerTraffic},
		{Kind: LayerSelection},
		{Kind: LayerFacilities},
		{Kind: LayerServiceAreas},
		{Kind: LayerSupplyEdges},
		{Kind: LayerTransports},
	}}

	n, err := s.Render(shuffled)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if n != len(shuffled.Layers) {
		t.Fatalf("expected %d layers added, got %d", len(shuffled.Layers), n)
	}

	snap := vp.Snapshot()
	if snap.Base == nil {
		t.Fatalf("expected base tiles to stay below the overlays")
	}
	for i := 1; i < len(snap.Overlays); i++ {
		if snap.Overlays[i-1].Kind > snap.Overlays[i].Kind {
			t.Fatalf("overlay %s drawn above %s", snap.Overlays[i-1].Kind, snap.Overlays[i].Kind)
		}
	}
	if top := snap.Overlays[len(snap.Overlays)-1].Kind; top != LayerJourney {
		t.Fatalf("expected journey on top, got %s", top)
	}
	if shuffled.Layers[0].Kind != LayerJourney {
		t.Fatalf("expected render not to reorder the caller's layer set")
	}
}

func TestSession_RenderReplacesPreviousOverlays(t *testing.T) {
	s, vp := mountedSession(t)
	if _, err := s.Render(LayerSet{Layers: []Layer{{Kind: LayerFacilities}, {Kind: LayerIncidents}}}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := s.Render(LayerSet{Layers: []Layer{{Kind: LayerTransports}}}); err != nil {
		t.Fatalf("render: %v", err)
	}
	snap := vp.Snapshot()
	if len(snap.Overlays) != 1 || snap.Overlays[0].Kind != LayerTransports {
		t.Fatalf("expected only the transport layer, got %+v", snap.Overlays)
	}
}

func TestSession_ClearOverlaysIsIdempotent(t *testing.T) {
	s, vp := mountedSession(t)

	s.ClearOverlays()
	if snap := vp.Snapshot(); snap.Base == nil || len(snap.Overlays) != 0 {
		t.Fatalf("expected only the base layer on an empty map, got %+v", snap)
	}

	if _, err := s.Render(LayerSet{Layers: []Layer{{Kind: LayerFacilities}}}); err != nil {
		t.Fatalf("render: %v", err)
	}
	for i := 0; i < 2; i++ {
		s.ClearOverlays()
		snap := vp.Snapshot()
		if snap.Base == nil || len(snap.Overlays) != 0 {
			t.Fatalf("clear #%d: expected exactly the base layer, got %+v", i+1, snap)
		}
	}
}

func TestSession_ZoomClampsToNativeLimits(t *testing.T) {
	s, _ := mountedSession(t)
	if z, _ := s.ZoomBy(1); z != 13 {
		t.Fatalf("expected zoom 13, got %d", z)
	}
	if z, _ := s.ZoomBy(100); z != DefaultMaxZoom {
		t.Fatalf("expected zoom clamped to %d, got %d", DefaultMaxZoom, z)
	}
	if z, _ := s.ZoomBy(-100); z != DefaultMinZoom {
		t.Fatalf("expected zoom clamped to %d, got %d", DefaultMinZoom, z)
	}
}

func TestSession_FitBounds(t *testing.T) {
	s, vp := mountedSession(t)
	abuja := geo.Point{Lat: 9.0765, Lng: 7.3986}

	if err := s.FitBounds([]geo.Point{lagos, abuja}, 40); err != nil {
		t.Fatalf("fit bounds: %v", err)
	}
	snap := vp.Snapshot()
	want := geo.Midpoint(lagos, abuja)
	if snap.Center != want {
		t.Fatalf("expected center %v, got %v", want, snap.Center)
	}
	// about 447 km by 284 km into 944x688 px
	if snap.Zoom != 8 {
		t.Fatalf("expected zoom 8, got %d", snap.Zoom)
	}

	if err := s.FitBounds([]geo.Point{lagos}, 40); err != nil {
		t.Fatalf("fit single point: %v", err)
	}
	if z := vp.Zoom(); z != DefaultMaxZoom {
		t.Fatalf("expected a single point to fit at max zoom, got %d", z)
	}

	before := vp.Snapshot()
	if err := s.FitBounds(nil, 40); err != nil {
		t.Fatalf("fit empty: %v", err)
	}
	if after := vp.Snapshot(); after.Center != before.Center || after.Zoom != before.Zoom {
		t.Fatalf("expected empty fit to leave the view alone")
	}
}

func TestSession_LocateDevice(t *testing.T) {
	s, _ := mountedSession(t)
	p, err := s.LocateDevice(context.Background())
	if err != nil || p != lagos {
		t.Fatalf("expected %v, got %v (%v)", lagos, p, err)
	}

	s.WithLocator(geolocate.Denied{})
	_, err = s.LocateDevice(context.Background())
	if !errors.Is(err, ErrGeolocationDenied) || !errors.Is(err, geolocate.ErrPermissionDenied) {
		t.Fatalf("expected ErrGeolocationDenied wrapping the cause, got %v", err)
	}
}
