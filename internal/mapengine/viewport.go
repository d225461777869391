package mapengine

import (
	"fmt"
	"math"
	"sync"

	"healthmap/core-go/internal/geo"
)

// TileSource is the base-map tile collaborator's configuration.
type TileSource struct {
	URLTemplate string `json:"urlTemplate"`
	Attribution string `json:"attribution"`
}

type LayerHandle string

// Viewport is the boundary between the session controller and whatever
// actually draws the map. Overlays are stacked in the order they are added.
type Viewport interface {
	SetView(center geo.Point, zoom int)
	Center() geo.Point
	Zoom() int
	// SetZoom applies the viewport's native limits and returns the zoom it
	// actually settled on.
	SetZoom(zoom int) int
	SetScrollZoom(enabled bool)
	FitBounds(b geo.Bounds, paddingPx int)
	AddBaseLayer(src TileSource) LayerHandle
	// HasBaseLayer reports whether a base layer is currently mounted.
	HasBaseLayer() bool
	AddLayer(l Layer) LayerHandle
	RemoveLayer(h LayerHandle)
	// Overlays lists every non-base layer, bottom to top.
	Overlays() []LayerHandle
}

const (
	DefaultMinZoom = 2
	DefaultMaxZoom = 19
	tileSizePx     = 256
)

// ViewportState is a point-in-time copy of a MemoryViewport.
type ViewportState struct {
	Center     geo.Point   `json:"center"`
	Zoom       int         `json:"zoom"`
	ScrollZoom bool        `json:"scrollZoom"`
	Base       *TileSource `json:"base,omitempty"`
	Overlays   []Layer     `json:"overlays"`
}

type mountedLayer struct {
	handle LayerHandle
	layer  Layer
}

// MemoryViewport keeps the map in process. It is what the HTTP API
// serialises for the browser client.
type MemoryViewport struct {
	mu sync.Mutex

	minZoom, maxZoom int
	widthPx          int
	heightPx         int

	center     geo.Point
	zoom       int
	scrollZoom bool
	base       *TileSource
	baseHandle LayerHandle
	overlays   []mountedLayer
	seq        int
}

// NewMemoryViewport returns a viewport with the given pixel size. Non-positive
// sizes fall back to 1024x768.
func NewMemoryViewport(widthPx, heightPx int) *MemoryViewport {
	if widthPx <= 0 {
		widthPx = 1024
	}
	if heightPx <= 0 {
		heightPx = 768
	}
	return &MemoryViewport{
		minZoom:  DefaultMinZoom,
		maxZoom:  DefaultMaxZoom,
		widthPx:  widthPx,
		heightPx: heightPx,
		zoom:     DefaultMinZoom,
	}
}

func (v *MemoryViewport) clamp(zoom int) int {
	if zoom < v.minZoom {
		return v.minZoom
	}
	if zoom > v.maxZoom {
		return v.maxZoom
	}
	return zoom
}

func (v *MemoryViewport) SetView(center geo.Point, zoom int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center = center
	v.zoom = v.clamp(zoom)
}

func (v *MemoryViewport) Center() geo.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

func (v *MemoryViewport) Zoom() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

func (v *MemoryViewport) SetZoom(zoom int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoom = v.clamp(zoom)
	return v.zoom
}

func (v *MemoryViewport) SetScrollZoom(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollZoom = enabled
}

func (v *MemoryViewport) FitBounds(b geo.Bounds, paddingPx int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center = b.Center()
	v.zoom = v.fitZoom(b, paddingPx)
}

// fitZoom finds the largest zoom at which b fits inside the viewport minus
// padding, measured in web-mercator pixels.
func (v *MemoryViewport) fitZoom(b geo.Bounds, paddingPx int) int {
	w := float64(v.widthPx - 2*paddingPx)
	h := float64(v.heightPx - 2*paddingPx)
	if w <= 0 || h <= 0 {
		return v.minZoom
	}

	x0, y0 := mercator(b.SouthWest)
	x1, y1 := mercator(b.NorthEast)
	dx, dy := math.Abs(x1-x0), math.Abs(y1-y0)

	zoom := v.maxZoom
	if dx > 0 {
		zoom = min(zoom, int(math.Floor(math.Log2(w/(dx*tileSizePx)))))
	}
	if dy > 0 {
		zoom = min(zoom, int(math.Floor(math.Log2(h/(dy*tileSizePx)))))
	}
	return v.clamp(zoom)
}

// mercator projects p onto the unit square.
func mercator(p geo.Point) (x, y float64) {
	lat := math.Max(-85.05112878, math.Min(85.05112878, p.Lat))
	sin := math.Sin(lat * math.Pi / 180)
	x = (p.Lng + 180) / 360
	y = 0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)
	return x, y
}

func (v *MemoryViewport) nextHandle(prefix string) LayerHandle {
	v.seq++
	return LayerHandle(fmt.Sprintf("%s-%d", prefix, v.seq))
}

func (v *MemoryViewport) AddBaseLayer(src TileSource) LayerHandle {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := src
	v.base = &s
	v.baseHandle = v.nextHandle("base")
	return v.baseHandle
}

func (v *MemoryViewport) HasBaseLayer() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.base != nil
}

func (v *MemoryViewport) AddLayer(l Layer) LayerHandle {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.nextHandle(l.Kind.String())
	v.overlays = append(v.overlays, mountedLayer{handle: h, layer: l})
	return h
}

// RemoveLayer removes an overlay or the base layer. Unknown handles are ignored.
func (v *MemoryViewport) RemoveLayer(h LayerHandle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if h != "" && h == v.baseHandle {
		v.base = nil
		v.baseHandle = ""
		return
	}
	for i, m := range v.overlays {
		if m.handle == h {
			v.overlays = append(v.overlays[:i], v.overlays[i+1:]...)
			return
		}
	}
}

func (v *MemoryViewport) Overlays() []LayerHandle {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]LayerHandle, len(v.overlays))
	for i, m := range v.overlays {
		out[i] = m.handle
	}
	return out
}

func (v *MemoryViewport) Snapshot() ViewportState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := ViewportState{
		Center:     v.center,
		Zoom:       v.zoom,
		ScrollZoom: v.scrollZoom,
		Overlays:   make([]Layer, len(v.overlays)),
	}
	if v.base != nil {
		b := *v.base
		st.Base = &b
	}
	for i, m := range v.overlays {
		st.Overlays[i] = m.layer
	}
	return st
}
