// Package mapengine composes healthcare operations data into ordered map
// overlay layers and drives a map viewport through them. It does not talk to
// any mapping library directly: everything goes through the Viewport
// interface so the composition policy and renderers stay testable.
package mapengine

import (
	"fmt"
	"sort"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
)

// LayerKind doubles as the z-order: a higher kind is always drawn above a
// lower one, whatever order layers were handed to Render in.
type LayerKind int

const (
	LayerBase LayerKind = iota
	LayerTraffic
	LayerServiceAreas
	LayerSupplyEdges
	LayerLineage
	LayerFacilities
	LayerTransports
	LayerPatients
	LayerIncidents
	LayerDeviceLocation
	LayerSelection
	LayerJourney
)

var layerKindNames = map[LayerKind]string{
	LayerBase:           "base",
	LayerTraffic:        "traffic",
	LayerServiceAreas:   "service_areas",
	LayerSupplyEdges:    "supply_edges",
	LayerLineage:        "lineage",
	LayerFacilities:     "facilities",
	LayerTransports:     "transports",
	LayerPatients:       "patients",
	LayerIncidents:      "incidents",
	LayerDeviceLocation: "device_location",
	LayerSelection:      "selection",
	LayerJourney:        "journey",
}

func (k LayerKind) String() string {
	if name, ok := layerKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("layer(%d)", int(k))
}

func (k LayerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type ShapeKind string

const (
	// ShapeMarker is an icon pinned at a point.
	ShapeMarker ShapeKind = "marker"
	// ShapeCircleMarker has a radius in screen pixels.
	ShapeCircleMarker ShapeKind = "circle_marker"
	// ShapeCircle has a radius in meters on the ground.
	ShapeCircle   ShapeKind = "circle"
	ShapePolyline ShapeKind = "polyline"
)

type Style struct {
	Color       string  `json:"color,omitempty"`
	FillColor   string  `json:"fillColor,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
	Dashed      bool    `json:"dashed,omitempty"`
	Icon        string  `json:"icon,omitempty"`
}

type Popup struct {
	Title string        `json:"title"`
	Lines []domain.Fact `json:"lines,omitempty"`
}

type ClickKind string

const (
	ClickOpenPanel ClickKind = "open_panel"
	ClickOpenPopup ClickKind = "open_popup"
)

// ClickAction describes what a click on a shape does. A nil ClickAction
// means the shape is not clickable.
type ClickAction struct {
	Kind     ClickKind       `json:"kind"`
	NodeType domain.NodeType `json:"nodeType"`
	NodeID   string          `json:"nodeId"`
}

type Shape struct {
	ID           string       `json:"id"`
	Kind         ShapeKind    `json:"kind"`
	Position     *geo.Point   `json:"position,omitempty"`
	Path         []geo.Point  `json:"path,omitempty"`
	RadiusPx     float64      `json:"radiusPx,omitempty"`
	RadiusMeters float64      `json:"radiusMeters,omitempty"`
	Style        Style        `json:"style"`
	Label        string       `json:"label,omitempty"`
	Popup        *Popup       `json:"popup,omitempty"`
	Click        *ClickAction `json:"click,omitempty"`
}

type Layer struct {
	Kind   LayerKind `json:"kind"`
	Shapes []Shape   `json:"shapes"`
}

// LayerSet is the output of the composition policy.
type LayerSet struct {
	Layers []Layer `json:"layers"`
}

// Ordered returns the layers sorted bottom to top. Layers of the same kind
// keep their relative order.
func (ls LayerSet) Ordered() []Layer {
	out := append([]Layer(nil), ls.Layers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (ls LayerSet) Layer(kind LayerKind) (Layer, bool) {
	for _, l := range ls.Layers {
		if l.Kind == kind {
			return l, true
		}
	}
	return Layer{}, false
}

func (ls LayerSet) Kinds() []LayerKind {
	out := make([]LayerKind, 0, len(ls.Layers))
	for _, l := range ls.Layers {
		out = append(out, l.Kind)
	}
	return out
}

func pointPtr(p geo.Point) *geo.Point {
	return &p
}
