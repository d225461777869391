package mapengine

import (
	"fmt"
	"strings"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
)

type Variant string

const (
	VariantStandard   Variant = "standard"
	VariantLineage    Variant = "lineage"
	VariantDashboard  Variant = "dashboard"
	VariantOperations Variant = "operations"
	VariantOptimizer  Variant = "optimizer"
	VariantJourney    Variant = "journey"
)

// ViewMode is only consulted when the variant is VariantStandard.
type ViewMode string

const (
	ViewStandard ViewMode = "standard"
	ViewLineage  ViewMode = "lineage"
	ViewOps      ViewMode = "ops"
)

func ParseVariant(raw string) (Variant, bool) {
	v := Variant(strings.ToLower(strings.TrimSpace(raw)))
	switch v {
	case "":
		return VariantStandard, true
	case VariantStandard, VariantLineage, VariantDashboard, VariantOperations, VariantOptimizer, VariantJourney:
		return v, true
	default:
		return "", false
	}
}

func ParseViewMode(raw string) (ViewMode, bool) {
	m := ViewMode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case "":
		return ViewStandard, true
	case ViewStandard, ViewLineage, ViewOps:
		return m, true
	default:
		return "", false
	}
}

type Toggles struct {
	Traffic bool `json:"traffic"`
}

// SelectionRef points at the node currently shown in the detail panel.
type SelectionRef struct {
	Type domain.NodeType `json:"type"`
	ID   string          `json:"id"`
}

// Request is the complete input of SelectLayers besides the dataset.
type Request struct {
	Variant        Variant
	ViewMode       ViewMode
	Toggles        Toggles
	Selection      *SelectionRef
	SelectedAreaID string
	Journey        *domain.Appointment
}

type composition int

const (
	compGlance composition = iota
	compOps
	compLineage
	compOptimizer
	compJourney
)

// resolve applies the tie-break rule: the variant wins, and the view mode is
// only looked at for the standard variant.
func resolve(v Variant, m ViewMode) composition {
	switch v {
	case VariantJourney:
		return compJourney
	case VariantOptimizer:
		return compOptimizer
	case VariantOperations:
		return compOps
	case VariantLineage:
		return compLineage
	case VariantDashboard:
		return compGlance
	}
	switch m {
	case ViewLineage:
		return compLineage
	case ViewOps:
		return compOps
	default:
		return compGlance
	}
}

// SelectLayers is the composition policy. It is a pure function of its
// inputs: the same dataset and request always produce the same LayerSet.
func SelectLayers(data *domain.Dataset, req Request) LayerSet {
	variant := req.Variant
	if variant == "" {
		variant = VariantStandard
	}
	comp := resolve(variant, req.ViewMode)

	if comp == compJourney {
		if req.Journey == nil {
			return LayerSet{Layers: []Layer{}}
		}
		return LayerSet{Layers: []Layer{{Kind: LayerJourney, Shapes: RenderJourney(*req.Journey)}}}
	}
	if data == nil {
		data = &domain.Dataset{}
	}

	var layers []Layer
	switch comp {
	case compOptimizer:
		layers = append(layers,
			serviceAreaLayer(data, req.SelectedAreaID),
			facilityLayer(data, variant, func(f domain.Facility) bool { return f.Type == domain.FacilityHospital }),
		)
	case compOps:
		layers = append(layers,
			facilityLayer(data, variant, nil),
			transportLayer(data),
			supplyEdgeLayer(data),
		)
	case compLineage:
		layers = append(layers,
			facilityLayer(data, variant, nil),
			patientLayer(data, variant),
			lineageLayer(data),
			supplyEdgeLayer(data),
		)
	default:
		layers = append(layers,
			facilityLayer(data, variant, nil),
			incidentLayer(data, variant),
			supplyEdgeLayer(data),
		)
		if req.Toggles.Traffic {
			layers = append(layers, trafficLayer(data))
		}
	}

	if req.Selection != nil {
		if n, ok := data.Node(req.Selection.Type, req.Selection.ID); ok {
			layers = append(layers, Layer{Kind: LayerSelection, Shapes: []Shape{RenderSelectionRing(n)}})
		}
	}

	return LayerSet{Layers: layers}
}

func facilityLayer(data *domain.Dataset, v Variant, keep func(domain.Facility) bool) Layer {
	shapes := make([]Shape, 0, len(data.Facilities))
	for _, f := range data.Facilities {
		if keep != nil && !keep(f) {
			continue
		}
		shapes = append(shapes, RenderFacility(f, v, data.PrimaryHubID))
	}
	return Layer{Kind: LayerFacilities, Shapes: shapes}
}

func incidentLayer(data *domain.Dataset, v Variant) Layer {
	shapes := make([]Shape, 0, len(data.Incidents))
	for _, i := range data.Incidents {
		shapes = append(shapes, RenderIncident(i, v))
	}
	return Layer{Kind: LayerIncidents, Shapes: shapes}
}

func transportLayer(data *domain.Dataset) Layer {
	shapes := make([]Shape, 0, len(data.Transports))
	for _, t := range data.Transports {
		shapes = append(shapes, RenderTransport(t))
	}
	return Layer{Kind: LayerTransports, Shapes: shapes}
}

func patientLayer(data *domain.Dataset, v Variant) Layer {
	shapes := make([]Shape, 0, len(data.Patients))
	for _, p := range data.Patients {
		shapes = append(shapes, RenderPatient(p, v))
	}
	return Layer{Kind: LayerPatients, Shapes: shapes}
}

func serviceAreaLayer(data *domain.Dataset, selectedAreaID string) Layer {
	shapes := make([]Shape, 0, len(data.ServiceAreas))
	for _, a := range data.ServiceAreas {
		shapes = append(shapes, RenderServiceArea(a, a.ID == selectedAreaID))
	}
	return Layer{Kind: LayerServiceAreas, Shapes: shapes}
}

func trafficLayer(data *domain.Dataset) Layer {
	shapes := make([]Shape, 0, len(data.TrafficSegments))
	for _, s := range data.TrafficSegments {
		if len(s.Path) < 2 {
			continue
		}
		shapes = append(shapes, RenderTraffic(s))
	}
	return Layer{Kind: LayerTraffic, Shapes: shapes}
}

func supplyEdgeLayer(data *domain.Dataset) Layer {
	edges := SupplyEdges(data)
	shapes := make([]Shape, 0, len(edges))
	for _, e := range edges {
		shapes = append(shapes, RenderSupplyEdge(e))
	}
	return Layer{Kind: LayerSupplyEdges, Shapes: shapes}
}

func lineageLayer(data *domain.Dataset) Layer {
	edges := LineageEdges(data)
	shapes := make([]Shape, 0, len(edges))
	for _, e := range edges {
		shapes = append(shapes, RenderLineageEdge(e))
	}
	return Layer{Kind: LayerLineage, Shapes: shapes}
}

// supplyLabelItems is how many hub inventory names a supply edge label shows
// before it is cut off with an ellipsis.
const supplyLabelItems = 2

type SupplyEdge struct {
	ID    string
	From  string
	To    string
	Path  [2]geo.Point
	Label string
}

// SupplyEdges draws one edge from the primary hub to every other facility
// that names it as its connected hub. The hub never gets an edge to itself.
func SupplyEdges(data *domain.Dataset) []SupplyEdge {
	if data == nil || data.PrimaryHubID == "" {
		return nil
	}
	hub, ok := data.Facility(data.PrimaryHubID)
	if !ok {
		return nil
	}
	label := supplyLabel(data.InventoryAt(hub.ID))

	var out []SupplyEdge
	for _, f := range data.Facilities {
		if f.ID == hub.ID || f.ConnectedHubID == nil || *f.ConnectedHubID != hub.ID {
			continue
		}
		out = append(out, SupplyEdge{
			ID:    fmt.Sprintf("supply:%s:%s", hub.ID, f.ID),
			From:  hub.ID,
			To:    f.ID,
			Path:  [2]geo.Point{hub.Position, f.Position},
			Label: label,
		})
	}
	return out
}

func supplyLabel(items []domain.InventoryItem) string {
	names := make([]string, 0, supplyLabelItems)
	for _, item := range items {
		if len(names) == supplyLabelItems {
			break
		}
		names = append(names, item.Name)
	}
	label := strings.Join(names, ", ")
	if len(items) > supplyLabelItems {
		label += "…"
	}
	return label
}

type LineageKind string

const (
	LineageSupply   LineageKind = "supply"
	LineageCare     LineageKind = "care"
	LineageExposure LineageKind = "exposure"
)

type LineageEdge struct {
	ID   string
	Kind LineageKind
	From string
	To   string
	Path [2]geo.Point
}

// LineageEdges derives the relationship graph of the lineage view:
// hub to facility, patient to their doctor's facility, and incident to
// patient.
func LineageEdges(data *domain.Dataset) []LineageEdge {
	if data == nil {
		return nil
	}
	var out []LineageEdge
	add := func(kind LineageKind, fromID string, from geo.Point, toID string, to geo.Point) {
		out = append(out, LineageEdge{
			ID:   fmt.Sprintf("lineage:%s:%s:%s", kind, fromID, toID),
			Kind: kind,
			From: fromID,
			To:   toID,
			Path: [2]geo.Point{from, to},
		})
	}

	for _, f := range data.Facilities {
		if f.ConnectedHubID == nil || *f.ConnectedHubID == f.ID {
			continue
		}
		if hub, ok := data.Facility(*f.ConnectedHubID); ok {
			add(LineageSupply, hub.ID, hub.Position, f.ID, f.Position)
		}
	}
	for _, p := range data.Patients {
		if p.AssignedDoctorID == nil {
			continue
		}
		doc, ok := data.Doctor(*p.AssignedDoctorID)
		if !ok {
			continue
		}
		if f, ok := data.Facility(doc.FacilityID); ok {
			add(LineageCare, p.ID, p.Position, f.ID, f.Position)
		}
	}
	for _, p := range data.Patients {
		if p.IncidentID == nil {
			continue
		}
		if i, ok := data.Incident(*p.IncidentID); ok {
			add(LineageExposure, i.ID, i.Position, p.ID, p.Position)
		}
	}
	return out
}

type EfficiencyTier string

const (
	TierGreen EfficiencyTier = "green"
	TierAmber EfficiencyTier = "amber"
	TierRed   EfficiencyTier = "red"
)

// TierFor buckets an efficiency score. Boundaries belong to the higher tier.
func TierFor(score int) EfficiencyTier {
	switch {
	case score >= 90:
		return TierGreen
	case score >= 75:
		return TierAmber
	default:
		return TierRed
	}
}
