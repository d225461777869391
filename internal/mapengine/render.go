package mapengine

import (
	"fmt"
	"strconv"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
)

const (
	hospitalRadiusPx     = 12
	facilityRadiusPx     = 8
	incidentBaseRadiusPx = 6
	patientRadiusPx      = 5
	selectionRadiusPx    = 20
	deviceRadiusPx       = 7
)

const (
	colorBlue   = "#3b82f6"
	colorGreen  = "#22c55e"
	colorAmber  = "#f59e0b"
	colorRed    = "#ef4444"
	colorGray   = "#94a3b8"
	colorPurple = "#8b5cf6"
	colorTeal   = "#14b8a6"
	colorDark   = "#7f1d1d"
)

var facilityColors = map[domain.FacilityType]string{
	domain.FacilityHospital:  colorRed,
	domain.FacilityPharmacy:  colorGreen,
	domain.FacilityLogistics: colorAmber,
	domain.FacilityHub:       colorPurple,
}

var severityColors = map[domain.Severity]string{
	domain.SeverityLow:      colorAmber,
	domain.SeverityMedium:   "#f97316",
	domain.SeverityHigh:     colorRed,
	domain.SeverityCritical: colorDark,
}

var congestionColors = map[domain.Congestion]string{
	domain.CongestionFree:     colorGreen,
	domain.CongestionModerate: colorAmber,
	domain.CongestionHeavy:    colorRed,
}

var tierColors = map[EfficiencyTier]string{
	TierGreen: colorGreen,
	TierAmber: colorAmber,
	TierRed:   colorRed,
}

// panelClickable is the single click-gating rule for facility, incident and
// patient markers. Dashboard, optimizer and journey are observe-only.
func panelClickable(v Variant) bool {
	switch v {
	case VariantDashboard, VariantOptimizer, VariantJourney:
		return false
	default:
		return true
	}
}

func panelClick(v Variant, t domain.NodeType, id string) *ClickAction {
	if !panelClickable(v) {
		return nil
	}
	return &ClickAction{Kind: ClickOpenPanel, NodeType: t, NodeID: id}
}

func popupFor(n domain.Node) *Popup {
	return &Popup{Title: n.Label, Lines: n.Facts}
}

func RenderFacility(f domain.Facility, v Variant, primaryHubID string) Shape {
	radius := float64(facilityRadiusPx)
	if f.Type == domain.FacilityHospital {
		radius = hospitalRadiusPx
	}
	weight := 2.0
	if f.ID == primaryHubID {
		weight = 4
	}
	color, ok := facilityColors[f.Type]
	if !ok {
		color = colorGray
	}
	return Shape{
		ID:       "facility:" + f.ID,
		Kind:     ShapeCircleMarker,
		Position: pointPtr(f.Position),
		RadiusPx: radius,
		Style: Style{
			Color:       "#ffffff",
			FillColor:   color,
			Weight:      weight,
			Opacity:     1,
			FillOpacity: 0.9,
		},
		Label: f.Name,
		Popup: popupFor(domain.FacilityNode(f)),
		Click: panelClick(v, domain.NodeFacility, f.ID),
	}
}

// IncidentRadius grows continuously with the case count.
func IncidentRadius(cases int) float64 {
	if cases < 0 {
		cases = 0
	}
	return incidentBaseRadiusPx + float64(cases)/15
}

func RenderIncident(i domain.Incident, v Variant) Shape {
	color, ok := severityColors[i.Severity]
	if !ok {
		color = colorGray
	}
	return Shape{
		ID:       "incident:" + i.ID,
		Kind:     ShapeCircleMarker,
		Position: pointPtr(i.Position),
		RadiusPx: IncidentRadius(i.Cases),
		Style: Style{
			Color:       color,
			FillColor:   color,
			Weight:      1,
			Opacity:     0.9,
			FillOpacity: 0.5,
		},
		Label: fmt.Sprintf("%d cases", i.Cases),
		Popup: popupFor(domain.IncidentNode(i)),
		Click: panelClick(v, domain.NodeIncident, i.ID),
	}
}

// TransportColor encodes vehicle status in exactly three states.
func TransportColor(s domain.VehicleStatus) string {
	switch s {
	case domain.VehicleEnRoute:
		return colorBlue
	case domain.VehicleAvailable:
		return colorGreen
	default:
		return colorGray
	}
}

// RenderTransport always opens a popup. Vehicles are inspected in the
// operations table, never in the detail panel.
func RenderTransport(t domain.TransportVehicle) Shape {
	lines := []domain.Fact{
		{Label: "Type", Value: string(t.Type)},
		{Label: "Status", Value: string(t.Status)},
	}
	if t.DriverName != nil {
		lines = append(lines, domain.Fact{Label: "Driver", Value: *t.DriverName})
	}
	if t.CurrentPayload != nil {
		lines = append(lines, domain.Fact{Label: "Payload", Value: *t.CurrentPayload})
	}
	if n := len(t.MaintenanceLogs); n > 0 {
		lines = append(lines, domain.Fact{Label: "Last maintenance", Value: t.MaintenanceLogs[n-1].Date})
	}
	return Shape{
		ID:       "transport:" + t.ID,
		Kind:     ShapeMarker,
		Position: pointPtr(t.Position),
		Style: Style{
			Color: TransportColor(t.Status),
			Icon:  string(t.Type),
		},
		Label: t.Plate,
		Popup: &Popup{Title: t.Plate, Lines: lines},
		Click: &ClickAction{Kind: ClickOpenPopup, NodeType: domain.NodeTransport, NodeID: t.ID},
	}
}

func RenderPatient(p domain.Patient, v Variant) Shape {
	n := domain.PatientNode(p)
	return Shape{
		ID:       "patient:" + p.ID,
		Kind:     ShapeCircleMarker,
		Position: pointPtr(p.Position),
		RadiusPx: patientRadiusPx,
		Style: Style{
			Color:       colorTeal,
			FillColor:   colorTeal,
			Weight:      1,
			Opacity:     1,
			FillOpacity: 0.8,
		},
		Label: n.Label,
		Popup: popupFor(n),
		Click: panelClick(v, domain.NodePatient, p.ID),
	}
}

// RenderServiceArea draws the area on the ground in meters. Service areas
// only appear in the optimizer, so they never open the panel.
func RenderServiceArea(a domain.ServiceArea, selected bool) Shape {
	color := tierColors[TierFor(a.EfficiencyScore)]
	style := Style{
		Color:       color,
		FillColor:   color,
		Weight:      1,
		Opacity:     0.8,
		FillOpacity: 0.2,
	}
	if selected {
		style.Weight = 4
		style.Opacity = 1
		style.FillOpacity = 0.35
	}
	return Shape{
		ID:           "area:" + a.ID,
		Kind:         ShapeCircle,
		Position:     pointPtr(a.Position),
		RadiusMeters: a.RadiusMeters,
		Style:        style,
		Label:        a.Name,
		Popup:        popupFor(domain.ServiceAreaNode(a)),
	}
}

func RenderSupplyEdge(e SupplyEdge) Shape {
	return Shape{
		ID:    e.ID,
		Kind:  ShapePolyline,
		Path:  []geo.Point{e.Path[0], e.Path[1]},
		Style: Style{Color: colorPurple, Weight: 2, Opacity: 0.7, Dashed: true},
		Label: e.Label,
	}
}

var lineageColors = map[LineageKind]string{
	LineageSupply:   colorPurple,
	LineageCare:     colorTeal,
	LineageExposure: colorRed,
}

func RenderLineageEdge(e LineageEdge) Shape {
	return Shape{
		ID:    e.ID,
		Kind:  ShapePolyline,
		Path:  []geo.Point{e.Path[0], e.Path[1]},
		Style: Style{Color: lineageColors[e.Kind], Weight: 2, Opacity: 0.6},
		Label: string(e.Kind),
	}
}

func RenderTraffic(s domain.TrafficSegment) Shape {
	color, ok := congestionColors[s.Congestion]
	if !ok {
		color = colorGray
	}
	return Shape{
		ID:    "traffic:" + s.ID,
		Kind:  ShapePolyline,
		Path:  append([]geo.Point(nil), s.Path...),
		Style: Style{Color: color, Weight: 5, Opacity: 0.6},
		Label: string(s.Congestion),
	}
}

// RenderJourney returns the outcome circle (when metrics are present), the
// straight route line, the destination marker and the patient marker.
func RenderJourney(a domain.Appointment) []Shape {
	var shapes []Shape
	from, to := a.PatientLocation, a.Doctor.Position

	if a.Outcome != nil {
		shapes = append(shapes, Shape{
			ID:           "journey:outcome",
			Kind:         ShapeCircle,
			Position:     pointPtr(geo.Midpoint(from, to)),
			RadiusMeters: a.Outcome.DistanceKm * 1000 / 2,
			Style: Style{
				Color:       colorBlue,
				FillColor:   colorBlue,
				Weight:      1,
				Opacity:     0.5,
				FillOpacity: 0.08,
				Dashed:      true,
			},
			Popup: &Popup{Title: "Predicted outcome", Lines: []domain.Fact{
				{Label: "Distance", Value: strconv.FormatFloat(a.Outcome.DistanceKm, 'f', 1, 64) + " km"},
				{Label: "Travel time", Value: strconv.FormatFloat(a.Outcome.TravelTimeMin, 'f', 0, 64) + " min"},
				{Label: "Health gain", Value: strconv.FormatFloat(a.Outcome.HealthGainScore, 'f', 1, 64)},
			}},
		})
	}

	shapes = append(shapes,
		Shape{
			ID:    "journey:route",
			Kind:  ShapePolyline,
			Path:  []geo.Point{from, to},
			Style: Style{Color: colorBlue, Weight: 4, Opacity: 0.9},
			Label: fmt.Sprintf("%.1f km", geo.DistanceKm(from, to)),
		},
		Shape{
			ID:       "journey:destination",
			Kind:     ShapeMarker,
			Position: pointPtr(to),
			Style:    Style{Color: colorRed, Icon: "doctor"},
			Label:    a.Doctor.Name,
			Popup:    &Popup{Title: a.Doctor.Name},
		},
		Shape{
			ID:       "journey:patient",
			Kind:     ShapeMarker,
			Position: pointPtr(from),
			Style:    Style{Color: colorBlue, Icon: "patient"},
			Label:    "You",
		},
	)
	return shapes
}

func RenderSelectionRing(n domain.Node) Shape {
	return Shape{
		ID:       "selection:" + n.Key(),
		Kind:     ShapeCircleMarker,
		Position: pointPtr(n.Position),
		RadiusPx: selectionRadiusPx,
		Style:    Style{Color: colorBlue, Weight: 3, Opacity: 1, Dashed: true},
		Label:    n.Label,
	}
}

func RenderDeviceLocation(id string, p geo.Point) Shape {
	return Shape{
		ID:       "device:" + id,
		Kind:     ShapeCircleMarker,
		Position: pointPtr(p),
		RadiusPx: deviceRadiusPx,
		Style: Style{
			Color:       "#ffffff",
			FillColor:   colorBlue,
			Weight:      2,
			Opacity:     1,
			FillOpacity: 1,
		},
		Label: "You are here",
	}
}
