package mapengine

import (
	"reflect"
	"testing"
	"testing/quick"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
)

func strPtr(s string) *string { return &s }

func fixture() *domain.Dataset {
	return &domain.Dataset{
		PrimaryHubID: "hub",
		Facilities: []domain.Facility{
			{ID: "hub", Name: "Central Logistics Hub", Type: domain.FacilityHub, Position: geo.Point{Lat: 6.50, Lng: 3.40}, ConnectedHubID: strPtr("hub")},
			{ID: "f1", Name: "Lagos General Hospital", Type: domain.FacilityHospital, Position: geo.Point{Lat: 6.60, Lng: 3.30}, ConnectedHubID: strPtr("hub")},
			{ID: "f2", Name: "Ikoyi Pharmacy", Type: domain.FacilityPharmacy, Position: geo.Point{Lat: 6.45, Lng: 3.43}, ConnectedHubID: strPtr("hub")},
			{ID: "f3", Name: "Island Clinic Hospital", Type: domain.FacilityHospital, Position: geo.Point{Lat: 6.44, Lng: 3.42}},
		},
		Doctors: []domain.Doctor{
			{ID: "d1", Name: "Dr. Ade", Specialty: "Cardiology", FacilityID: "f1"},
		},
		Inventory: []domain.InventoryItem{
			{ID: "i1", Name: "Insulin", LocationID: "hub", Quantity: 40},
			{ID: "i2", Name: "Amoxicillin", LocationID: "hub", Quantity: 120},
			{ID: "i3", Name: "Saline", LocationID: "hub", Quantity: 300},
		},
		Transports: []domain.TransportVehicle{
			{ID: "t1", Type: domain.VehicleAmbulance, Plate: "LAG-101", Status: domain.VehicleEnRoute, Position: geo.Point{Lat: 6.52, Lng: 3.38}},
			{ID: "t2", Type: domain.VehicleLogisticsTruck, Plate: "LAG-202", Status: domain.VehicleMaintenance, Position: geo.Point{Lat: 6.51, Lng: 3.39}},
		},
		Incidents: []domain.Incident{
			{ID: "inc1", Severity: domain.SeverityHigh, Position: geo.Point{Lat: 6.55, Lng: 3.35}, Cases: 45},
			{ID: "inc2", Severity: domain.SeverityLow, Position: geo.Point{Lat: 6.56, Lng: 3.36}, Cases: 3, OriginID: strPtr("inc1")},
		},
		Patients: []domain.Patient{
			{ID: "p1", Name: "Chi", Position: geo.Point{Lat: 6.57, Lng: 3.31}, AssignedDoctorID: strPtr("d1"), IncidentID: strPtr("inc1")},
		},
		ServiceAreas: []domain.ServiceArea{
			{ID: "a1", Name: "Ikeja", Position: geo.Point{Lat: 6.60, Lng: 3.35}, RadiusMeters: 3000, EfficiencyScore: 92},
			{ID: "a2", Name: "Surulere", Position: geo.Point{Lat: 6.50, Lng: 3.35}, RadiusMeters: 2500, EfficiencyScore: 80},
			{ID: "a3", Name: "Epe", Position: geo.Point{Lat: 6.58, Lng: 3.98}, RadiusMeters: 5000, EfficiencyScore: 61},
		},
		TrafficSegments: []domain.TrafficSegment{
			{ID: "s1", Congestion: domain.CongestionHeavy, Path: []geo.Point{{Lat: 6.5, Lng: 3.3}, {Lat: 6.6, Lng: 3.4}}},
		},
		Appointments: []domain.Appointment{
			{
				ID:              "ap1",
				PatientID:       "p1",
				PatientLocation: geo.Point{Lat: 6.57, Lng: 3.31},
				Doctor:          domain.JourneyDoctor{ID: "d1", Name: "Dr. Ade", Position: geo.Point{Lat: 6.60, Lng: 3.30}},
				Outcome:         &domain.OutcomeMetrics{DistanceKm: 3.5, TravelTimeMin: 12, HealthGainScore: 8.2},
			},
		},
	}
}

func kinds(ls LayerSet) map[LayerKind]bool {
	out := make(map[LayerKind]bool)
	for _, l := range ls.Layers {
		out[l.Kind] = true
	}
	return out
}

func assertKinds(t *testing.T, ls LayerSet, want ...LayerKind) {
	t.Helper()
	got := kinds(ls)
	if len(got) != len(want) {
		t.Fatalf("expected layers %v, got %v", want, ls.Kinds())
	}
	for _, k := range want {
		if !got[k] {
			t.Fatalf("expected layer %s in %v", k, ls.Kinds())
		}
	}
}

func TestSelectLayers_VariantCompositions(t *testing.T) {
	d := fixture()
	ap := d.Appointments[0]

	assertKinds(t, SelectLayers(d, Request{Variant: VariantStandard}), LayerFacilities, LayerIncidents, LayerSupplyEdges)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantStandard, Toggles: Toggles{Traffic: true}}),
		LayerFacilities, LayerIncidents, LayerSupplyEdges, LayerTraffic)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantDashboard, Toggles: Toggles{Traffic: true}}),
		LayerFacilities, LayerIncidents, LayerSupplyEdges, LayerTraffic)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantOperations}), LayerFacilities, LayerTransports, LayerSupplyEdges)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantLineage}), LayerFacilities, LayerPatients, LayerLineage, LayerSupplyEdges)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantOptimizer}), LayerServiceAreas, LayerFacilities)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantJourney, Journey: &ap, Toggles: Toggles{Traffic: true}}), LayerJourney)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantJourney}))
}

func TestSelectLayers_ViewModeOnlyConsultedForStandard(t *testing.T) {
	d := fixture()

	assertKinds(t, SelectLayers(d, Request{Variant: VariantStandard, ViewMode: ViewOps}),
		LayerFacilities, LayerTransports, LayerSupplyEdges)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantStandard, ViewMode: ViewLineage}),
		LayerFacilities, LayerPatients, LayerLineage, LayerSupplyEdges)

	// variant wins over view mode
	assertKinds(t, SelectLayers(d, Request{Variant: VariantDashboard, ViewMode: ViewLineage}),
		LayerFacilities, LayerIncidents, LayerSupplyEdges)
	assertKinds(t, SelectLayers(d, Request{Variant: VariantOptimizer, ViewMode: ViewOps}),
		LayerServiceAreas, LayerFacilities)
}

func TestSelectLayers_OptimizerShowsHospitalsOnly(t *testing.T) {
	ls := SelectLayers(fixture(), Request{Variant: VariantOptimizer})
	l, ok := ls.Layer(LayerFacilities)
	if !ok {
		t.Fatalf("expected facility layer")
	}
	if len(l.Shapes) != 2 {
		t.Fatalf("expected two hospitals, got %d", len(l.Shapes))
	}
	for _, s := range l.Shapes {
		if s.ID != "facility:f1" && s.ID != "facility:f3" {
			t.Fatalf("unexpected facility %s in optimizer", s.ID)
		}
	}
}

func TestSelectLayers_SelectionRing(t *testing.T) {
	d := fixture()
	ls := SelectLayers(d, Request{Variant: VariantStandard, Selection: &SelectionRef{Type: domain.NodeFacility, ID: "f1"}})
	l, ok := ls.Layer(LayerSelection)
	if !ok || len(l.Shapes) != 1 || l.Shapes[0].ID != "selection:facility:f1" {
		t.Fatalf("expected selection ring around f1, got %+v", l)
	}

	ls = SelectLayers(d, Request{Variant: VariantStandard, Selection: &SelectionRef{Type: domain.NodeFacility, ID: "missing"}})
	if _, ok := ls.Layer(LayerSelection); ok {
		t.Fatalf("expected no ring for an unknown node")
	}
}

func TestSelectLayers_IsPure(t *testing.T) {
	d := fixture()
	variants := []Variant{VariantStandard, VariantLineage, VariantDashboard, VariantOperations, VariantOptimizer, VariantJourney, ""}
	modes := []ViewMode{ViewStandard, ViewLineage, ViewOps, ""}
	selections := []*SelectionRef{
		nil,
		{Type: domain.NodeFacility, ID: "f1"},
		{Type: domain.NodeIncident, ID: "inc2"},
		{Type: domain.NodePatient, ID: "nobody"},
	}
	areas := []string{"", "a1", "a3"}

	property := func(v, m, sel, area uint8, traffic, journey bool) bool {
		req := Request{
			Variant:        variants[int(v)%len(variants)],
			ViewMode:       modes[int(m)%len(modes)],
			Toggles:        Toggles{Traffic: traffic},
			Selection:      selections[int(sel)%len(selections)],
			SelectedAreaID: areas[int(area)%len(areas)],
		}
		if journey {
			ap := d.Appointments[0]
			req.Journey = &ap
		}
		first := SelectLayers(d, req)
		second := SelectLayers(d, req)
		return reflect.DeepEqual(first, second)
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatalf("composition is not deterministic: %v", err)
	}
}

func TestSupplyEdges_ExcludesHubSelfEdge(t *testing.T) {
	edges := SupplyEdges(fixture())
	if len(edges) != 2 {
		t.Fatalf("expected exactly two edges, got %+v", edges)
	}
	for _, e := range edges {
		if e.From != "hub" {
			t.Fatalf("expected edges to start at the hub, got %+v", e)
		}
		if e.To == "hub" {
			t.Fatalf("expected no hub self edge")
		}
	}
	if edges[0].Label != "Insulin, Amoxicillin…" {
		t.Fatalf("expected truncated inventory label, got %q", edges[0].Label)
	}
}

func TestSupplyEdges_StandardVariantEndToEnd(t *testing.T) {
	d := &domain.Dataset{
		PrimaryHubID: "hub",
		Facilities: []domain.Facility{
			{ID: "f1", Name: "Clinic", Type: domain.FacilityHospital, ConnectedHubID: strPtr("hub")},
			{ID: "hub", Name: "Hub", Type: domain.FacilityHub},
		},
	}
	ls := SelectLayers(d, Request{Variant: VariantStandard})
	l, ok := ls.Layer(LayerSupplyEdges)
	if !ok {
		t.Fatalf("expected supply edge layer")
	}
	if len(l.Shapes) != 1 || l.Shapes[0].ID != "supply:hub:f1" {
		t.Fatalf("expected exactly hub->f1, got %+v", l.Shapes)
	}
	if !l.Shapes[0].Style.Dashed {
		t.Fatalf("expected supply edges to be dashed")
	}
}

func TestSupplyLabel(t *testing.T) {
	cases := []struct {
		items []domain.InventoryItem
		want  string
	}{
		{nil, ""},
		{[]domain.InventoryItem{{Name: "Gauze"}}, "Gauze"},
		{[]domain.InventoryItem{{Name: "Gauze"}, {Name: "Masks"}}, "Gauze, Masks"},
		{[]domain.InventoryItem{{Name: "Gauze"}, {Name: "Masks"}, {Name: "Saline"}}, "Gauze, Masks…"},
	}
	for _, tc := range cases {
		if got := supplyLabel(tc.items); got != tc.want {
			t.Fatalf("supplyLabel(%v): expected %q, got %q", tc.items, tc.want, got)
		}
	}
}

func TestLineageEdges(t *testing.T) {
	edges := LineageEdges(fixture())
	want := map[string]bool{
		"lineage:supply:hub:f1":    false,
		"lineage:supply:hub:f2":    false,
		"lineage:care:p1:f1":       false,
		"lineage:exposure:inc1:p1": false,
	}
	for _, e := range edges {
		if _, ok := want[e.ID]; !ok {
			t.Fatalf("unexpected lineage edge %s", e.ID)
		}
		want[e.ID] = true
	}
	for id, seen := range want {
		if !seen {
			t.Fatalf("missing lineage edge %s", id)
		}
	}
}

func TestTierFor(t *testing.T) {
	cases := map[int]EfficiencyTier{
		100: TierGreen,
		90:  TierGreen,
		89:  TierAmber,
		75:  TierAmber,
		74:  TierRed,
		0:   TierRed,
	}
	for score, want := range cases {
		if got := TierFor(score); got != want {
			t.Fatalf("TierFor(%d): expected %s, got %s", score, want, got)
		}
	}
}

func TestParseVariantAndViewMode(t *testing.T) {
	if v, ok := ParseVariant(" Optimizer "); !ok || v != VariantOptimizer {
		t.Fatalf("expected optimizer, got %q %v", v, ok)
	}
	if v, ok := ParseVariant(""); !ok || v != VariantStandard {
		t.Fatalf("expected empty variant to default to standard")
	}
	if _, ok := ParseVariant("satellite"); ok {
		t.Fatalf("expected unknown variant to be rejected")
	}
	if m, ok := ParseViewMode("OPS"); !ok || m != ViewOps {
		t.Fatalf("expected ops, got %q %v", m, ok)
	}
	if _, ok := ParseViewMode("heatmap"); ok {
		t.Fatalf("expected unknown view mode to be rejected")
	}
}
