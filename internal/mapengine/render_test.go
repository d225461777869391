package mapengine

import (
	"testing"

	"healthmap/core-go/internal/domain"
)

func TestClickGating_ObserveOnlyVariants(t *testing.T) {
	d := fixture()
	for _, v := range []Variant{VariantDashboard, VariantOptimizer, VariantJourney} {
		for _, f := range d.Facilities {
			if s := RenderFacility(f, v, d.PrimaryHubID); s.Click != nil {
				t.Fatalf("%s: expected facility %s to be inert, got %+v", v, f.ID, s.Click)
			}
		}
		for _, i := range d.Incidents {
			if s := RenderIncident(i, v); s.Click != nil {
				t.Fatalf("%s: expected incident %s to be inert, got %+v", v, i.ID, s.Click)
			}
		}
	}

	for _, v := range []Variant{VariantStandard, VariantLineage, VariantOperations} {
		s := RenderFacility(d.Facilities[1], v, d.PrimaryHubID)
		if s.Click == nil || s.Click.Kind != ClickOpenPanel || s.Click.NodeID != "f1" {
			t.Fatalf("%s: expected facility to open the panel, got %+v", v, s.Click)
		}
		s = RenderIncident(d.Incidents[0], v)
		if s.Click == nil || s.Click.Kind != ClickOpenPanel || s.Click.NodeType != domain.NodeIncident {
			t.Fatalf("%s: expected incident to open the panel, got %+v", v, s.Click)
		}
	}
}

func TestClickGating_ComposedLayers(t *testing.T) {
	d := fixture()
	ap := d.Appointments[0]
	for _, v := range []Variant{VariantDashboard, VariantOptimizer, VariantJourney} {
		ls := SelectLayers(d, Request{Variant: v, Journey: &ap})
		for _, l := range ls.Layers {
			for _, s := range l.Shapes {
				if s.Click != nil && s.Click.Kind == ClickOpenPanel {
					t.Fatalf("%s: shape %s opens the panel", v, s.ID)
				}
			}
		}
	}
}

func TestRenderFacility_Styling(t *testing.T) {
	d := fixture()
	hub := RenderFacility(d.Facilities[0], VariantStandard, d.PrimaryHubID)
	hospital := RenderFacility(d.Facilities[1], VariantStandard, d.PrimaryHubID)
	pharmacy := RenderFacility(d.Facilities[2], VariantStandard, d.PrimaryHubID)

	if hospital.RadiusPx <= pharmacy.RadiusPx {
		t.Fatalf("expected hospitals to be drawn larger: %v vs %v", hospital.RadiusPx, pharmacy.RadiusPx)
	}
	if hub.Style.Weight <= pharmacy.Style.Weight {
		t.Fatalf("expected the primary hub to have a heavier border")
	}
	if hospital.Popup == nil || hospital.Popup.Title != "Lagos General Hospital" {
		t.Fatalf("expected popup titled with the facility name, got %+v", hospital.Popup)
	}
}

func TestIncidentRadius_ScalesWithCases(t *testing.T) {
	if got := IncidentRadius(0); got != 6 {
		t.Fatalf("expected base radius 6, got %v", got)
	}
	if got := IncidentRadius(45); got != 9 {
		t.Fatalf("expected 6+45/15 = 9, got %v", got)
	}
	if got := IncidentRadius(7); got <= 6 || got >= 7 {
		t.Fatalf("expected a continuous radius between 6 and 7, got %v", got)
	}
}

func TestRenderTransport_StatusColorAndPopupOnly(t *testing.T) {
	cases := map[domain.VehicleStatus]string{
		domain.VehicleEnRoute:     colorBlue,
		domain.VehicleAvailable:   colorGreen,
		domain.VehicleMaintenance: colorGray,
	}
	for status, want := range cases {
		s := RenderTransport(domain.TransportVehicle{ID: "t", Plate: "X", Status: status})
		if s.Style.Color != want {
			t.Fatalf("%s: expected %s, got %s", status, want, s.Style.Color)
		}
		if s.Click == nil || s.Click.Kind != ClickOpenPopup {
			t.Fatalf("%s: expected transports to open a popup, got %+v", status, s.Click)
		}
	}
}

func TestRenderServiceArea_TierColor(t *testing.T) {
	d := fixture()
	want := []string{colorGreen, colorAmber, colorRed}
	for i, a := range d.ServiceAreas {
		s := RenderServiceArea(a, false)
		if s.Style.Color != want[i] {
			t.Fatalf("area %s score %d: expected %s, got %s", a.ID, a.EfficiencyScore, want[i], s.Style.Color)
		}
		if s.Kind != ShapeCircle || s.RadiusMeters != a.RadiusMeters {
			t.Fatalf("expected a ground circle of %v m, got %+v", a.RadiusMeters, s)
		}
	}
	plain := RenderServiceArea(d.ServiceAreas[0], false)
	selected := RenderServiceArea(d.ServiceAreas[0], true)
	if selected.Style.Weight <= plain.Style.Weight {
		t.Fatalf("expected the selected area to be emphasised")
	}
}

func TestRenderJourney(t *testing.T) {
	ap := fixture().Appointments[0]
	shapes := RenderJourney(ap)
	if len(shapes) != 4 {
		t.Fatalf("expected outcome circle, route, destination and patient, got %d shapes", len(shapes))
	}
	if shapes[0].ID != "journey:outcome" || shapes[0].RadiusMeters != 1750 {
		t.Fatalf("expected outcome circle of 1750 m, got %+v", shapes[0])
	}
	for _, s := range shapes {
		if s.Click != nil {
			t.Fatalf("expected journey shapes to be inert, got %+v", s)
		}
	}

	ap.Outcome = nil
	if got := len(RenderJourney(ap)); got != 3 {
		t.Fatalf("expected no outcome circle without metrics, got %d shapes", got)
	}
}
