package domain

import (
	"errors"
	"fmt"
	"strings"

	"healthmap/core-go/internal/geo"
)

var ErrInvalidDataset = errors.New("invalid dataset")

// Dataset is one immutable snapshot of everything the map draws. PrimaryHubID
// names the distinguished logistics hub that supply edges fan out from.
type Dataset struct {
	PrimaryHubID    string             `json:"primaryHubId" yaml:"primaryHubId"`
	Facilities      []Facility         `json:"facilities" yaml:"facilities"`
	Doctors         []Doctor           `json:"doctors" yaml:"doctors"`
	Inventory       []InventoryItem    `json:"inventory" yaml:"inventory"`
	Transports      []TransportVehicle `json:"transports" yaml:"transports"`
	Incidents       []Incident         `json:"incidents" yaml:"incidents"`
	Patients        []Patient          `json:"patients" yaml:"patients"`
	ServiceAreas    []ServiceArea      `json:"serviceAreas" yaml:"serviceAreas"`
	TrafficSegments []TrafficSegment   `json:"trafficSegments" yaml:"trafficSegments"`
	Appointments    []Appointment      `json:"appointments" yaml:"appointments"`
}

func (d *Dataset) Facility(id string) (Facility, bool) {
	if d == nil {
		return Facility{}, false
	}
	for _, f := range d.Facilities {
		if f.ID == id {
			return f, true
		}
	}
	return Facility{}, false
}

func (d *Dataset) Incident(id string) (Incident, bool) {
	if d == nil {
		return Incident{}, false
	}
	for _, i := range d.Incidents {
		if i.ID == id {
			return i, true
		}
	}
	return Incident{}, false
}

func (d *Dataset) Patient(id string) (Patient, bool) {
	if d == nil {
		return Patient{}, false
	}
	for _, p := range d.Patients {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}

func (d *Dataset) Doctor(id string) (Doctor, bool) {
	if d == nil {
		return Doctor{}, false
	}
	for _, doc := range d.Doctors {
		if doc.ID == id {
			return doc, true
		}
	}
	return Doctor{}, false
}

func (d *Dataset) ServiceArea(id string) (ServiceArea, bool) {
	if d == nil {
		return ServiceArea{}, false
	}
	for _, a := range d.ServiceAreas {
		if a.ID == id {
			return a, true
		}
	}
	return ServiceArea{}, false
}

func (d *Dataset) Transport(id string) (TransportVehicle, bool) {
	if d == nil {
		return TransportVehicle{}, false
	}
	for _, t := range d.Transports {
		if t.ID == id {
			return t, true
		}
	}
	return TransportVehicle{}, false
}

func (d *Dataset) Appointment(id string) (Appointment, bool) {
	if d == nil {
		return Appointment{}, false
	}
	for _, a := range d.Appointments {
		if a.ID == id {
			return a, true
		}
	}
	return Appointment{}, false
}

func (d *Dataset) DoctorsAt(facilityID string) []Doctor {
	if d == nil {
		return nil
	}
	var out []Doctor
	for _, doc := range d.Doctors {
		if doc.FacilityID == facilityID {
			out = append(out, doc)
		}
	}
	return out
}

func (d *Dataset) InventoryAt(locationID string) []InventoryItem {
	if d == nil {
		return nil
	}
	var out []InventoryItem
	for _, item := range d.Inventory {
		if item.LocationID == locationID {
			out = append(out, item)
		}
	}
	return out
}

func (d *Dataset) PatientsOfIncident(incidentID string) []Patient {
	if d == nil {
		return nil
	}
	var out []Patient
	for _, p := range d.Patients {
		if p.IncidentID != nil && *p.IncidentID == incidentID {
			out = append(out, p)
		}
	}
	return out
}

// Node resolves a node reference against the dataset.
func (d *Dataset) Node(t NodeType, id string) (Node, bool) {
	switch t {
	case NodeFacility:
		if f, ok := d.Facility(id); ok {
			return FacilityNode(f), true
		}
	case NodeIncident:
		if i, ok := d.Incident(id); ok {
			return IncidentNode(i), true
		}
	case NodePatient:
		if p, ok := d.Patient(id); ok {
			return PatientNode(p), true
		}
	case NodeServiceArea:
		if a, ok := d.ServiceArea(id); ok {
			return ServiceAreaNode(a), true
		}
	case NodeDoctor:
		if doc, ok := d.Doctor(id); ok {
			f, _ := d.Facility(doc.FacilityID)
			return DoctorNode(doc, f.Position), true
		}
	}
	return Node{}, false
}

// RelatedNodes gathers the context sent alongside a node to the insight
// service: doctors working at a facility, patients and the origin of an
// incident, the doctor and incident of a patient, hospitals inside a
// service area.
func (d *Dataset) RelatedNodes(n Node) []Node {
	if d == nil {
		return nil
	}
	var out []Node
	switch n.Type {
	case NodeFacility:
		f, _ := d.Facility(n.ID)
		for _, doc := range d.DoctorsAt(n.ID) {
			out = append(out, DoctorNode(doc, f.Position))
		}
	case NodeIncident:
		if i, ok := d.Incident(n.ID); ok && i.OriginID != nil {
			if origin, ok := d.Incident(*i.OriginID); ok {
				out = append(out, IncidentNode(origin))
			}
		}
		for _, p := range d.PatientsOfIncident(n.ID) {
			out = append(out, PatientNode(p))
		}
	case NodePatient:
		p, ok := d.Patient(n.ID)
		if !ok {
			return nil
		}
		if p.AssignedDoctorID != nil {
			if rel, ok := d.Node(NodeDoctor, *p.AssignedDoctorID); ok {
				out = append(out, rel)
			}
		}
		if p.IncidentID != nil {
			if i, ok := d.Incident(*p.IncidentID); ok {
				out = append(out, IncidentNode(i))
			}
		}
	case NodeServiceArea:
		a, ok := d.ServiceArea(n.ID)
		if !ok {
			return nil
		}
		for _, f := range d.Facilities {
			if f.Type == FacilityHospital && geo.DistanceKm(a.Position, f.Position)*1000 <= a.RadiusMeters {
				out = append(out, FacilityNode(f))
			}
		}
	}
	return out
}

// WithTransportPositions returns a copy of d with the given telemetry applied.
// d itself is left untouched; unknown vehicle ids are ignored.
func (d *Dataset) WithTransportPositions(updates []TransportPosition) *Dataset {
	if d == nil {
		return nil
	}
	byID := make(map[string]TransportPosition, len(updates))
	for _, u := range updates {
		byID[u.VehicleID] = u
	}

	next := *d
	next.Transports = make([]TransportVehicle, len(d.Transports))
	for i, t := range d.Transports {
		if u, ok := byID[t.ID]; ok {
			t.Position = u.Position
			if u.Status != nil {
				t.Status = *u.Status
			}
		}
		next.Transports[i] = t
	}
	return &next
}

// Validate checks referential integrity and value ranges. Every problem is
// reported, joined under ErrInvalidDataset.
func (d *Dataset) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil dataset", ErrInvalidDataset)
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	facilities := newIDSet("facility", add)
	for _, f := range d.Facilities {
		if !facilities.insert(f.ID) {
			continue
		}
		if !IsValidFacilityType(f.Type) {
			add("facility %q has invalid type %q", f.ID, f.Type)
		}
		if !f.Position.Valid() {
			add("facility %q has invalid position %s", f.ID, f.Position)
		}
		if f.StorageLevel != nil && (*f.StorageLevel < 0 || *f.StorageLevel > 100) {
			add("facility %q storage level %d out of range 0-100", f.ID, *f.StorageLevel)
		}
	}
	for _, f := range d.Facilities {
		if f.ConnectedHubID != nil && !facilities.has(*f.ConnectedHubID) {
			add("facility %q references unknown hub %q", f.ID, *f.ConnectedHubID)
		}
	}
	if d.PrimaryHubID != "" && !facilities.has(d.PrimaryHubID) {
		add("primary hub %q is not a known facility", d.PrimaryHubID)
	}

	doctors := newIDSet("doctor", add)
	for _, doc := range d.Doctors {
		if !doctors.insert(doc.ID) {
			continue
		}
		if !facilities.has(doc.FacilityID) {
			add("doctor %q references unknown facility %q", doc.ID, doc.FacilityID)
		}
	}

	inventory := newIDSet("inventory item", add)
	for _, item := range d.Inventory {
		if !inventory.insert(item.ID) {
			continue
		}
		if !facilities.has(item.LocationID) {
			add("inventory item %q references unknown location %q", item.ID, item.LocationID)
		}
		if item.Quantity < 0 {
			add("inventory item %q has negative quantity", item.ID)
		}
	}

	transports := newIDSet("transport", add)
	for _, t := range d.Transports {
		if !transports.insert(t.ID) {
			continue
		}
		if !IsValidVehicleType(t.Type) {
			add("transport %q has invalid type %q", t.ID, t.Type)
		}
		if !IsValidVehicleStatus(t.Status) {
			add("transport %q has invalid status %q", t.ID, t.Status)
		}
		if t.DestinationID != nil && !facilities.has(*t.DestinationID) {
			add("transport %q references unknown destination %q", t.ID, *t.DestinationID)
		}
	}

	incidentIDs := newIDSet("incident", add)
	incidents := make(map[string]Incident, len(d.Incidents))
	for _, i := range d.Incidents {
		if !incidentIDs.insert(i.ID) {
			continue
		}
		incidents[i.ID] = i
		if !IsValidSeverity(i.Severity) {
			add("incident %q has invalid severity %q", i.ID, i.Severity)
		}
		if i.Cases < 0 {
			add("incident %q has negative case count", i.ID)
		}
	}
	for _, i := range d.Incidents {
		if i.OriginID == nil {
			continue
		}
		if _, ok := incidents[*i.OriginID]; !ok {
			add("incident %q references unknown origin %q", i.ID, *i.OriginID)
			continue
		}
		if lineageCycles(i.ID, incidents) {
			add("incident %q origin chain cycles", i.ID)
		}
	}

	patients := newIDSet("patient", add)
	for _, p := range d.Patients {
		if !patients.insert(p.ID) {
			continue
		}
		if p.AssignedDoctorID != nil && !doctors.has(*p.AssignedDoctorID) {
			add("patient %q references unknown doctor %q", p.ID, *p.AssignedDoctorID)
		}
		if p.IncidentID != nil && !incidentIDs.has(*p.IncidentID) {
			add("patient %q references unknown incident %q", p.ID, *p.IncidentID)
		}
	}

	areas := newIDSet("service area", add)
	for _, a := range d.ServiceAreas {
		if !areas.insert(a.ID) {
			continue
		}
		if a.EfficiencyScore < 0 || a.EfficiencyScore > 100 {
			add("service area %q efficiency %d out of range 0-100", a.ID, a.EfficiencyScore)
		}
		if a.RadiusMeters < 0 {
			add("service area %q has negative radius", a.ID)
		}
	}

	segments := newIDSet("traffic segment", add)
	for _, s := range d.TrafficSegments {
		if !segments.insert(s.ID) {
			continue
		}
		if !IsValidCongestion(s.Congestion) {
			add("traffic segment %q has invalid congestion %q", s.ID, s.Congestion)
		}
	}

	// Appointments carry their own positions, so the patient and doctor may
	// live outside this dataset.
	appointments := newIDSet("appointment", add)
	for _, a := range d.Appointments {
		appointments.insert(a.ID)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidDataset, strings.Join(problems, "; "))
}

func lineageCycles(start string, incidents map[string]Incident) bool {
	seen := map[string]struct{}{start: {}}
	cur := incidents[start]
	for cur.OriginID != nil {
		next := *cur.OriginID
		if _, ok := seen[next]; ok {
			return true
		}
		seen[next] = struct{}{}
		n, ok := incidents[next]
		if !ok {
			return false
		}
		cur = n
	}
	return false
}

// idSet tracks the ids seen for one entity kind and reports empty or
// repeated ids.
type idSet struct {
	kind string
	seen map[string]struct{}
	add  func(format string, args ...any)
}

func newIDSet(kind string, add func(format string, args ...any)) *idSet {
	return &idSet{kind: kind, seen: make(map[string]struct{}), add: add}
}

// insert records id and reports whether it was new and non-empty.
func (s *idSet) insert(id string) bool {
	if strings.TrimSpace(id) == "" {
		s.add("%s with empty id", s.kind)
		return false
	}
	if _, dup := s.seen[id]; dup {
		s.add("duplicate %s id %q", s.kind, id)
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *idSet) has(id string) bool {
	_, ok := s.seen[id]
	return ok
}
