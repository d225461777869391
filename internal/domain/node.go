package domain

import (
	"fmt"
	"strconv"
	"strings"

	"healthmap/core-go/internal/geo"
)

type NodeType string

const (
	NodeFacility    NodeType = "facility"
	NodeIncident    NodeType = "incident"
	NodePatient     NodeType = "patient"
	NodeDoctor      NodeType = "doctor"
	NodeServiceArea NodeType = "service_area"
	NodeTransport   NodeType = "transport"
)

func ParseNodeType(raw string) (NodeType, bool) {
	switch t := NodeType(normalize(raw)); t {
	case NodeFacility, NodeIncident, NodePatient, NodeDoctor, NodeServiceArea, NodeTransport:
		return t, true
	default:
		return "", false
	}
}

// Fact is one labelled attribute of a Node, in display order.
type Fact struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Node is the selectable, type-erased projection of an entity. It is what
// the detail panel shows and what the insight service is asked about.
type Node struct {
	Type     NodeType  `json:"type"`
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Position geo.Point `json:"position"`
	Facts    []Fact    `json:"facts,omitempty"`
}

// Key identifies a node across types.
func (n Node) Key() string {
	return string(n.Type) + ":" + n.ID
}

func FacilityNode(f Facility) Node {
	facts := []Fact{
		{Label: "Type", Value: string(f.Type)},
		{Label: "Status", Value: f.Status.Label()},
	}
	if f.Capacity != nil {
		facts = append(facts, Fact{Label: "Capacity", Value: strconv.Itoa(*f.Capacity)})
	}
	if f.StorageLevel != nil {
		facts = append(facts, Fact{Label: "Storage level", Value: strconv.Itoa(*f.StorageLevel) + "%"})
	}
	if f.ConnectedHubID != nil {
		facts = append(facts, Fact{Label: "Supplied by", Value: *f.ConnectedHubID})
	}
	return Node{Type: NodeFacility, ID: f.ID, Label: f.Name, Position: f.Position, Facts: facts}
}

func IncidentNode(i Incident) Node {
	facts := []Fact{
		{Label: "Severity", Value: string(i.Severity)},
		{Label: "Cases", Value: strconv.Itoa(i.Cases)},
	}
	if i.OriginID != nil {
		facts = append(facts, Fact{Label: "Origin", Value: *i.OriginID})
	}
	if i.TaxonomyID != nil {
		facts = append(facts, Fact{Label: "Taxonomy", Value: *i.TaxonomyID})
	}
	label := fmt.Sprintf("Incident %s (%s)", i.ID, i.Severity)
	return Node{Type: NodeIncident, ID: i.ID, Label: label, Position: i.Position, Facts: facts}
}

func PatientNode(p Patient) Node {
	var facts []Fact
	if p.AssignedDoctorID != nil {
		facts = append(facts, Fact{Label: "Assigned doctor", Value: *p.AssignedDoctorID})
	}
	if p.IncidentID != nil {
		facts = append(facts, Fact{Label: "Incident", Value: *p.IncidentID})
	}
	label := strings.TrimSpace(p.Name)
	if label == "" {
		label = "Patient " + p.ID
	}
	return Node{Type: NodePatient, ID: p.ID, Label: label, Position: p.Position, Facts: facts}
}

func DoctorNode(d Doctor, at geo.Point) Node {
	return Node{
		Type:     NodeDoctor,
		ID:       d.ID,
		Label:    d.Name,
		Position: at,
		Facts: []Fact{
			{Label: "Specialty", Value: d.Specialty},
			{Label: "Facility", Value: d.FacilityID},
		},
	}
}

func ServiceAreaNode(a ServiceArea) Node {
	return Node{
		Type:     NodeServiceArea,
		ID:       a.ID,
		Label:    a.Name,
		Position: a.Position,
		Facts: []Fact{
			{Label: "Efficiency", Value: strconv.Itoa(a.EfficiencyScore)},
			{Label: "Population served", Value: strconv.Itoa(a.PopulationServed)},
			{Label: "Critical incidents", Value: strconv.Itoa(a.CriticalIncidentCount)},
			{Label: "Avg response", Value: strconv.FormatFloat(a.AvgResponseTimeMin, 'f', 1, 64) + " min"},
		},
	}
}
