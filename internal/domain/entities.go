// Package domain defines the read-only healthcare operations entities the
// map engine consumes. Nothing in here is mutated in place: updates produce
// a new Dataset.
package domain

import "healthmap/core-go/internal/geo"

type Facility struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           FacilityType   `json:"type" yaml:"type"`
	Position       geo.Point      `json:"position" yaml:"position"`
	Status         FacilityStatus `json:"status" yaml:"status"`
	Capacity       *int           `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	StorageLevel   *int           `json:"storageLevel,omitempty" yaml:"storageLevel,omitempty"`
	ConnectedHubID *string        `json:"connectedHubId,omitempty" yaml:"connectedHubId,omitempty"`
}

type MaintenanceLog struct {
	Date string `json:"date" yaml:"date"`
	Note string `json:"note" yaml:"note"`
}

type TransportVehicle struct {
	ID              string           `json:"id" yaml:"id"`
	Type            VehicleType      `json:"type" yaml:"type"`
	Plate           string           `json:"plate" yaml:"plate"`
	Status          VehicleStatus    `json:"status" yaml:"status"`
	Position        geo.Point        `json:"position" yaml:"position"`
	CurrentPayload  *string          `json:"currentPayload,omitempty" yaml:"currentPayload,omitempty"`
	DriverName      *string          `json:"driverName,omitempty" yaml:"driverName,omitempty"`
	DestinationID   *string          `json:"destinationId,omitempty" yaml:"destinationId,omitempty"`
	MaintenanceLogs []MaintenanceLog `json:"maintenanceLogs" yaml:"maintenanceLogs"`
}

type Incident struct {
	ID         string    `json:"id" yaml:"id"`
	Severity   Severity  `json:"severity" yaml:"severity"`
	Position   geo.Point `json:"position" yaml:"position"`
	Cases      int       `json:"cases" yaml:"cases"`
	OriginID   *string   `json:"originId,omitempty" yaml:"originId,omitempty"`
	TaxonomyID *string   `json:"taxonomyId,omitempty" yaml:"taxonomyId,omitempty"`
}

type Patient struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Position         geo.Point `json:"position" yaml:"position"`
	AssignedDoctorID *string   `json:"assignedDoctorId,omitempty" yaml:"assignedDoctorId,omitempty"`
	IncidentID       *string   `json:"incidentId,omitempty" yaml:"incidentId,omitempty"`
}

type ServiceArea struct {
	ID                    string    `json:"id" yaml:"id"`
	Name                  string    `json:"name" yaml:"name"`
	Position              geo.Point `json:"position" yaml:"position"`
	RadiusMeters          float64   `json:"radiusMeters" yaml:"radiusMeters"`
	EfficiencyScore       int       `json:"efficiencyScore" yaml:"efficiencyScore"`
	PopulationServed      int       `json:"populationServed" yaml:"populationServed"`
	CriticalIncidentCount int       `json:"criticalIncidentCount" yaml:"criticalIncidentCount"`
	AvgResponseTimeMin    float64   `json:"avgResponseTimeMin" yaml:"avgResponseTimeMin"`
}

type Doctor struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Specialty  string `json:"specialty" yaml:"specialty"`
	FacilityID string `json:"facilityId" yaml:"facilityId"`
}

type InventoryItem struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	LocationID string `json:"locationId" yaml:"locationId"`
	Quantity   int    `json:"quantity" yaml:"quantity"`
}

type TrafficSegment struct {
	ID         string      `json:"id" yaml:"id"`
	Path       []geo.Point `json:"path" yaml:"path"`
	Congestion Congestion  `json:"congestion" yaml:"congestion"`
}

type OutcomeMetrics struct {
	DistanceKm      float64 `json:"distanceKm" yaml:"distanceKm"`
	TravelTimeMin   float64 `json:"travelTimeMin" yaml:"travelTimeMin"`
	HealthGainScore float64 `json:"healthGainScore" yaml:"healthGainScore"`
}

// JourneyDoctor is the destination side of a journey.
type JourneyDoctor struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Position geo.Point `json:"position" yaml:"position"`
}

// Appointment carries the journey context consumed by the journey variant.
type Appointment struct {
	ID              string          `json:"id" yaml:"id"`
	PatientID       string          `json:"patientId" yaml:"patientId"`
	PatientLocation geo.Point       `json:"patientLocation" yaml:"patientLocation"`
	Doctor          JourneyDoctor   `json:"doctor" yaml:"doctor"`
	Outcome         *OutcomeMetrics `json:"outcomeMetrics,omitempty" yaml:"outcomeMetrics,omitempty"`
}

// TransportPosition is one live telemetry sample for a vehicle.
type TransportPosition struct {
	VehicleID string
	Position  geo.Point
	Status    *VehicleStatus
}
