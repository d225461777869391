package sqlcgen

import "time"

type Facility struct {
	ID             string
	Name           string
	Type           string
	Lat            float64
	Lng            float64
	Status         string
	Capacity       *int32
	StorageLevel   *int32
	ConnectedHubID *string
	IsPrimaryHub   bool
}

type Doctor struct {
	ID         string
	Name       string
	Specialty  string
	FacilityID string
}

type InventoryItem struct {
	ID         string
	Name       string
	LocationID string
	Quantity   int32
}

type Transport struct {
	ID             string
	Type           string
	Plate          string
	Status         string
	Lat            float64
	Lng            float64
	CurrentPayload *string
	DriverName     *string
	DestinationID  *string
}

type TransportMaintenanceLog struct {
	TransportID string
	LoggedOn    time.Time
	Note        string
}

type TransportPosition struct {
	ID        string
	Lat       float64
	Lng       float64
	Status    string
	UpdatedAt time.Time
}

type Incident struct {
	ID         string
	Severity   string
	Lat        float64
	Lng        float64
	Cases      int32
	OriginID   *string
	TaxonomyID *string
}

type Patient struct {
	ID               string
	Name             string
	Lat              float64
	Lng              float64
	AssignedDoctorID *string
	IncidentID       *string
}

type ServiceArea struct {
	ID                    string
	Name                  string
	Lat                   float64
	Lng                   float64
	RadiusMeters          float64
	EfficiencyScore       int32
	PopulationServed      int32
	CriticalIncidentCount int32
	AvgResponseTimeMin    float64
}

type TrafficSegment struct {
	ID         string
	Congestion string
	// Path is a JSON array of {"lat","lng"} objects.
	Path []byte
}

type Appointment struct {
	ID              string
	PatientID       string
	PatientLat      float64
	PatientLng      float64
	DoctorID        string
	DoctorName      string
	DoctorLat       float64
	DoctorLng       float64
	DistanceKm      *float64
	TravelTimeMin   *float64
	HealthGainScore *float64
}
