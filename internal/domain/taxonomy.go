package domain

import "strings"

type FacilityType string

const (
	FacilityHospital  FacilityType = "hospital"
	FacilityPharmacy  FacilityType = "pharmacy"
	FacilityLogistics FacilityType = "logistics"
	FacilityHub       FacilityType = "hub"
)

var facilityTypes = []FacilityType{FacilityHospital, FacilityPharmacy, FacilityLogistics, FacilityHub}

type VehicleType string

const (
	VehicleAmbulance      VehicleType = "ambulance"
	VehicleLogisticsTruck VehicleType = "logistics-truck"
	VehicleRapidResponse  VehicleType = "rapid-response"
)

var vehicleTypes = []VehicleType{VehicleAmbulance, VehicleLogisticsTruck, VehicleRapidResponse}

type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleEnRoute     VehicleStatus = "en-route"
	VehicleMaintenance VehicleStatus = "maintenance"
)

var vehicleStatuses = []VehicleStatus{VehicleAvailable, VehicleEnRoute, VehicleMaintenance}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

type Congestion string

const (
	CongestionFree     Congestion = "free"
	CongestionModerate Congestion = "moderate"
	CongestionHeavy    Congestion = "heavy"
)

var congestionLevels = []Congestion{CongestionFree, CongestionModerate, CongestionHeavy}

func FacilityTypes() []FacilityType {
	out := make([]FacilityType, len(facilityTypes))
	copy(out, facilityTypes)
	return out
}

func IsValidFacilityType(t FacilityType) bool {
	return contains(facilityTypes, FacilityType(normalize(string(t))))
}

func IsValidVehicleType(t VehicleType) bool {
	return contains(vehicleTypes, VehicleType(normalize(string(t))))
}

func IsValidVehicleStatus(s VehicleStatus) bool {
	return contains(vehicleStatuses, VehicleStatus(normalize(string(s))))
}

func IsValidSeverity(s Severity) bool {
	return contains(severities, Severity(normalize(string(s))))
}

func IsValidCongestion(c Congestion) bool {
	return contains(congestionLevels, Congestion(normalize(string(c))))
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func contains[T comparable](all []T, v T) bool {
	for _, candidate := range all {
		if candidate == v {
			return true
		}
	}
	return false
}
