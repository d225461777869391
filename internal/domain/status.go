package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type FacilityStatusKind int

const (
	StatusNominal FacilityStatusKind = iota
	StatusOccupancy
	StatusEmergencyProtocol
)

// FacilityStatus is Nominal, Occupancy(pct) or EmergencyProtocol. Pct is only
// meaningful for StatusOccupancy.
type FacilityStatus struct {
	Kind FacilityStatusKind
	Pct  int
}

func Nominal() FacilityStatus           { return FacilityStatus{Kind: StatusNominal} }
func EmergencyProtocol() FacilityStatus { return FacilityStatus{Kind: StatusEmergencyProtocol} }

func Occupancy(pct int) FacilityStatus {
	return FacilityStatus{Kind: StatusOccupancy, Pct: pct}
}

// Label is the human-readable form used in popups.
func (s FacilityStatus) Label() string {
	switch s.Kind {
	case StatusOccupancy:
		return fmt.Sprintf("%d%% occupancy", s.Pct)
	case StatusEmergencyProtocol:
		return "Emergency protocol"
	default:
		return "Nominal"
	}
}

func (s FacilityStatus) MarshalText() ([]byte, error) {
	switch s.Kind {
	case StatusOccupancy:
		return []byte("occupancy:" + strconv.Itoa(s.Pct)), nil
	case StatusEmergencyProtocol:
		return []byte("emergency"), nil
	default:
		return []byte("nominal"), nil
	}
}

func (s *FacilityStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseFacilityStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseFacilityStatus accepts "nominal"/"operational", "emergency" (or
// "emergency protocol"), "occupancy:85", "85%" and "85% occupancy". An empty
// string is Nominal.
func ParseFacilityStatus(raw string) (FacilityStatus, error) {
	v := normalize(raw)
	switch v {
	case "", "nominal", "operational", "normal":
		return Nominal(), nil
	case "emergency", "emergency protocol", "emergency-protocol":
		return EmergencyProtocol(), nil
	}

	num := strings.TrimPrefix(v, "occupancy:")
	num = strings.TrimSuffix(num, " occupancy")
	num = strings.TrimSpace(strings.TrimSuffix(num, "%"))
	pct, err := strconv.Atoi(num)
	if err != nil {
		return FacilityStatus{}, fmt.Errorf("unrecognised facility status %q", raw)
	}
	if pct < 0 || pct > 100 {
		return FacilityStatus{}, fmt.Errorf("occupancy %d out of range 0-100", pct)
	}
	return Occupancy(pct), nil
}
