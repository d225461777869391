package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/sqlcgen"
)

// Queries is the subset of sqlcgen.Queries the Postgres provider reads.
type Queries interface {
	ListFacilities(ctx context.Context) ([]sqlcgen.Facility, error)
	ListDoctors(ctx context.Context) ([]sqlcgen.Doctor, error)
	ListInventoryItems(ctx context.Context) ([]sqlcgen.InventoryItem, error)
	ListTransports(ctx context.Context) ([]sqlcgen.Transport, error)
	ListMaintenanceLogs(ctx context.Context) ([]sqlcgen.TransportMaintenanceLog, error)
	ListIncidents(ctx context.Context) ([]sqlcgen.Incident, error)
	ListPatients(ctx context.Context) ([]sqlcgen.Patient, error)
	ListServiceAreas(ctx context.Context) ([]sqlcgen.ServiceArea, error)
	ListTrafficSegments(ctx context.Context) ([]sqlcgen.TrafficSegment, error)
	ListAppointments(ctx context.Context) ([]sqlcgen.Appointment, error)
}

type PostgresProvider struct {
	q Queries
}

func NewPostgresProvider(q Queries) *PostgresProvider {
	return &PostgresProvider{q: q}
}

func (p *PostgresProvider) Load(ctx context.Context) (*domain.Dataset, error) {
	var d domain.Dataset

	facilities, err := p.q.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	for _, row := range facilities {
		f, err := facilityFromRow(row)
		if err != nil {
			return nil, err
		}
		if row.IsPrimaryHub && d.PrimaryHubID == "" {
			d.PrimaryHubID = row.ID
		}
		d.Facilities = append(d.Facilities, f)
	}

	doctors, err := p.q.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	for _, row := range doctors {
		d.Doctors = append(d.Doctors, domain.Doctor{
			ID:         row.ID,
			Name:       row.Name,
			Specialty:  row.Specialty,
			FacilityID: row.FacilityID,
		})
	}

	inventory, err := p.q.ListInventoryItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	for _, row := range inventory {
		d.Inventory = append(d.Inventory, domain.InventoryItem{
			ID:         row.ID,
			Name:       row.Name,
			LocationID: row.LocationID,
			Quantity:   int(row.Quantity),
		})
	}

	logs, err := p.q.ListMaintenanceLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list maintenance logs: %w", err)
	}
	logsByVehicle := make(map[string][]domain.MaintenanceLog)
	for _, row := range logs {
		logsByVehicle[row.TransportID] = append(logsByVehicle[row.TransportID], domain.MaintenanceLog{
			Date: row.LoggedOn.Format(time.DateOnly),
			Note: row.Note,
		})
	}

	transports, err := p.q.ListTransports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transports: %w", err)
	}
	for _, row := range transports {
		entries := logsByVehicle[row.ID]
		if entries == nil {
			entries = []domain.MaintenanceLog{}
		}
		d.Transports = append(d.Transports, domain.TransportVehicle{
			ID:              row.ID,
			Type:            domain.VehicleType(row.Type),
			Plate:           row.Plate,
			Status:          domain.VehicleStatus(row.Status),
			Position:        geo.Point{Lat: row.Lat, Lng: row.Lng},
			CurrentPayload:  row.CurrentPayload,
			DriverName:      row.DriverName,
			DestinationID:   row.DestinationID,
			MaintenanceLogs: entries,
		})
	}

	incidents, err := p.q.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	for _, row := range incidents {
		d.Incidents = append(d.Incidents, domain.Incident{
			ID:         row.ID,
			Severity:   domain.Severity(row.Severity),
			Position:   geo.Point{Lat: row.Lat, Lng: row.Lng},
			Cases:      int(row.Cases),
			OriginID:   row.OriginID,
			TaxonomyID: row.TaxonomyID,
		})
	}

	patients, err := p.q.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	for _, row := range patients {
		d.Patients = append(d.Patients, domain.Patient{
			ID:               row.ID,
			Name:             row.Name,
			Position:         geo.Point{Lat: row.Lat, Lng: row.Lng},
			AssignedDoctorID: row.AssignedDoctorID,
			IncidentID:       row.IncidentID,
		})
	}

	areas, err := p.q.ListServiceAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service areas: %w", err)
	}
	for _, row := range areas {
		d.ServiceAreas = append(d.ServiceAreas, domain.ServiceArea{
			ID:                    row.ID,
			Name:                  row.Name,
			Position:              geo.Point{Lat: row.Lat, Lng: row.Lng},
			RadiusMeters:          row.RadiusMeters,
			EfficiencyScore:       int(row.EfficiencyScore),
			PopulationServed:      int(row.PopulationServed),
			CriticalIncidentCount: int(row.CriticalIncidentCount),
			AvgResponseTimeMin:    row.AvgResponseTimeMin,
		})
	}

	segments, err := p.q.ListTrafficSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list traffic segments: %w", err)
	}
	for _, row := range segments {
		var path []geo.Point
		if len(row.Path) > 0 {
			if err := json.Unmarshal(row.Path, &path); err != nil {
				return nil, fmt.Errorf("%w: traffic segment %q path: %v", domain.ErrInvalidDataset, row.ID, err)
			}
		}
		d.TrafficSegments = append(d.TrafficSegments, domain.TrafficSegment{
			ID:         row.ID,
			Path:       path,
			Congestion: domain.Congestion(row.Congestion),
		})
	}

	appointments, err := p.q.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	for _, row := range appointments {
		d.Appointments = append(d.Appointments, appointmentFromRow(row))
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func facilityFromRow(row sqlcgen.Facility) (domain.Facility, error) {
	status, err := domain.ParseFacilityStatus(row.Status)
	if err != nil {
		return domain.Facility{}, fmt.Errorf("%w: facility %q: %v", domain.ErrInvalidDataset, row.ID, err)
	}
	return domain.Facility{
		ID:             row.ID,
		Name:           row.Name,
		Type:           domain.FacilityType(row.Type),
		Position:       geo.Point{Lat: row.Lat, Lng: row.Lng},
		Status:         status,
		Capacity:       intPtr(row.Capacity),
		StorageLevel:   intPtr(row.StorageLevel),
		ConnectedHubID: row.ConnectedHubID,
	}, nil
}

func appointmentFromRow(row sqlcgen.Appointment) domain.Appointment {
	a := domain.Appointment{
		ID:              row.ID,
		PatientID:       row.PatientID,
		PatientLocation: geo.Point{Lat: row.PatientLat, Lng: row.PatientLng},
		Doctor: domain.JourneyDoctor{
			ID:       row.DoctorID,
			Name:     row.DoctorName,
			Position: geo.Point{Lat: row.DoctorLat, Lng: row.DoctorLng},
		},
	}
	// Outcome metrics are all-or-nothing; a partially scored appointment has none.
	if row.DistanceKm != nil && row.TravelTimeMin != nil && row.HealthGainScore != nil {
		a.Outcome = &domain.OutcomeMetrics{
			DistanceKm:      *row.DistanceKm,
			TravelTimeMin:   *row.TravelTimeMin,
			HealthGainScore: *row.HealthGainScore,
		}
	}
	return a
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
