package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listFacilities = `-- name: ListFacilities :many
SELECT id,
       name,
       type,
       lat,
       lng,
       status,
       capacity,
       storage_level,
       connected_hub_id,
       is_primary_hub
FROM facilities
ORDER BY id ASC
`

func (q *Queries) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := q.db.Query(ctx, listFacilities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Facility
	for rows.Next() {
		var i Facility
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Type,
			&i.Lat,
			&i.Lng,
			&i.Status,
			&i.Capacity,
			&i.StorageLevel,
			&i.ConnectedHubID,
			&i.IsPrimaryHub,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listDoctors = `-- name: ListDoctors :many
SELECT id,
       name,
       specialty,
       facility_id
FROM doctors
ORDER BY id ASC
`

func (q *Queries) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := q.db.Query(ctx, listDoctors)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Doctor
	for rows.Next() {
		var i Doctor
		if err := rows.Scan(&i.ID, &i.Name, &i.Specialty, &i.FacilityID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listInventoryItems = `-- name: ListInventoryItems :many
SELECT id,
       name,
       location_id,
       quantity
FROM inventory_items
ORDER BY location_id ASC, id ASC
`

func (q *Queries) ListInventoryItems(ctx context.Context) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx, listInventoryItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryItem
	for rows.Next() {
		var i InventoryItem
		if err := rows.Scan(&i.ID, &i.Name, &i.LocationID, &i.Quantity); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listIncidents = `-- name: ListIncidents :many
SELECT id,
       severity,
       lat,
       lng,
       cases,
       origin_id,
       taxonomy_id
FROM incidents
ORDER BY id ASC
`

func (q *Queries) ListIncidents(ctx context.Context) ([]Incident, error) {
	rows, err := q.db.Query(ctx, listIncidents)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Incident
	for rows.Next() {
		var i Incident
		if err := rows.Scan(&i.ID, &i.Severity, &i.Lat, &i.Lng, &i.Cases, &i.OriginID, &i.TaxonomyID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPatients = `-- name: ListPatients :many
SELECT id,
       name,
       lat,
       lng,
       assigned_doctor_id,
       incident_id
FROM patients
ORDER BY id ASC
`

func (q *Queries) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := q.db.Query(ctx, listPatients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Patient
	for rows.Next() {
		var i Patient
		if err := rows.Scan(&i.ID, &i.Name, &i.Lat, &i.Lng, &i.AssignedDoctorID, &i.IncidentID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listServiceAreas = `-- name: ListServiceAreas :many
SELECT id,
       name,
       lat,
       lng,
       radius_meters,
       efficiency_score,
       population_served,
       critical_incident_count,
       avg_response_time_min
FROM service_areas
ORDER BY id ASC
`

func (q *Queries) ListServiceAreas(ctx context.Context) ([]ServiceArea, error) {
	rows, err := q.db.Query(ctx, listServiceAreas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ServiceArea
	for rows.Next() {
		var i ServiceArea
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Lat,
			&i.Lng,
			&i.RadiusMeters,
			&i.EfficiencyScore,
			&i.PopulationServed,
			&i.CriticalIncidentCount,
			&i.AvgResponseTimeMin,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTrafficSegments = `-- name: ListTrafficSegments :many
SELECT id,
       congestion,
       path
FROM traffic_segments
ORDER BY id ASC
`

func (q *Queries) ListTrafficSegments(ctx context.Context) ([]TrafficSegment, error) {
	rows, err := q.db.Query(ctx, listTrafficSegments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrafficSegment
	for rows.Next() {
		var i TrafficSegment
		if err := rows.Scan(&i.ID, &i.Congestion, &i.Path); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAppointments = `-- name: ListAppointments :many
SELECT a.id,
       a.patient_id,
       a.patient_lat,
       a.patient_lng,
       d.id,
       d.name,
       f.lat,
       f.lng,
       a.distance_km,
       a.travel_time_min,
       a.health_gain_score
FROM appointments a
JOIN doctors d ON d.id = a.doctor_id
JOIN facilities f ON f.id = d.facility_id
ORDER BY a.id ASC
`

func (q *Queries) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := q.db.Query(ctx, listAppointments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Appointment
	for rows.Next() {
		var i Appointment
		if err := rows.Scan(
			&i.ID,
			&i.PatientID,
			&i.PatientLat,
			&i.PatientLng,
			&i.DoctorID,
			&i.DoctorName,
			&i.DoctorLat,
			&i.DoctorLng,
			&i.DistanceKm,
			&i.TravelTimeMin,
			&i.HealthGainScore,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
