package telemetry

import (
	"context"
	"sync"
	"time"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/geo"
	"healthmap/core-go/internal/sqlcgen"
)

type Queries interface {
	ListTransportPositionsSince(ctx context.Context, since time.Time) ([]sqlcgen.TransportPosition, error)
}

// PostgresSource reads positions written to the transports table by the
// fleet tracking feed. It remembers the newest updated_at it has seen.
type PostgresSource struct {
	q Queries

	mu    sync.Mutex
	since time.Time
}

func NewPostgresSource(q Queries, since time.Time) *PostgresSource {
	return &PostgresSource{q: q, since: since}
}

func (s *PostgresSource) Positions(ctx context.Context, _ *domain.Dataset) ([]domain.TransportPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.q.ListTransportPositionsSince(ctx, s.since)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TransportPosition, 0, len(rows))
	for _, row := range rows {
		if row.UpdatedAt.After(s.since) {
			s.since = row.UpdatedAt
		}
		pos := domain.TransportPosition{
			VehicleID: row.ID,
			Position:  geo.Point{Lat: row.Lat, Lng: row.Lng},
		}
		if st := domain.VehicleStatus(row.Status); domain.IsValidVehicleStatus(st) {
			pos.Status = &st
		}
		out = append(out, pos)
	}
	return out, nil
}

// Simulator moves en-route vehicles in a straight line toward their
// destination facility, StepKm per poll. A vehicle that arrives becomes
// available.
type Simulator struct {
	StepKm float64
}

func (s Simulator) Positions(ctx context.Context, current *domain.Dataset) ([]domain.TransportPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	step := s.StepKm
	if step <= 0 {
		step = 0.5
	}

	var out []domain.TransportPosition
	for _, v := range current.Transports {
		if v.Status != domain.VehicleEnRoute || v.DestinationID == nil {
			continue
		}
		dest, ok := current.Facility(*v.DestinationID)
		if !ok {
			continue
		}
		remaining := geo.DistanceKm(v.Position, dest.Position)
		if remaining <= step {
			arrived := domain.VehicleAvailable
			out = append(out, domain.TransportPosition{VehicleID: v.ID, Position: dest.Position, Status: &arrived})
			continue
		}
		out = append(out, domain.TransportPosition{
			VehicleID: v.ID,
			Position:  geo.Interpolate(v.Position, dest.Position, step/remaining),
		})
	}
	return out, nil
}
