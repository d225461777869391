// Package geolocate provides the device position to the map engine.
package geolocate

import (
	"context"
	"errors"

	"healthmap/core-go/internal/geo"
)

var (
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrUnavailable      = errors.New("geolocation unavailable")
)

type Provider interface {
	CurrentPosition(ctx context.Context) (geo.Point, error)
}

// Static always reports the same position.
type Static struct {
	Position geo.Point
}

func (s Static) CurrentPosition(ctx context.Context) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	if !s.Position.Valid() {
		return geo.Point{}, ErrUnavailable
	}
	return s.Position, nil
}

// Denied behaves like a device whose user refused location access.
type Denied struct{}

func (Denied) CurrentPosition(context.Context) (geo.Point, error) {
	return geo.Point{}, ErrPermissionDenied
}

// Reported wraps coordinates the client device sent along with its request.
// A nil Position means the device did not share one.
type Reported struct {
	Position *geo.Point
}

func (r Reported) CurrentPosition(ctx context.Context) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	if r.Position == nil {
		return geo.Point{}, ErrPermissionDenied
	}
	if !r.Position.Valid() {
		return geo.Point{}, ErrUnavailable
	}
	return *r.Position, nil
}
