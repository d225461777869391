package sqlcgen

import (
	"context"
	"time"
)

const listTransports = `-- name: ListTransports :many
SELECT id,
       type,
       plate,
       status,
       lat,
       lng,
       current_payload,
       driver_name,
       destination_id
FROM transports
ORDER BY id ASC
`

func (q *Queries) ListTransports(ctx context.Context) ([]Transport, error) {
	rows, err := q.db.Query(ctx, listTransports)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transport
	for rows.Next() {
		var i Transport
		if err := rows.Scan(
			&i.ID,
			&i.Type,
			&i.Plate,
			&i.Status,
			&i.Lat,
			&i.Lng,
			&i.CurrentPayload,
			&i.DriverName,
			&i.DestinationID,
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

const listMaintenanceLogs = `-- name: ListMaintenanceLogs :many
SELECT transport_id,
       logged_on,
       note
FROM transport_maintenance_logs
ORDER BY transport_id ASC, logged_on ASC
`

func (q *Queries) ListMaintenanceLogs(ctx context.Context) ([]TransportMaintenanceLog, error) {
	rows, err := q.db.Query(ctx, listMaintenanceLogs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransportMaintenanceLog
	for rows.Next() {
		var i TransportMaintenanceLog
		if err := rows.Scan(&i.TransportID, &i.LoggedOn, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTransportPositionsSince = `-- name: ListTransportPositionsSince :many
SELECT id,
       lat,
       lng,
       status,
       updated_at
FROM transports
WHERE updated_at > $1
ORDER BY updated_at ASC, id ASC
`

// ListTransportPositionsSince returns vehicles whose telemetry changed after since.
func (q *Queries) ListTransportPositionsSince(ctx context.Context, since time.Time) ([]TransportPosition, error) {
	rows, err := q.db.Query(ctx, listTransportPositionsSince, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransportPosition
	for rows.Next() {
		var i TransportPosition
		if err := rows.Scan(&i.ID, &i.Lat, &i.Lng, &i.Status, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
