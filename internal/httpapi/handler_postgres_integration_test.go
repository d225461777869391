package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"healthmap/core-go/internal/dataset"
	"healthmap/core-go/internal/db"
	"healthmap/core-go/internal/telemetry"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func mustDeriveDatabaseURL(t *testing.T, baseURL, dbName string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Skipf("TEST_DATABASE_URL must be a URL-style DSN (e.g. postgres://...); got %q", baseURL)
	}

	u.Path = "/" + dbName
	return u.String()
}

func newTestDatabaseName() string {
	// Safe identifier (letters/digits/underscores) so we can use it without quoting.
	return fmt.Sprintf("healthmap_test_%d", time.Now().UnixNano())
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	_, err = adminConn.Exec(ctx, "CREATE DATABASE "+dbName)
	return err
}

func dropDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	if _, err := adminConn.Exec(ctx, "DROP DATABASE "+dbName+" WITH (FORCE)"); err == nil {
		return nil
	}
	_, err = adminConn.Exec(ctx, "DROP DATABASE "+dbName)
	return err
}

func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	moduleRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	return filepath.Join(moduleRoot, "migrations")
}

func applyMigrations(ctx context.Context, conn *pgx.Conn, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var ups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

const seedSQL = `
INSERT INTO facilities (id, name, type, lat, lng, status, storage_level, is_primary_hub)
VALUES ('hub-1', 'Central Hub', 'hub', 6.60, 3.35, 'operational', 70, true);
INSERT INTO facilities (id, name, type, lat, lng, status, capacity, connected_hub_id)
VALUES ('hosp-1', 'General Hospital', 'hospital', 6.50, 3.38, 'occupancy:85', 300, 'hub-1');
INSERT INTO doctors (id, name, specialty, facility_id)
VALUES ('doc-1', 'Dr. Ada', 'Cardiology', 'hosp-1');
INSERT INTO inventory_items (id, name, location_id, quantity)
VALUES ('inv-1', 'Saline', 'hub-1', 40);
INSERT INTO transports (id, type, plate, status, lat, lng, destination_id, updated_at)
VALUES ('amb-1', 'ambulance', 'LAG-001', 'en-route', 6.58, 3.36, 'hosp-1', now() - interval '1 hour');
INSERT INTO transport_maintenance_logs (transport_id, logged_on, note)
VALUES ('amb-1', '2026-09-01', 'Tyres rotated');
INSERT INTO incidents (id, severity, lat, lng, cases)
VALUES ('inc-1', 'high', 6.49, 3.37, 12);
INSERT INTO patients (id, name, lat, lng, assigned_doctor_id, incident_id)
VALUES ('pat-1', 'Tunde', 6.48, 3.36, 'doc-1', 'inc-1');
INSERT INTO service_areas (id, name, lat, lng, radius_meters, efficiency_score)
VALUES ('area-1', 'Mainland', 6.50, 3.37, 4000, 81);
INSERT INTO traffic_segments (id, congestion, path)
VALUES ('seg-1', 'heavy', '[{"lat":6.50,"lng":3.36},{"lat":6.51,"lng":3.37}]');
INSERT INTO appointments (id, patient_id, patient_lat, patient_lng, doctor_id, distance_km, travel_time_min, health_gain_score)
VALUES ('apt-1', 'pat-1', 6.48, 3.36, 'doc-1', 2.4, 9, 0.8);
`

// moveTransport stands in for the fleet feed, which writes positions straight
// into the transports table.
const moveTransport = `
UPDATE transports
SET lat = $2, lng = $3, status = $4, updated_at = now()
WHERE id = $1
`

func TestHandler_Postgres_DatasetAndTelemetry(t *testing.T) {
	adminURL := requireTestDatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := newTestDatabaseName()
	testDBURL := mustDeriveDatabaseURL(t, adminURL, dbName)

	if err := createDatabase(ctx, adminURL, dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminURL, dbName)
	})

	mConn, err := pgx.Connect(ctx, testDBURL)
	if err != nil {
		t.Fatalf("connect for migrations: %v", err)
	}
	if err := applyMigrations(ctx, mConn, migrationsDir(t)); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := mConn.Exec(ctx, seedSQL); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("seed data: %v", err)
	}
	if err := mConn.Close(ctx); err != nil {
		t.Fatalf("close migration connection: %v", err)
	}

	pool, err := db.Open(ctx, testDBURL, 4)
	if err != nil {
		t.Fatalf("open db pool: %v", err)
	}
	t.Cleanup(pool.Close)

	q := pool.Queries()
	store, err := dataset.LoadStore(ctx, dataset.NewPostgresProvider(q))
	if err != nil {
		t.Fatalf("load dataset from postgres: %v", err)
	}
	d := store.Snapshot()
	if d.PrimaryHubID != "hub-1" {
		t.Fatalf("expected primary hub hub-1, got %q", d.PrimaryHubID)
	}
	if appt, ok := d.Appointment("apt-1"); !ok || appt.Outcome == nil || appt.Doctor.Name != "Dr. Ada" {
		t.Fatalf("unexpected appointment: %+v", appt)
	}

	h := NewHandler(NewLogger("error"), Options{Pool: pool, Data: store})
	t.Cleanup(h.Close)
	router := h.Router()

	rrReady := httptest.NewRecorder()
	router.ServeHTTP(rrReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rrReady.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d: %s", rrReady.Code, rrReady.Body.String())
	}

	rrLayers := httptest.NewRecorder()
	router.ServeHTTP(rrLayers, httptest.NewRequest(http.MethodGet, "/api/v1/layers?variant=operations", nil))
	if rrLayers.Code != http.StatusOK {
		t.Fatalf("layers expected 200, got %d: %s", rrLayers.Code, rrLayers.Body.String())
	}

	// A position written after the watermark is picked up and applied.
	src := telemetry.NewPostgresSource(q, time.Now().Add(-time.Minute))
	feed, err := pgx.Connect(ctx, testDBURL)
	if err != nil {
		t.Fatalf("connect fleet feed: %v", err)
	}
	defer feed.Close(ctx)
	if _, err := feed.Exec(ctx, moveTransport, "amb-1", 6.5, 3.38, "available"); err != nil {
		t.Fatalf("update transport position: %v", err)
	}
	updates, err := src.Positions(ctx, store.Snapshot())
	if err != nil {
		t.Fatalf("poll positions: %v", err)
	}
	if len(updates) != 1 || updates[0].VehicleID != "amb-1" {
		t.Fatalf("expected one update for amb-1, got %+v", updates)
	}
	store.ApplyPositions(updates)

	tr, ok := store.Snapshot().Transport("amb-1")
	if !ok || tr.Position.Lat != 6.5 || tr.Status != "available" {
		t.Fatalf("position not applied: %+v", tr)
	}

	again, err := src.Positions(ctx, store.Snapshot())
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("watermark should suppress already-seen rows, got %+v", again)
	}

	var body struct {
		Layers []struct {
			Kind string `json:"kind"`
		} `json:"layers"`
	}
	if err := json.NewDecoder(rrLayers.Body).Decode(&body); err != nil {
		t.Fatalf("decode layers: %v", err)
	}
	if len(body.Layers) != 3 {
		t.Fatalf("expected three operations layers, got %+v", body.Layers)
	}
}
