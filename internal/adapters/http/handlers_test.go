package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/menuwatch/internal/adapters/http"
	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
)

// ---- Mock repositories ----

type mockLocationRepo struct {
	getFn          func(ctx context.Context, id string) (*domain.Location, error)
	listByRegionFn func(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error)
	listInBoundsFn func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error)
}

func (m *mockLocationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockLocationRepo) Count(ctx context.Context, canonicalOnly bool) (int, error) {
	return 0, nil
}
func (m *mockLocationRepo) List(ctx context.Context, canonicalOnly bool, offset, limit int) ([]domain.Location, error) {
	return nil, nil
}
func (m *mockLocationRepo) ListByRegion(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
	if m.listByRegionFn != nil {
		return m.listByRegionFn(ctx, region, offset, limit)
	}
	return nil, 0, nil
}
func (m *mockLocationRepo) ListInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error) {
	if m.listInBoundsFn != nil {
		return m.listInBoundsFn(ctx, b, limit)
	}
	return nil, nil
}
func (m *mockLocationRepo) ListNonCanonical(ctx context.Context, region string) ([]domain.Location, error) {
	return nil, nil
}
func (m *mockLocationRepo) Upsert(ctx context.Context, loc *domain.Location) error { return nil }
func (m *mockLocationRepo) UpdateIdentifier(ctx context.Context, oldID, newID string) (int64, error) {
	return 0, nil
}
func (m *mockLocationRepo) Delete(ctx context.Context, id string) (int64, error) { return 0, nil }
func (m *mockLocationRepo) RefreshLatest(ctx context.Context) error            { return nil }

type mockObservationRepo struct {
	latestFn func(ctx context.Context, locationID string) ([]domain.LatestAvailability, error)
}

func (m *mockObservationRepo) Insert(ctx context.Context, o *domain.Observation) error { return nil }
func (m *mockObservationRepo) Repoint(ctx context.Context, oldID, newID string) (int64, error) {
	return 0, nil
}
func (m *mockObservationRepo) CountByLocation(ctx context.Context, locationID string) (int, error) {
	return 0, nil
}
func (m *mockObservationRepo) Latest(ctx context.Context, locationID string) ([]domain.LatestAvailability, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, locationID)
	}
	return nil, nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(locs *mockLocationRepo, obs *mockObservationRepo) *handler.Dependencies {
	if locs == nil {
		locs = &mockLocationRepo{}
	}
	if obs == nil {
		obs = &mockObservationRepo{}
	}
	return &handler.Dependencies{
		Locations: usecases.NewLocationService(locs, obs, nil),
	}
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte, http.Header) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b, resp.Header
}

func point(lat, lon float64) *domain.GeoPoint { return &domain.GeoPoint{Lat: lat, Lon: lon} }

// ---- Location handler tests ----

func TestListLocations_Pagination(t *testing.T) {
	var gotRegion string
	locs := &mockLocationRepo{
		listByRegionFn: func(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
			gotRegion = region
			out := make([]domain.Location, 0, limit)
			for i := offset; i < offset+limit && i < 7; i++ {
				out = append(out, domain.Location{ID: fmt.Sprintf("%d", 100000+i), Region: "QC"})
			}
			return out, 7, nil
		},
	}
	app := setupApp(makeDeps(locs, nil))

	status, body, header := get(t, app, "/v1/locations?region=qc&offset=2&limit=3")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if gotRegion != "QC" {
		t.Errorf("expected region upper-cased to QC, got %q", gotRegion)
	}

	var result struct {
		Data       []domain.Location `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 7 || result.Pagination.Offset != 2 || result.Pagination.Limit != 3 {
		t.Errorf("unexpected pagination %+v", result.Pagination)
	}
	if len(result.Data) != 3 || result.Data[0].ID != "100002" {
		t.Errorf("unexpected page %+v", result.Data)
	}

	link := header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="prev"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
	if !strings.Contains(link, "region=qc") {
		t.Errorf("expected region filter carried in links, got %s", link)
	}
}

func TestGetLocation_Success(t *testing.T) {
	locs := &mockLocationRepo{
		getFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return &domain.Location{ID: id, Name: "Ste-Catherine", Coordinates: point(45.5, -73.57)}, nil
		},
	}
	app := setupApp(makeDeps(locs, nil))

	status, body, _ := get(t, app, "/v1/locations/100001")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var loc domain.Location
	if err := json.Unmarshal(body, &loc); err != nil {
		t.Fatal(err)
	}
	if loc.ID != "100001" || loc.Name != "Ste-Catherine" {
		t.Errorf("unexpected location %+v", loc)
	}
}

func TestGetLocation_NotFound(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	status, body, _ := get(t, app, "/v1/locations/kgl_404")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found code, got %q", apiErr.Code)
	}
	if apiErr.RequestID == "" {
		t.Error("expected request id in error body")
	}
}

func TestGetLocation_StoreError(t *testing.T) {
	locs := &mockLocationRepo{
		getFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return nil, errors.New("connection reset")
		},
	}
	app := setupApp(makeDeps(locs, nil))

	status, _, _ := get(t, app, "/v1/locations/100001")
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
}

func TestLatestAvailability_Success(t *testing.T) {
	price := 495
	checked := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	locs := &mockLocationRepo{
		getFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return &domain.Location{ID: id}, nil
		},
	}
	obs := &mockObservationRepo{
		latestFn: func(ctx context.Context, id string) ([]domain.LatestAvailability, error) {
			return []domain.LatestAvailability{
				{LocationID: id, ItemID: "iced-capp-m", ItemName: "Iced Capp", Available: true, PriceCents: &price, CheckedAt: checked},
			}, nil
		},
	}
	app := setupApp(makeDeps(locs, obs))

	status, body, header := get(t, app, "/v1/locations/100001/latest")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var rows []domain.LatestAvailability
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].Available || rows[0].PriceCents == nil || *rows[0].PriceCents != 495 {
		t.Errorf("unexpected rows %+v", rows)
	}
	if cc := header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("expected short Cache-Control on latest, got %q", cc)
	}
}

func TestLatestAvailability_UnknownLocation(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	status, _, _ := get(t, app, "/v1/locations/kgl_1/latest")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestNearbyLocations_Success(t *testing.T) {
	locs := &mockLocationRepo{
		listInBoundsFn: func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error) {
			return []domain.Location{
				{ID: "100002", Coordinates: point(45.0030, -73.0)},
				{ID: "100001", Coordinates: point(45.0010, -73.0)},
			}, nil
		},
	}
	app := setupApp(makeDeps(locs, nil))

	status, body, _ := get(t, app, "/v1/locations/nearby?lat=45&lon=-73&radius=1000")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var got []domain.Location
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "100001" {
		t.Errorf("expected nearest first, got %+v", got)
	}
}

func TestNearbyLocations_BadParams(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	for _, target := range []string{
		"/v1/locations/nearby?lon=-73",
		"/v1/locations/nearby?lat=45",
		"/v1/locations/nearby?lat=45&lon=-73&radius=90000",
		"/v1/locations/nearby?lat=95&lon=-73",
	} {
		status, _, _ := get(t, app, target)
		if status != 400 {
			t.Errorf("%s: expected 400, got %d", target, status)
		}
	}
}

// ---- GraphQL ----

func TestGraphQL_Location(t *testing.T) {
	locs := &mockLocationRepo{
		getFn: func(ctx context.Context, id string) (*domain.Location, error) {
			if id != "100001" {
				return nil, domain.ErrNotFound
			}
			return &domain.Location{ID: id, City: "Montreal", Coordinates: point(45.5, -73.57)}, nil
		},
	}
	app := setupApp(makeDeps(locs, nil))

	body := `{"query":"{ location(id: \"100001\") { location_id city coordinates { lat lon } } missing: location(id: \"kgl_9\") { location_id } }"}`
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Location struct {
				ID          string `json:"location_id"`
				City        string `json:"city"`
				Coordinates struct {
					Lat float64 `json:"lat"`
				} `json:"coordinates"`
			} `json:"location"`
			Missing *struct{} `json:"missing"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if result.Data.Location.ID != "100001" || result.Data.Location.City != "Montreal" || result.Data.Location.Coordinates.Lat != 45.5 {
		t.Errorf("unexpected location %+v", result.Data.Location)
	}
	if result.Data.Missing != nil {
		t.Errorf("expected null for unknown location, got %+v", result.Data.Missing)
	}
}

func TestGraphQL_EmptyBody(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Health ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	status, body, header := get(t, app, "/v1/health")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result map[string]interface{}
	json.Unmarshal(body, &result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
	if v := header.Get("X-API-Version"); v != handler.Version {
		t.Errorf("expected X-API-Version %q, got %q", handler.Version, v)
	}
}

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps(nil, nil))

	status, _, _ := get(t, app, "/v1/ready")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
}

func TestReady_Checks(t *testing.T) {
	deps := makeDeps(nil, nil)
	deps.DB = mockPinger{}
	app := setupApp(deps)

	status, body, _ := get(t, app, "/v1/ready")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	deps = makeDeps(nil, nil)
	deps.DB = mockPinger{}
	deps.Cache = mockPinger{err: errors.New("dial tcp: refused")}
	app = setupApp(deps)

	status, body, _ = get(t, app, "/v1/ready")
	if status != 503 {
		t.Fatalf("expected 503 with failing cache, got %d", status)
	}
	if !strings.Contains(string(body), "refused") {
		t.Errorf("expected cache error in body, got %s", body)
	}
}

func TestETag_NotModified(t *testing.T) {
	locs := &mockLocationRepo{
		getFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return &domain.Location{ID: id}, nil
		},
	}
	app := setupApp(makeDeps(locs, nil))

	_, _, header := get(t, app, "/v1/locations/100001")
	etag := header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/locations/100001", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
}

// TestAccessLogMiddleware verifies structured access logging does not alter the response.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	status, body, _ := get(t, app, "/test")
	if status != fiber.StatusOK {
		t.Errorf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
