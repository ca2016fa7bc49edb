package http_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geowire/internal/adapters/geojson"
	handler "github.com/samirrijal/geowire/internal/adapters/http"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/ports"
	"github.com/samirrijal/geowire/internal/core/usecases"
	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/twkb"
)

const pointEWKBHex = "0101000020e6100000000000000000f03f0000000000000040"

// ---- Mock repositories ----

type mockFeatureRepo struct {
	upsertFn      func(ctx context.Context, f *domain.Feature) error
	getByIDFn     func(ctx context.Context, id string) (*domain.Feature, error)
	listByLayerFn func(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error)
	findNearbyFn  func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Feature, error)
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockFeatureRepo) Upsert(ctx context.Context, f *domain.Feature) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, f)
	}
	return nil
}
func (m *mockFeatureRepo) UpsertBatch(ctx context.Context, fs []domain.Feature) error { return nil }
func (m *mockFeatureRepo) GetByID(ctx context.Context, id string) (*domain.Feature, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockFeatureRepo) ListByLayer(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error) {
	if m.listByLayerFn != nil {
		return m.listByLayerFn(ctx, layer, offset, limit)
	}
	return nil, 0, nil
}
func (m *mockFeatureRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Feature, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}
func (m *mockFeatureRepo) ListIDsAfter(ctx context.Context, layer, after string, limit int) ([]string, error) {
	return nil, nil
}
func (m *mockFeatureRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockStarter struct {
	got *domain.LayerTransform
}

func (m *mockStarter) StartLayerTransform(ctx context.Context, req domain.LayerTransform) (string, error) {
	m.got = &req
	return "run-42", nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func newConvertService() *usecases.ConvertService {
	return usecases.NewConvertService(usecases.CodecDefaults{TWKBPrecision: 6}, map[domain.Format]ports.GeometryCodec{
		domain.FormatGeoJSON: geojson.Codec{},
		domain.FormatWKT:     geojson.WKTCodec{},
	})
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Convert:  newConvertService(),
		Features: usecases.NewFeatureService(&mockFeatureRepo{}, nil, nil, nil, 0),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withRepo(repo *mockFeatureRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Features = usecases.NewFeatureService(repo, nil, nil, nil, 0)
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func gate(id string, lon, lat float64) domain.Feature {
	return domain.Feature{
		ID:         id,
		Layer:      "gates",
		Name:       "Gate " + id,
		Properties: map[string]any{"kind": "gate"},
		Geometry:   geom.WithSRID(geom.NewPoint(geom.XY, geom.Coord{lon, lat}), geom.WGS84),
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
		Geometry   struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// ---- Health ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["database"] != "not configured" {
		t.Errorf("unexpected checks %v", body.Checks)
	}
}

// ---- Convert ----

func TestConvert_HexToTWKB(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/convert?from=ewkb_hex&to=twkb&precision=0", strings.NewReader(pointEWKBHex))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	if got := hex.EncodeToString(readBody(t, resp.Body)); got != "01000204" {
		t.Errorf("expected twkb 01000204, got %s", got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
	if v := resp.Header.Get("X-Geometry-Type"); v != "Point" {
		t.Errorf("expected Point, got %q", v)
	}
	if v := resp.Header.Get("X-Geometry-Layout"); v != "XY" {
		t.Errorf("expected XY, got %q", v)
	}
	if v := resp.Header.Get("X-Geometry-SRID"); v != "4326" {
		t.Errorf("expected SRID 4326, got %q", v)
	}
	if v := resp.Header.Get("X-Displacement-Meters"); v != "" {
		t.Errorf("expected no displacement without transform, got %q", v)
	}
}

func TestConvert_TransformGeoJSON(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"type":"Point","coordinates":[116.397,39.908]}`
	req := httptest.NewRequest("POST", "/v1/convert?from=geojson&to=wkt&transform=to_gcj02", strings.NewReader(body))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	if out := string(readBody(t, resp.Body)); !strings.HasPrefix(out, "POINT (116.40") {
		t.Errorf("unexpected wkt %q", out)
	}
	d, err := strconv.ParseFloat(resp.Header.Get("X-Displacement-Meters"), 64)
	if err != nil {
		t.Fatalf("bad displacement header: %v", err)
	}
	if d < 100 || d > 1000 {
		t.Errorf("expected a few hundred meters of offset in Beijing, got %.1f", d)
	}
}

func TestConvert_BadRequests(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		name  string
		query string
		body  string
	}{
		{"unknown from", "from=kml&to=wkt", "x"},
		{"missing to", "from=wkt", "POINT (1 2)"},
		{"empty body", "from=wkt&to=geojson", ""},
		{"bad precision", "from=wkt&to=twkb&precision=x", "POINT (1 2)"},
		{"precision out of range", "from=wkt&to=twkb&precision=9", "POINT (1 2)"},
		{"bad transform", "from=wkt&to=wkt&transform=sideways", "POINT (1 2)"},
		{"undecodable", "from=ewkb&to=wkt", "\x01\x01"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/convert?"+test.query, strings.NewReader(test.body))
			resp, _ := app.Test(req, -1)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			var apiErr struct {
				Code string `json:"code"`
			}
			json.NewDecoder(resp.Body).Decode(&apiErr)
			if apiErr.Code != "bad_request" {
				t.Errorf("expected bad_request, got %q", apiErr.Code)
			}
		})
	}
}

// ---- Transform ----

func TestTransformPoint_Success(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/transform?lat=39.908&lon=116.397", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out handler.TransformResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Output.Lat == out.Input.Lat || out.Output.Lon == out.Input.Lon {
		t.Errorf("expected a shifted coordinate, got %+v", out.Output)
	}
	if out.DisplacementMeters < 100 || out.DisplacementMeters > 1000 {
		t.Errorf("unexpected displacement %.1f", out.DisplacementMeters)
	}
}

func TestTransformPoint_OutsideChina(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/transform?lat=43.263&lon=-2.935&direction=to_wgs84", nil), -1)
	var out handler.TransformResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Output != out.Input || out.DisplacementMeters != 0 {
		t.Errorf("expected identity outside China, got %+v", out)
	}
}

func TestTransformPoint_BadParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, q := range []string{"", "lat=39.9", "lat=91&lon=0", "lat=39.9&lon=116.4&direction=up"} {
		resp, _ := app.Test(httptest.NewRequest("GET", "/v1/transform?"+q, nil), -1)
		if resp.StatusCode != 400 {
			t.Errorf("%q: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

// ---- Layers ----

func TestListLayerFeatures_GeoJSON(t *testing.T) {
	var gotOffset, gotLimit int
	deps := makeDeps(withRepo(&mockFeatureRepo{
		listByLayerFn: func(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error) {
			gotOffset, gotLimit = offset, limit
			return []domain.Feature{gate("a", 116.39, 39.9), gate("b", 116.4, 39.91)}, 5, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/layers/gates/features?offset=0&limit=2", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotOffset != 0 || gotLimit != 2 {
		t.Errorf("expected offset 0 limit 2, got %d %d", gotOffset, gotLimit)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if v := resp.Header.Get("X-Total-Count"); v != "5" {
		t.Errorf("expected X-Total-Count 5, got %q", v)
	}
	link := resp.Header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link, got %s", rel, link)
		}
	}
	if strings.Contains(link, `rel="prev"`) {
		t.Errorf("first page should have no prev link: %s", link)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	if fc.Features[0].ID != "a" || fc.Features[0].Properties["layer"] != "gates" {
		t.Errorf("unexpected first feature %+v", fc.Features[0])
	}
}

func TestListLayerFeatures_LinkKeepsQuery(t *testing.T) {
	deps := makeDeps(withRepo(&mockFeatureRepo{
		listByLayerFn: func(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error) {
			return []domain.Feature{gate("c", 116.39, 39.9)}, 10, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/layers/gates/features?format=geojson&offset=3&limit=3", nil), -1)
	link := resp.Header.Get("Link")
	if !strings.Contains(link, "format=geojson") {
		t.Errorf("expected format to be carried into links, got %s", link)
	}
	if !strings.Contains(link, "offset=0&limit=3") && !strings.Contains(link, "limit=3&offset=0") {
		t.Errorf("expected prev link to offset 0, got %s", link)
	}
}

func TestListLayerFeatures_TWKB(t *testing.T) {
	deps := makeDeps(withRepo(&mockFeatureRepo{
		listByLayerFn: func(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error) {
			return []domain.Feature{gate("a", 1, 2), gate("b", 3, 4)}, 2, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/layers/gates/features?format=twkb&precision=0", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if v := resp.Header.Get("X-Geometry-Count"); v != "2" {
		t.Errorf("expected 2 geometries, got %q", v)
	}

	body := readBody(t, resp.Body)
	var got []geom.Geometry
	for len(body) > 0 {
		n, err := twkb.Skip(body)
		if err != nil {
			t.Fatalf("split twkb stream: %v", err)
		}
		g, err := twkb.Decode(body[:n])
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, g)
		body = body[n:]
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 geometries in stream, got %d", len(got))
	}
	if c := got[1].(geom.Point).Coord(); c[0] != 3 || c[1] != 4 {
		t.Errorf("unexpected second point %v", c)
	}
}

func TestListLayerFeatures_BadInput(t *testing.T) {
	app := setupApp(makeDeps())

	for _, path := range []string{
		"/v1/layers/Gates/features",
		"/v1/layers/gates/features?format=wkt",
		"/v1/layers/gates/features?format=twkb&precision=12",
	} {
		resp, _ := app.Test(httptest.NewRequest("GET", path, nil), -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestStartLayerTransform_Accepted(t *testing.T) {
	starter := &mockStarter{}
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Features = usecases.NewFeatureService(&mockFeatureRepo{}, nil, nil, starter, 0)
	})
	app := setupApp(deps)

	body := `{"target_layer":"gates_gcj02","direction":"to_gcj02"}`
	req := httptest.NewRequest("POST", "/v1/layers/gates/transform", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	if out["run_id"] != "run-42" || out["direction"] != "to_gcj02" {
		t.Errorf("unexpected response %v", out)
	}
	if starter.got == nil || starter.got.Layer != "gates" || starter.got.TargetLayer != "gates_gcj02" {
		t.Errorf("unexpected request %+v", starter.got)
	}
}

func TestStartLayerTransform_Unavailable(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("POST", "/v1/layers/gates/transform", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 without a workflow client, got %d", resp.StatusCode)
	}
}

// ---- Features ----

func TestNearbyFeatures_Success(t *testing.T) {
	var gotRadius float64
	deps := makeDeps(withRepo(&mockFeatureRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Feature, error) {
			gotRadius = radius
			return []domain.Feature{gate("a", 116.397, 39.908)}, nil
		},
	}))
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/features/nearby?lat=39.908&lon=116.397&radius=250", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotRadius != 250 {
		t.Errorf("expected radius 250, got %v", gotRadius)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	var fc featureCollection
	json.NewDecoder(resp.Body).Decode(&fc)
	if len(fc.Features) != 1 || fc.Features[0].Geometry.Type != "Point" {
		t.Errorf("unexpected collection %+v", fc)
	}
}

func TestNearbyFeatures_BadParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, q := range []string{"", "lat=39.9&lon=116.4&radius=100000", "lat=95&lon=0"} {
		resp, _ := app.Test(httptest.NewRequest("GET", "/v1/features/nearby?"+q, nil), -1)
		if resp.StatusCode != 400 {
			t.Errorf("%q: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func getByID(features ...domain.Feature) *mockFeatureRepo {
	return &mockFeatureRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Feature, error) {
			for _, f := range features {
				if f.ID == id {
					return &f, nil
				}
			}
			return nil, domain.ErrNotFound
		},
	}
}

func TestGetFeature_GeoJSON(t *testing.T) {
	app := setupApp(makeDeps(withRepo(getByID(gate("a", 1, 2)))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/features/a", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if v := resp.Header.Get("X-Feature-Layer"); v != "gates" {
		t.Errorf("expected layer header, got %q", v)
	}
	if v := resp.Header.Get("Last-Modified"); v != "Sun, 01 Mar 2026 12:00:00 GMT" {
		t.Errorf("unexpected Last-Modified %q", v)
	}

	var f struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
	}
	json.NewDecoder(resp.Body).Decode(&f)
	if f.ID != "a" || f.Properties["name"] != "Gate a" || f.Properties["kind"] != "gate" {
		t.Errorf("unexpected feature %+v", f)
	}
}

func TestGetFeature_Formats(t *testing.T) {
	app := setupApp(makeDeps(withRepo(getByID(gate("a", 1, 2)))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/features/a?format=ewkb_hex", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := string(readBody(t, resp.Body)); !strings.EqualFold(got, pointEWKBHex) {
		t.Errorf("expected %s, got %s", pointEWKBHex, got)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/features/a?format=twkb&precision=0", nil), -1)
	if got := hex.EncodeToString(readBody(t, resp.Body)); got != "01000204" {
		t.Errorf("expected twkb 01000204, got %s", got)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/features/a?format=svg", nil), -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func TestGetFeature_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/features/missing", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %q", apiErr.Code)
	}
}

func TestFeatureEWKB_Deprecated(t *testing.T) {
	app := setupApp(makeDeps(withRepo(getByID(gate("a", 1, 2)))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/features/a/ewkb", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "successor-version") {
		t.Errorf("expected successor link, got %q", link)
	}
	want, _ := hex.DecodeString(pointEWKBHex)
	if got := readBody(t, resp.Body); !bytes.Equal(got, want) {
		t.Errorf("expected %x, got %x", want, got)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/features/a", nil), -1)
	if resp.Header.Get("Deprecation") != "" {
		t.Error("current endpoint must not be marked deprecated")
	}
}

func TestPutFeature_GeoJSON(t *testing.T) {
	var stored *domain.Feature
	app := setupApp(makeDeps(withRepo(&mockFeatureRepo{
		upsertFn: func(ctx context.Context, f *domain.Feature) error {
			stored = f
			return nil
		},
	})))

	body := `{"layer":"gates","name":"Tiananmen","properties":{"kind":"gate"},"geometry":{"type":"Point","coordinates":[116.397,39.908]}}`
	req := httptest.NewRequest("PUT", "/v1/features/gate-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if stored == nil || stored.ID != "gate-1" || stored.Layer != "gates" || stored.Name != "Tiananmen" {
		t.Fatalf("unexpected stored feature %+v", stored)
	}
	if stored.Geometry.SRID() != geom.WGS84 {
		t.Errorf("expected SRID 4326, got %d", stored.Geometry.SRID())
	}
	if stored.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if stored.Frame != domain.FrameWGS84 {
		t.Errorf("expected default frame wgs84, got %q", stored.Frame)
	}
}

func TestPutFeature_EWKBHex(t *testing.T) {
	var stored *domain.Feature
	app := setupApp(makeDeps(withRepo(&mockFeatureRepo{
		upsertFn: func(ctx context.Context, f *domain.Feature) error {
			stored = f
			return nil
		},
	})))

	body := fmt.Sprintf(`{"layer":"gates","ewkb_hex":%q}`, pointEWKBHex)
	resp, _ := app.Test(httptest.NewRequest("PUT", "/v1/features/p", strings.NewReader(body)), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if c := stored.Geometry.(geom.Point).Coord(); c[0] != 1 || c[1] != 2 {
		t.Errorf("unexpected coordinate %v", c)
	}
}

func TestPutFeature_Frame(t *testing.T) {
	var stored *domain.Feature
	app := setupApp(makeDeps(withRepo(&mockFeatureRepo{
		upsertFn: func(ctx context.Context, f *domain.Feature) error {
			stored = f
			return nil
		},
	})))

	body := fmt.Sprintf(`{"layer":"gates","ewkb_hex":%q,"frame":"gcj02"}`, pointEWKBHex)
	resp, _ := app.Test(httptest.NewRequest("PUT", "/v1/features/p", strings.NewReader(body)), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if stored.Frame != domain.FrameGCJ02 {
		t.Errorf("expected frame gcj02, got %q", stored.Frame)
	}

	body = fmt.Sprintf(`{"layer":"gates","ewkb_hex":%q,"frame":"bd09"}`, pointEWKBHex)
	resp, _ = app.Test(httptest.NewRequest("PUT", "/v1/features/p", strings.NewReader(body)), -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for unknown frame, got %d", resp.StatusCode)
	}
}

func TestPutFeature_BadRequests(t *testing.T) {
	app := setupApp(makeDeps())

	for name, body := range map[string]string{
		"not json":     `{`,
		"no geometry":  `{"layer":"gates"}`,
		"both":         fmt.Sprintf(`{"layer":"gates","ewkb_hex":%q,"geometry":{"type":"Point","coordinates":[1,2]}}`, pointEWKBHex),
		"bad layer":    `{"layer":"Gates!","geometry":{"type":"Point","coordinates":[1,2]}}`,
		"bad geometry": `{"layer":"gates","geometry":{"type":"Blob"}}`,
		"bad hex":      `{"layer":"gates","ewkb_hex":"zz"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := app.Test(httptest.NewRequest("PUT", "/v1/features/x", strings.NewReader(body)), -1)
			if resp.StatusCode != 400 {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestDeleteFeature(t *testing.T) {
	var deleted string
	repo := getByID(gate("a", 1, 2))
	repo.deleteFn = func(ctx context.Context, id string) error {
		deleted = id
		return nil
	}
	app := setupApp(makeDeps(withRepo(repo)))

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/v1/features/a", nil), -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if deleted != "a" {
		t.Errorf("expected a to be deleted, got %q", deleted)
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/v1/features/b", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for a missing feature, got %d", resp.StatusCode)
	}
}

// ---- Middleware ----

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/transform?lat=39.908&lon=116.397", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/transform?lat=39.908&lon=116.397", nil)
	req.Header.Set("If-None-Match", `"other", `+etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp.Body); !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", body)
	}
}

// ---- GraphQL ----

func graphQL(t *testing.T, app *fiber.App, query string) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Data   map[string]any `json:"data"`
		Errors []any          `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Errors) > 0 {
		t.Fatalf("graphql errors: %v", out.Errors)
	}
	return out.Data
}

func TestGraphQL_Feature(t *testing.T) {
	app := setupApp(makeDeps(withRepo(getByID(gate("a", 1, 2)))))

	data := graphQL(t, app, `{ feature(id: "a") { id layer geometryType ewkbHex geojson } }`)
	f := data["feature"].(map[string]any)
	if f["id"] != "a" || f["geometryType"] != "Point" {
		t.Errorf("unexpected feature %v", f)
	}
	if !strings.EqualFold(f["ewkbHex"].(string), pointEWKBHex) {
		t.Errorf("unexpected ewkb %v", f["ewkbHex"])
	}
	if !strings.Contains(f["geojson"].(string), `"Point"`) {
		t.Errorf("unexpected geojson %v", f["geojson"])
	}
}

func TestGraphQL_ConvertAndTransform(t *testing.T) {
	app := setupApp(makeDeps())

	data := graphQL(t, app, fmt.Sprintf(`{
		convert(data: %q, from: "ewkb", to: "twkb", precision: 0) { data geometryType srid }
		transform(lat: 39.908, lon: 116.397) { lat lon }
	}`, pointEWKBHex))

	conv := data["convert"].(map[string]any)
	if conv["data"] != "01000204" || conv["geometryType"] != "Point" {
		t.Errorf("unexpected convert result %v", conv)
	}
	pt := data["transform"].(map[string]any)
	if pt["lat"].(float64) == 39.908 {
		t.Errorf("expected a shifted latitude, got %v", pt)
	}
}
