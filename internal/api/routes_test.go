package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-flowmap/internal/db"
	"github.com/joeblew999/plat-flowmap/internal/flow"
	"github.com/joeblew999/plat-flowmap/internal/service"
)

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	dir := t.TempDir()

	settings, err := service.NewSettingsService(dir)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sources := service.NewSourceService(dir)
	svc := &Services{
		Visual:   service.NewVisualService(settings, service.NewEventBus(), nil),
		Settings: settings,
		Dataset:  service.NewDatasetService(conn, sources),
		Source:   sources,
	}

	config := huma.DefaultConfig("plat-flowmap API", "1.0.0")
	config.Transformers = append(config.Transformers, LinkTransformer())
	_, api := humatest.New(t, config)
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(dir, true).RegisterRoutes(api)
	return api, svc
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

var hub = map[string]any{
	"columns": map[string]any{
		"originLat": []any{1.0, 1.0, 3.0},
		"originLng": []any{1.0, 1.0, 3.0},
		"destLat":   []any{5.0, 6.0, 7.0},
		"destLng":   []any{5.0, 6.0, 7.0},
	},
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode[HealthBody](t, resp.Body.Bytes()).Status)

	resp = api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[InfoBody](t, resp.Body.Bytes())
	assert.Equal(t, "plat-flowmap", info.Name)
	assert.Contains(t, info.Features, "duckdb")
}

func TestComposeStateless(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Post("/api/v1/compose", map[string]any{
		"columns": map[string]any{
			"originLat": []any{0, "91"},
			"originLng": []any{0, 0},
			"destLat":   []any{10, 10},
			"destLng":   []any{10, 10},
		},
		"selection": []string{"row:1"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	comp := decode[flow.Composition](t, resp.Body.Bytes())
	require.Len(t, comp.Routes, 1)
	r := comp.Routes[0]
	assert.Equal(t, "#007ACC", r.Style.LineColor)
	assert.Equal(t, 0.3, r.Style.Opacity, "row:1 is selected but invalid, so row:0 is dimmed")
	assert.Len(t, r.Path, 101)

	assert.Empty(t, svc.Visual.Current().Composition.Routes, "stateless compose leaves the visual alone")
}

func TestComposeRejectsInvalidSettings(t *testing.T) {
	api, _ := newTestAPI(t)

	settings := flow.DefaultSettings()
	settings.Route.LineColor = "not-a-color"
	body := map[string]any{"columns": hub["columns"], "settings": settings}

	resp := api.Post("/api/v1/compose", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestDatasetAndRoutes(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Put("/api/v1/dataset", hub)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	info := decode[service.DatasetInfo](t, resp.Body.Bytes())
	assert.Equal(t, service.DatasetInfo{Rows: 3, Routes: 3, Source: "inline"}, info)

	resp = api.Get("/api/v1/routes")
	require.Equal(t, http.StatusOK, resp.Code)
	frame := decode[service.Frame](t, resp.Body.Bytes())
	require.Len(t, frame.Composition.Origins, 2)
	assert.Equal(t, 2, frame.Composition.Origins[0].Count)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/legend>; rel="legend"`)

	resp = api.Get("/api/v1/routes/geojson")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(resp.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3+2+3)
}

func TestTiles(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Put("/api/v1/dataset", hub).Code)

	resp := api.Get("/api/v1/tiles/0/0/0")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "gzip", resp.Header().Get("Content-Encoding"))
	layers, err := mvt.UnmarshalGzipped(resp.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, layers, 3)

	assert.Equal(t, http.StatusNoContent, api.Get("/api/v1/tiles/6/0/0").Code)
	assert.Equal(t, http.StatusBadRequest, api.Get("/api/v1/tiles/1/2/0").Code)

	resp = api.Get("/api/v1/routes/pmtiles?maxzoom=2")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "application/vnd.pmtiles", resp.Header().Get("Content-Type"))
	assert.Equal(t, "PMTiles", resp.Body.String()[:7])

	assert.Equal(t, http.StatusBadRequest, api.Get("/api/v1/routes/pmtiles?minzoom=3&maxzoom=1").Code)
}

func TestArchiveWithoutRoutes(t *testing.T) {
	api, _ := newTestAPI(t)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/routes/pmtiles").Code)
	assert.Equal(t, http.StatusBadRequest, api.Get("/api/v1/tiles/1/2/0").Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Get("/api/v1/settings")
	require.Equal(t, http.StatusOK, resp.Code)
	settings := decode[flow.Settings](t, resp.Body.Bytes())
	assert.Equal(t, flow.DefaultSettings(), settings)

	settings.Route.LineColor = "#00ff00"
	resp = api.Put("/api/v1/settings", settings)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "#00ff00", svc.Visual.Settings().Route.LineColor)

	settings.Legend.Position = "Middle"
	resp = api.Put("/api/v1/settings", settings)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestSelectionRoutes(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Put("/api/v1/dataset", hub).Code)

	resp := api.Post("/api/v1/selection", SelectBody{Keys: []string{"row:2"}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{"row:2"}, decode[SelectionBody](t, resp.Body.Bytes()).Keys)

	resp = api.Get("/api/v1/legend")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.Post("/api/v1/selection/endpoint", EndpointClickBody{Lng: 1, Lat: 1})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{"row:0", "row:1"}, decode[SelectionBody](t, resp.Body.Bytes()).Keys)

	resp = api.Post("/api/v1/selection/endpoint", EndpointClickBody{Lng: 1, Lat: 1})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[SelectionBody](t, resp.Body.Bytes()).Keys)

	resp = api.Post("/api/v1/selection/endpoint", EndpointClickBody{Lng: 1, Lat: 95})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Post("/api/v1/selection/menu", ContextMenuBody{Identity: "row:0", X: 4, Y: 2})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[ContextMenuResult](t, resp.Body.Bytes()).Shown)

	api.Post("/api/v1/selection", SelectBody{Keys: []string{"row:0"}})
	resp = api.Delete("/api/v1/selection")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[SelectionBody](t, resp.Body.Bytes()).Keys)
}

func TestQueryDataset(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Post("/api/v1/dataset/query", QueryBody{
		Query: `SELECT 0::DOUBLE AS origin_lat, 0::DOUBLE AS origin_lng, 10::DOUBLE AS dest_lat, 10::DOUBLE AS dest_lng, 'air' AS category`,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	info := decode[service.DatasetInfo](t, resp.Body.Bytes())
	assert.Equal(t, service.DatasetInfo{Rows: 1, Routes: 1, HasCategory: true, Source: "query"}, info)

	legend := svc.Visual.Current().Composition.Legend
	assert.True(t, legend.Show)
	require.Len(t, legend.Entries, 1)
	assert.Equal(t, "category", legend.Title)

	assert.Equal(t, http.StatusBadRequest, api.Post("/api/v1/dataset/query", QueryBody{}).Code)
	assert.Equal(t, http.StatusBadRequest, api.Post("/api/v1/dataset/query", QueryBody{Query: "SELECT 1 AS x"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.Post("/api/v1/dataset/query", QueryBody{Source: "../etc/passwd.csv"}).Code)
}

func TestQueryDatasetFromSource(t *testing.T) {
	api, svc := newTestAPI(t)

	dir := svc.Source.SourcesDir()
	require.NoError(t, os.MkdirAll(dir, 0755))
	csv := "a_lat,a_lng,b_lat,b_lng\n10,20,30,40\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pairs.csv"), []byte(csv), 0644))

	resp := api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []service.SourceFile{{Name: "pairs.csv", Size: "36 B", FileType: "CSV"}},
		decode[[]service.SourceFile](t, resp.Body.Bytes()))

	resp = api.Post("/api/v1/dataset/query", QueryBody{
		Source: "pairs.csv",
		Roles:  &db.RoleMap{OriginLat: "a_lat", OriginLng: "a_lng", DestLat: "b_lat", DestLng: "b_lng"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	routes := svc.Visual.Current().Composition.Routes
	require.Len(t, routes, 1)
	assert.Equal(t, 10.0, routes[0].OriginLat)
}
