package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-flowmap/internal/geo"
)

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type ArchiveInput struct {
	MinZoom int `query:"minzoom" minimum:"0" maximum:"12" default:"0" doc:"Shallowest zoom"`
	MaxZoom int `query:"maxzoom" minimum:"0" maximum:"12" default:"6" doc:"Deepest zoom"`
}

type ArchiveOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type TileInput struct {
	Z int `path:"z" minimum:"0" maximum:"22" doc:"Zoom level"`
	X int `path:"x" minimum:"0" doc:"Tile column"`
	Y int `path:"y" minimum:"0" doc:"Tile row"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

// RegisterExport registers GeoJSON and vector tile routes.
func (h *APIHandler) RegisterExport(api huma.API) {
	huma.Get(api, "/api/v1/routes/geojson", h.GetGeoJSON, huma.OperationTags("export"))
	huma.Get(api, "/api/v1/routes/pmtiles", h.GetArchive, huma.OperationTags("export"))
	huma.Get(api, "/api/v1/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("export"))
}

func (h *APIHandler) GetGeoJSON(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	fc := geo.FeatureCollection(h.svc.Visual.Current().Composition)
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode GeoJSON", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetArchive(ctx context.Context, input *ArchiveInput) (*ArchiveOutput, error) {
	if input.MinZoom > input.MaxZoom {
		return nil, huma.Error400BadRequest("minzoom exceeds maxzoom")
	}
	data, err := geo.Archive(h.svc.Visual.Current().Composition, input.MinZoom, input.MaxZoom)
	if errors.Is(err, geo.ErrEmptyArchive) {
		return nil, huma.Error404NotFound("No routes to archive")
	}
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to build archive", err)
	}
	return &ArchiveOutput{
		ContentType:        "application/vnd.pmtiles",
		ContentDisposition: `attachment; filename="flowmap.pmtiles"`,
		Body:               data,
	}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	limit := 1 << uint(input.Z)
	if input.X >= limit || input.Y >= limit {
		return nil, huma.Error400BadRequest("tile outside zoom level")
	}
	tile := maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z))
	data, err := geo.Tile(h.svc.Visual.Current().Composition, tile)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to render tile", err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

func pointOf(b EndpointClickBody) orb.Point {
	return orb.Point{b.Lng, b.Lat}
}
