package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// Layer names inside a rendered tile.
const (
	LayerRoutes       = "routes"
	LayerOrigins      = "origins"
	LayerDestinations = "destinations"
)

// MaxZoom is the deepest zoom a tile is rendered for.
const MaxZoom = 22

// Tile renders the composition features intersecting t as a gzipped Mapbox
// Vector Tile with a routes, an origins and a destinations layer. It returns
// nil when nothing falls inside the tile.
func Tile(comp *flow.Composition, t maptile.Tile) ([]byte, error) {
	if t.Z > MaxZoom {
		return nil, fmt.Errorf("zoom %d exceeds %d", t.Z, MaxZoom)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("tile %d/%d/%d outside its zoom", t.Z, t.X, t.Y)
	}
	if comp == nil {
		return nil, nil
	}

	bound := t.Bound()
	var layers mvt.Layers
	for _, l := range []struct {
		name     string
		features []*geojson.Feature
	}{
		{LayerRoutes, RouteFeatures(comp)},
		{LayerOrigins, ClusterFeatures(comp.Origins, KindOrigin)},
		{LayerDestinations, ClusterFeatures(comp.Destinations, KindDestination)},
	} {
		if layer := tileLayer(l.name, l.features, t, bound); layer != nil {
			layers = append(layers, layer)
		}
	}
	if len(layers) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		return nil, fmt.Errorf("encode tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	return data, nil
}

// tileLayer builds one layer from the features touching bound.
func tileLayer(name string, features []*geojson.Feature, t maptile.Tile, bound orb.Bound) *mvt.Layer {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if !intersects(f.Geometry, bound) {
			continue
		}
		// Clip and ProjectToTile mutate geometry in place.
		clone := geojson.NewFeature(orb.Clone(f.Geometry))
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		fc.Append(clone)
	}
	if len(fc.Features) == 0 {
		return nil
	}

	layer := mvt.NewLayer(name, fc)
	if epsilon := simplifyEpsilon(t.Z); epsilon > 0 {
		layer.Simplify(simplify.DouglasPeucker(epsilon))
	}
	layer.Clip(bound)
	layer.ProjectToTile(t)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil
	}
	return layer
}

// intersects checks a route or bubble against the tile bound. Curved routes
// are tested vertex by vertex after a bounding box rejection.
func intersects(g orb.Geometry, bound orb.Bound) bool {
	if !g.Bound().Intersects(bound) {
		return false
	}
	switch geom := g.(type) {
	case orb.Point:
		return bound.Contains(geom)
	case orb.LineString:
		for _, p := range geom {
			if bound.Contains(p) {
				return true
			}
		}
		// A segment may still cross the tile without a vertex inside it.
		return true
	default:
		return true
	}
}

// simplifyEpsilon returns the simplification tolerance in degrees for a
// zoom level. Routes are sampled densely, so low zooms can drop most points.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 12:
		return 0
	case zoom >= 8:
		return 0.0005
	case zoom >= 4:
		return 0.005
	default:
		return 0.05
	}
}
