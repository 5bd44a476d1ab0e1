// Package geo exports compositions as GeoJSON and Mapbox Vector Tiles.
package geo

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// Feature kinds, stored in the "kind" property.
const (
	KindRoute       = "route"
	KindOrigin      = "origin"
	KindDestination = "destination"
)

// FeatureCollection converts a composition into one collection: a LineString
// per route followed by a Point per origin and destination cluster. Style
// values travel as properties so any map client can draw them.
func FeatureCollection(comp *flow.Composition) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if comp == nil {
		return fc
	}
	for _, f := range RouteFeatures(comp) {
		fc.Append(f)
	}
	for _, f := range ClusterFeatures(comp.Origins, KindOrigin) {
		fc.Append(f)
	}
	for _, f := range ClusterFeatures(comp.Destinations, KindDestination) {
		fc.Append(f)
	}
	if comp.Bounds != nil {
		fc.BBox = geojson.NewBBox(*comp.Bounds)
	}
	return fc
}

// RouteFeatures returns one LineString feature per styled route.
func RouteFeatures(comp *flow.Composition) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(comp.Routes))
	for _, r := range comp.Routes {
		f := geojson.NewFeature(r.Path)
		f.ID = r.Identity
		f.Properties["kind"] = KindRoute
		f.Properties["row"] = r.Row
		f.Properties["identity"] = r.Identity
		f.Properties["origin"] = r.Origin
		f.Properties["destination"] = r.Destination
		if r.Category != "" {
			f.Properties["category"] = r.Category
		}
		f.Properties["color"] = r.Style.LineColor
		f.Properties["width"] = r.Style.Width
		f.Properties["opacity"] = r.Style.Opacity
		out = append(out, f)
	}
	return out
}

// ClusterFeatures returns one Point feature per endpoint cluster.
func ClusterFeatures(clusters []*flow.EndpointCluster, kind string) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(clusters))
	for _, c := range clusters {
		f := geojson.NewFeature(c.Point)
		f.Properties["kind"] = kind
		f.Properties["count"] = c.Count
		f.Properties["radius"] = c.Radius
		f.Properties["color"] = c.Color
		f.Properties["opacity"] = c.Opacity
		out = append(out, f)
	}
	return out
}
