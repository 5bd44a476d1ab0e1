package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-flowmap/internal/flow"
	"github.com/joeblew999/plat-flowmap/internal/pmtiles"
)

// MaxArchiveZoom caps the deepest zoom written to an archive.
const MaxArchiveZoom = 12

// maxArchiveTiles bounds the number of candidate tiles visited.
const maxArchiveTiles = 1 << 16

// ErrEmptyArchive is returned when no tile in the range has content.
var ErrEmptyArchive = errors.New("composition has no features")

// Archive renders every non-empty tile covering the composition between
// minZoom and maxZoom into a single PMTiles archive.
func Archive(comp *flow.Composition, minZoom, maxZoom int) ([]byte, error) {
	if minZoom < 0 || maxZoom > MaxArchiveZoom || minZoom > maxZoom {
		return nil, fmt.Errorf("zoom range %d-%d outside 0-%d", minZoom, maxZoom, MaxArchiveZoom)
	}
	if comp == nil || comp.Bounds == nil {
		return nil, ErrEmptyArchive
	}
	// Curved routes can leave the endpoint bounds.
	bound := *comp.Bounds
	for _, r := range comp.Routes {
		bound = bound.Union(r.Path.Bound())
	}
	bound = clampBound(bound)

	tiles := make(map[maptile.Tile][]byte)
	visited := 0
	for z := minZoom; z <= maxZoom; z++ {
		zoom := maptile.Zoom(z)
		nw := clampTile(maptile.At(orb.Point{bound.Min[0], bound.Max[1]}, zoom))
		se := clampTile(maptile.At(orb.Point{bound.Max[0], bound.Min[1]}, zoom))
		visited += int(se.X-nw.X+1) * int(se.Y-nw.Y+1)
		if visited > maxArchiveTiles {
			return nil, fmt.Errorf("zoom %d covers too many tiles, lower the max zoom", z)
		}
		for x := nw.X; x <= se.X; x++ {
			for y := nw.Y; y <= se.Y; y++ {
				t := maptile.New(x, y, zoom)
				data, err := Tile(comp, t)
				if err != nil {
					return nil, err
				}
				if data != nil {
					tiles[t] = data
				}
			}
		}
	}
	if len(tiles) == 0 {
		return nil, ErrEmptyArchive
	}

	meta := pmtiles.Metadata{
		Name:    "flowmap",
		Format:  "pbf",
		MinZoom: minZoom,
		MaxZoom: maxZoom,
		VectorLayers: []pmtiles.VectorLayer{
			{ID: LayerRoutes, Fields: map[string]string{
				"kind": "String", "identity": "String", "category": "String",
				"color": "String", "width": "Number", "opacity": "Number",
			}},
			{ID: LayerOrigins, Fields: clusterFields},
			{ID: LayerDestinations, Fields: clusterFields},
		},
	}
	return pmtiles.Build(tiles, meta, &bound)
}

var clusterFields = map[string]string{
	"kind": "String", "count": "Number", "radius": "Number",
	"color": "String", "opacity": "Number",
}

// clampTile pulls a tile at longitude 180 or latitude -85.0511 back onto the
// last column or row of its zoom.
func clampTile(t maptile.Tile) maptile.Tile {
	last := uint32(1)<<uint32(t.Z) - 1
	if t.X > last {
		t.X = last
	}
	if t.Y > last {
		t.Y = last
	}
	return t
}

// clampBound keeps the bound inside the Web Mercator latitude range.
func clampBound(b orb.Bound) orb.Bound {
	const maxLat = 85.0511
	clamp := func(v float64) float64 {
		if v > maxLat {
			return maxLat
		}
		if v < -maxLat {
			return -maxLat
		}
		return v
	}
	b.Min[1] = clamp(b.Min[1])
	b.Max[1] = clamp(b.Max[1])
	return b
}
