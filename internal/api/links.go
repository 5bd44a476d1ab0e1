package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/routes>; rel="routes"`,
		`</api/v1/settings>; rel="settings"`,
		`</api/v1/dataset>; rel="dataset"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/routes>; rel="routes"`,
	},
	"/api/v1/routes": {
		`</api/v1/routes/geojson>; rel="alternate"; type="application/geo+json"`,
		`</api/v1/legend>; rel="legend"`,
		`</api/v1/selection>; rel="selection"`,
	},
	"/api/v1/routes/geojson": {
		`</api/v1/routes>; rel="canonical"`,
		`</api/v1/routes/pmtiles>; rel="alternate"; type="application/vnd.pmtiles"`,
	},
	"/api/v1/routes/pmtiles": {
		`</api/v1/routes>; rel="canonical"`,
	},
	"/api/v1/legend": {
		`</api/v1/routes>; rel="routes"`,
		`</api/v1/settings>; rel="settings"`,
	},
	"/api/v1/settings": {
		`</api/v1/routes>; rel="routes"`,
	},
	"/api/v1/dataset": {
		`</api/v1/dataset/query>; rel="query"`,
		`</api/v1/sources>; rel="sources"`,
		`</api/v1/routes>; rel="routes"`,
	},
	"/api/v1/sources": {
		`</api/v1/dataset/query>; rel="query"`,
	},
	"/api/v1/selection": {
		`</api/v1/selection/endpoint>; rel="endpoint"`,
		`</api/v1/routes>; rel="routes"`,
	},
	"/api/v1/tiles/{z}/{x}/{y}": {
		`</api/v1/routes/geojson>; rel="alternate"; type="application/geo+json"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		return v, nil
	}
}
