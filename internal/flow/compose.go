package flow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Input is everything one composition cycle depends on.
type Input struct {
	Columns   Columns
	Overrides Overrides
	Settings  Settings
	Selection SelectionState
}

// TooltipItem is one line of a tooltip.
type TooltipItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StyledRoute is a validated record with its resolved style and path.
type StyledRoute struct {
	RouteRecord
	Style   RenderStyle    `json:"style"`
	Path    orb.LineString `json:"path" doc:"Sampled path as [lng, lat] pairs"`
	Tooltip []TooltipItem  `json:"tooltip,omitempty"`
}

// LegendEntry is one category in the legend.
type LegendEntry struct {
	Label    string `json:"label" doc:"Display label"`
	Value    string `json:"value" doc:"Raw category value"`
	Color    string `json:"color" doc:"Resolved legend color"`
	Identity string `json:"identity" doc:"Selection identity of the category"`
	Selected bool   `json:"selected"`
}

// Legend is the legend block of a composition.
type Legend struct {
	Show     bool          `json:"show"`
	Position string        `json:"position"`
	Title    string        `json:"title,omitempty"`
	FontSize float64       `json:"fontSize"`
	Entries  []LegendEntry `json:"entries"`
}

// Composition is the output of one cycle.
type Composition struct {
	Routes       []StyledRoute      `json:"routes"`
	Origins      []*EndpointCluster `json:"origins"`
	Destinations []*EndpointCluster `json:"destinations"`
	Legend       Legend             `json:"legend"`
	Bounds       *orb.Bound         `json:"bounds,omitempty" doc:"Bounding box of every endpoint"`
	Background   string             `json:"background,omitempty" doc:"High-contrast background color"`
}

// Records returns the validated records in route order.
func (c *Composition) Records() []RouteRecord {
	out := make([]RouteRecord, len(c.Routes))
	for i, r := range c.Routes {
		out[i] = r.RouteRecord
	}
	return out
}

// Composer runs composition cycles. It owns the category color cache, the
// only state kept between cycles. A Composer is not safe for concurrent use.
type Composer struct {
	cache *ColorCache
}

// NewComposer creates a composer with a fresh color cache.
func NewComposer() *Composer {
	return &Composer{cache: NewColorCache(nil)}
}

// Cache exposes the category color cache.
func (c *Composer) Cache() *ColorCache { return c.cache }

// Compose runs a full cycle: normalize, refresh the color cache through the
// legend, aggregate endpoints, curve and style every route. A panic inside
// the cycle is returned as an error so the caller can render nothing.
func (c *Composer) Compose(in Input) (comp *Composition, err error) {
	defer func() {
		if p := recover(); p != nil {
			comp, err = nil, fmt.Errorf("compose: %v", p)
		}
	}()
	return c.compose(in), nil
}

func (c *Composer) compose(in Input) *Composition {
	settings := in.Settings
	records := Normalize(in.Columns)
	colors := NewColorResolver(settings, in.Overrides, c.cache)

	styles := &StyleResolver{
		Colors:      colors,
		Widths:      NewWidthScale(records, settings.MinWidth(), settings.MaxWidth(), settings.Route.LineWidth),
		Selection:   in.Selection,
		Highlights:  NewHighlights(in.Columns.Highlights),
		HasCategory: in.Columns.HasCategory(),
	}

	comp := &Composition{
		Legend: c.legend(in, records, colors),
	}
	if settings.Contrast.HighContrast {
		comp.Background = settings.Contrast.Background
	}

	radii := RadiusScale{Min: settings.MinRadius(), Max: settings.MaxRadius()}
	origins := Aggregate(records, OriginEnd, radii)
	destinations := Aggregate(records, DestinationEnd, radii)

	comp.Routes = make([]StyledRoute, len(records))
	points := make(orb.MultiPoint, 0, 2*len(records))
	for i, r := range records {
		path := Curve(r.OriginPoint(), r.DestPoint())
		if settings.Route.StraightLines {
			path = Straight(r.OriginPoint(), r.DestPoint())
		}
		comp.Routes[i] = StyledRoute{
			RouteRecord: r,
			Style:       styles.Resolve(r, origins, destinations),
			Path:        path,
			Tooltip:     routeTooltip(in.Columns, r),
		}
		points = append(points, r.OriginPoint(), r.DestPoint())
	}
	if len(points) > 0 {
		b := points.Bound()
		comp.Bounds = &b
	}

	comp.Origins = finishClusters(origins, comp.Routes, in.Columns)
	comp.Destinations = finishClusters(destinations, comp.Routes, in.Columns)
	return comp
}

// legend resolves one entry per distinct category, sorted by value. Entries
// are resolved before any route so palette assignment follows legend order.
func (c *Composer) legend(in Input, records []RouteRecord, colors *ColorResolver) Legend {
	ls := in.Settings.Legend
	lg := Legend{
		Show:     ls.Show && in.Columns.HasCategory() && len(records) > 0,
		Position: ls.Position,
		FontSize: ls.FontSize,
		Entries:  []LegendEntry{},
	}
	if ls.ShowTitle {
		lg.Title = firstNonEmpty(strings.TrimSpace(ls.Title), in.Columns.CategoryName, "Legend")
	}
	if !in.Columns.HasCategory() {
		return lg
	}

	first := map[string]RouteRecord{}
	var values []string
	for _, r := range records {
		if _, ok := first[r.Category]; ok {
			continue
		}
		first[r.Category] = r
		values = append(values, r.Category)
	}
	sort.Strings(values)

	for _, v := range values {
		r := first[v]
		selected := in.Selection.Contains(r.Identity)
		label := v
		if label == "" {
			label = "(Blank)"
		}
		lg.Entries = append(lg.Entries, LegendEntry{
			Label:    label,
			Value:    v,
			Identity: r.Identity,
			Selected: selected,
			Color: colors.Resolve(ColorRequest{
				Role:        RoleLine,
				Row:         r.Row,
				CategoryRow: r.CategoryRow,
				Category:    v,
				HasCategory: true,
				Selected:    selected,
			}),
		})
	}
	return lg
}

// finishClusters colors each cluster from its first member and gives it the
// strongest opacity among its members.
func finishClusters(cs *Clusters, routes []StyledRoute, cols Columns) []*EndpointCluster {
	for _, cl := range cs.List {
		rep := routes[cl.Members[0]]
		if cs.Endpoint == DestinationEnd {
			cl.Color = rep.Style.DestinationColor
		} else {
			cl.Color = rep.Style.OriginColor
		}
		for _, m := range cl.Members {
			if o := routes[m].Style.Opacity; o > cl.Opacity {
				cl.Opacity = o
			}
		}
		cl.Tooltip = endpointTooltip(cols, rep.RouteRecord, cs.Endpoint)
	}
	if cs.List == nil {
		return []*EndpointCluster{}
	}
	return cs.List
}

func routeTooltip(cols Columns, r RouteRecord) []TooltipItem {
	if len(cols.Tooltips) > 0 {
		return tooltipColumns(cols, r.Row)
	}
	return []TooltipItem{
		{Name: "Origin", Value: placeLabel(r.Origin, r.OriginLat, r.OriginLng)},
		{Name: "Destination", Value: placeLabel(r.Destination, r.DestLat, r.DestLng)},
	}
}

func endpointTooltip(cols Columns, r RouteRecord, end Endpoint) []TooltipItem {
	if len(cols.Tooltips) > 0 {
		return tooltipColumns(cols, r.Row)
	}
	if end == DestinationEnd {
		return []TooltipItem{{Name: "Destination", Value: placeLabel(r.Destination, r.DestLat, r.DestLng)}}
	}
	return []TooltipItem{{Name: "Origin", Value: placeLabel(r.Origin, r.OriginLat, r.OriginLng)}}
}

func tooltipColumns(cols Columns, row int) []TooltipItem {
	items := make([]TooltipItem, len(cols.Tooltips))
	for i, tc := range cols.Tooltips {
		items[i] = TooltipItem{Name: tc.Name, Value: stringAt(tc.Values, row)}
	}
	return items
}

func placeLabel(label string, lat, lng float64) string {
	if label != "" {
		return label
	}
	return strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lng, 'f', -1, 64)
}
