package flow

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	fullOpacity   = 1.0
	dimmedOpacity = 0.3
)

// RenderStyle is the resolved drawing style of one route.
type RenderStyle struct {
	LineColor         string  `json:"lineColor" doc:"Line color"`
	OriginColor       string  `json:"originColor" doc:"Origin bubble color"`
	DestinationColor  string  `json:"destinationColor" doc:"Destination bubble color"`
	Width             float64 `json:"width" doc:"Line width"`
	Opacity           float64 `json:"opacity" doc:"Line and bubble opacity"`
	OriginRadius      float64 `json:"originRadius" doc:"Origin bubble radius"`
	DestinationRadius float64 `json:"destinationRadius" doc:"Destination bubble radius"`
}

// WidthScale maps the line-width metric of a batch onto [Min, Max] with a
// square-root curve.
type WidthScale struct {
	Min  float64
	Max  float64
	Flat float64

	lo, span float64
	active   bool
}

// NewWidthScale fits the scale to the finite metrics in records. Without any
// usable metric the scale returns flat for every record.
func NewWidthScale(records []RouteRecord, minWidth, maxWidth, flat float64) WidthScale {
	s := WidthScale{Min: minWidth, Max: maxWidth, Flat: flat}

	var metrics []float64
	for _, r := range records {
		if isFinite(r.LineWidth) {
			metrics = append(metrics, r.LineWidth)
		}
	}
	if len(metrics) == 0 {
		return s
	}
	s.active = true
	s.lo = floats.Min(metrics)
	s.span = math.Max(floats.Max(metrics)-s.lo, 1e-6)
	return s
}

// Width returns the width for a metric value. A missing metric in a batch that
// has metrics maps to Min.
func (s WidthScale) Width(metric float64) float64 {
	if !s.active {
		return s.Flat
	}
	if !isFinite(metric) {
		return s.Min
	}
	norm := clamp01((metric - s.lo) / s.span)
	return s.Min + math.Sqrt(norm)*(s.Max-s.Min)
}

// StyleResolver combines color resolution, width scaling and
// selection/highlight state into one RenderStyle per route.
type StyleResolver struct {
	Colors     *ColorResolver
	Widths     WidthScale
	Selection  SelectionState
	Highlights Highlights
	// HasCategory mirrors Columns.HasCategory; without a category column the
	// category cache step is skipped.
	HasCategory bool
}

// Opacity returns the opacity of a route. An active highlight decides alone;
// otherwise selection membership decides.
func (s *StyleResolver) Opacity(r RouteRecord) float64 {
	if s.Highlights.Active() {
		if s.Highlights.State(r.Row) == Highlighted {
			return fullOpacity
		}
		return dimmedOpacity
	}
	if s.Selection.Empty() || s.Selection.Contains(r.Identity) {
		return fullOpacity
	}
	return dimmedOpacity
}

// Resolve returns the style of record r. Radii come from the endpoint
// clusters, which may be nil.
func (s *StyleResolver) Resolve(r RouteRecord, origins, destinations *Clusters) RenderStyle {
	selected := s.Selection.Contains(r.Identity)
	color := func(role Role) string {
		return s.Colors.Resolve(ColorRequest{
			Role:        role,
			Row:         r.Row,
			CategoryRow: r.CategoryRow,
			Category:    r.Category,
			HasCategory: s.HasCategory,
			Selected:    selected,
		})
	}

	style := RenderStyle{
		LineColor:        color(RoleLine),
		OriginColor:      color(RoleOrigin),
		DestinationColor: color(RoleDestination),
		Width:            s.Widths.Width(r.LineWidth),
		Opacity:          s.Opacity(r),
	}
	if c := origins.At(r.OriginPoint()); c != nil {
		style.OriginRadius = c.Radius
	}
	if c := destinations.At(r.DestPoint()); c != nil {
		style.DestinationRadius = c.Radius
	}
	return style
}
