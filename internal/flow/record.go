// Package flow composes origin-destination routes into styled, curved paths
// and sized endpoint bubbles.
//
// The package is a pure transform: it never performs I/O. A [Composer] takes
// raw [Columns], formatting [Overrides], [Settings] and a [SelectionState]
// and returns a [Composition] ready to be drawn by a map surface.
package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Columns holds the raw host values by role. Every slice is index-aligned to
// the source rows; any slice may be nil or shorter than the others.
type Columns struct {
	Origin      []any `json:"origin,omitempty" doc:"Origin labels"`
	OriginLat   []any `json:"originLat" doc:"Origin latitudes"`
	OriginLng   []any `json:"originLng" doc:"Origin longitudes"`
	Destination []any `json:"destination,omitempty" doc:"Destination labels"`
	DestLat     []any `json:"destLat" doc:"Destination latitudes"`
	DestLng     []any `json:"destLng" doc:"Destination longitudes"`
	LineWidth   []any `json:"lineWidth,omitempty" doc:"Line width metric"`
	OriginSize  []any `json:"originSize,omitempty" doc:"Origin bubble size metric"`
	DestSize    []any `json:"destSize,omitempty" doc:"Destination bubble size metric"`
	Category    []any `json:"category,omitempty" doc:"Legend category values"`
	Identity    []any `json:"identity,omitempty" doc:"Explicit identity keys"`
	// Highlights is the cross-filter highlight column; nil entries are not
	// highlighted.
	Highlights []any `json:"highlights,omitempty" doc:"Cross-filter highlight values"`

	CategoryName string          `json:"categoryName,omitempty" doc:"Display name of the category column"`
	Tooltips     []TooltipColumn `json:"tooltips,omitempty" doc:"Tooltip columns"`
}

// TooltipColumn is an extra column shown in route and bubble tooltips.
type TooltipColumn struct {
	Name   string `json:"name" doc:"Display name"`
	Values []any  `json:"values" doc:"Values"`
}

// Len returns the number of source rows.
func (c Columns) Len() int { return len(c.OriginLat) }

// HasCategory reports whether a category column was supplied.
func (c Columns) HasCategory() bool { return c.Category != nil }

// RouteRecord is one validated row.
type RouteRecord struct {
	Row         int     `json:"row" doc:"Source row index"`
	Identity    string  `json:"identity" doc:"Selection identity key"`
	Origin      string  `json:"origin" doc:"Origin label"`
	OriginLat   float64 `json:"originLat"`
	OriginLng   float64 `json:"originLng"`
	Destination string  `json:"destination" doc:"Destination label"`
	DestLat     float64 `json:"destLat"`
	DestLng     float64 `json:"destLng"`
	LineWidth   float64 `json:"-"`
	OriginSize  float64 `json:"-"`
	DestSize    float64 `json:"-"`
	Category    string  `json:"category,omitempty" doc:"Legend category"`
	CategoryRow int     `json:"-"`
}

// OriginPoint returns the origin as an orb point (lng, lat).
func (r RouteRecord) OriginPoint() orb.Point { return orb.Point{r.OriginLng, r.OriginLat} }

// DestPoint returns the destination as an orb point (lng, lat).
func (r RouteRecord) DestPoint() orb.Point { return orb.Point{r.DestLng, r.DestLat} }

// Normalize turns raw columns into route records, dropping every row whose
// coordinates are not finite or fall outside WGS84 bounds. Identity keys are
// assigned in the source index space before filtering.
func Normalize(cols Columns) []RouteRecord {
	n := cols.Len()
	ids, catRows := identities(cols)

	records := make([]RouteRecord, 0, n)
	for i := 0; i < n; i++ {
		r := RouteRecord{
			Row:         i,
			Identity:    ids[i],
			Origin:      stringAt(cols.Origin, i),
			OriginLat:   floatAt(cols.OriginLat, i),
			OriginLng:   floatAt(cols.OriginLng, i),
			Destination: stringAt(cols.Destination, i),
			DestLat:     floatAt(cols.DestLat, i),
			DestLng:     floatAt(cols.DestLng, i),
			LineWidth:   floatAt(cols.LineWidth, i),
			OriginSize:  floatAt(cols.OriginSize, i),
			DestSize:    floatAt(cols.DestSize, i),
			Category:    stringAt(cols.Category, i),
			CategoryRow: catRows[i],
		}
		if !ValidRecord(r) {
			continue
		}
		records = append(records, r)
	}
	return records
}

// ValidRecord reports whether both endpoints are valid coordinates.
func ValidRecord(r RouteRecord) bool {
	return ValidLat(r.OriginLat) && ValidLat(r.DestLat) &&
		ValidLng(r.OriginLng) && ValidLng(r.DestLng)
}

// ValidLat reports whether v is a finite latitude.
func ValidLat(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -90 && v <= 90
}

// ValidLng reports whether v is a finite longitude.
func ValidLng(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -180 && v <= 180
}

// identities builds one key per source row. An explicit identity column wins;
// with a category column every row of a category shares the key of the
// category's first row; otherwise the key is the row index. The second result
// holds each row's category first row, or the row itself without categories.
func identities(cols Columns) ([]string, []int) {
	n := cols.Len()
	ids := make([]string, n)
	catRows := make([]int, n)

	firstRow := map[string]int{}
	if cols.HasCategory() {
		for i := 0; i < n; i++ {
			cat := stringAt(cols.Category, i)
			if _, ok := firstRow[cat]; !ok {
				firstRow[cat] = i
			}
		}
	}

	for i := 0; i < n; i++ {
		catRows[i] = i
		if cols.HasCategory() {
			catRows[i] = firstRow[stringAt(cols.Category, i)]
		}
		switch {
		case stringAt(cols.Identity, i) != "":
			ids[i] = stringAt(cols.Identity, i)
		case cols.HasCategory():
			ids[i] = fmt.Sprintf("cat:%d", firstRow[stringAt(cols.Category, i)])
		default:
			ids[i] = fmt.Sprintf("row:%d", i)
		}
	}
	return ids, catRows
}

// floatAt parses values[i] as a decimal number, returning NaN when the value
// is missing or unparseable.
func floatAt(values []any, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return ParseFloat(values[i])
}

// ParseFloat converts a raw host value to float64. Strings are parsed with
// standard decimal parsing; anything else that is not numeric yields NaN.
func ParseFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case fmt.Stringer:
		return ParseFloat(n.String())
	default:
		return math.NaN()
	}
}

func stringAt(values []any, i int) string {
	if i < 0 || i >= len(values) || values[i] == nil {
		return ""
	}
	switch v := values[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
