package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// RoleMap names the result column bound to each data role. Empty names leave
// the role unbound.
type RoleMap struct {
	Origin      string   `json:"origin,omitempty" doc:"Origin label column" example:"origin"`
	OriginLat   string   `json:"originLat,omitempty" doc:"Origin latitude column" example:"origin_lat"`
	OriginLng   string   `json:"originLng,omitempty" doc:"Origin longitude column" example:"origin_lng"`
	Destination string   `json:"destination,omitempty" doc:"Destination label column"`
	DestLat     string   `json:"destLat,omitempty" doc:"Destination latitude column"`
	DestLng     string   `json:"destLng,omitempty" doc:"Destination longitude column"`
	LineWidth   string   `json:"lineWidth,omitempty" doc:"Line width metric column"`
	OriginSize  string   `json:"originSize,omitempty" doc:"Origin bubble size column"`
	DestSize    string   `json:"destSize,omitempty" doc:"Destination bubble size column"`
	Category    string   `json:"category,omitempty" doc:"Legend category column"`
	Identity    string   `json:"identity,omitempty" doc:"Identity key column"`
	Highlights  string   `json:"highlights,omitempty" doc:"Highlight column"`
	Tooltips    []string `json:"tooltips,omitempty" doc:"Tooltip columns"`
}

// DefaultRoles binds every role to its snake_case column name.
func DefaultRoles() RoleMap {
	return RoleMap{
		Origin:      "origin",
		OriginLat:   "origin_lat",
		OriginLng:   "origin_lng",
		Destination: "destination",
		DestLat:     "dest_lat",
		DestLng:     "dest_lng",
		LineWidth:   "line_width",
		OriginSize:  "origin_size",
		DestSize:    "dest_size",
		Category:    "category",
		Identity:    "identity",
	}
}

// withDefaults fills the coordinate roles left empty.
func (m RoleMap) withDefaults() RoleMap {
	d := DefaultRoles()
	if m.OriginLat == "" {
		m.OriginLat = d.OriginLat
	}
	if m.OriginLng == "" {
		m.OriginLng = d.OriginLng
	}
	if m.DestLat == "" {
		m.DestLat = d.DestLat
	}
	if m.DestLng == "" {
		m.DestLng = d.DestLng
	}
	return m
}

// LoadColumns runs query and binds its result columns to roles. The four
// coordinate columns must be present; every other role is optional and left
// nil when its column is missing.
func LoadColumns(ctx context.Context, conn *sql.DB, query string, roles RoleMap) (flow.Columns, error) {
	roles = roles.withDefaults()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return flow.Columns{}, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return flow.Columns{}, fmt.Errorf("read columns: %w", err)
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	for _, required := range []string{roles.OriginLat, roles.OriginLng, roles.DestLat, roles.DestLng} {
		if _, ok := index[required]; !ok {
			return flow.Columns{}, fmt.Errorf("missing coordinate column %q", required)
		}
	}

	cols := flow.Columns{CategoryName: roles.Category}
	targets := []struct {
		name string
		dst  *[]any
	}{
		{roles.Origin, &cols.Origin},
		{roles.OriginLat, &cols.OriginLat},
		{roles.OriginLng, &cols.OriginLng},
		{roles.Destination, &cols.Destination},
		{roles.DestLat, &cols.DestLat},
		{roles.DestLng, &cols.DestLng},
		{roles.LineWidth, &cols.LineWidth},
		{roles.OriginSize, &cols.OriginSize},
		{roles.DestSize, &cols.DestSize},
		{roles.Category, &cols.Category},
		{roles.Identity, &cols.Identity},
		{roles.Highlights, &cols.Highlights},
	}

	type binding struct {
		col int
		dst *[]any
	}
	var bound []binding
	for _, t := range targets {
		if i, ok := index[t.name]; ok && t.name != "" {
			*t.dst = []any{}
			bound = append(bound, binding{col: i, dst: t.dst})
		}
	}
	if _, ok := index[roles.Category]; !ok || roles.Category == "" {
		cols.CategoryName = ""
	}
	for _, name := range roles.Tooltips {
		if _, ok := index[name]; !ok {
			continue
		}
		cols.Tooltips = append(cols.Tooltips, flow.TooltipColumn{Name: name, Values: []any{}})
	}

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return flow.Columns{}, fmt.Errorf("scan row: %w", err)
		}
		for _, b := range bound {
			*b.dst = append(*b.dst, normalizeValue(values[b.col]))
		}
		for i := range cols.Tooltips {
			tc := &cols.Tooltips[i]
			tc.Values = append(tc.Values, normalizeValue(values[index[tc.Name]]))
		}
	}
	if err := rows.Err(); err != nil {
		return flow.Columns{}, fmt.Errorf("iterate rows: %w", err)
	}
	return cols, nil
}

// normalizeValue converts driver-specific values into plain Go values.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case duckdb.Decimal:
		return n.Float64()
	case interface{ Float64() float64 }:
		return n.Float64()
	default:
		return v
	}
}

// SourceQuery returns a query reading every row of a CSV, Parquet or JSON
// file.
func SourceQuery(path string) (string, error) {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "SELECT * FROM read_csv_auto(" + quoted + ")", nil
	case ".parquet", ".geoparquet":
		return "SELECT * FROM read_parquet(" + quoted + ")", nil
	case ".json", ".ndjson":
		return "SELECT * FROM read_json_auto(" + quoted + ")", nil
	default:
		return "", fmt.Errorf("unsupported source file %q", filepath.Base(path))
	}
}
