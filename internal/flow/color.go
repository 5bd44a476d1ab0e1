package flow

import "strings"

// Role identifies which drawn element a color is resolved for.
type Role string

const (
	RoleLine        Role = "line"
	RoleOrigin      Role = "origin"
	RoleDestination Role = "destination"
)

// Roles lists every color role in drawing order.
var Roles = []Role{RoleLine, RoleOrigin, RoleDestination}

// Overrides looks up user formatting at the three override levels. An empty
// string means nothing is set at that level.
type Overrides interface {
	// RowColor is the per-row override stored at the role's own path.
	RowColor(role Role, row int) string
	// RowFallbackColor is the per-row override stored under the shared
	// "dataPoint fill" object of the same column.
	RowFallbackColor(role Role, row int) string
	// GlobalColor applies to every row of the role.
	GlobalColor(role Role) string
}

// Fill mirrors the host's fill object: {"solid": {"color": "#rrggbb"}}.
type Fill struct {
	Solid *SolidFill `json:"solid,omitempty" yaml:"solid,omitempty"`
}

// SolidFill is the solid color of a Fill.
type SolidFill struct {
	Color string `json:"color" yaml:"color"`
}

// Color returns the fill color, or "" when the fill is absent or empty.
func (f *Fill) Color() string {
	if f == nil || f.Solid == nil {
		return ""
	}
	return strings.TrimSpace(f.Solid.Color)
}

// SolidColor builds a Fill holding color.
func SolidColor(color string) *Fill {
	return &Fill{Solid: &SolidFill{Color: color}}
}

// OverrideTable is a value implementation of Overrides, keyed by role and
// source row.
type OverrideTable struct {
	Rows     map[Role]map[int]*Fill `json:"rows,omitempty" yaml:"rows,omitempty" doc:"Per-row overrides by role"`
	Fallback map[int]*Fill          `json:"fallback,omitempty" yaml:"fallback,omitempty" doc:"Per-row dataPoint fill overrides"`
	Global   map[Role]*Fill         `json:"global,omitempty" yaml:"global,omitempty" doc:"Global overrides by role"`
}

// SetRow sets the exact-path override for role at row.
func (t *OverrideTable) SetRow(role Role, row int, color string) {
	if t.Rows == nil {
		t.Rows = map[Role]map[int]*Fill{}
	}
	if t.Rows[role] == nil {
		t.Rows[role] = map[int]*Fill{}
	}
	t.Rows[role][row] = SolidColor(color)
}

// SetFallback sets the dataPoint fill override for row.
func (t *OverrideTable) SetFallback(row int, color string) {
	if t.Fallback == nil {
		t.Fallback = map[int]*Fill{}
	}
	t.Fallback[row] = SolidColor(color)
}

// SetGlobal sets the global override for role.
func (t *OverrideTable) SetGlobal(role Role, color string) {
	if t.Global == nil {
		t.Global = map[Role]*Fill{}
	}
	t.Global[role] = SolidColor(color)
}

func (t *OverrideTable) RowColor(role Role, row int) string {
	if t == nil {
		return ""
	}
	return t.Rows[role][row].Color()
}

func (t *OverrideTable) RowFallbackColor(_ Role, row int) string {
	if t == nil {
		return ""
	}
	return t.Fallback[row].Color()
}

func (t *OverrideTable) GlobalColor(role Role) string {
	if t == nil {
		return ""
	}
	return t.Global[role].Color()
}

// Palette is the category palette, assigned round-robin.
var Palette = []string{
	"#118DFF", "#12239E", "#E66C37", "#6B007B", "#E044A7",
	"#744EC2", "#D9B300", "#D64550", "#197278", "#1AAB40",
}

// ColorCache assigns palette colors to categories on first sight and keeps
// them for the lifetime of the cache. It is append-only.
type ColorCache struct {
	palette []string
	colors  map[string]string
}

// NewColorCache creates an empty cache over palette (Palette when nil).
func NewColorCache(palette []string) *ColorCache {
	if len(palette) == 0 {
		palette = Palette
	}
	return &ColorCache{palette: palette, colors: map[string]string{}}
}

// Color returns the category's color, assigning the next palette entry when
// the category has not been seen before.
func (c *ColorCache) Color(category string) string {
	if color, ok := c.colors[category]; ok {
		return color
	}
	color := c.palette[len(c.colors)%len(c.palette)]
	c.colors[category] = color
	return color
}

// Len returns the number of categories seen.
func (c *ColorCache) Len() int { return len(c.colors) }

// ColorRequest is one color resolution.
type ColorRequest struct {
	Role Role
	Row  int
	// CategoryRow is the first source row of Category. The dataPoint fill
	// of a category lives there, so it is read instead of Row when
	// HasCategory is set.
	CategoryRow int
	Category    string
	HasCategory bool
	Selected    bool
}

// colorLookup is one step of the override chain; "" passes to the next step.
type colorLookup func(req ColorRequest) string

// ColorResolver resolves colors through the override chain:
// high contrast, row override, row fallback, global override, category
// cache, role default.
type ColorResolver struct {
	chain []colorLookup
}

// NewColorResolver builds the chain for one composition cycle.
func NewColorResolver(settings Settings, overrides Overrides, cache *ColorCache) *ColorResolver {
	if overrides == nil {
		overrides = (*OverrideTable)(nil)
	}
	contrast := settings.Contrast
	line := firstNonEmpty(settings.Route.DefaultColor, settings.Route.LineColor)
	defaults := map[Role]string{
		RoleLine:        line,
		RoleOrigin:      firstNonEmpty(settings.Bubble.OriginColor, line),
		RoleDestination: firstNonEmpty(settings.Bubble.DestinationColor, line),
	}

	chain := []colorLookup{
		func(req ColorRequest) string {
			if !contrast.HighContrast {
				return ""
			}
			if req.Selected {
				return contrast.foregroundSelected()
			}
			return contrast.foreground()
		},
		func(req ColorRequest) string { return overrides.RowColor(req.Role, req.Row) },
		func(req ColorRequest) string {
			if req.HasCategory {
				return overrides.RowFallbackColor(req.Role, req.CategoryRow)
			}
			return overrides.RowFallbackColor(req.Role, req.Row)
		},
		func(req ColorRequest) string { return overrides.GlobalColor(req.Role) },
		func(req ColorRequest) string {
			if !req.HasCategory || cache == nil {
				return ""
			}
			return cache.Color(req.Category)
		},
		func(req ColorRequest) string { return defaults[req.Role] },
	}
	return &ColorResolver{chain: chain}
}

// Resolve returns the first non-empty color in the chain.
func (r *ColorResolver) Resolve(req ColorRequest) string {
	for _, lookup := range r.chain {
		if color := strings.TrimSpace(lookup(req)); color != "" {
			return color
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
