package flow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidthScale(t *testing.T) {
	t.Parallel()

	withWidth := func(w float64) RouteRecord {
		r := route(0, 0, 1, 1)
		r.LineWidth = w
		return r
	}

	t.Run("flat without metrics", func(t *testing.T) {
		t.Parallel()
		s := NewWidthScale([]RouteRecord{route(0, 0, 1, 1)}, 3, 9, 3)
		assert.Equal(t, 3.0, s.Width(math.NaN()))
		assert.Equal(t, 3.0, s.Width(100))
	})

	t.Run("square root interpolation", func(t *testing.T) {
		t.Parallel()
		records := []RouteRecord{withWidth(0), withWidth(25), withWidth(100)}
		s := NewWidthScale(records, 2, 8, 2)
		assert.InDelta(t, 2, s.Width(0), 1e-12)
		assert.InDelta(t, 2+0.5*6, s.Width(25), 1e-12)
		assert.InDelta(t, 8, s.Width(100), 1e-12)
	})

	t.Run("clamped outside the batch range", func(t *testing.T) {
		t.Parallel()
		s := NewWidthScale([]RouteRecord{withWidth(10), withWidth(20)}, 1, 3, 1)
		assert.InDelta(t, 1, s.Width(-50), 1e-12)
		assert.InDelta(t, 3, s.Width(500), 1e-12)
	})

	t.Run("equal metrics do not divide by zero", func(t *testing.T) {
		t.Parallel()
		s := NewWidthScale([]RouteRecord{withWidth(5), withWidth(5)}, 3, 9, 3)
		w := s.Width(5)
		assert.False(t, math.IsNaN(w))
		assert.InDelta(t, 3, w, 1e-12)
	})

	t.Run("missing metric in a metric batch is thinnest", func(t *testing.T) {
		t.Parallel()
		s := NewWidthScale([]RouteRecord{withWidth(5), route(0, 0, 1, 1)}, 3, 9, 3)
		assert.Equal(t, 3.0, s.Width(math.NaN()))
	})
}

func TestOpacityPrecedence(t *testing.T) {
	t.Parallel()

	a := route(0, 0, 1, 1)
	a.Row, a.Identity = 0, "row:0"
	b := route(0, 0, 1, 1)
	b.Row, b.Identity = 1, "row:1"

	t.Run("no selection is fully opaque", func(t *testing.T) {
		t.Parallel()
		s := &StyleResolver{}
		assert.Equal(t, 1.0, s.Opacity(a))
		assert.Equal(t, 1.0, s.Opacity(b))
	})

	t.Run("selection dims the rest", func(t *testing.T) {
		t.Parallel()
		s := &StyleResolver{Selection: NewSelection("row:1")}
		assert.Equal(t, 0.3, s.Opacity(a))
		assert.Equal(t, 1.0, s.Opacity(b))
	})

	t.Run("highlight ignores selection", func(t *testing.T) {
		t.Parallel()
		s := &StyleResolver{
			Selection:  NewSelection("row:1"),
			Highlights: NewHighlights([]any{12.0, nil}),
		}
		assert.Equal(t, 1.0, s.Opacity(a), "highlighted though not selected")
		assert.Equal(t, 0.3, s.Opacity(b), "selected though not highlighted")
	})

	t.Run("all-nil highlight column is no context", func(t *testing.T) {
		t.Parallel()
		h := NewHighlights([]any{nil, nil})
		assert.False(t, h.Active())
		assert.Equal(t, NoHighlightContext, h.State(0))
		s := &StyleResolver{Selection: NewSelection("row:0"), Highlights: h}
		assert.Equal(t, 1.0, s.Opacity(a))
		assert.Equal(t, 0.3, s.Opacity(b))
	})
}

func TestStyleResolve(t *testing.T) {
	t.Parallel()

	r := route(1, 1, 2, 2)
	r.Identity = "row:0"
	records := []RouteRecord{r}
	scale := RadiusScale{Min: 3, Max: 7.5}

	table := &OverrideTable{}
	table.SetRow(RoleDestination, 0, "#ff00ff")

	s := &StyleResolver{
		Colors: NewColorResolver(DefaultSettings(), table, NewColorCache(nil)),
		Widths: NewWidthScale(records, 3, 9, 3),
	}
	style := s.Resolve(r, Aggregate(records, OriginEnd, scale), Aggregate(records, DestinationEnd, scale))

	assert.Equal(t, RenderStyle{
		LineColor:         "#007ACC",
		OriginColor:       "#007ACC",
		DestinationColor:  "#ff00ff",
		Width:             3,
		Opacity:           1,
		OriginRadius:      7.5,
		DestinationRadius: 7.5,
	}, style)
}
