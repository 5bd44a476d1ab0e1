package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

func TestRenderLegend(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)

	html, err := r.Render("legend", flow.Legend{
		Show:     true,
		Position: "Left",
		Title:    "Mode <air>",
		FontSize: 8,
		Entries: []flow.LegendEntry{
			{Label: "air", Value: "air", Color: "#118DFF", Identity: "cat:0", Selected: true},
			{Label: "(Blank)", Color: "#12239E", Identity: "cat:3"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, html, `class="legend legend-Left"`)
	assert.Contains(t, html, "Mode &lt;air&gt;")
	assert.Contains(t, html, `class="legend-item selected" data-identity="cat:0"`)
	assert.Contains(t, html, "background-color: #118DFF")
	assert.Contains(t, html, "(Blank)")
}

func TestRenderHiddenLegend(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)
	html, err := r.Render("legend", flow.Legend{Show: false, Entries: []flow.LegendEntry{{Label: "x"}}})
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)
	_, err = r.Render("missing", nil)
	assert.Error(t, err)
}
