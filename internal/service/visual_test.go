package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

func newVisual(t *testing.T) *VisualService {
	t.Helper()
	settings, err := NewSettingsService(t.TempDir())
	require.NoError(t, err)
	return NewVisualService(settings, NewEventBus(), nil)
}

func hubDataset() Dataset {
	return Dataset{Columns: flow.Columns{
		OriginLat: []any{1.0, 1.0, 3.0}, OriginLng: []any{1.0, 1.0, 3.0},
		DestLat: []any{5.0, 6.0, 7.0}, DestLng: []any{5.0, 6.0, 7.0},
	}}
}

func TestVisualStartsEmpty(t *testing.T) {
	t.Parallel()

	v := newVisual(t)
	f := v.Current()
	assert.Equal(t, uint64(1), f.Sequence)
	assert.NotEmpty(t, f.ID)
	require.NotNil(t, f.Composition)
	assert.Empty(t, f.Composition.Routes)
}

func TestVisualPublishesFrames(t *testing.T) {
	t.Parallel()

	v := newVisual(t)
	ch := v.Bus().Subscribe()
	defer v.Bus().Unsubscribe(ch)

	f := v.SetDataset(hubDataset(), "inline")
	assert.Len(t, f.Composition.Routes, 3)

	got := map[string]Event{}
	for i := 0; i < 2; i++ {
		ev := <-ch
		got[ev.Resource] = ev
	}
	assert.Equal(t, ActionUpdated, got[ResourceDataset].Action)
	assert.Equal(t, ActionComposed, got[ResourceComposition].Action)
	assert.Equal(t, f.ID, got[ResourceComposition].ID)

	info := v.Info()
	assert.Equal(t, DatasetInfo{Rows: 3, Routes: 3, Source: "inline"}, info)
}

func TestVisualSelectionRecomposes(t *testing.T) {
	t.Parallel()

	v := newVisual(t)
	v.SetDataset(hubDataset(), "inline")
	ctx := context.Background()

	sel, err := v.Select(ctx, []string{"row:2"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"row:2"}, sel.Keys())

	routes := v.Current().Composition.Routes
	assert.Equal(t, 0.3, routes[0].Style.Opacity)
	assert.Equal(t, 1.0, routes[2].Style.Opacity)

	_, err = v.ClearSelection(ctx)
	require.NoError(t, err)
	for _, r := range v.Current().Composition.Routes {
		assert.Equal(t, 1.0, r.Style.Opacity)
	}
}

func TestVisualToggleEndpoint(t *testing.T) {
	t.Parallel()

	v := newVisual(t)
	v.SetDataset(hubDataset(), "inline")
	ctx := context.Background()

	sel, err := v.ToggleEndpoint(ctx, orb.Point{1, 1}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"row:0", "row:1"}, sel.Keys())

	sel, err = v.ToggleEndpoint(ctx, orb.Point{1, 1}, false)
	require.NoError(t, err)
	assert.True(t, sel.Empty())
}

func TestVisualSettingsUpdate(t *testing.T) {
	t.Parallel()

	v := newVisual(t)
	v.SetDataset(hubDataset(), "inline")

	s := flow.DefaultSettings()
	s.Route.LineColor = "#222222"
	_, err := v.UpdateSettings(s)
	require.NoError(t, err)
	assert.Equal(t, "#222222", v.Current().Composition.Routes[0].Style.LineColor)

	s.Route.LineColor = "nope"
	_, err = v.UpdateSettings(s)
	require.Error(t, err)
	assert.Equal(t, "#222222", v.Settings().Route.LineColor)
}

func TestVisualCategoryColorsSurviveReload(t *testing.T) {
	t.Parallel()

	v := newVisual(t)
	v.SetDataset(Dataset{Columns: flow.Columns{
		OriginLat: []any{0.0, 1.0}, OriginLng: []any{0.0, 1.0},
		DestLat: []any{5.0, 5.0}, DestLng: []any{5.0, 5.0},
		Category: []any{"b", "a"},
	}}, "inline")
	before := v.Current().Composition.Routes[0].Style.LineColor

	f := v.SetDataset(Dataset{Columns: flow.Columns{
		OriginLat: []any{0.0}, OriginLng: []any{0.0},
		DestLat: []any{5.0}, DestLng: []any{5.0},
		Category: []any{"b"},
	}}, "inline")
	assert.Equal(t, before, f.Composition.Routes[0].Style.LineColor)
}

func TestLocalSelectionManager(t *testing.T) {
	t.Parallel()

	m := NewLocalSelectionManager()
	ctx := context.Background()

	got, err := m.Select(ctx, []string{"b", "a"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = m.Select(ctx, []string{"c"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = m.Select(ctx, []string{"c"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)

	require.NoError(t, m.Clear(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Select(cancelled, []string{"a"}, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventBusUnsubscribeTwice(t *testing.T) {
	t.Parallel()

	b := NewEventBus()
	ch := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Subscribers())
	b.Publish(Event{Resource: ResourceComposition})
}

func TestSourceService(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(sources, 0755))
	for _, name := range []string{"routes.csv", "big.parquet", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(sources, name), []byte("x"), 0644))
	}

	s := NewSourceService(dir)
	files, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []SourceFile{
		{Name: "big.parquet", Size: "1 B", FileType: "Parquet"},
		{Name: "routes.csv", Size: "1 B", FileType: "CSV"},
	}, files)

	path, err := s.Path("routes.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sources, "routes.csv"), path)

	for _, bad := range []string{"../routes.csv", "notes.txt", "missing.csv", ""} {
		_, err := s.Path(bad)
		assert.Error(t, err, bad)
	}

	empty, err := NewSourceService(t.TempDir()).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}
