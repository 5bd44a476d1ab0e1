package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// VisualService owns one flow map: the bound dataset, the composer and its
// color cache, and the selection. Every change recomposes synchronously and
// publishes the new frame on the bus.
type VisualService struct {
	settings  *SettingsService
	bus       *EventBus
	selection *flow.SelectionHandler

	mu       sync.Mutex
	composer *flow.Composer
	dataset  Dataset
	source   string
	seq      uint64
	frame    Frame
}

// NewVisualService creates a visual with an empty dataset. host answers
// selection requests; nil uses a LocalSelectionManager.
func NewVisualService(settings *SettingsService, bus *EventBus, host flow.SelectionManager) *VisualService {
	if host == nil {
		host = NewLocalSelectionManager()
	}
	if bus == nil {
		bus = NewEventBus()
	}
	v := &VisualService{
		settings: settings,
		bus:      bus,
		composer: flow.NewComposer(),
	}
	v.selection = flow.NewSelectionHandler(host, func(s flow.SelectionState) {
		v.recompose(s)
		v.bus.Publish(Event{Resource: ResourceSelection, Action: ActionUpdated})
	})
	v.recompose(flow.SelectionState{})
	return v
}

// Bus returns the event bus frames are published on.
func (v *VisualService) Bus() *EventBus { return v.bus }

// Current returns the latest frame.
func (v *VisualService) Current() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

// Dataset returns the bound dataset.
func (v *VisualService) Dataset() Dataset {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dataset
}

// Info summarises the bound dataset.
func (v *VisualService) Info() DatasetInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	info := DatasetInfo{
		Rows:        v.dataset.Columns.Len(),
		HasCategory: v.dataset.Columns.HasCategory(),
		Source:      v.source,
	}
	if v.frame.Composition != nil {
		info.Routes = len(v.frame.Composition.Routes)
	}
	return info
}

// SetDataset binds new rows and recomposes. source describes where the rows
// came from.
func (v *VisualService) SetDataset(ds Dataset, source string) Frame {
	v.mu.Lock()
	v.dataset = ds
	v.source = source
	v.mu.Unlock()

	v.bus.Publish(Event{Resource: ResourceDataset, Action: ActionUpdated})
	return v.recompose(v.selection.State())
}

// Settings returns the current visual settings.
func (v *VisualService) Settings() flow.Settings { return v.settings.Get() }

// UpdateSettings validates, stores and applies new settings.
func (v *VisualService) UpdateSettings(s flow.Settings) (flow.Settings, error) {
	updated, err := v.settings.Update(s)
	if err != nil {
		return flow.Settings{}, err
	}
	v.bus.Publish(Event{Resource: ResourceSettings, Action: ActionUpdated})
	v.recompose(v.selection.State())
	return updated, nil
}

// Selection returns the current selection.
func (v *VisualService) Selection() flow.SelectionState { return v.selection.State() }

// Select selects keys through the host.
func (v *VisualService) Select(ctx context.Context, keys []string, multi bool) (flow.SelectionState, error) {
	return v.selection.Select(ctx, keys, multi)
}

// ClearSelection clears the selection through the host.
func (v *VisualService) ClearSelection(ctx context.Context) (flow.SelectionState, error) {
	return v.selection.Clear(ctx)
}

// ToggleEndpoint handles a click on the bubble at p.
func (v *VisualService) ToggleEndpoint(ctx context.Context, p orb.Point, multi bool) (flow.SelectionState, error) {
	var records []flow.RouteRecord
	if comp := v.Current().Composition; comp != nil {
		records = comp.Records()
	}
	return v.selection.ToggleEndpoint(ctx, records, p, multi)
}

// ShowContextMenu forwards a context menu request to the host.
func (v *VisualService) ShowContextMenu(ctx context.Context, key string, x, y float64) (bool, error) {
	return v.selection.ShowContextMenu(ctx, key, x, y)
}

// Recompose runs a composition cycle with the current state.
func (v *VisualService) Recompose() Frame {
	return v.recompose(v.selection.State())
}

func (v *VisualService) recompose(sel flow.SelectionState) Frame {
	v.mu.Lock()
	in := flow.Input{
		Columns:   v.dataset.Columns,
		Settings:  v.settings.Get(),
		Selection: sel,
	}
	if v.dataset.Overrides != nil {
		in.Overrides = v.dataset.Overrides
	}

	comp, err := v.composer.Compose(in)
	v.seq++
	frame := Frame{
		ID:          uuid.NewString(),
		Sequence:    v.seq,
		ComposedAt:  time.Now().UTC(),
		Composition: comp,
	}
	action := ActionComposed
	if err != nil {
		log.Printf("Composition %d failed: %v", frame.Sequence, err)
		frame.Error = err.Error()
		frame.Composition = EmptyComposition()
		action = ActionFailed
	}
	v.frame = frame
	v.mu.Unlock()

	v.bus.Publish(Event{Resource: ResourceComposition, Action: action, ID: frame.ID})
	return frame
}

// EmptyComposition is what a failed cycle renders: nothing.
func EmptyComposition() *flow.Composition {
	return &flow.Composition{
		Routes:       []flow.StyledRoute{},
		Origins:      []*flow.EndpointCluster{},
		Destinations: []*flow.EndpointCluster{},
		Legend:       flow.Legend{Entries: []flow.LegendEntry{}},
	}
}
