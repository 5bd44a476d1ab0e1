package flow

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// SelectionState is an immutable set of selected identity keys. Changes
// produce a new state; the zero value is an empty selection.
type SelectionState struct {
	keys map[string]struct{}
}

// NewSelection returns a selection holding keys.
func NewSelection(keys ...string) SelectionState {
	if len(keys) == 0 {
		return SelectionState{}
	}
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return SelectionState{keys: m}
}

// Empty reports whether nothing is selected.
func (s SelectionState) Empty() bool { return len(s.keys) == 0 }

// Len returns the number of selected keys.
func (s SelectionState) Len() int { return len(s.keys) }

// Contains reports whether key is selected.
func (s SelectionState) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// ContainsAll reports whether every key is selected. It is false for no keys.
func (s SelectionState) ContainsAll(keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !s.Contains(k) {
			return false
		}
	}
	return true
}

// Keys returns the selected keys in sorted order.
func (s SelectionState) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HighlightState is the per-row cross-filter signal.
type HighlightState int

const (
	NoHighlightContext HighlightState = iota
	Highlighted
	NotHighlighted
)

// Highlights derives the per-row highlight state from a raw highlight
// column. A column counts as active when at least one entry is non-nil; in
// that case nil rows are NotHighlighted.
type Highlights struct {
	values []any
	active bool
}

// NewHighlights wraps a raw highlight column.
func NewHighlights(values []any) Highlights {
	for _, v := range values {
		if v != nil {
			return Highlights{values: values, active: true}
		}
	}
	return Highlights{}
}

// Active reports whether any row carries a highlight.
func (h Highlights) Active() bool { return h.active }

// State returns the highlight state of a source row.
func (h Highlights) State(row int) HighlightState {
	if !h.active {
		return NoHighlightContext
	}
	if row >= 0 && row < len(h.values) && h.values[row] != nil {
		return Highlighted
	}
	return NotHighlighted
}

// SelectionManager is the host side of the selection protocol. Each call
// may suspend until the host acknowledges it.
type SelectionManager interface {
	Select(ctx context.Context, keys []string, multi bool) ([]string, error)
	Clear(ctx context.Context) error
	ShowContextMenu(ctx context.Context, key string, x, y float64) error
}

// SelectionHandler owns the current selection. Every resolved host call
// replaces the selection as a whole and then runs onChange synchronously,
// so the caller can recompose before the next interaction.
type SelectionHandler struct {
	host     SelectionManager
	onChange func(SelectionState)

	// changeMu orders state swaps together with their onChange calls.
	changeMu  sync.Mutex
	mu        sync.RWMutex
	state     SelectionState
	menuShown atomic.Bool
}

// NewSelectionHandler creates a handler; onChange may be nil.
func NewSelectionHandler(host SelectionManager, onChange func(SelectionState)) *SelectionHandler {
	return &SelectionHandler{host: host, onChange: onChange}
}

// State returns the current selection.
func (h *SelectionHandler) State() SelectionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Select asks the host to select keys and adopts the host's answer.
func (h *SelectionHandler) Select(ctx context.Context, keys []string, multi bool) (SelectionState, error) {
	selected, err := h.host.Select(ctx, keys, multi)
	if err != nil {
		return h.State(), err
	}
	return h.replace(NewSelection(selected...)), nil
}

// Clear asks the host to clear the selection.
func (h *SelectionHandler) Clear(ctx context.Context) (SelectionState, error) {
	if err := h.host.Clear(ctx); err != nil {
		return h.State(), err
	}
	return h.replace(SelectionState{}), nil
}

// ToggleEndpoint implements a bubble click: when every route touching point
// is already selected the selection is cleared, otherwise those routes are
// selected.
func (h *SelectionHandler) ToggleEndpoint(ctx context.Context, records []RouteRecord, at orb.Point, multi bool) (SelectionState, error) {
	var keys []string
	seen := map[string]bool{}
	for _, i := range EndpointMembers(records, at) {
		k := records[i].Identity
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if h.State().ContainsAll(keys) {
		return h.Clear(ctx)
	}
	return h.Select(ctx, keys, multi)
}

// ShowContextMenu opens the host context menu unless one is already open.
// It reports whether a menu was requested.
func (h *SelectionHandler) ShowContextMenu(ctx context.Context, key string, x, y float64) (bool, error) {
	if !h.menuShown.CompareAndSwap(false, true) {
		return false, nil
	}
	defer h.menuShown.Store(false)
	return true, h.host.ShowContextMenu(ctx, key, x, y)
}

func (h *SelectionHandler) replace(s SelectionState) SelectionState {
	h.changeMu.Lock()
	defer h.changeMu.Unlock()

	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	if h.onChange != nil {
		h.onChange(s)
	}
	return s
}
