package service

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// LocalSelectionManager is the in-process host side of the selection
// protocol. It acknowledges every request immediately.
type LocalSelectionManager struct {
	mu       sync.Mutex
	selected map[string]struct{}
}

// NewLocalSelectionManager creates an empty selection manager.
func NewLocalSelectionManager() *LocalSelectionManager {
	return &LocalSelectionManager{selected: map[string]struct{}{}}
}

// Select replaces the selection with keys, or adds them when multi is set,
// and returns the resulting selection.
func (m *LocalSelectionManager) Select(ctx context.Context, keys []string, multi bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !multi {
		m.selected = map[string]struct{}{}
	}
	for _, k := range keys {
		m.selected[k] = struct{}{}
	}
	out := make([]string, 0, len(m.selected))
	for k := range m.selected {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Clear empties the selection.
func (m *LocalSelectionManager) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.selected = map[string]struct{}{}
	m.mu.Unlock()
	return nil
}

// ShowContextMenu has no menu to open in process; it only logs the request.
func (m *LocalSelectionManager) ShowContextMenu(ctx context.Context, key string, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("context menu for %q at (%.0f, %.0f)", key, x, y)
	return nil
}

var _ flow.SelectionManager = (*LocalSelectionManager)(nil)
