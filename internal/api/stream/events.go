// Package stream pushes recompositions to Datastar clients over SSE.
package stream

import (
	"context"
	"log"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-flowmap/internal/humastar"
	"github.com/joeblew999/plat-flowmap/internal/service"
	"github.com/joeblew999/plat-flowmap/internal/templates"
)

// Element selectors patched on the page.
const (
	LegendSelector = "#legend"
	StatusSelector = "#frame-status"
)

// EventHandler streams frames and accepts selection gestures from the UI.
type EventHandler struct {
	humastar.Handler
	visual *service.VisualService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(visual *service.VisualService, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		visual:  visual,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/stream/events", h.Events, huma.OperationTags("stream"))
	huma.Post(api, "/api/v1/stream/select", h.SelectRoute, huma.OperationTags("stream"))
	huma.Post(api, "/api/v1/stream/bubble", h.ClickBubble, huma.OperationTags("stream"))
}

// Events sends the current frame, then one update per recomposition until
// the client disconnects.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		subscriber := uuid.NewString()
		bus := h.visual.Bus()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)
		log.Printf("Stream %s connected", subscriber)
		defer log.Printf("Stream %s closed", subscriber)

		h.push(sse, h.visual.Current())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Resource != service.ResourceComposition {
					continue
				}
				frame := h.visual.Current()
				h.push(sse, frame)
				sse.DispatchCustomEvent("flow-composed", map[string]any{
					"id":     frame.ID,
					"action": ev.Action,
				})
			}
		}
	}), nil
}

func (h *EventHandler) push(sse humastar.SSE, frame service.Frame) {
	sse.Signals(FrameSignals(frame, h.visual.Selection().Keys()))
	if h.Renderer == nil {
		return
	}
	if html, err := h.Renderer.Render("legend", frame.Composition.Legend); err == nil {
		sse.Patch(html, LegendSelector)
	}
	if html, err := h.Renderer.Render("frame-status", frame); err == nil {
		sse.Patch(html, StatusSelector)
	}
}

// FrameSignals is the signal set a client binds to.
func FrameSignals(frame service.Frame, selected []string) map[string]any {
	signals := map[string]any{
		"frameId":  frame.ID,
		"sequence": frame.Sequence,
		"selected": selected,
		"error":    frame.Error,
	}
	if comp := frame.Composition; comp != nil {
		signals["routes"] = len(comp.Routes)
		signals["origins"] = len(comp.Origins)
		signals["destinations"] = len(comp.Destinations)
		if comp.Bounds != nil {
			signals["bounds"] = []float64{comp.Bounds.Min[0], comp.Bounds.Min[1], comp.Bounds.Max[0], comp.Bounds.Max[1]}
		}
	}
	return signals
}

// SelectRoute selects the route or legend entry named by the "identity"
// signal; an empty identity clears the selection.
func (h *EventHandler) SelectRoute(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		identity := signals.String("identity")
		if identity == "" {
			if _, err := h.visual.ClearSelection(ctx); err != nil {
				sse.Error(err.Error())
			}
			return
		}
		if _, err := h.visual.Select(ctx, []string{identity}, signals.Bool("multi")); err != nil {
			sse.Error(err.Error())
		}
	}), nil
}

// ClickBubble toggles the routes touching the bubble at the "lng"/"lat"
// signals.
func (h *EventHandler) ClickBubble(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !signals.Has("lng") || !signals.Has("lat") {
		return nil, huma.Error400BadRequest("lng and lat signals are required")
	}
	return h.Stream(func(sse humastar.SSE) {
		p := orb.Point{signals.Float("lng"), signals.Float("lat")}
		sel, err := h.visual.ToggleEndpoint(ctx, p, signals.Bool("multi"))
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{"selected": sel.Keys()})
	}), nil
}
