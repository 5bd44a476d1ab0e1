// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-flowmap/internal/db"
	"github.com/joeblew999/plat-flowmap/internal/flow"
	"github.com/joeblew999/plat-flowmap/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Visual   *service.VisualService
	Settings *service.SettingsService
	Dataset  *service.DatasetService
	Source   *service.SourceService
}

// Types

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// ComposeBody is a stateless composition request.
type ComposeBody struct {
	Columns   flow.Columns        `json:"columns" doc:"Raw columns by role"`
	Overrides *flow.OverrideTable `json:"overrides,omitempty" doc:"Color overrides"`
	Settings  *flow.Settings      `json:"settings,omitempty" doc:"Visual settings, the stored settings when omitted"`
	Selection []string            `json:"selection,omitempty" doc:"Selected identity keys"`
}

// QueryBody loads the dataset from SQL or from a source file.
type QueryBody struct {
	Query  string      `json:"query,omitempty" doc:"DuckDB SQL returning one row per route" example:"SELECT * FROM 'flights.csv'"`
	Source string      `json:"source,omitempty" doc:"Source file in the data directory" example:"flights.csv"`
	Roles  *db.RoleMap `json:"roles,omitempty" doc:"Column names per role, snake_case defaults when omitted"`
}

type SelectionBody struct {
	Keys []string `json:"keys" doc:"Selected identity keys"`
}

type SelectBody struct {
	Keys  []string `json:"keys" doc:"Identity keys to select"`
	Multi bool     `json:"multi,omitempty" doc:"Add to the current selection"`
}

type EndpointClickBody struct {
	Lng   float64 `json:"lng" doc:"Bubble longitude"`
	Lat   float64 `json:"lat" doc:"Bubble latitude"`
	Multi bool    `json:"multi,omitempty" doc:"Add to the current selection"`
}

type ContextMenuBody struct {
	Identity string  `json:"identity" doc:"Identity key under the pointer"`
	X        float64 `json:"x" doc:"Pointer x"`
	Y        float64 `json:"y" doc:"Pointer y"`
}

type ContextMenuResult struct {
	Shown bool `json:"shown" doc:"False when a menu was already open"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCompose registers composition routes.
func (h *APIHandler) RegisterCompose(api huma.API) {
	huma.Post(api, "/api/v1/compose", h.Compose, huma.OperationTags("compose"))
	huma.Get(api, "/api/v1/routes", h.GetRoutes, huma.OperationTags("compose"))
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("compose"))
}

// RegisterSettings registers settings routes.
func (h *APIHandler) RegisterSettings(api huma.API) {
	huma.Get(api, "/api/v1/settings", h.GetSettings, huma.OperationTags("settings"))
	huma.Put(api, "/api/v1/settings", h.PutSettings, huma.OperationTags("settings"))
}

// RegisterDataset registers dataset routes.
func (h *APIHandler) RegisterDataset(api huma.API) {
	huma.Get(api, "/api/v1/dataset", h.GetDataset, huma.OperationTags("dataset"))
	huma.Put(api, "/api/v1/dataset", h.PutDataset, huma.OperationTags("dataset"))
	huma.Post(api, "/api/v1/dataset/query", h.QueryDataset, huma.OperationTags("dataset"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// RegisterSelection registers selection routes.
func (h *APIHandler) RegisterSelection(api huma.API) {
	huma.Get(api, "/api/v1/selection", h.GetSelection, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/selection", h.PostSelection, huma.OperationTags("selection"))
	huma.Delete(api, "/api/v1/selection", h.DeleteSelection, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/selection/endpoint", h.PostEndpointClick, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/selection/menu", h.PostContextMenu, huma.OperationTags("selection"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) Compose(ctx context.Context, input *struct{ Body ComposeBody }) (*struct{ Body *flow.Composition }, error) {
	settings := h.svc.Settings.Get()
	if input.Body.Settings != nil {
		settings = *input.Body.Settings
		if err := h.svc.Settings.Validate(settings); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
	}
	in := flow.Input{
		Columns:   input.Body.Columns,
		Settings:  settings,
		Selection: flow.NewSelection(input.Body.Selection...),
	}
	if input.Body.Overrides != nil {
		in.Overrides = input.Body.Overrides
	}
	comp, err := flow.NewComposer().Compose(in)
	if err != nil {
		return nil, huma.Error500InternalServerError("Composition failed", err)
	}
	return &struct{ Body *flow.Composition }{Body: comp}, nil
}

func (h *APIHandler) GetRoutes(ctx context.Context, input *struct{}) (*struct{ Body service.Frame }, error) {
	return &struct{ Body service.Frame }{Body: h.svc.Visual.Current()}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body flow.Legend }, error) {
	return &struct{ Body flow.Legend }{Body: h.svc.Visual.Current().Composition.Legend}, nil
}

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*struct{ Body flow.Settings }, error) {
	return &struct{ Body flow.Settings }{Body: h.svc.Visual.Settings()}, nil
}

func (h *APIHandler) PutSettings(ctx context.Context, input *struct{ Body flow.Settings }) (*struct{ Body flow.Settings }, error) {
	updated, err := h.svc.Visual.UpdateSettings(input.Body)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return &struct{ Body flow.Settings }{Body: updated}, nil
}

func (h *APIHandler) GetDataset(ctx context.Context, input *struct{}) (*struct{ Body service.DatasetInfo }, error) {
	return &struct{ Body service.DatasetInfo }{Body: h.svc.Visual.Info()}, nil
}

func (h *APIHandler) PutDataset(ctx context.Context, input *struct{ Body service.Dataset }) (*struct{ Body service.DatasetInfo }, error) {
	h.svc.Visual.SetDataset(input.Body, "inline")
	return &struct{ Body service.DatasetInfo }{Body: h.svc.Visual.Info()}, nil
}

func (h *APIHandler) QueryDataset(ctx context.Context, input *struct{ Body QueryBody }) (*struct{ Body service.DatasetInfo }, error) {
	if h.svc.Dataset == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	body := input.Body
	roles := db.DefaultRoles()
	if body.Roles != nil {
		roles = *body.Roles
	}

	var (
		cols   flow.Columns
		err    error
		source string
	)
	switch {
	case body.Query != "" && body.Source != "":
		return nil, huma.Error400BadRequest("query and source are mutually exclusive")
	case body.Query != "":
		cols, err = h.svc.Dataset.Query(ctx, body.Query, roles)
		source = "query"
	case body.Source != "":
		cols, err = h.svc.Dataset.LoadSource(ctx, body.Source, roles)
		source = body.Source
	default:
		return nil, huma.Error400BadRequest("query or source is required")
	}
	if errors.Is(err, service.ErrNoDatabase) {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if err != nil {
		return nil, huma.Error400BadRequest("Load failed: " + err.Error())
	}

	h.svc.Visual.SetDataset(service.Dataset{Columns: cols}, source)
	return &struct{ Body service.DatasetInfo }{Body: h.svc.Visual.Info()}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	return selectionOutput(h.svc.Visual.Selection()), nil
}

func (h *APIHandler) PostSelection(ctx context.Context, input *struct{ Body SelectBody }) (*struct{ Body SelectionBody }, error) {
	sel, err := h.svc.Visual.Select(ctx, input.Body.Keys, input.Body.Multi)
	if err != nil {
		return nil, huma.Error502BadGateway("Selection failed", err)
	}
	return selectionOutput(sel), nil
}

func (h *APIHandler) DeleteSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	sel, err := h.svc.Visual.ClearSelection(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway("Selection failed", err)
	}
	return selectionOutput(sel), nil
}

func (h *APIHandler) PostEndpointClick(ctx context.Context, input *struct{ Body EndpointClickBody }) (*struct{ Body SelectionBody }, error) {
	if !flow.ValidLat(input.Body.Lat) || !flow.ValidLng(input.Body.Lng) {
		return nil, huma.Error400BadRequest("invalid coordinate")
	}
	sel, err := h.svc.Visual.ToggleEndpoint(ctx, pointOf(input.Body), input.Body.Multi)
	if err != nil {
		return nil, huma.Error502BadGateway("Selection failed", err)
	}
	return selectionOutput(sel), nil
}

func (h *APIHandler) PostContextMenu(ctx context.Context, input *struct{ Body ContextMenuBody }) (*struct{ Body ContextMenuResult }, error) {
	shown, err := h.svc.Visual.ShowContextMenu(ctx, input.Body.Identity, input.Body.X, input.Body.Y)
	if err != nil {
		return nil, huma.Error502BadGateway("Context menu failed", err)
	}
	return &struct{ Body ContextMenuResult }{Body: ContextMenuResult{Shown: shown}}, nil
}

func selectionOutput(sel flow.SelectionState) *struct{ Body SelectionBody } {
	return &struct{ Body SelectionBody }{Body: SelectionBody{Keys: sel.Keys()}}
}
